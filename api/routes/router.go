package routes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/user-directory/api/controllers"
	"github.com/angelmondragon/user-directory/api/middleware"
	"github.com/angelmondragon/user-directory/api/responses"
	"github.com/angelmondragon/user-directory/internal/users"
	"github.com/angelmondragon/user-directory/pkg/config"
	"github.com/angelmondragon/user-directory/pkg/db"
	pkgerrors "github.com/angelmondragon/user-directory/pkg/errors"
	"github.com/angelmondragon/user-directory/pkg/logger"
	"github.com/angelmondragon/user-directory/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	usersService users.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.ErrorDetail(cfg.App.IsDev()),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	bodyLimit, err := cfg.App.BodyLimitBytes()
	if err != nil && logg != nil {
		logg.Warn(logg.WithField(context.Background(), "body_limit", cfg.App.BodyLimit), "router.body_limit.invalid")
	}

	var redisPinger controllers.Pinger
	var limiterStore *redis.Client
	if redisClient != nil {
		redisPinger = redisClient
		limiterStore = redisClient
	}
	var dbPinger controllers.Pinger
	if dbP != nil {
		dbPinger = dbP
	}

	r.Get("/health", controllers.Health())
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, redisPinger))
	})

	trustedProxies, err := cfg.RateLimit.TrustedProxyPrefixes()
	if err != nil && logg != nil {
		logg.Warn(logg.WithField(context.Background(), "trusted_proxies", cfg.RateLimit.TrustedProxies), "router.trusted_proxies.invalid")
	}
	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.Max, trustedProxies...)

	r.Route("/api/v1", func(r chi.Router) {
		if limiterStore != nil {
			r.Use(middleware.RateLimit(apiPolicy, limiterStore, logg))
		}
		r.Use(middleware.BodyLimit(bodyLimit))

		r.Get("/status", controllers.Status())
		r.Route("/users", func(r chi.Router) {
			r.Post("/", controllers.UserCreate(usersService, logg))
			r.Get("/", controllers.UserList(usersService, logg))
			r.Get("/{id}", controllers.UserGet(usersService, logg))
			r.Patch("/{id}", controllers.UserUpdate(usersService, logg))
			r.Delete("/{id}", controllers.UserDelete(usersService, logg))
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w,
			pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("Can't find %s %s on this server!", req.Method, req.URL.Path)))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w,
			pkgerrors.New(pkgerrors.CodeMethodNotAllowed, fmt.Sprintf("Method %s is not allowed on %s.", req.Method, req.URL.Path)))
	})

	return r
}
