package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	EnvAppEnv          = "APP_ENV"
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogWarnStack    = "LOG_WARN_STACK"
	EnvLogFormat       = "LOG_FORMAT"
	EnvBodyLimit       = "BODY_LIMIT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvAutoMigrate     = "AUTO_MIGRATE"

	EnvDBDSN             = "DB_DSN"
	EnvDBDriver          = "DB_DRIVER"
	EnvDBHost            = "DB_HOST"
	EnvDBPort            = "DB_PORT"
	EnvDBUser            = "DB_USER"
	EnvDBPassword        = "DB_PASSWORD"
	EnvDBName            = "DB_NAME"
	EnvDBSSLMode         = "DB_SSLMODE"
	EnvDBPoolMax         = "DB_POOL_MAX"
	EnvDBMaxIdleConns    = "DB_MAX_IDLE_CONNS"
	EnvDBPoolIdleTimeout = "DB_POOL_IDLE_TIMEOUT"
	EnvDBConnTimeout     = "DB_CONNECTION_TIMEOUT"
	EnvDBConnMaxLifetime = "DB_CONN_MAX_LIFETIME"

	EnvBcryptSaltRounds = "BCRYPT_SALT_ROUNDS"

	EnvRedisURL  = "REDIS_URL"
	EnvRedisAddr = "REDIS_ADDR"

	EnvRateLimitWindow         = "RATE_LIMIT_WINDOW"
	EnvRateLimitMax            = "RATE_LIMIT_MAX"
	EnvRateLimitTrustedProxies = "RATE_LIMIT_TRUSTED_PROXIES"

	EnvCORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
)

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
	AppEnvTest = "test"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App       AppConfig
	DB        DBConfig
	Password  PasswordConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.App.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.RateLimit.TrustedProxyPrefixes(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"APP_ENV" default:"development"`
	Port            string        `envconfig:"PORT" default:"3001"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"LOG_WARN_STACK" default:"false"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	BodyLimit       string        `envconfig:"BODY_LIMIT" default:"10kb"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	AutoMigrate     bool          `envconfig:"AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	env := strings.ToLower(strings.TrimSpace(a.Env))
	return env == AppEnvDev || env == "dev"
}

func (a AppConfig) IsProd() bool {
	env := strings.ToLower(strings.TrimSpace(a.Env))
	return env == AppEnvProd || env == "prod"
}

// binaryUnit matches kb/mb/gb suffixes, which BODY_LIMIT reads as powers of 1024.
var binaryUnit = regexp.MustCompile(`(?i)^([\d.]+)\s*([kmg])b$`)

// BodyLimitBytes parses BODY_LIMIT values such as "10kb" (10240) or "1MiB".
func (a AppConfig) BodyLimitBytes() (int64, error) {
	raw := strings.TrimSpace(a.BodyLimit)
	if raw == "" {
		return 0, nil
	}
	if m := binaryUnit.FindStringSubmatch(raw); m != nil {
		raw = m[1] + m[2] + "iB"
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", EnvBodyLimit, a.BodyLimit, err)
	}
	return int64(n), nil
}

func (a AppConfig) validate() error {
	if _, err := a.BodyLimitBytes(); err != nil {
		return err
	}
	if a.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvShutdownTimeout)
	}
	return nil
}

type DBConfig struct {
	DSN    string `envconfig:"DB_DSN"`
	Driver string `envconfig:"DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DB_HOST"`
	LegacyPort     int    `envconfig:"DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DB_USER"`
	LegacyPassword string `envconfig:"DB_PASSWORD"`
	LegacyName     string `envconfig:"DB_NAME"`
	LegacySSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_POOL_MAX" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_POOL_IDLE_TIMEOUT" default:"30s"`
	ConnectTimeout  time.Duration `envconfig:"DB_CONNECTION_TIMEOUT" default:"30s"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type PasswordConfig struct {
	BcryptCost int `envconfig:"BCRYPT_SALT_ROUNDS" default:"10"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	Address      string        `envconfig:"REDIS_ADDR"`
	Password     string        `envconfig:"REDIS_PASSWORD"`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type RateLimitConfig struct {
	Window         time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	Max            int           `envconfig:"RATE_LIMIT_MAX" default:"100"`
	TrustedProxies []string      `envconfig:"RATE_LIMIT_TRUSTED_PROXIES"`
}

// TrustedProxyPrefixes parses the proxy allow-list. Bare addresses become
// single-host prefixes.
func (r RateLimitConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, raw := range r.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid %s entry %q: %w", EnvRateLimitTrustedProxies, raw, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s entry %q: %w", EnvRateLimitTrustedProxies, raw, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DriverSQLite)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	q := u.Query()
	if db.LegacySSLMode != "" {
		q.Set("sslmode", db.LegacySSLMode)
	}
	if secs := int(db.ConnectTimeout / time.Second); secs > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", secs))
	}
	u.RawQuery = q.Encode()

	db.DSN = u.String()
	return nil
}
