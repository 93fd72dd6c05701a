package middleware

import (
	"net/http"

	"github.com/angelmondragon/user-directory/api/responses"
)

// ErrorDetail enables verbose error payloads for every request when enabled.
func ErrorDetail(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(responses.WithDebug(r.Context(), true)))
		})
	}
}
