package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// RateLimitByIP limits requests per client IP. It runs before
// authentication, so unknown or rotating keys cannot escape it.
// A non-positive limit disables it.
func RateLimitByIP(requestsPerMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(requestsPerMinute, "ip", httprate.KeyByIP, logger)
}

// RateLimitByTenant limits requests per authenticated tenant and must be
// mounted after Auth. It is independent of the tenant quota.
// A non-positive limit disables it.
func RateLimitByTenant(requestsPerMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	return rateLimit(requestsPerMinute, "tenant", keyByTenant, logger)
}

func rateLimit(requestsPerMinute int, scope string, key httprate.KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("rate limit exceeded",
				"scope", scope,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
				"method", r.Method,
			)
			httputil.ErrorKind(w, domain.KindRateLimited, "Too many requests, please slow down")
		}),
	)
}

// keyByTenant falls back to the client IP when no tenant is attached.
func keyByTenant(r *http.Request) (string, error) {
	if a, ok := AuthContextFrom(r.Context()); ok && a.Username != "" {
		return "tenant:" + a.Username, nil
	}
	ip, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + ip, nil
}
