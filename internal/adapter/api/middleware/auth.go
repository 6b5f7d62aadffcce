package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/pkg/logger"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

const APIKeyHeader = "X-API-Key"

type authCtxKey struct{}

// Authenticator validates an API key.
type Authenticator interface {
	Authenticate(ctx context.Context, key string, mode usecase.AuthMode) (*domain.AuthContext, error)
}

// APIKey extracts the candidate key from X-API-Key or Authorization: Bearer.
// X-API-Key wins when both are present.
func APIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Auth is a middleware factory that gates requests on a valid API key and
// attaches the tenant snapshot to the request context.
func Auth(auth Authenticator, mode usecase.AuthMode, m *metrics.APIMetrics, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, err := auth.Authenticate(r.Context(), APIKey(r), mode)
			if err != nil {
				kind := domain.KindOf(err)
				if m != nil {
					m.AuthRejections.WithLabelValues(kind.Label()).Inc()
				}
				logger.FromContext(r.Context(), l).Warn("API request rejected",
					"reason", kind.Label(),
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				httputil.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), authCtxKey{}, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithAuthContext stores a tenant snapshot in ctx.
func WithAuthContext(ctx context.Context, a *domain.AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, a)
}

// AuthContextFrom returns the tenant snapshot attached by Auth.
func AuthContextFrom(ctx context.Context) (*domain.AuthContext, bool) {
	a, ok := ctx.Value(authCtxKey{}).(*domain.AuthContext)
	return a, ok && a != nil
}
