package middleware

import (
	"context"
	"net/http"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

const SessionCookie = "auth_token"

type sessionCtxKey struct{}

// SessionParser verifies a dashboard session token.
type SessionParser interface {
	Parse(token string) (*domain.Session, error)
}

// Session rejects requests without a valid session cookie.
func Session(tokens SessionParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				httputil.ErrorKind(w, domain.KindUnauthorized, "Login required")
				return
			}
			session, err := tokens.Parse(cookie.Value)
			if err != nil {
				httputil.ErrorKind(w, domain.KindUnauthorized, "Session is invalid or expired")
				return
			}
			ctx := context.WithValue(r.Context(), sessionCtxKey{}, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom returns the session attached by Session.
func SessionFrom(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*domain.Session)
	return s, ok && s != nil
}
