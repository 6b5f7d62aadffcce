package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/middleware"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

const maxLoginBody = 4 << 10

type loginRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

type sessionResponse struct {
	User *domain.Session `json:"user"`
}

// AuthHandler serves the dashboard login endpoints under /api/auth.
type AuthHandler struct {
	dashboard    *usecase.DashboardService
	ttl          time.Duration
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. ttl sets the cookie lifetime and
// should match the token lifetime.
func NewAuthHandler(dashboard *usecase.DashboardService, ttl time.Duration, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{dashboard: dashboard, ttl: ttl, secureCookie: secureCookie, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.ErrorKind(w, domain.KindBadRequest, "Request body must be a JSON object")
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	token, session, err := h.dashboard.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	http.SetCookie(w, h.cookie(token, int(h.ttl.Seconds())))
	httputil.JSON(w, http.StatusOK, sessionResponse{User: session})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie("", -1))
	httputil.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me behind the session gate.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFrom(r.Context())
	if !ok {
		httputil.ErrorKind(w, domain.KindUnauthorized, "Login required")
		return
	}
	httputil.JSON(w, http.StatusOK, sessionResponse{User: session})
}

func (h *AuthHandler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}
