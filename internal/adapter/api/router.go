package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/handler"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/middleware"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

// Dependencies is everything the public router serves from.
type Dependencies struct {
	Logger   *slog.Logger
	Metrics  *metrics.APIMetrics
	Location *time.Location

	Authenticator middleware.Authenticator
	Tracker       *usecase.UsageTracker
	Workshops     *usecase.WorkshopService
	Events        *usecase.EventService

	// Dashboard and Sessions are nil when the dashboard is disabled.
	Dashboard *usecase.DashboardService
	Sessions  middleware.SessionParser

	// Non-positive limits disable the matching limiter.
	RateLimitPerMinute      int
	LoginRateLimitPerMinute int
	CORSAllowedOrigins      []string
	SessionTTL              time.Duration
	CookieSecure            bool
}

// NewRouter creates and configures the public HTTP router.
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(d.Logger, d.Metrics))

	r.Get("/health", handler.Health)

	workshops := handler.NewWorkshopHandler(d.Workshops, d.Tracker, d.Logger)
	foundings := handler.NewEventHandler(domain.EventFounding, "foundings", d.Events, d.Tracker, d.Logger)
	changes := handler.NewEventHandler(domain.EventManagementChange, "management_changes", d.Events, d.Tracker, d.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(d.RateLimitPerMinute, d.Logger))
		perTenant := middleware.RateLimitByTenant(d.RateLimitPerMinute, d.Logger)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Authenticator, usecase.AuthStrict, d.Metrics, d.Logger))
			r.Use(perTenant)
			r.Get("/workshops", workshops.List)
			r.Get("/workshops/{id}", workshops.Get)
			r.Get("/foundings", foundings.List)
			r.Get("/management-changes", changes.List)
		})

		r.With(middleware.Auth(d.Authenticator, usecase.AuthLenient, d.Metrics, d.Logger), perTenant).
			Get("/usage", handler.NewUsageHandler(d.Location).ServeHTTP)
	})

	if d.Dashboard != nil && d.Sessions != nil {
		mountDashboard(r, d)
	}

	return r
}

func mountDashboard(r chi.Router, d Dependencies) {
	authHandler := handler.NewAuthHandler(d.Dashboard, d.SessionTTL, d.CookieSecure, d.Logger)
	dashboardHandler := handler.NewDashboardHandler(d.Dashboard, d.Logger)
	session := middleware.Session(d.Sessions)

	// Mounted subrouters run their middleware for every method, so
	// preflight requests reach the CORS handler.
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(corsHandler)
		r.With(middleware.RateLimitByIP(d.LoginRateLimitPerMinute, d.Logger)).
			Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.With(session).Get("/me", authHandler.Me)
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(corsHandler)
		r.Use(session)
		r.Get("/workshops", dashboardHandler.Workshops)
		r.Get("/export", dashboardHandler.Export)
	})
}
