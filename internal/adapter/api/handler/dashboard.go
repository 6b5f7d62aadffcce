package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

type exportQuery struct {
	Format string `json:"format" validate:"oneof=csv json"`
}

// DashboardHandler serves /api/dashboard. Nothing here is metered.
type DashboardHandler struct {
	dashboard *usecase.DashboardService
	logger    *slog.Logger
	now       func() time.Time
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboard *usecase.DashboardService, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard, logger: logger, now: time.Now}
}

// Workshops handles GET /api/dashboard/workshops.
func (h *DashboardHandler) Workshops(w http.ResponseWriter, r *http.Request) {
	filter := workshopFilter(r)
	page := pageOf(r)

	result, err := h.dashboard.Workshops(r.Context(), filter, page)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, envelope{
		Metadata: map[string]any{
			"total":    result.Total,
			"returned": len(result.Workshops),
			"offset":   page.Offset,
			"limit":    page.Limit,
			"filters":  filter,
		},
		Data: result.Workshops,
	})
}

// Export handles GET /api/dashboard/export?format=csv|json.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	q := exportQuery{Format: r.URL.Query().Get("format")}
	if q.Format == "" {
		q.Format = "csv"
	}
	if err := httputil.Validate(q); err != nil {
		httputil.Error(w, err)
		return
	}

	workshops, err := h.dashboard.ExportWorkshops(r.Context(), workshopFilter(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	name := fmt.Sprintf("workshops-%s.%s", h.now().Format("2006-01-02"), q.Format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if q.Format == "json" {
		httputil.JSON(w, http.StatusOK, workshops)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := usecase.WriteWorkshopsCSV(w, workshops); err != nil {
		h.logger.Error("failed to write csv export", "error", err)
	}
}
