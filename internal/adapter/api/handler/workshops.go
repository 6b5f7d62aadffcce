package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

const resourceWorkshops = "workshops"

// WorkshopHandler serves /api/v1/workshops.
type WorkshopHandler struct {
	workshops *usecase.WorkshopService
	tracker   *usecase.UsageTracker
	logger    *slog.Logger
}

// NewWorkshopHandler creates a new WorkshopHandler.
func NewWorkshopHandler(workshops *usecase.WorkshopService, tracker *usecase.UsageTracker, logger *slog.Logger) *WorkshopHandler {
	return &WorkshopHandler{workshops: workshops, tracker: tracker, logger: logger}
}

// List handles GET /api/v1/workshops. Every returned row is billed.
func (h *WorkshopHandler) List(w http.ResponseWriter, r *http.Request) {
	auth, ok := authContext(w, r)
	if !ok {
		return
	}
	filter := workshopFilter(r)
	page := pageOf(r)

	result, err := h.workshops.List(r.Context(), filter, page)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	usage, err := h.tracker.Bill(r.Context(), auth, resourceWorkshops, int64(len(result.Workshops)))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, envelope{
		Metadata: listMetadata{
			Total:    result.Total,
			Returned: len(result.Workshops),
			Offset:   page.Offset,
			Limit:    page.Limit,
			Usage:    usage,
			Filters:  filter,
		},
		Data: result.Workshops,
	})
}

// Get handles GET /api/v1/workshops/{id}. A hit costs one unit.
func (h *WorkshopHandler) Get(w http.ResponseWriter, r *http.Request) {
	auth, ok := authContext(w, r)
	if !ok {
		return
	}

	ws, err := h.workshops.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	usage, err := h.tracker.Bill(r.Context(), auth, resourceWorkshops, 1)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, envelope{
		Metadata: itemMetadata{Usage: usage},
		Data:     ws,
	})
}
