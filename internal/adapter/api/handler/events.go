package handler

import (
	"log/slog"
	"net/http"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/usecase"
)

type eventFilters struct {
	Search   string `json:"search,omitempty"`
	DateFrom string `json:"dateFrom,omitempty"`
	DateTo   string `json:"dateTo,omitempty"`
}

type eventData struct {
	Events    []domain.Event    `json:"events"`
	Workshops []domain.Workshop `json:"workshops"`
}

// EventHandler serves one static event dataset, e.g. /api/v1/foundings.
type EventHandler struct {
	eventType domain.EventType
	resource  string
	events    *usecase.EventService
	tracker   *usecase.UsageTracker
	logger    *slog.Logger
}

// NewEventHandler creates a handler for the dataset of eventType. resource
// labels the served-records metric.
func NewEventHandler(eventType domain.EventType, resource string, events *usecase.EventService, tracker *usecase.UsageTracker, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventType: eventType,
		resource:  resource,
		events:    events,
		tracker:   tracker,
		logger:    logger,
	}
}

// List returns a page of events and the workshops they reference. The bill
// is the number of distinct workshops, not the number of events.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	auth, ok := authContext(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	echo := eventFilters{Search: q.Get("search"), DateFrom: q.Get("dateFrom"), DateTo: q.Get("dateTo")}
	filter := domain.EventFilter{Search: echo.Search}
	var err error
	if filter.DateFrom, err = parseDate(echo.DateFrom); err != nil {
		httputil.ErrorKind(w, domain.KindBadRequest, "dateFrom must be YYYY-MM-DD or RFC 3339")
		return
	}
	if filter.DateTo, err = parseDate(echo.DateTo); err != nil {
		httputil.ErrorKind(w, domain.KindBadRequest, "dateTo must be YYYY-MM-DD or RFC 3339")
		return
	}
	page := pageOf(r)

	result, err := h.events.List(r.Context(), h.eventType, filter, page)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	workshops := len(result.Workshops)
	usage, err := h.tracker.Bill(r.Context(), auth, h.resource, int64(workshops))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, envelope{
		Metadata: listMetadata{
			Total:     result.Total,
			Returned:  len(result.Events),
			Workshops: &workshops,
			Offset:    page.Offset,
			Limit:     page.Limit,
			Usage:     usage,
			Filters:   echo,
		},
		Data: eventData{Events: result.Events, Workshops: result.Workshops},
	})
}
