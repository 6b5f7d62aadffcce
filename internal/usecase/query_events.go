package usecase

import (
	"context"
	"log/slog"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/pii"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// EventPage is one page of events plus the workshops they reference.
type EventPage struct {
	Events    []domain.Event
	Workshops []domain.Workshop
	Total     int
}

// EventService serves the static event datasets joined with live workshops.
type EventService struct {
	events    domain.EventRepository
	workshops domain.WorkshopRepository
	sanitizer *pii.Sanitizer
	logger    *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(events domain.EventRepository, workshops domain.WorkshopRepository, sanitizer *pii.Sanitizer, logger *slog.Logger) *EventService {
	return &EventService{
		events:    events,
		workshops: workshops,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// List filters the dataset of eventType, pages it, and loads the distinct
// workshops referenced by the page. Billing counts those workshops.
func (s *EventService) List(ctx context.Context, eventType domain.EventType, filter domain.EventFilter, page domain.Page) (*EventPage, error) {
	all, err := s.events.Events(ctx, eventType)
	if err != nil {
		s.logger.Error("failed to load events", "error", err, "type", eventType)
		return nil, domain.FromError(err)
	}

	var matched []domain.Event
	for _, e := range all {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	start, end := page.Window(len(matched))
	window := matched[start:end]

	result := &EventPage{
		Events:    s.sanitizer.Events(window),
		Workshops: []domain.Workshop{},
		Total:     len(matched),
	}

	ids := workshopIDs(window)
	if len(ids) == 0 {
		return result, nil
	}
	if s.workshops == nil {
		return nil, domain.FromError(domain.ErrUnavailable)
	}
	workshops, err := s.workshops.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("failed to load workshops for events", "error", err, "type", eventType)
		return nil, domain.FromError(err)
	}
	result.Workshops = s.sanitizer.Workshops(workshops)
	return result, nil
}

// workshopIDs returns the distinct non-empty workshop ids in first-seen order.
func workshopIDs(events []domain.Event) []string {
	seen := make(map[string]struct{}, len(events))
	var ids []string
	for _, e := range events {
		if e.WorkshopID == "" {
			continue
		}
		if _, ok := seen[e.WorkshopID]; ok {
			continue
		}
		seen[e.WorkshopID] = struct{}{}
		ids = append(ids, e.WorkshopID)
	}
	return ids
}
