// Package static serves the exported event datasets from JSON files.
package static

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// EventRepository implements domain.EventRepository over datasets loaded once.
type EventRepository struct {
	datasets map[domain.EventType][]domain.Event
	logger   *slog.Logger
}

// LoadEventRepository reads one JSON array per event type. A missing file
// yields an empty dataset; a malformed one is an error.
func LoadEventRepository(paths map[domain.EventType]string, logger *slog.Logger) (*EventRepository, error) {
	r := &EventRepository{
		datasets: make(map[domain.EventType][]domain.Event, len(paths)),
		logger:   logger.With("component", "static_events"),
	}
	for eventType, path := range paths {
		events, err := loadEvents(path, eventType)
		if err != nil {
			if os.IsNotExist(err) {
				r.logger.Warn("event dataset not found, serving empty dataset", "type", eventType, "path", path)
				r.datasets[eventType] = []domain.Event{}
				continue
			}
			return nil, err
		}
		r.logger.Info("loaded event dataset", "type", eventType, "path", path, "count", len(events))
		r.datasets[eventType] = events
	}
	return r, nil
}

// NewEventRepository builds a repository from in-memory events.
func NewEventRepository(datasets map[domain.EventType][]domain.Event, logger *slog.Logger) (*EventRepository, error) {
	r := &EventRepository{
		datasets: make(map[domain.EventType][]domain.Event, len(datasets)),
		logger:   logger.With("component", "static_events"),
	}
	for eventType, events := range datasets {
		prepared, err := prepare(events, eventType)
		if err != nil {
			return nil, err
		}
		r.datasets[eventType] = prepared
	}
	return r, nil
}

// Events returns a copy of the dataset for eventType, newest first.
func (r *EventRepository) Events(ctx context.Context, eventType domain.EventType) ([]domain.Event, error) {
	events, ok := r.datasets[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	out := make([]domain.Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out, nil
}

func loadEvents(path string, eventType domain.EventType) ([]domain.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode event dataset %s: %w", path, err)
	}
	return prepare(events, eventType)
}

// prepare parses event dates and sorts by date descending, then by id.
func prepare(events []domain.Event, eventType domain.EventType) ([]domain.Event, error) {
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		day, err := time.Parse(time.DateOnly, e.Date)
		if err != nil {
			return nil, fmt.Errorf("event %s: invalid event_date %q: %w", e.ID, e.Date, err)
		}
		e.OccurredOn = day
		if e.Type == "" {
			e.Type = eventType
		}
		out = append(out, e.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredOn.Equal(out[j].OccurredOn) {
			return out[i].OccurredOn.After(out[j].OccurredOn)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
