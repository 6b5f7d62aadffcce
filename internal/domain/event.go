package domain

import (
	"strings"
	"time"
)

// EventType distinguishes the exported event datasets.
type EventType string

const (
	EventFounding         EventType = "founding"
	EventManagementChange EventType = "management_change"
)

// Event is a company event from a static exported dataset.
type Event struct {
	ID          string         `json:"id"`
	WorkshopID  string         `json:"workshop_id,omitempty"`
	Type        EventType      `json:"event_type"`
	Date        string         `json:"event_date"`
	CompanyName string         `json:"company_name"`
	City        string         `json:"city,omitempty"`
	Details     map[string]any `json:"details,omitempty"`

	OccurredOn time.Time `json:"-"`
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	c := e
	c.Details = CloneMap(e.Details)
	return c
}

// EventFilter narrows an event listing. Date bounds are inclusive calendar days.
type EventFilter struct {
	Search   string     `json:"search,omitempty"`
	DateFrom *time.Time `json:"-"`
	DateTo   *time.Time `json:"-"`
}

// Matches reports whether e passes the filter.
func (f EventFilter) Matches(e Event) bool {
	day := DateOf(e.OccurredOn)
	if f.DateFrom != nil && day.Before(DateOf(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && day.After(DateOf(*f.DateTo)) {
		return false
	}
	if f.Search == "" {
		return true
	}
	q := strings.ToLower(f.Search)
	return strings.Contains(strings.ToLower(e.CompanyName), q) ||
		strings.Contains(strings.ToLower(e.City), q)
}
