package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/pii"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/domain/mocks"
)

func testSanitizer() *pii.Sanitizer {
	return pii.NewSanitizer(pii.Options{
		SourceRenames:   map[string]string{"NORTHDATA": "HANDELSREGISTER"},
		InternalMarker:  "northdata",
		ExcludedDomains: []string{"northdata.de"},
	}, discardLogger())
}

func testWorkshops() []domain.Workshop {
	return []domain.Workshop{
		{ID: "w1", Name: "Alpha Autoservice", City: "Berlin", ZipCode: "10115", Concepts: []string{"bosch"},
			Email: []string{"info@alpha.de", "x@northdata.de"},
			Relationships: []domain.Relationship{{Source: "NORTHDATA", Data: map[string]any{"email": "a@alpha.de"}}}},
		{ID: "w2", Name: "Beta Reifen", City: "Hamburg", ZipCode: "20095", Concepts: []string{"tyres"}},
		{ID: "w3", Name: "Gamma KFZ", City: "Berlin", ZipCode: "10245", Concepts: []string{"bosch", "tyres"}},
	}
}

func TestWorkshopService_List(t *testing.T) {
	repo := &mocks.MockWorkshopRepository{Workshops: testWorkshops()}
	svc := NewWorkshopService(repo, testSanitizer(), discardLogger())

	tests := []struct {
		name    string
		filter  domain.WorkshopFilter
		page    domain.Page
		wantIDs []string
		total   int
	}{
		{"all", domain.WorkshopFilter{}, domain.Page{Limit: 100}, []string{"w1", "w2", "w3"}, 3},
		{"search city", domain.WorkshopFilter{Search: "berlin"}, domain.Page{Limit: 100}, []string{"w1", "w3"}, 2},
		{"search zip", domain.WorkshopFilter{Search: "2009"}, domain.Page{Limit: 100}, []string{"w2"}, 1},
		{"concept", domain.WorkshopFilter{Concept: "tyres"}, domain.Page{Limit: 100}, []string{"w2", "w3"}, 2},
		{"city and concept", domain.WorkshopFilter{City: "Berlin", Concept: "bosch"}, domain.Page{Limit: 100}, []string{"w1", "w3"}, 2},
		{"paged", domain.WorkshopFilter{}, domain.Page{Limit: 1, Offset: 1}, []string{"w2"}, 3},
		{"offset past end", domain.WorkshopFilter{}, domain.Page{Limit: 10, Offset: 10}, nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.filter, tt.page)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.total {
				t.Errorf("total = %d, want %d", got.Total, tt.total)
			}
			if len(got.Workshops) != len(tt.wantIDs) {
				t.Fatalf("returned %d workshops, want %d", len(got.Workshops), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got.Workshops[i].ID != id {
					t.Errorf("workshop[%d] = %s, want %s", i, got.Workshops[i].ID, id)
				}
			}
		})
	}
}

func TestWorkshopService_Sanitizes(t *testing.T) {
	repo := &mocks.MockWorkshopRepository{Workshops: testWorkshops()}
	svc := NewWorkshopService(repo, testSanitizer(), discardLogger())

	w, err := svc.Get(context.Background(), "w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(w.Email) != 1 || w.Email[0] != "info@alpha.de" {
		t.Errorf("emails = %v", w.Email)
	}
	if w.Relationships[0].Source != "HANDELSREGISTER" {
		t.Errorf("source = %s", w.Relationships[0].Source)
	}
	if _, ok := w.Relationships[0].Data["email"]; ok {
		t.Error("relationship email should be removed")
	}
	if repo.Workshops[0].Relationships[0].Source != "NORTHDATA" {
		t.Error("repository data was mutated")
	}
}

func TestWorkshopService_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		svc := NewWorkshopService(&mocks.MockWorkshopRepository{}, testSanitizer(), discardLogger())
		_, err := svc.Get(context.Background(), "missing")
		if kind := domain.KindOf(err); kind != domain.KindNotFound {
			t.Errorf("kind = %v, want NotFound", kind)
		}
	})

	t.Run("database error", func(t *testing.T) {
		repo := &mocks.MockWorkshopRepository{ListErr: &domain.DatastoreError{Op: "list workshops", Err: errors.New("syntax error")}}
		svc := NewWorkshopService(repo, testSanitizer(), discardLogger())
		_, err := svc.List(context.Background(), domain.WorkshopFilter{}, domain.Page{Limit: 10})
		apiErr := domain.FromError(err)
		if apiErr.Kind != domain.KindDatabaseError {
			t.Errorf("kind = %v, want DatabaseError", apiErr.Kind)
		}
		if apiErr.Message != "list workshops: syntax error" {
			t.Errorf("message = %q", apiErr.Message)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		svc := NewWorkshopService(nil, testSanitizer(), discardLogger())
		_, err := svc.List(context.Background(), domain.WorkshopFilter{}, domain.Page{Limit: 10})
		if kind := domain.KindOf(err); kind != domain.KindServiceUnavailable {
			t.Errorf("kind = %v, want ServiceUnavailable", kind)
		}
	})
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func testEvents() []domain.Event {
	mk := func(id, workshopID, date, company, city string) domain.Event {
		return domain.Event{ID: id, WorkshopID: workshopID, Type: domain.EventFounding, Date: date,
			CompanyName: company, City: city, OccurredOn: day(date),
			Details: map[string]any{"source": "NorthData export", "capital": "25.000 EUR"}}
	}
	return []domain.Event{
		mk("e1", "w1", "2025-03-01", "Alpha Autoservice GmbH", "Berlin"),
		mk("e2", "w1", "2025-02-15", "Alpha Holding", "Berlin"),
		mk("e3", "w2", "2025-02-01", "Beta Reifen KG", "Hamburg"),
		mk("e4", "", "2025-01-10", "Unlinked GmbH", "Munich"),
	}
}

func TestEventService_List(t *testing.T) {
	events := &mocks.MockEventRepository{Data: map[domain.EventType][]domain.Event{domain.EventFounding: testEvents()}}
	workshops := &mocks.MockWorkshopRepository{Workshops: testWorkshops()}
	svc := NewEventService(events, workshops, testSanitizer(), discardLogger())

	from, to := day("2025-02-01"), day("2025-03-01")

	tests := []struct {
		name          string
		filter        domain.EventFilter
		page          domain.Page
		wantEvents    []string
		wantWorkshops int
		wantTotal     int
	}{
		{"all", domain.EventFilter{}, domain.Page{Limit: 100}, []string{"e1", "e2", "e3", "e4"}, 2, 4},
		{"inclusive range", domain.EventFilter{DateFrom: &from, DateTo: &to}, domain.Page{Limit: 100}, []string{"e1", "e2", "e3"}, 2, 3},
		{"search company", domain.EventFilter{Search: "alpha"}, domain.Page{Limit: 100}, []string{"e1", "e2"}, 1, 2},
		{"search city", domain.EventFilter{Search: "munich"}, domain.Page{Limit: 100}, []string{"e4"}, 0, 1},
		{"paged", domain.EventFilter{}, domain.Page{Limit: 2, Offset: 2}, []string{"e3", "e4"}, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), domain.EventFounding, tt.filter, tt.page)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", got.Total, tt.wantTotal)
			}
			if len(got.Events) != len(tt.wantEvents) {
				t.Fatalf("events = %d, want %d", len(got.Events), len(tt.wantEvents))
			}
			for i, id := range tt.wantEvents {
				if got.Events[i].ID != id {
					t.Errorf("event[%d] = %s, want %s", i, got.Events[i].ID, id)
				}
				if _, ok := got.Events[i].Details["source"]; ok {
					t.Errorf("event %s details not sanitized", id)
				}
			}
			if len(got.Workshops) != tt.wantWorkshops {
				t.Errorf("workshops = %d, want %d", len(got.Workshops), tt.wantWorkshops)
			}
		})
	}
}

func TestEventService_NoLinkedWorkshops(t *testing.T) {
	events := &mocks.MockEventRepository{Data: map[domain.EventType][]domain.Event{domain.EventFounding: testEvents()}}
	workshops := &mocks.MockWorkshopRepository{}
	svc := NewEventService(events, workshops, testSanitizer(), discardLogger())

	got, err := svc.List(context.Background(), domain.EventFounding, domain.EventFilter{Search: "unlinked"}, domain.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Workshops == nil || len(got.Workshops) != 0 {
		t.Errorf("workshops = %#v, want empty non-nil", got.Workshops)
	}
	if workshops.ListByIDsCalls != 0 {
		t.Error("no workshop lookup expected without linked ids")
	}
}

func TestEventService_DatasetError(t *testing.T) {
	events := &mocks.MockEventRepository{Err: errors.New("dataset missing")}
	svc := NewEventService(events, &mocks.MockWorkshopRepository{}, testSanitizer(), discardLogger())

	_, err := svc.List(context.Background(), domain.EventManagementChange, domain.EventFilter{}, domain.Page{Limit: 10})
	if kind := domain.KindOf(err); kind != domain.KindInternal {
		t.Errorf("kind = %v, want Internal", kind)
	}
}
