package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
	"github.com/flopinger/leads-sample-sub000/internal/domain/mocks"
)

func newTestCache(t *testing.T, next domain.WorkshopRepository, m *metrics.APIMetrics) *WorkshopRepository {
	t.Helper()
	c, err := NewWorkshopRepository(next, 100, time.Minute, m)
	if err != nil {
		t.Fatalf("NewWorkshopRepository() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestWorkshopCache_Get(t *testing.T) {
	repo := &mocks.MockWorkshopRepository{Workshops: []domain.Workshop{{ID: "w1", Name: "Alpha", Email: []string{"a@alpha.de"}}}}
	m := metrics.NewAPIMetrics(prometheus.NewRegistry())
	c := newTestCache(t, repo, m)
	ctx := context.Background()

	first, err := c.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	c.Wait()

	// Mutating a returned value must not leak into the cache.
	first.Email[0] = "changed@example.com"

	second, err := c.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if repo.GetCalls != 1 {
		t.Errorf("datastore calls = %d, want 1", repo.GetCalls)
	}
	if second.Email[0] != "a@alpha.de" {
		t.Errorf("cached value was mutated: %v", second.Email)
	}
	if hits := testutil.ToFloat64(m.CacheHits); hits != 1 {
		t.Errorf("hits = %v, want 1", hits)
	}
}

func TestWorkshopCache_GetErrorNotCached(t *testing.T) {
	repo := &mocks.MockWorkshopRepository{GetErr: errors.New("boom")}
	c := newTestCache(t, repo, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.Get(context.Background(), "w1"); err == nil {
			t.Fatal("expected an error")
		}
		c.Wait()
	}
	if repo.GetCalls != 2 {
		t.Errorf("datastore calls = %d, want 2", repo.GetCalls)
	}
}

func TestWorkshopCache_ListByIDs(t *testing.T) {
	repo := &mocks.MockWorkshopRepository{Workshops: []domain.Workshop{
		{ID: "w1", Name: "Alpha"}, {ID: "w2", Name: "Beta"}, {ID: "w3", Name: "Gamma"},
	}}
	c := newTestCache(t, repo, nil)
	ctx := context.Background()

	if _, err := c.Get(ctx, "w2"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	c.Wait()

	got, err := c.ListByIDs(ctx, []string{"w3", "w2", "w1"})
	if err != nil {
		t.Fatalf("ListByIDs() error = %v", err)
	}
	if len(got) != 3 || got[0].ID != "w1" || got[1].ID != "w2" || got[2].ID != "w3" {
		t.Errorf("ListByIDs() = %v", got)
	}
	c.Wait()

	if _, err := c.ListByIDs(ctx, []string{"w1", "w3"}); err != nil {
		t.Fatalf("ListByIDs() error = %v", err)
	}
	if repo.ListByIDsCalls != 1 {
		t.Errorf("datastore ListByIDs calls = %d, want 1", repo.ListByIDsCalls)
	}
}

func TestWorkshopCache_HoldsManyEntries(t *testing.T) {
	var workshops []domain.Workshop
	for i := range 50 {
		workshops = append(workshops, domain.Workshop{ID: fmt.Sprintf("w%02d", i), Name: fmt.Sprintf("Workshop %02d", i)})
	}
	repo := &mocks.MockWorkshopRepository{Workshops: workshops}
	c := newTestCache(t, repo, nil)
	ctx := context.Background()

	for _, w := range workshops {
		if _, err := c.Get(ctx, w.ID); err != nil {
			t.Fatalf("Get(%s) error = %v", w.ID, err)
		}
	}
	c.Wait()

	for _, w := range workshops {
		if _, err := c.Get(ctx, w.ID); err != nil {
			t.Fatalf("Get(%s) error = %v", w.ID, err)
		}
	}
	if repo.GetCalls != len(workshops) {
		t.Errorf("datastore Get calls = %d, want %d", repo.GetCalls, len(workshops))
	}
}
