// Package cache provides a read-through in-process cache for workshops.
package cache

import (
	"context"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// WorkshopRepository caches single-workshop lookups in front of next.
// Listings are not cached because their totals depend on the filter.
type WorkshopRepository struct {
	next    domain.WorkshopRepository
	c       *ristretto.Cache[string, domain.Workshop]
	ttl     time.Duration
	metrics *metrics.APIMetrics
}

// NewWorkshopRepository creates a cache holding at most maxItems workshops.
func NewWorkshopRepository(next domain.WorkshopRepository, maxItems int64, ttl time.Duration, m *metrics.APIMetrics) (*WorkshopRepository, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, domain.Workshop]{
		NumCounters: maxItems * 10, // ~10x expected items
		MaxCost:     maxItems,
		BufferItems: 64,
		// Each entry costs 1, so MaxCost counts workshops.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &WorkshopRepository{next: next, c: c, ttl: ttl, metrics: m}, nil
}

func (r *WorkshopRepository) List(ctx context.Context, filter domain.WorkshopFilter, page domain.Page) ([]domain.Workshop, int, error) {
	return r.next.List(ctx, filter, page)
}

// Get returns a copy of the cached workshop or loads it from next.
func (r *WorkshopRepository) Get(ctx context.Context, id string) (*domain.Workshop, error) {
	if w, ok := r.lookup(id); ok {
		return &w, nil
	}
	w, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(*w)
	return w, nil
}

// ListByIDs serves cached workshops and loads the rest in one call.
func (r *WorkshopRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Workshop, error) {
	out := make([]domain.Workshop, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if w, ok := r.lookup(id); ok {
			out = append(out, w)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		sortWorkshops(out)
		return out, nil
	}

	loaded, err := r.next.ListByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, w := range loaded {
		r.store(w)
	}
	out = append(out, loaded...)
	sortWorkshops(out)
	return out, nil
}

// Wait blocks until pending writes are visible. Used by tests.
func (r *WorkshopRepository) Wait() {
	r.c.Wait()
}

// Close shuts down the cache and releases resources.
func (r *WorkshopRepository) Close() {
	r.c.Close()
}

func (r *WorkshopRepository) lookup(id string) (domain.Workshop, bool) {
	w, found := r.c.Get(id)
	if r.metrics != nil {
		if found {
			r.metrics.CacheHits.Inc()
		} else {
			r.metrics.CacheMisses.Inc()
		}
	}
	if !found {
		return domain.Workshop{}, false
	}
	return w.Clone(), true
}

func (r *WorkshopRepository) store(w domain.Workshop) {
	r.c.SetWithTTL(w.ID, w.Clone(), 1, r.ttl)
}

func sortWorkshops(ws []domain.Workshop) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Name != ws[j].Name {
			return ws[i].Name < ws[j].Name
		}
		return ws[i].ID < ws[j].ID
	})
}
