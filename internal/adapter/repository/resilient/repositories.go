package resilient

import (
	"context"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// TenantRepository guards a domain.TenantRepository with a Breaker.
type TenantRepository struct {
	next domain.TenantRepository
	b    *Breaker
}

// NewTenantRepository wraps next.
func NewTenantRepository(next domain.TenantRepository, b *Breaker) *TenantRepository {
	return &TenantRepository{next: next, b: b}
}

func (r *TenantRepository) FindByAPIKey(ctx context.Context, key string) (*domain.Tenant, error) {
	return call(ctx, r.b, func(ctx context.Context) (*domain.Tenant, error) {
		return r.next.FindByAPIKey(ctx, key)
	})
}

func (r *TenantRepository) FindByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	return call(ctx, r.b, func(ctx context.Context) (*domain.Tenant, error) {
		return r.next.FindByUsername(ctx, username)
	})
}

func (r *TenantRepository) IncrementUsage(ctx context.Context, username string, n int64) error {
	_, err := call(ctx, r.b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.IncrementUsage(ctx, username, n)
	})
	return err
}

func (r *TenantRepository) Usage(ctx context.Context, username string) (int64, error) {
	return call(ctx, r.b, func(ctx context.Context) (int64, error) {
		return r.next.Usage(ctx, username)
	})
}

func (r *TenantRepository) SetUsage(ctx context.Context, username string, usage int64) error {
	_, err := call(ctx, r.b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.SetUsage(ctx, username, usage)
	})
	return err
}

// WorkshopRepository guards a domain.WorkshopRepository with a Breaker.
type WorkshopRepository struct {
	next domain.WorkshopRepository
	b    *Breaker
}

// NewWorkshopRepository wraps next.
func NewWorkshopRepository(next domain.WorkshopRepository, b *Breaker) *WorkshopRepository {
	return &WorkshopRepository{next: next, b: b}
}

type listResult struct {
	workshops []domain.Workshop
	total     int
}

func (r *WorkshopRepository) List(ctx context.Context, filter domain.WorkshopFilter, page domain.Page) ([]domain.Workshop, int, error) {
	res, err := call(ctx, r.b, func(ctx context.Context) (listResult, error) {
		ws, total, err := r.next.List(ctx, filter, page)
		return listResult{workshops: ws, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return res.workshops, res.total, nil
}

func (r *WorkshopRepository) Get(ctx context.Context, id string) (*domain.Workshop, error) {
	return call(ctx, r.b, func(ctx context.Context) (*domain.Workshop, error) {
		return r.next.Get(ctx, id)
	})
}

func (r *WorkshopRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Workshop, error) {
	return call(ctx, r.b, func(ctx context.Context) ([]domain.Workshop, error) {
		return r.next.ListByIDs(ctx, ids)
	})
}
