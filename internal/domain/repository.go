package domain

import (
	"context"
	"time"
)

// TenantRepository is the tenant side of the datastore.
type TenantRepository interface {
	// FindByAPIKey returns ErrNotFound when no tenant owns key.
	FindByAPIKey(ctx context.Context, key string) (*Tenant, error)

	FindByUsername(ctx context.Context, username string) (*Tenant, error)

	// IncrementUsage adds n to the counter atomically on the datastore side.
	// It returns ErrRPCUnavailable when the procedure is missing.
	IncrementUsage(ctx context.Context, username string, n int64) error

	// Usage and SetUsage back the non-atomic read-then-write fallback.
	Usage(ctx context.Context, username string) (int64, error)
	SetUsage(ctx context.Context, username string, usage int64) error
}

// WorkshopRepository queries the live workshop table.
type WorkshopRepository interface {
	List(ctx context.Context, filter WorkshopFilter, page Page) ([]Workshop, int, error)
	Get(ctx context.Context, id string) (*Workshop, error)
	ListByIDs(ctx context.Context, ids []string) ([]Workshop, error)
}

// EventRepository serves a static exported event dataset, newest first.
type EventRepository interface {
	Events(ctx context.Context, eventType EventType) ([]Event, error)
}

// UsageLock serializes the fallback read-then-write per tenant.
type UsageLock interface {
	Acquire(ctx context.Context, username string) (release func(), err error)
}

// UsageIncrement is a pending counter update.
type UsageIncrement struct {
	Username   string    `json:"username"`
	Count      int64     `json:"count"`
	RecordedAt time.Time `json:"recorded_at"`
}

// UsageJournal keeps increments that could not be written so they can be
// applied later.
type UsageJournal interface {
	Append(ctx context.Context, inc UsageIncrement) error

	// Drain applies every journaled increment in order and forgets the ones
	// that were applied. It stops at the first failure.
	Drain(ctx context.Context, apply func(UsageIncrement) error) (int, error)
}
