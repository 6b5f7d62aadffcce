package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

const tenantColumns = `username, password, COALESCE(api_key, ''), tenant_name, logo_file, active, api_usage, api_limit, api_valid_to`

// TenantRepository implements domain.TenantRepository using PostgreSQL.
// Unknown API keys are remembered for a short time so that repeated calls
// with a bad key do not reach the database; known keys are always read fresh
// because their usage snapshot must be current.
type TenantRepository struct {
	db          *sql.DB
	logger      *slog.Logger
	unknown     map[string]time.Time // key -> expiry
	mu          sync.RWMutex
	negativeTTL time.Duration
	metrics     *metrics.APIMetrics
}

// NewTenantRepository creates a new PostgreSQL tenant repository. A zero
// negativeTTL disables the unknown-key cache.
func NewTenantRepository(db *sql.DB, logger *slog.Logger, negativeTTL time.Duration, m *metrics.APIMetrics) *TenantRepository {
	return &TenantRepository{
		db:          db,
		logger:      logger,
		unknown:     make(map[string]time.Time),
		negativeTTL: negativeTTL,
		metrics:     m,
	}
}

// FindByAPIKey returns the tenant owning key.
func (r *TenantRepository) FindByAPIKey(ctx context.Context, key string) (*domain.Tenant, error) {
	if r.negativeTTL > 0 {
		r.mu.RLock()
		expiresAt, found := r.unknown[key]
		r.mu.RUnlock()
		if found && time.Now().Before(expiresAt) {
			if r.metrics != nil {
				r.metrics.APIKeyCacheHits.Inc()
			}
			return nil, domain.ErrNotFound
		}
		if r.metrics != nil {
			r.metrics.APIKeyCacheMisses.Inc()
		}
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE api_key = $1`, key)
	t, err := scanTenant(row)
	if err != nil {
		err = translate(ctx, "find tenant by api key", err)
		if errors.Is(err, domain.ErrNotFound) {
			r.rememberUnknown(key)
		}
		return nil, err
	}
	return t, nil
}

func (r *TenantRepository) rememberUnknown(key string) {
	if r.negativeTTL <= 0 {
		return
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, exp := range r.unknown {
		if now.After(exp) {
			delete(r.unknown, k)
		}
	}
	r.unknown[key] = now.Add(r.negativeTTL)
}

// FindByUsername returns the tenant called username.
func (r *TenantRepository) FindByUsername(ctx context.Context, username string) (*domain.Tenant, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE username = $1`, username)
	t, err := scanTenant(row)
	if err != nil {
		return nil, translate(ctx, "find tenant by username", err)
	}
	return t, nil
}

// IncrementUsage calls the increment_api_usage procedure.
func (r *TenantRepository) IncrementUsage(ctx context.Context, username string, n int64) error {
	var usage int64
	err := r.db.QueryRowContext(ctx, `SELECT increment_api_usage($1, $2)`, username, n).Scan(&usage)
	if err != nil {
		return translate(ctx, "increment_api_usage", err)
	}
	r.logger.Debug("usage incremented", "username", username, "count", n, "usage", usage)
	return nil
}

// Usage reads the current counter.
func (r *TenantRepository) Usage(ctx context.Context, username string) (int64, error) {
	var usage int64
	err := r.db.QueryRowContext(ctx, `SELECT api_usage FROM tenants WHERE username = $1`, username).Scan(&usage)
	if err != nil {
		return 0, translate(ctx, "read usage", err)
	}
	return usage, nil
}

// SetUsage overwrites the counter unconditionally.
func (r *TenantRepository) SetUsage(ctx context.Context, username string, usage int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tenants SET api_usage = $2, updated_at = NOW() WHERE username = $1`, username, usage)
	if err != nil {
		return translate(ctx, "write usage", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return translate(ctx, "write usage", sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		t       domain.Tenant
		active  sql.NullBool
		limit   sql.NullInt64
		validTo sql.NullTime
	)
	if err := row.Scan(&t.Username, &t.Password, &t.APIKey, &t.TenantName, &t.LogoFile,
		&active, &t.APIUsage, &limit, &validTo); err != nil {
		return nil, err
	}
	if active.Valid {
		t.Active = &active.Bool
	}
	if limit.Valid {
		t.APILimit = &limit.Int64
	}
	if validTo.Valid {
		t.APIValidTo = &validTo.Time
	}
	return &t, nil
}
