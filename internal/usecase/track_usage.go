package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// UsageTracker adds billed record counts to the persisted tenant counter.
type UsageTracker struct {
	tenants domain.TenantRepository
	lock    domain.UsageLock    // nil keeps the fallback unserialized
	journal domain.UsageJournal // nil drops increments that cannot be written
	metrics *metrics.APIMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewUsageTracker creates a new UsageTracker. lock, journal and m may be nil.
func NewUsageTracker(tenants domain.TenantRepository, lock domain.UsageLock, journal domain.UsageJournal, m *metrics.APIMetrics, logger *slog.Logger) *UsageTracker {
	return &UsageTracker{
		tenants: tenants,
		lock:    lock,
		journal: journal,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Bill checks count against the snapshot taken at authentication, records it
// and returns the usage block for the response. Nothing is recorded when the
// count does not fit into the remaining quota.
func (t *UsageTracker) Bill(ctx context.Context, auth *domain.AuthContext, resource string, count int64) (domain.QuotaStatus, error) {
	if domain.WouldExceedLimit(auth.CurrentUsage, auth.Limit, count) {
		remaining := domain.RemainingQuota(auth.CurrentUsage, auth.Limit)
		return domain.QuotaStatus{}, domain.NewAPIError(domain.KindQuotaInsufficient,
			"The request would return %d records but only %d remain in the quota", count, *remaining).
			With("usage", auth.CurrentUsage).
			With("limit", *auth.Limit).
			With("requested", count).
			With("remaining", *remaining)
	}

	if t.metrics != nil && count > 0 {
		t.metrics.RecordsServed.WithLabelValues(resource).Add(float64(count))
	}
	t.Track(ctx, auth.Username, count)
	return domain.NewQuotaStatus(auth.CurrentUsage+count, auth.Limit), nil
}

// Track increments the counter for username. Failures are logged and never
// returned: the caller already has its data.
func (t *UsageTracker) Track(ctx context.Context, username string, count int64) {
	if t.tenants == nil || username == "" || count <= 0 {
		return
	}
	// The response may be cancelled while the counter is written.
	ctx = context.WithoutCancel(ctx)

	path, err := t.apply(ctx, username, count)
	if err == nil {
		t.observe(path)
		return
	}
	t.logger.Error("failed to track API usage", "error", err, "username", username, "count", count)

	if t.journal == nil {
		t.observe("dropped")
		return
	}
	inc := domain.UsageIncrement{Username: username, Count: count, RecordedAt: t.now().UTC()}
	if err := t.journal.Append(ctx, inc); err != nil {
		t.logger.Error("failed to journal usage increment", "error", err, "username", username, "count", count)
		t.observe("dropped")
		return
	}
	if t.metrics != nil {
		t.metrics.UsageJournalQueued.Inc()
	}
	t.observe("journal")
}

// apply tries the atomic procedure first and falls back to read-then-write.
// It returns the path that recorded the increment.
func (t *UsageTracker) apply(ctx context.Context, username string, count int64) (string, error) {
	err := t.tenants.IncrementUsage(ctx, username, count)
	if err == nil {
		return "rpc", nil
	}
	if errors.Is(err, domain.ErrRPCUnavailable) {
		t.logger.Debug("atomic usage increment unavailable, using fallback", "username", username)
	} else {
		t.logger.Warn("atomic usage increment failed, using fallback", "error", err, "username", username)
	}

	if ferr := t.fallback(ctx, username, count); ferr != nil {
		return "", fmt.Errorf("increment failed (%v), fallback failed: %w", err, ferr)
	}
	return "fallback", nil
}

// fallback is not atomic: without a lock, concurrent callers for the same
// tenant can overwrite each other's increments.
func (t *UsageTracker) fallback(ctx context.Context, username string, count int64) error {
	if t.lock != nil {
		release, err := t.lock.Acquire(ctx, username)
		if err != nil {
			return fmt.Errorf("acquire usage lock: %w", err)
		}
		defer release()
	}

	current, err := t.tenants.Usage(ctx, username)
	if err != nil {
		return fmt.Errorf("read usage: %w", err)
	}
	if err := t.tenants.SetUsage(ctx, username, current+count); err != nil {
		return fmt.Errorf("write usage: %w", err)
	}
	return nil
}

// ReplayJournal applies journaled increments in order. It stops at the first
// one that still cannot be written.
func (t *UsageTracker) ReplayJournal(ctx context.Context) (int, error) {
	if t.journal == nil || t.tenants == nil {
		return 0, nil
	}
	n, err := t.journal.Drain(ctx, func(inc domain.UsageIncrement) error {
		_, err := t.apply(ctx, inc.Username, inc.Count)
		return err
	})
	if n > 0 {
		if t.metrics != nil {
			t.metrics.UsageIncrements.WithLabelValues("replay").Add(float64(n))
		}
		t.logger.Info("replayed journaled usage increments", "count", n)
	}
	return n, err
}

// StartReplayLoop replays the journal every interval until ctx is done.
func (t *UsageTracker) StartReplayLoop(ctx context.Context, interval time.Duration) {
	if t.journal == nil {
		t.logger.Info("usage journal is not configured, skipping replay loop")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info("starting usage journal replayer", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stopping usage journal replayer")
			return
		case <-ticker.C:
			if _, err := t.ReplayJournal(ctx); err != nil {
				t.logger.Warn("usage journal replay incomplete", "error", err)
			}
		}
	}
}

func (t *UsageTracker) observe(path string) {
	if t.metrics != nil {
		t.metrics.UsageIncrements.WithLabelValues(path).Inc()
	}
}
