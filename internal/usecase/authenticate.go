package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// AuthMode selects which tenant checks the gate applies.
type AuthMode int

const (
	// AuthStrict applies every check. Used by billable resource routes.
	AuthStrict AuthMode = iota
	// AuthLenient skips the expiry and quota checks so a blocked tenant can
	// still inspect its usage.
	AuthLenient
)

// Authenticator validates API keys against tenant records.
type Authenticator struct {
	tenants domain.TenantRepository
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// NewAuthenticator creates a new Authenticator. A nil repository means the
// datastore is not configured; every key is then refused with 503.
func NewAuthenticator(tenants domain.TenantRepository, loc *time.Location, logger *slog.Logger) *Authenticator {
	if loc == nil {
		loc = time.Local
	}
	return &Authenticator{
		tenants: tenants,
		loc:     loc,
		logger:  logger,
		now:     time.Now,
	}
}

// Authenticate runs the ordered checks and returns the tenant snapshot.
// The first failing check wins; nothing is written.
func (a *Authenticator) Authenticate(ctx context.Context, key string, mode AuthMode) (*domain.AuthContext, error) {
	if key == "" {
		return nil, domain.NewAPIError(domain.KindMissingKey,
			"Provide an API key in the X-API-Key header or as an Authorization Bearer token")
	}
	if a.tenants == nil {
		return nil, domain.NewAPIError(domain.KindServiceUnavailable, "The datastore is not configured")
	}

	tenant, err := a.tenants.FindByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewAPIError(domain.KindInvalidKey, "The provided API key is not valid")
		}
		a.logger.Error("failed to look up API key", "error", err)
		return nil, domain.FromError(err)
	}

	if !tenant.IsActive() {
		return nil, domain.NewAPIError(domain.KindAccountInactive, "The account %q has been deactivated", tenant.Username)
	}
	if mode == AuthLenient {
		return domain.NewAuthContext(tenant), nil
	}

	if tenant.IsExpired(a.now(), a.loc) {
		validTo := domain.FormatDate(tenant.APIValidTo)
		return nil, domain.NewAPIError(domain.KindKeyExpired, "The API key expired on %s", *validTo).
			With("validTo", *validTo)
	}
	if tenant.APILimit != nil && tenant.APIUsage >= *tenant.APILimit {
		return nil, domain.NewAPIError(domain.KindQuotaExhausted,
			"API quota exhausted: %d of %d calls used", tenant.APIUsage, *tenant.APILimit).
			With("usage", tenant.APIUsage).
			With("limit", *tenant.APILimit)
	}

	return domain.NewAuthContext(tenant), nil
}
