package domain

import "time"

// Tenant is one API consumer / dashboard account.
type Tenant struct {
	Username   string     `json:"username"`
	Password   string     `json:"-"`
	APIKey     string     `json:"-"`
	TenantName string     `json:"tenant_name"`
	LogoFile   string     `json:"logo_file,omitempty"`
	Active     *bool      `json:"active,omitempty"` // nil is treated as active
	APIUsage   int64      `json:"api_usage"`
	APILimit   *int64     `json:"api_limit"`    // nil means unlimited
	APIValidTo *time.Time `json:"api_valid_to"` // nil means the key never expires
}

// IsActive reports whether the tenant may authenticate. Only an explicit
// false deactivates an account.
func (t *Tenant) IsActive() bool {
	return t.Active == nil || *t.Active
}

// IsExpired reports whether the key's validity date lies before the calendar
// day of now in loc. A key stays valid for the whole of its validTo day.
func (t *Tenant) IsExpired(now time.Time, loc *time.Location) bool {
	return keyExpired(t.APIValidTo, now, loc)
}

func keyExpired(validTo *time.Time, now time.Time, loc *time.Location) bool {
	if validTo == nil {
		return false
	}
	if loc == nil {
		loc = time.Local
	}
	return DateOf(*validTo).Before(DateOf(now.In(loc)))
}

// AuthContext is the per-request snapshot attached by the API key gate.
type AuthContext struct {
	Username     string
	TenantName   string
	APIKey       string
	CurrentUsage int64
	Limit        *int64
	ValidTo      *time.Time
}

// NewAuthContext snapshots the quota state of t.
func NewAuthContext(t *Tenant) *AuthContext {
	return &AuthContext{
		Username:     t.Username,
		TenantName:   t.TenantName,
		APIKey:       t.APIKey,
		CurrentUsage: t.APIUsage,
		Limit:        t.APILimit,
		ValidTo:      t.APIValidTo,
	}
}

// IsExpired applies the tenant expiry rule to the snapshot.
func (a *AuthContext) IsExpired(now time.Time, loc *time.Location) bool {
	return keyExpired(a.ValidTo, now, loc)
}

// Quota returns the usage block for the snapshot.
func (a *AuthContext) Quota() QuotaStatus {
	return NewQuotaStatus(a.CurrentUsage, a.Limit)
}

// Session is the identity carried by a dashboard session token.
type Session struct {
	Username   string `json:"username"`
	TenantName string `json:"tenant_name"`
	LogoFile   string `json:"logo_file,omitempty"`
	Admin      bool   `json:"admin"`
}

// DateOf returns the calendar day of t (in t's own location) as UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a date as YYYY-MM-DD, or nil when absent.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
