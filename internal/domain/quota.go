package domain

import "math"

// WouldExceedLimit reports whether adding recordCount to currentUsage goes
// past limit. A nil limit is unlimited. Negative inputs are clamped to zero.
func WouldExceedLimit(currentUsage int64, limit *int64, recordCount int64) bool {
	if limit == nil {
		return false
	}
	return max(currentUsage, 0)+max(recordCount, 0) > *limit
}

// RemainingQuota returns max(0, limit-currentUsage), or nil when unlimited.
func RemainingQuota(currentUsage int64, limit *int64) *int64 {
	if limit == nil {
		return nil
	}
	remaining := max(*limit-max(currentUsage, 0), 0)
	return &remaining
}

// QuotaStatus is the usage block echoed in responses.
type QuotaStatus struct {
	Current   int64  `json:"current"`
	Limit     *int64 `json:"limit"`
	Remaining *int64 `json:"remaining"`
}

// NewQuotaStatus derives the status for a usage value.
func NewQuotaStatus(current int64, limit *int64) QuotaStatus {
	return QuotaStatus{
		Current:   current,
		Limit:     limit,
		Remaining: RemainingQuota(current, limit),
	}
}

// Percentage is the share of the limit consumed, rounded to two decimals.
// It is nil for unlimited tenants and 100 for a zero limit.
func (q QuotaStatus) Percentage() *float64 {
	if q.Limit == nil {
		return nil
	}
	p := 100.0
	if *q.Limit > 0 {
		p = math.Round(float64(max(q.Current, 0))/float64(*q.Limit)*10000) / 100
	}
	return &p
}
