package handler

import (
	"net/http"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

type usageBlock struct {
	Current    int64    `json:"current"`
	Limit      *int64   `json:"limit"`
	Remaining  *int64   `json:"remaining"`
	Percentage *float64 `json:"percentage"`
}

type validityBlock struct {
	ValidTo   *string `json:"validTo"`
	IsExpired bool    `json:"isExpired"`
}

type usageResponse struct {
	Usage    usageBlock    `json:"usage"`
	Validity validityBlock `json:"validity"`
}

// UsageHandler reports the caller's own quota. It is not billed.
type UsageHandler struct {
	loc *time.Location
	now func() time.Time
}

func NewUsageHandler(loc *time.Location) *UsageHandler {
	return &UsageHandler{loc: loc, now: time.Now}
}

// ServeHTTP handles GET /api/v1/usage.
func (h *UsageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth, ok := authContext(w, r)
	if !ok {
		return
	}
	q := auth.Quota()
	httputil.JSON(w, http.StatusOK, usageResponse{
		Usage: usageBlock{
			Current:    q.Current,
			Limit:      q.Limit,
			Remaining:  q.Remaining,
			Percentage: q.Percentage(),
		},
		Validity: validityBlock{
			ValidTo:   domain.FormatDate(auth.ValidTo),
			IsExpired: auth.IsExpired(h.now(), h.loc),
		},
	})
}
