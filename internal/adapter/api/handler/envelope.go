// Package handler holds the JSON handlers of the public API and the dashboard.
package handler

import (
	"net/http"
	"time"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/middleware"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// listMetadata is the metadata block of paginated responses.
type listMetadata struct {
	Total     int                `json:"total"`
	Returned  int                `json:"returned"`
	Workshops *int               `json:"workshops,omitempty"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
	Usage     domain.QuotaStatus `json:"usage"`
	Filters   any                `json:"filters"`
}

type itemMetadata struct {
	Usage domain.QuotaStatus `json:"usage"`
}

type envelope struct {
	Metadata any `json:"metadata"`
	Data     any `json:"data"`
}

func workshopFilter(r *http.Request) domain.WorkshopFilter {
	q := r.URL.Query()
	return domain.WorkshopFilter{
		Search:  q.Get("search"),
		City:    q.Get("city"),
		ZipCode: q.Get("zipCode"),
		Concept: q.Get("concept"),
	}
}

func pageOf(r *http.Request) domain.Page {
	q := r.URL.Query()
	return domain.ParsePage(q.Get("limit"), q.Get("offset"))
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// authContext fetches the snapshot attached by the API key gate. Its absence
// is a wiring error.
func authContext(w http.ResponseWriter, r *http.Request) (*domain.AuthContext, bool) {
	a, ok := middleware.AuthContextFrom(r.Context())
	if !ok {
		httputil.ErrorKind(w, domain.KindInternal, "Missing authentication context")
	}
	return a, ok
}
