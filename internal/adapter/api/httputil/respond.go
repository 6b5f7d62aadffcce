// Package httputil writes JSON responses and error envelopes.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// Error renders err as {"error": label, "message": detail, ...details}.
func Error(w http.ResponseWriter, err error) {
	apiErr := domain.FromError(err)
	if apiErr == nil {
		apiErr = domain.NewAPIError(domain.KindInternal, "unknown error")
	}

	body := make(map[string]any, len(apiErr.Details)+2)
	for k, v := range apiErr.Details {
		body[k] = v
	}
	body["error"] = apiErr.Kind.Label()
	body["message"] = apiErr.Message

	JSON(w, apiErr.Kind.Status(), body)
}

// ErrorKind renders a new APIError of kind.
func ErrorKind(w http.ResponseWriter, kind domain.ErrorKind, message string) {
	Error(w, domain.NewAPIError(kind, "%s", message))
}
