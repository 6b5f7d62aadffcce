package handler

import (
	"net/http"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/api/httputil"
)

// Health answers liveness probes.
func Health(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
