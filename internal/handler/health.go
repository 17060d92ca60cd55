package handler

import "net/http"

// HealthHandler reports liveness plus which backends are configured. It
// never calls the backends, so it stays cheap enough for probes.
type HealthHandler struct {
	storage string
	auth    string
}

// NewHealthHandler creates a HealthHandler. Empty values are reported as
// "not_configured".
func NewHealthHandler(storage, auth string) *HealthHandler {
	if storage == "" {
		storage = "not_configured"
	}
	if auth == "" {
		auth = "not_configured"
	}
	return &HealthHandler{storage: storage, auth: auth}
}

// HandleHealth responds with {"status":"ok","storage":...,"auth":...}.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": h.storage,
		"auth":    h.auth,
	})
}
