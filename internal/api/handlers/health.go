package handlers

import "net/http"

// Health handles GET /health, a liveness probe with no dependency checks:
// if the process can answer, it answers.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
