package http

import "net/http"

// stats reports broker-wide counters.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.dispatcher.Stats())
}
