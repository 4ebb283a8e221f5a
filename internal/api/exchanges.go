package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// listExchanges handles GET /api/sessions/{sessionID}/exchanges.
func (s *Server) listExchanges(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, 500)
	}

	exchanges, err := s.exchanges.ListExchanges(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("failed to list exchanges", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list exchanges")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"exchanges":  exchanges,
		"count":      len(exchanges),
	})
}
