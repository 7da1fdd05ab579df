package api

import (
	"net/http"
	"strconv"
)

// handleGetMe returns the caller's account snapshot
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	user, err := s.users.GetByID(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// handleGetTransactions returns the caller's ledger history, newest first
func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	limit := queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	txs, err := s.txs.ListByUser(r.Context(), identity.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
