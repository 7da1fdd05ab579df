package api

import (
	"net/http"
)

// handleGetWallet returns the wallet configuration and the caller's balance
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	ctx := r.Context()

	walletCfg, err := s.configs.Wallet(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := s.users.GetByID(ctx, identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"wallet":         walletCfg,
		"balance":        user.Balance,
		"totalWithdrawn": user.TotalWithdrawn,
	})
}

// withdrawRequest is the withdrawal submission payload
type withdrawRequest struct {
	Amount        float64 `json:"amount"`
	Method        string  `json:"method"`
	AccountNumber string  `json:"accountNumber"`
}

// handleWithdraw submits a withdrawal request. The resulting
// transaction stays pending until resolved externally.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	var req withdrawRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	if req.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Amount must be positive", nil)
		return
	}
	if req.AccountNumber == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Account number is required", nil)
		return
	}

	tx, err := s.ledger.DebitWithdrawal(r.Context(), identity.ID, req.Amount, req.Method, req.AccountNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, tx)
}
