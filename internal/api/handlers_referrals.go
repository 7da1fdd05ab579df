package api

import (
	"net/http"
)

// handleGetReferrals returns the caller's referral aggregate and the
// current commission rate
func (s *Server) handleGetReferrals(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	ctx := r.Context()

	summary, err := s.ledger.ReferralSummary(ctx, identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	appCfg, err := s.configs.App(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"referral":       summary,
		"commissionRate": appCfg.CommissionRate(),
	})
}
