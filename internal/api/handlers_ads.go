package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// handleGetAds returns per-provider slot states and the countdown to
// the next daily reset
func (s *Server) handleGetAds(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	slots, err := s.ads.Slots(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"slots":            slots,
		"nextResetSeconds": int(s.clock.NextResetIn(time.Now()).Seconds()),
	})
}

// handleWatchAd runs one ad watch. Precondition failures come back as
// 200 responses carrying the user-facing message; only infrastructure
// problems surface as errors.
func (s *Server) handleWatchAd(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	provider := mux.Vars(r)["provider"]

	result, err := s.ads.RequestWatch(r.Context(), identity.ID, provider)
	if err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// postbackRequest is the server-to-server completion notification
type postbackRequest struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// handlePostback delivers a provider postback to the watch in flight
func (s *Server) handlePostback(w http.ResponseWriter, r *http.Request) {
	var req postbackRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	var outcome error
	if req.Status != "success" {
		msg := req.Message
		if msg == "" {
			msg = "provider reported failure"
		}
		outcome = fmt.Errorf("postback: %s", msg)
	}

	delivered := s.postback.Deliver(outcome)

	respondJSON(w, http.StatusOK, map[string]bool{"delivered": delivered})
}
