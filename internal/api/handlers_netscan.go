package api

import (
	"net/http"
)

// netscanResponse is the network verdict shown on app load
type netscanResponse struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	Allowed bool   `json:"allowed"`
	Message string `json:"message,omitempty"`
}

// handleNetscan resolves the caller's network location and reports the
// guard verdict. A failed lookup shows "Unknown" but the guard verdict
// still decides access.
func (s *Server) handleNetscan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ip := clientIP(r)

	country := "Unknown"
	if loc, err := s.lookup.Lookup(ctx, ip); err == nil {
		country = loc.String()
	}

	resp := netscanResponse{IP: ip, Country: country, Allowed: true}

	if err := s.guard.Evaluate(ctx, ip); err != nil {
		resp.Allowed = false
		resp.Message = "Please connect through a supported network location"
	}

	respondJSON(w, http.StatusOK, resp)
}
