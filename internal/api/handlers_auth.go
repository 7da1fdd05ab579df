package api

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/prime-rewards/internal/gate"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/storage"
)

// authRequest is the client bootstrap payload. Device attributes are
// collected client-side and hashed into the fingerprint server-side.
type authRequest struct {
	Device     gate.DeviceAttrs `json:"device"`
	ReferrerID int64            `json:"ref,omitempty"`
}

// handleAuth authenticates the caller and bootstraps the account on
// first contact: device gate, user creation, referral registration.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
		return
	}

	var req authRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	deviceID := gate.Fingerprint(req.Device)
	ctx := r.Context()

	user, err := s.users.GetByID(ctx, identity.ID)
	if err != nil && !stderrors.Is(err, storage.ErrUserNotFound) {
		writeError(w, err)
		return
	}

	if user == nil {
		user = &models.User{
			TelegramID:   identity.ID,
			Username:     identity.Username,
			FirstName:    identity.FirstName,
			LastName:     identity.LastName,
			ProfilePhoto: identity.PhotoURL,
			JoinDate:     time.Now(),
		}

		if err := s.gate.RegisterAccount(ctx, deviceID, user); err != nil {
			writeError(w, err)
			return
		}

		if err := s.users.Create(ctx, user); err != nil {
			writeError(w, err)
			return
		}

		if req.ReferrerID != 0 {
			if err := s.ledger.RegisterReferral(ctx, req.ReferrerID, user); err != nil {
				// A bad referral link must not block signup
				s.logger.WithError(err).WithFields(map[string]interface{}{
					"userId":     user.TelegramID,
					"referrerId": req.ReferrerID,
				}).Warn("referral registration failed")
			}
		}

		respondJSON(w, http.StatusCreated, user)
		return
	}

	if err := s.gate.RegisterAccount(ctx, deviceID, user); err != nil {
		writeError(w, err)
		return
	}

	// Refresh profile fields Telegram may have changed
	user.Username = identity.Username
	user.FirstName = identity.FirstName
	user.LastName = identity.LastName
	if identity.PhotoURL != "" {
		user.ProfilePhoto = identity.PhotoURL
	}

	if err := s.users.Update(ctx, user); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, user)
}
