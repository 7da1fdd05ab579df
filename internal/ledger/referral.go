package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/types"
)

// PropagateCommission credits the earner's referrer with a percentage
// of the earned amount and updates the referrer's aggregate. Called on
// every credit for a referred user.
func (s *Service) PropagateCommission(ctx context.Context, earner *models.User, amount float64) error {
	referrerID := earner.ReferredBy
	if referrerID == 0 || referrerID == earner.TelegramID {
		return nil
	}

	app, err := s.configs.App(ctx)
	if err != nil {
		return err
	}

	commission := amount * app.CommissionRate()
	if commission <= 0 {
		return nil
	}

	referrer, err := s.users.GetByID(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("referrer lookup failed: %w", err)
	}

	referrer.Balance += commission
	referrer.TotalEarned += commission

	if err := s.users.SaveLedgerFields(ctx, referrer); err != nil {
		return err
	}

	tx := &models.Transaction{
		UserID:      referrerID,
		Type:        types.TypeReferral,
		Amount:      commission,
		Description: fmt.Sprintf("Commission from %s", earner.DisplayName()),
		Status:      types.StatusCompleted,
		CreatedAt:   time.Now(),
	}
	if err := s.txs.Append(ctx, tx); err != nil {
		return err
	}
	s.archive(ctx, tx)

	data, err := s.referrals.GetOrCreate(ctx, referrerID)
	if err != nil {
		return err
	}

	key := strconv.FormatInt(earner.TelegramID, 10)
	entry, seen := data.ReferredUsers[key]
	if !seen {
		// Lazily created entries still count toward referredCount so
		// the aggregate stays consistent with the map
		data.ReferredCount++
	}
	if entry.Username == "" {
		entry.Username = earner.DisplayName()
	}
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = earner.JoinDate
	}
	entry.TotalEarned += amount
	entry.CommissionEarned += commission
	data.ReferredUsers[key] = entry
	data.ReferralEarnings += commission

	return s.referrals.Save(ctx, data)
}

// RegisterReferral records a new invited user under their referrer.
// Self-referrals and double registrations are rejected, and the
// referrer must exist.
func (s *Service) RegisterReferral(ctx context.Context, referrerID int64, invited *models.User) error {
	if referrerID == invited.TelegramID {
		return errors.NewInvalidParameterError("referrer", "cannot refer yourself")
	}
	if invited.ReferredBy != 0 {
		return errors.NewConflictError("user already has a referrer")
	}

	if _, err := s.users.GetByID(ctx, referrerID); err != nil {
		return fmt.Errorf("referrer lookup failed: %w", err)
	}

	data, err := s.referrals.GetOrCreate(ctx, referrerID)
	if err != nil {
		return err
	}

	key := strconv.FormatInt(invited.TelegramID, 10)
	if _, seen := data.ReferredUsers[key]; seen {
		return errors.NewConflictError("user already registered under this referrer")
	}

	// The linkage must hit the users row, not just this struct, or
	// every later credit reloads the user and skips commission
	if err := s.users.SetReferredBy(ctx, invited.TelegramID, referrerID); err != nil {
		return err
	}
	invited.ReferredBy = referrerID

	data.ReferredUsers[key] = models.ReferredUser{
		Username: invited.DisplayName(),
		JoinedAt: invited.JoinDate,
	}
	data.ReferredCount++

	if err := s.referrals.Save(ctx, data); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"referrer": referrerID,
		"invited":  invited.TelegramID,
	}).Info("referral registered")

	return nil
}

// ReferralSummary returns the aggregate data shown on the refer page
func (s *Service) ReferralSummary(ctx context.Context, referrerID int64) (*models.ReferralData, error) {
	return s.referrals.GetOrCreate(ctx, referrerID)
}
