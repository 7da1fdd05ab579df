// Package ledger implements balance bookkeeping for earnings,
// withdrawals and referral commissions.
//
// Balances are read-modify-write without row locks: credits for one
// user are serialized by the ad watch lock upstream, and concurrent
// writers are last-writer-wins. The transaction history is the
// authoritative audit trail.
package ledger

import (
	"context"
	"time"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/types"
)

// UserStore is the user persistence surface the ledger needs
type UserStore interface {
	GetByID(ctx context.Context, telegramID int64) (*models.User, error)
	SaveLedgerFields(ctx context.Context, user *models.User) error
	SetReferredBy(ctx context.Context, telegramID, referrerID int64) error
}

// TransactionStore appends entries to the ledger history
type TransactionStore interface {
	Append(ctx context.Context, tx *models.Transaction) error
}

// ReferralStore persists per-referrer aggregates
type ReferralStore interface {
	GetOrCreate(ctx context.Context, referrerID int64) (*models.ReferralData, error)
	Save(ctx context.Context, data *models.ReferralData) error
}

// ConfigSource provides the remote config documents the ledger reads
type ConfigSource interface {
	App(ctx context.Context) (*models.AppConfig, error)
	Wallet(ctx context.Context) (*models.WalletConfig, error)
}

// Archiver mirrors ledger entries into the analytics archive
type Archiver interface {
	Archive(ctx context.Context, tx *models.Transaction) error
}

// Service implements the balance bookkeeping operations
type Service struct {
	users     UserStore
	txs       TransactionStore
	referrals ReferralStore
	configs   ConfigSource
	archiver  Archiver // optional
	resetLoc  *time.Location
	logger    *logging.Logger
}

// NewService creates a new ledger service. archiver may be nil when
// the analytics archive is disabled.
func NewService(users UserStore, txs TransactionStore, referrals ReferralStore, configs ConfigSource, archiver Archiver, resetLoc *time.Location, logger *logging.Logger) *Service {
	if resetLoc == nil {
		resetLoc = time.UTC
	}
	return &Service{
		users:     users,
		txs:       txs,
		referrals: referrals,
		configs:   configs,
		archiver:  archiver,
		resetLoc:  resetLoc,
		logger:    logger.WithField("component", "ledger"),
	}
}

// CreditEarning credits a user for an ad watch or task reward, appends
// the history entry and propagates referral commission. Returns the
// updated user.
func (s *Service) CreditEarning(ctx context.Context, userID int64, amount float64, txType types.TransactionType, description string) (*models.User, error) {
	if amount <= 0 {
		return nil, errors.NewInvalidParameterError("amount", "must be positive")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if txType == types.TypeEarn {
		// A user's first watch of a new day zeroes their own counter
		// even if the global reset has not run yet
		if user.LastAdWatch != nil && !sameDay(*user.LastAdWatch, now, s.resetLoc) {
			user.AdsWatchedToday = 0
		}
		user.AdsWatchedToday++
		user.LastAdWatch = &now
	}

	user.Balance += amount
	user.TotalEarned += amount

	if err := s.users.SaveLedgerFields(ctx, user); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Description: description,
		Status:      types.StatusCompleted,
		CreatedAt:   now,
	}
	if err := s.txs.Append(ctx, tx); err != nil {
		return nil, err
	}
	s.archive(ctx, tx)

	if user.ReferredBy != 0 {
		// Commission failure must not fail the earning itself
		if err := s.PropagateCommission(ctx, user, amount); err != nil {
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"userId":   userID,
				"referrer": user.ReferredBy,
			}).Error("failed to propagate referral commission")
		}
	}

	return user, nil
}

// DebitWithdrawal validates and books a withdrawal request. The entry
// is left pending for manual payout.
func (s *Service) DebitWithdrawal(ctx context.Context, userID int64, amount float64, method, accountNumber string) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, errors.NewInvalidParameterError("amount", "must be positive")
	}
	if accountNumber == "" {
		return nil, errors.NewInvalidParameterError("accountNumber", "is required")
	}

	wallet, err := s.configs.Wallet(ctx)
	if err != nil {
		return nil, err
	}

	if wallet.MaintenanceMode {
		return nil, errors.NewMaintenanceError(wallet.MaintenanceMessage)
	}

	if minimum := wallet.MinWithdrawalFor(method); amount < minimum {
		return nil, errors.NewBelowMinimumError(minimum)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if amount > user.Balance {
		return nil, errors.NewInsufficientBalanceError(amount, user.Balance)
	}

	user.Balance -= amount
	user.TotalWithdrawn += amount

	if err := s.users.SaveLedgerFields(ctx, user); err != nil {
		return nil, err
	}

	tx := &models.Transaction{
		UserID:        userID,
		Type:          types.TypeWithdraw,
		Amount:        amount,
		Description:   "Withdrawal request",
		Status:        types.StatusPending,
		Method:        method,
		AccountNumber: accountNumber,
		CreatedAt:     time.Now(),
	}
	if err := s.txs.Append(ctx, tx); err != nil {
		return nil, err
	}
	s.archive(ctx, tx)

	s.logger.WithFields(map[string]interface{}{
		"userId": userID,
		"amount": amount,
		"method": method,
	}).Info("withdrawal booked")

	return tx, nil
}

// archive mirrors the entry best-effort; failures only log
func (s *Service) archive(ctx context.Context, tx *models.Transaction) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, tx); err != nil {
		s.logger.WithError(err).WithField("txId", tx.ID).Warn("failed to archive transaction")
	}
}

// sameDay reports whether two instants fall on the same calendar day
// in the reset timezone
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
