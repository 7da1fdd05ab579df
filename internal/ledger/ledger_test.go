package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/types"
)

type fakeUserStore struct {
	users map[int64]*models.User
}

func (f *fakeUserStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user", "missing")
	}
	// Return a copy so the test observes only saved state
	copied := *user
	return &copied, nil
}

func (f *fakeUserStore) SaveLedgerFields(_ context.Context, user *models.User) error {
	stored, ok := f.users[user.TelegramID]
	if !ok {
		return errors.NewNotFoundError("user", "missing")
	}
	*stored = *user
	return nil
}

func (f *fakeUserStore) SetReferredBy(_ context.Context, telegramID, referrerID int64) error {
	stored, ok := f.users[telegramID]
	if !ok {
		return errors.NewNotFoundError("user", "missing")
	}
	stored.ReferredBy = referrerID
	return nil
}

type fakeTxStore struct {
	entries []*models.Transaction
}

func (f *fakeTxStore) Append(_ context.Context, tx *models.Transaction) error {
	f.entries = append(f.entries, tx)
	return nil
}

type fakeReferralStore struct {
	data map[int64]*models.ReferralData
}

func (f *fakeReferralStore) GetOrCreate(_ context.Context, referrerID int64) (*models.ReferralData, error) {
	if d, ok := f.data[referrerID]; ok {
		return d, nil
	}
	d := &models.ReferralData{
		ReferrerID:    referrerID,
		ReferredUsers: map[string]models.ReferredUser{},
	}
	f.data[referrerID] = d
	return d, nil
}

func (f *fakeReferralStore) Save(_ context.Context, data *models.ReferralData) error {
	f.data[data.ReferrerID] = data
	return nil
}

type fakeConfigs struct {
	app    models.AppConfig
	wallet models.WalletConfig
}

func (f *fakeConfigs) App(_ context.Context) (*models.AppConfig, error) {
	app := f.app
	return &app, nil
}

func (f *fakeConfigs) Wallet(_ context.Context) (*models.WalletConfig, error) {
	wallet := f.wallet
	return &wallet, nil
}

type ledgerFixture struct {
	svc       *Service
	users     *fakeUserStore
	txs       *fakeTxStore
	referrals *fakeReferralStore
	configs   *fakeConfigs
}

func newFixture(users ...*models.User) *ledgerFixture {
	us := &fakeUserStore{users: map[int64]*models.User{}}
	for _, u := range users {
		us.users[u.TelegramID] = u
	}
	f := &ledgerFixture{
		users:     us,
		txs:       &fakeTxStore{},
		referrals: &fakeReferralStore{data: map[int64]*models.ReferralData{}},
		configs:   &fakeConfigs{},
	}
	f.svc = NewService(f.users, f.txs, f.referrals, f.configs, nil, time.UTC, logging.NewLogger(logging.LevelError, logging.FormatText))
	return f
}

func TestCreditEarningUpdatesBalances(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 1, Balance: 1.5, TotalEarned: 3.0})

	user, err := f.svc.CreditEarning(context.Background(), 1, 0.5, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	assert.InDelta(t, 2.0, user.Balance, 1e-9)
	assert.InDelta(t, 3.5, user.TotalEarned, 1e-9)
	assert.Equal(t, 1, user.AdsWatchedToday)
	require.NotNil(t, user.LastAdWatch)

	require.Len(t, f.txs.entries, 1)
	entry := f.txs.entries[0]
	assert.Equal(t, types.TypeEarn, entry.Type)
	assert.Equal(t, types.StatusCompleted, entry.Status)
	assert.InDelta(t, 0.5, entry.Amount, 1e-9)
}

func TestCreditEarningResetsCounterOnNewDay(t *testing.T) {
	yesterday := time.Now().Add(-48 * time.Hour)
	f := newFixture(&models.User{
		TelegramID:      1,
		AdsWatchedToday: 5,
		LastAdWatch:     &yesterday,
	})

	user, err := f.svc.CreditEarning(context.Background(), 1, 0.5, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	// Stale counter is discarded before the increment
	assert.Equal(t, 1, user.AdsWatchedToday)
}

func TestCreditEarningSameDayKeepsCounter(t *testing.T) {
	justNow := time.Now().Add(-time.Minute)
	f := newFixture(&models.User{
		TelegramID:      1,
		AdsWatchedToday: 3,
		LastAdWatch:     &justNow,
	})

	user, err := f.svc.CreditEarning(context.Background(), 1, 0.5, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	assert.Equal(t, 4, user.AdsWatchedToday)
}

func TestCreditEarningTaskRewardDoesNotTouchWatchCounter(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 1, AdsWatchedToday: 2})

	user, err := f.svc.CreditEarning(context.Background(), 1, 1.0, types.TypeReward, "Task completed")
	require.NoError(t, err)

	assert.Equal(t, 2, user.AdsWatchedToday)
	assert.Nil(t, user.LastAdWatch)
}

func TestCreditEarningPropagatesCommission(t *testing.T) {
	f := newFixture(
		&models.User{TelegramID: 1, Username: "earner", ReferredBy: 2, JoinDate: time.Now()},
		&models.User{TelegramID: 2, Username: "referrer", Balance: 10},
	)

	_, err := f.svc.CreditEarning(context.Background(), 1, 1.0, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	referrer := f.users.users[2]
	assert.InDelta(t, 10.1, referrer.Balance, 1e-9)
	assert.InDelta(t, 0.1, referrer.TotalEarned, 1e-9)

	require.Len(t, f.txs.entries, 2)
	commission := f.txs.entries[1]
	assert.Equal(t, types.TypeReferral, commission.Type)
	assert.Equal(t, "referral_commission", string(commission.Type), "stored document value")
	assert.Equal(t, int64(2), commission.UserID)
	assert.InDelta(t, 0.1, commission.Amount, 1e-9)
	assert.Equal(t, "Commission from earner", commission.Description)

	data := f.referrals.data[2]
	require.NotNil(t, data)
	assert.InDelta(t, 0.1, data.ReferralEarnings, 1e-9)
	entry := data.ReferredUsers["1"]
	assert.InDelta(t, 1.0, entry.TotalEarned, 1e-9)
	assert.InDelta(t, 0.1, entry.CommissionEarned, 1e-9)
}

func TestCreditEarningUsesConfiguredCommissionRate(t *testing.T) {
	f := newFixture(
		&models.User{TelegramID: 1, ReferredBy: 2},
		&models.User{TelegramID: 2},
	)
	f.configs.app.ReferralCommissionRate = 0.25

	_, err := f.svc.CreditEarning(context.Background(), 1, 2.0, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	referrer := f.users.users[2]
	assert.InDelta(t, 0.5, referrer.Balance, 1e-9)
}

func TestPropagateCommissionBackfillsAggregateEntry(t *testing.T) {
	// Linkage set but the earner is missing from the aggregate, as for
	// accounts linked before the aggregate document existed
	f := newFixture(
		&models.User{TelegramID: 1, Username: "earner", ReferredBy: 2, JoinDate: time.Now()},
		&models.User{TelegramID: 2},
	)

	_, err := f.svc.CreditEarning(context.Background(), 1, 1.0, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	data := f.referrals.data[2]
	require.NotNil(t, data)
	assert.Len(t, data.ReferredUsers, 1)
	assert.Equal(t, len(data.ReferredUsers), data.ReferredCount)
}

func TestCreditEarningSurvivesMissingReferrer(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 1, ReferredBy: 999})

	user, err := f.svc.CreditEarning(context.Background(), 1, 0.5, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	// Earning credited even though the commission leg failed
	assert.InDelta(t, 0.5, user.Balance, 1e-9)
}

func TestCreditEarningRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 1})

	_, err := f.svc.CreditEarning(context.Background(), 1, 0, types.TypeEarn, "x")
	assert.Error(t, err)

	_, err = f.svc.CreditEarning(context.Background(), 1, -1, types.TypeEarn, "x")
	assert.Error(t, err)
}

func TestDebitWithdrawal(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		amount   float64
		wallet   models.WalletConfig
		method   string
		wantCode string
	}{
		{
			name:    "success",
			balance: 50,
			amount:  20,
			method:  "binance",
		},
		{
			name:     "maintenance mode",
			balance:  50,
			amount:   20,
			wallet:   models.WalletConfig{MaintenanceMode: true},
			wantCode: "MAINTENANCE_MODE",
		},
		{
			name:     "below default minimum",
			balance:  50,
			amount:   5,
			wantCode: "BELOW_MINIMUM",
		},
		{
			name:    "below method minimum",
			balance: 100,
			amount:  20,
			method:  "bank",
			wallet: models.WalletConfig{
				PaymentMethods: []models.PaymentMethod{{ID: "bank", MinWithdrawal: 25}},
			},
			wantCode: "BELOW_MINIMUM",
		},
		{
			name:     "insufficient balance",
			balance:  15,
			amount:   20,
			wantCode: "INSUFFICIENT_BALANCE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(&models.User{TelegramID: 1, Balance: tt.balance})
			f.configs.wallet = tt.wallet

			tx, err := f.svc.DebitWithdrawal(context.Background(), 1, tt.amount, tt.method, "acct-1")

			if tt.wantCode != "" {
				require.Error(t, err)
				catErr := errors.Categorize(err)
				assert.Equal(t, tt.wantCode, catErr.Code)
				assert.Empty(t, f.txs.entries)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, types.StatusPending, tx.Status)
			assert.Equal(t, "withdrawal", string(tx.Type), "stored document value")
			assert.Equal(t, tt.method, tx.Method)

			user := f.users.users[1]
			assert.InDelta(t, tt.balance-tt.amount, user.Balance, 1e-9)
			assert.InDelta(t, tt.amount, user.TotalWithdrawn, 1e-9)
		})
	}
}

func TestDebitWithdrawalRequiresAccountNumber(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 1, Balance: 50})

	_, err := f.svc.DebitWithdrawal(context.Background(), 1, 20, "binance", "")
	assert.Error(t, err)
}

func TestRegisterReferral(t *testing.T) {
	f := newFixture(
		&models.User{TelegramID: 2, Username: "referrer"},
		&models.User{TelegramID: 1, Username: "invited", JoinDate: time.Now()},
	)
	invited := &models.User{TelegramID: 1, Username: "invited", JoinDate: time.Now()}

	require.NoError(t, f.svc.RegisterReferral(context.Background(), 2, invited))

	assert.Equal(t, int64(2), invited.ReferredBy)
	assert.Equal(t, int64(2), f.users.users[1].ReferredBy, "linkage persisted to the row")
	data := f.referrals.data[2]
	require.NotNil(t, data)
	assert.Equal(t, 1, data.ReferredCount)
	assert.Contains(t, data.ReferredUsers, "1")
}

func TestRegisterReferralSurvivesReload(t *testing.T) {
	f := newFixture(
		&models.User{TelegramID: 2, Username: "referrer"},
		&models.User{TelegramID: 1, Username: "invited", JoinDate: time.Now()},
	)

	// The signup flow registers with a struct separate from the stored
	// row; a later earn reloads the row and must still see the referrer
	signup := &models.User{TelegramID: 1, Username: "invited", JoinDate: time.Now()}
	require.NoError(t, f.svc.RegisterReferral(context.Background(), 2, signup))

	_, err := f.svc.CreditEarning(context.Background(), 1, 1.0, types.TypeEarn, "Watched advertisement")
	require.NoError(t, err)

	referrer := f.users.users[2]
	assert.InDelta(t, 0.1, referrer.Balance, 1e-9, "commission paid from the persisted linkage")
}

func TestRegisterReferralRejectsSelf(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 1})

	err := f.svc.RegisterReferral(context.Background(), 1, &models.User{TelegramID: 1})
	assert.Error(t, err)
}

func TestRegisterReferralRejectsDouble(t *testing.T) {
	f := newFixture(&models.User{TelegramID: 2})
	invited := &models.User{TelegramID: 1, ReferredBy: 3}

	err := f.svc.RegisterReferral(context.Background(), 2, invited)
	assert.Error(t, err)
}

func TestRegisterReferralRequiresExistingReferrer(t *testing.T) {
	f := newFixture()

	err := f.svc.RegisterReferral(context.Background(), 99, &models.User{TelegramID: 1})
	assert.Error(t, err)
}
