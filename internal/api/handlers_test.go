package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-rewards/internal/ads"
	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/geo"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/storage"
	"github.com/prime-rewards/internal/tasks"
)

type fakeUsers struct {
	users   map[int64]*models.User
	created int
	updated int
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) error {
	f.created++
	f.users[u.TelegramID] = u
	return nil
}

func (f *fakeUsers) Update(ctx context.Context, u *models.User) error {
	f.updated++
	f.users[u.TelegramID] = u
	return nil
}

func (f *fakeUsers) TopEarners(ctx context.Context, limit int) ([]*models.User, error) {
	out := []*models.User{}
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

type fakeTxs struct{ txs []*models.Transaction }

func (f *fakeTxs) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	return f.txs, nil
}

type fakeLedgerSvc struct {
	withdrawErr  error
	referralErr  error
	referrals    []int64
	lastWithdraw float64
}

func (f *fakeLedgerSvc) DebitWithdrawal(ctx context.Context, userID int64, amount float64, method, account string) (*models.Transaction, error) {
	if f.withdrawErr != nil {
		return nil, f.withdrawErr
	}
	f.lastWithdraw = amount
	return &models.Transaction{UserID: userID, Amount: amount}, nil
}

func (f *fakeLedgerSvc) RegisterReferral(ctx context.Context, referrerID int64, invited *models.User) error {
	if f.referralErr != nil {
		return f.referralErr
	}
	f.referrals = append(f.referrals, referrerID)
	return nil
}

func (f *fakeLedgerSvc) ReferralSummary(ctx context.Context, referrerID int64) (*models.ReferralData, error) {
	return &models.ReferralData{ReferrerID: referrerID, ReferredCount: 3}, nil
}

type fakeAds struct {
	result *ads.WatchResult
	err    error
	slots  []ads.SlotView
}

func (f *fakeAds) RequestWatch(ctx context.Context, userID int64, provider string) (*ads.WatchResult, error) {
	return f.result, f.err
}

func (f *fakeAds) Slots(ctx context.Context, userID int64) ([]ads.SlotView, error) {
	return f.slots, nil
}

type fakeTasksSvc struct {
	views  []tasks.TaskView
	result *tasks.CompleteResult
	err    error
}

func (f *fakeTasksSvc) List(ctx context.Context, userID int64) ([]tasks.TaskView, error) {
	return f.views, nil
}

func (f *fakeTasksSvc) Complete(ctx context.Context, userID int64, taskID string) (*tasks.CompleteResult, error) {
	return f.result, f.err
}

type fakeGateSvc struct {
	err     error
	devices []string
}

func (f *fakeGateSvc) RegisterAccount(ctx context.Context, deviceID string, user *models.User) error {
	if f.err != nil {
		return f.err
	}
	f.devices = append(f.devices, deviceID)
	user.DeviceID = deviceID
	return nil
}

type fakeGuard struct{ err error }

func (f *fakeGuard) Evaluate(ctx context.Context, ip string) error { return f.err }

type fakeLookup struct {
	loc geo.Location
	err error
}

func (f *fakeLookup) Lookup(ctx context.Context, ip string) (geo.Location, error) {
	return f.loc, f.err
}

type fakeConfigSrc struct{}

func (f *fakeConfigSrc) App(ctx context.Context) (*models.AppConfig, error) {
	return &models.AppConfig{ReferralCommissionRate: 0.25}, nil
}

func (f *fakeConfigSrc) Wallet(ctx context.Context) (*models.WalletConfig, error) {
	return &models.WalletConfig{Currency: "USDT", DefaultMinWithdrawal: 10}, nil
}

type fakeClock struct{}

func (f *fakeClock) NextResetIn(now time.Time) time.Duration { return 90 * time.Minute }

type fakePostback struct {
	delivered bool
	lastErr   error
}

func (f *fakePostback) Deliver(err error) bool {
	f.lastErr = err
	return f.delivered
}

type testEnv struct {
	server   *Server
	users    *fakeUsers
	ledger   *fakeLedgerSvc
	ads      *fakeAds
	tasks    *fakeTasksSvc
	gate     *fakeGateSvc
	guard    *fakeGuard
	lookup   *fakeLookup
	postback *fakePostback
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:    &fakeUsers{users: map[int64]*models.User{}},
		ledger:   &fakeLedgerSvc{},
		ads:      &fakeAds{slots: []ads.SlotView{{Provider: "adexora", Enabled: true}}},
		tasks:    &fakeTasksSvc{},
		gate:     &fakeGateSvc{},
		guard:    &fakeGuard{},
		lookup:   &fakeLookup{loc: geo.Location{Code: "US", Name: "United States"}},
		postback: &fakePostback{delivered: true},
	}

	env.server = NewServer(
		&ServerConfig{
			Host:              "127.0.0.1",
			Port:              "0",
			AllowMockUser:     true,
			RequestsPerMinute: 6000,
			Burst:             100,
		},
		&Deps{
			Users:    env.users,
			Txs:      &fakeTxs{},
			Ledger:   env.ledger,
			Ads:      env.ads,
			Tasks:    env.tasks,
			Gate:     env.gate,
			Guard:    env.guard,
			Lookup:   env.lookup,
			Configs:  &fakeConfigSrc{},
			Clock:    &fakeClock{},
			Postback: env.postback,
		},
		logging.NewLogger(logging.LevelError, logging.FormatText),
	)

	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestAuthRequiredWithoutMock(t *testing.T) {
	env := newTestEnv(t)
	env.server.config.AllowMockUser = false
	env.server = NewServer(env.server.config, &Deps{
		Users: env.users, Txs: &fakeTxs{}, Ledger: env.ledger, Ads: env.ads,
		Tasks: env.tasks, Gate: env.gate, Guard: env.guard, Lookup: env.lookup,
		Configs: &fakeConfigSrc{}, Clock: &fakeClock{}, Postback: env.postback,
	}, logging.NewLogger(logging.LevelError, logging.FormatText))

	rec := env.do(t, "GET", "/api/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthBootstrapsNewUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/auth", map[string]interface{}{
		"device": map[string]interface{}{"userAgent": "Mozilla/5.0", "cores": 8},
		"ref":    int64(555),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, 1, env.users.created)
	require.Len(t, env.gate.devices, 1)
	assert.Regexp(t, `^device_[0-9a-z]+$`, env.gate.devices[0])
	assert.Equal(t, []int64{555}, env.ledger.referrals)
}

func TestAuthExistingUserRefreshesProfile(t *testing.T) {
	env := newTestEnv(t)
	env.users.users[1] = &models.User{TelegramID: 1, Username: "old", Balance: 3.5}

	rec := env.do(t, "POST", "/api/auth", map[string]interface{}{
		"device": map[string]interface{}{"userAgent": "Mozilla/5.0"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Zero(t, env.users.created)
	assert.Equal(t, 1, env.users.updated)
	assert.Equal(t, "devuser", env.users.users[1].Username)
	assert.Equal(t, 3.5, env.users.users[1].Balance)
}

func TestAuthDeviceLimitRejected(t *testing.T) {
	env := newTestEnv(t)
	env.gate.err = errors.NewDeviceLimitError("device_abc", 2, 900, "firstowner")

	rec := env.do(t, "POST", "/api/auth", map[string]interface{}{
		"device": map[string]interface{}{"userAgent": "Mozilla/5.0"},
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, env.users.created)
}

func TestAuthSurvivesBadReferral(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.referralErr = errors.NewConflictError("already referred")

	rec := env.do(t, "POST", "/api/auth", map[string]interface{}{
		"device": map[string]interface{}{"userAgent": "Mozilla/5.0"},
		"ref":    int64(555),
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.users.created)
}

func TestGetMe(t *testing.T) {
	env := newTestEnv(t)
	env.users.users[1] = &models.User{TelegramID: 1, Username: "devuser", Balance: 12.5}

	rec := env.do(t, "GET", "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12.5, decodeBody(t, rec)["balance"])
}

func TestGetMeUnknownUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/me", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAdsIncludesCountdown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/ads", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, float64(5400), body["nextResetSeconds"])
	assert.Len(t, body["slots"], 1)
}

func TestWatchAdReturnsResult(t *testing.T) {
	env := newTestEnv(t)
	env.ads.result = &ads.WatchResult{Completed: true, Reward: 0.5, Message: "Ad completed! You earned 0.5"}

	rec := env.do(t, "POST", "/api/ads/adexora/watch", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["completed"])
}

func TestWatchAdPreconditionFailureIs200(t *testing.T) {
	env := newTestEnv(t)
	env.ads.result = &ads.WatchResult{Message: "Daily limit reached. Come back tomorrow!"}

	rec := env.do(t, "POST", "/api/ads/adexora/watch", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["completed"])
	assert.Equal(t, "Daily limit reached. Come back tomorrow!", body["message"])
}

func TestPostbackDelivery(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/ads/adextra/postback", map[string]string{"status": "success"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, env.postback.lastErr)
	assert.Equal(t, true, decodeBody(t, rec)["delivered"])

	rec = env.do(t, "POST", "/api/ads/adextra/postback", map[string]string{"status": "failed", "message": "skipped"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Error(t, env.postback.lastErr)
}

func TestCompleteTaskErrorsMapped(t *testing.T) {
	env := newTestEnv(t)
	env.tasks.err = errors.NewTaskFullError("t1")

	rec := env.do(t, "POST", "/api/tasks/t1/complete", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetReferrals(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/referrals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 0.25, body["commissionRate"])
}

func TestWithdrawValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/wallet/withdraw", map[string]interface{}{
		"amount": -5, "method": "usdt", "accountNumber": "abc",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/api/wallet/withdraw", map[string]interface{}{
		"amount": 20, "method": "usdt",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.withdrawErr = errors.NewInsufficientBalanceError(50, 10)

	rec := env.do(t, "POST", "/api/wallet/withdraw", map[string]interface{}{
		"amount": 50, "method": "usdt", "accountNumber": "abc",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithdrawSuccess(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/wallet/withdraw", map[string]interface{}{
		"amount": 50, "method": "usdt", "accountNumber": "abc",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 50.0, env.ledger.lastWithdraw)
}

func TestLeaderboardFallback(t *testing.T) {
	env := newTestEnv(t)
	env.users.users[1] = &models.User{TelegramID: 1, Username: "devuser", TotalEarned: 9}

	rec := env.do(t, "GET", "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "all", body["window"])
	assert.Len(t, body["leaderboard"], 1)
}

func TestNetscanVerdicts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/netscan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "United States", body["country"])
	assert.Equal(t, true, body["allowed"])

	env.guard.err = errors.NewGeoBlockedError("RU")
	env.lookup.err = assert.AnError
	rec = env.do(t, "GET", "/api/netscan", nil)
	body = decodeBody(t, rec)
	assert.Equal(t, "Unknown", body["country"])
	assert.Equal(t, false, body["allowed"])
}

func TestRateLimitEnforced(t *testing.T) {
	env := newTestEnv(t)
	env.users.users[1] = &models.User{TelegramID: 1}
	env.server = NewServer(&ServerConfig{
		AllowMockUser:     true,
		RequestsPerMinute: 60,
		Burst:             1,
	}, &Deps{
		Users: env.users, Txs: &fakeTxs{}, Ledger: env.ledger, Ads: env.ads,
		Tasks: env.tasks, Gate: env.gate, Guard: env.guard, Lookup: env.lookup,
		Configs: &fakeConfigSrc{}, Clock: &fakeClock{}, Postback: env.postback,
	}, logging.NewLogger(logging.LevelError, logging.FormatText))

	rec := env.do(t, "GET", "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/me", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
