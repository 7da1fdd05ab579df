package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prime-rewards/internal/logging"
)

type fakeUserResetter struct {
	calls int
	rows  int64
	err   error
}

func (f *fakeUserResetter) ResetDailyCounters(ctx context.Context) (int64, error) {
	f.calls++
	return f.rows, f.err
}

type fakeWatchResetter struct {
	lastDate   string
	resetCalls int
	keys       int
	resetErr   error
}

func (f *fakeWatchResetter) ResetAll(ctx context.Context, at time.Time) (int, error) {
	f.resetCalls++
	return f.keys, f.resetErr
}

func (f *fakeWatchResetter) LastResetDate(ctx context.Context) (string, error) {
	return f.lastDate, nil
}

func (f *fakeWatchResetter) SetLastResetDate(ctx context.Context, date string) error {
	f.lastDate = date
	return nil
}

func newTestWorker(t *testing.T, users *fakeUserResetter, watches *fakeWatchResetter) *ResetWorker {
	t.Helper()
	w, err := NewResetWorker(&ResetWorkerConfig{
		Users:        users,
		Watches:      watches,
		PollInterval: 10 * time.Millisecond,
		ResetHour:    6,
		Location:     time.FixedZone("UTC+6", 6*3600),
		Logger:       logging.NewLogger(logging.LevelError, logging.FormatText),
	})
	require.NoError(t, err)
	return w
}

func at(hour int) func() time.Time {
	loc := time.FixedZone("UTC+6", 6*3600)
	return func() time.Time {
		return time.Date(2025, 3, 10, hour, 30, 0, 0, loc)
	}
}

func TestPollFiresAfterResetHour(t *testing.T) {
	users := &fakeUserResetter{rows: 42}
	watches := &fakeWatchResetter{keys: 7, lastDate: "2025-03-09"}
	w := newTestWorker(t, users, watches)
	w.now = at(6)

	fired, err := w.Poll(context.Background())
	require.NoError(t, err)

	assert.True(t, fired)
	assert.Equal(t, 1, watches.resetCalls)
	assert.Equal(t, 1, users.calls)
	assert.Equal(t, "2025-03-10", watches.lastDate)
}

func TestPollSkipsBeforeResetHour(t *testing.T) {
	users := &fakeUserResetter{}
	watches := &fakeWatchResetter{lastDate: "2025-03-09"}
	w := newTestWorker(t, users, watches)
	w.now = at(5)

	fired, err := w.Poll(context.Background())
	require.NoError(t, err)

	assert.False(t, fired)
	assert.Zero(t, watches.resetCalls)
	assert.Zero(t, users.calls)
	assert.Equal(t, "2025-03-09", watches.lastDate)
}

func TestPollSkipsWhenAlreadyRanToday(t *testing.T) {
	users := &fakeUserResetter{}
	watches := &fakeWatchResetter{lastDate: "2025-03-10"}
	w := newTestWorker(t, users, watches)
	w.now = at(9)

	fired, err := w.Poll(context.Background())
	require.NoError(t, err)

	assert.False(t, fired)
	assert.Zero(t, watches.resetCalls)
}

func TestPollRunsOncePerDay(t *testing.T) {
	users := &fakeUserResetter{}
	watches := &fakeWatchResetter{lastDate: ""}
	w := newTestWorker(t, users, watches)
	w.now = at(7)

	fired, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = w.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, 1, watches.resetCalls)
}

func TestPollPropagatesResetError(t *testing.T) {
	users := &fakeUserResetter{}
	watches := &fakeWatchResetter{resetErr: assert.AnError}
	w := newTestWorker(t, users, watches)
	w.now = at(8)

	_, err := w.Poll(context.Background())
	require.Error(t, err)
	assert.Zero(t, users.calls)
}

func TestNextResetIn(t *testing.T) {
	w := newTestWorker(t, &fakeUserResetter{}, &fakeWatchResetter{})
	loc := time.FixedZone("UTC+6", 6*3600)

	before := time.Date(2025, 3, 10, 4, 0, 0, 0, loc)
	assert.Equal(t, 2*time.Hour, w.NextResetIn(before))

	after := time.Date(2025, 3, 10, 18, 0, 0, 0, loc)
	assert.Equal(t, 12*time.Hour, w.NextResetIn(after))

	exactly := time.Date(2025, 3, 10, 6, 0, 0, 0, loc)
	assert.Equal(t, 24*time.Hour, w.NextResetIn(exactly))
}

func TestStartStopLifecycle(t *testing.T) {
	users := &fakeUserResetter{}
	watches := &fakeWatchResetter{lastDate: "2025-03-10"}
	w := newTestWorker(t, users, watches)
	w.now = at(9)

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))

	status := w.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, 6, status.ResetHour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	assert.False(t, w.GetStatus().Running)
	assert.Error(t, w.Stop(ctx))
}

func TestNewResetWorkerValidation(t *testing.T) {
	loc := time.UTC

	_, err := NewResetWorker(&ResetWorkerConfig{Watches: &fakeWatchResetter{}, Location: loc})
	assert.Error(t, err)

	_, err = NewResetWorker(&ResetWorkerConfig{Users: &fakeUserResetter{}, Location: loc})
	assert.Error(t, err)

	_, err = NewResetWorker(&ResetWorkerConfig{Users: &fakeUserResetter{}, Watches: &fakeWatchResetter{}})
	assert.Error(t, err)

	_, err = NewResetWorker(&ResetWorkerConfig{
		Users:     &fakeUserResetter{},
		Watches:   &fakeWatchResetter{},
		Location:  loc,
		ResetHour: 24,
	})
	assert.Error(t, err)
}
