// Package worker runs the daily reset cycle in the background.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prime-rewards/internal/logging"
)

const resetDateLayout = "2006-01-02"

// UserResetter clears the per-user daily counters in the primary store
type UserResetter interface {
	ResetDailyCounters(ctx context.Context) (int64, error)
}

// WatchResetter clears per-provider watch counters and tracks the
// last day the global reset ran
type WatchResetter interface {
	ResetAll(ctx context.Context, at time.Time) (int, error)
	LastResetDate(ctx context.Context) (string, error)
	SetLastResetDate(ctx context.Context, date string) error
}

// ResetWorker polls the clock and fires the global daily reset once
// per day after the configured local hour. Users who earn before the
// worker reaches them are reset by their own activity, so a late or
// missed run only delays the counter wipe for idle users.
type ResetWorker struct {
	users        UserResetter
	watches      WatchResetter
	pollInterval time.Duration
	resetHour    int
	loc          *time.Location
	logger       *logging.Logger

	now func() time.Time

	running      bool
	lastPollTime time.Time
	mu           sync.RWMutex
	stopCh       chan struct{}
	doneCh       chan struct{}
}

// ResetWorkerConfig holds configuration for the reset worker
type ResetWorkerConfig struct {
	Users        UserResetter
	Watches      WatchResetter
	PollInterval time.Duration
	ResetHour    int
	Location     *time.Location
	Logger       *logging.Logger
}

// NewResetWorker creates a new reset worker
func NewResetWorker(cfg *ResetWorkerConfig) (*ResetWorker, error) {
	if cfg.Users == nil {
		return nil, fmt.Errorf("user resetter cannot be nil")
	}
	if cfg.Watches == nil {
		return nil, fmt.Errorf("watch resetter cannot be nil")
	}
	if cfg.Location == nil {
		return nil, fmt.Errorf("reset location cannot be nil")
	}
	if cfg.ResetHour < 0 || cfg.ResetHour > 23 {
		return nil, fmt.Errorf("reset hour must be between 0 and 23, got %d", cfg.ResetHour)
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = time.Minute
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &ResetWorker{
		users:        cfg.Users,
		watches:      cfg.Watches,
		pollInterval: pollInterval,
		resetHour:    cfg.ResetHour,
		loc:          cfg.Location,
		logger:       logger.WithField("component", "reset_worker"),
		now:          time.Now,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}, nil
}

// Start begins the reset worker. The first check runs immediately so a
// restart shortly after the reset hour does not wait a full poll cycle.
func (w *ResetWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reset worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	w.logger.WithFields(map[string]interface{}{
		"pollInterval": w.pollInterval.String(),
		"resetHour":    w.resetHour,
		"timezone":     w.loc.String(),
	}).Info("starting reset worker")

	if _, err := w.Poll(ctx); err != nil {
		w.logger.WithError(err).Error("initial reset check failed")
	}

	go w.pollLoop(ctx)

	return nil
}

// Stop gracefully stops the reset worker
func (w *ResetWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("reset worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		w.logger.Info("reset worker stopped")
	case <-ctx.Done():
		w.logger.Warn("reset worker stop timed out")
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

func (w *ResetWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			w.lastPollTime = time.Now()
			w.mu.Unlock()

			fired, err := w.Poll(ctx)
			if err != nil {
				w.logger.WithError(err).Error("reset check failed")
				continue
			}
			if fired {
				w.logger.Info("daily reset completed")
			}
		}
	}
}

// Poll fires the daily reset when the local clock has passed the reset
// hour and no reset has run today. Returns whether the reset fired.
func (w *ResetWorker) Poll(ctx context.Context) (bool, error) {
	now := w.now().In(w.loc)
	if now.Hour() < w.resetHour {
		return false, nil
	}

	today := now.Format(resetDateLayout)

	last, err := w.watches.LastResetDate(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read last reset date: %w", err)
	}
	if last == today {
		return false, nil
	}

	// Claim today's run before wiping so a concurrent worker instance
	// sees the marker and skips
	if err := w.watches.SetLastResetDate(ctx, today); err != nil {
		return false, fmt.Errorf("failed to mark reset date: %w", err)
	}

	watchKeys, err := w.watches.ResetAll(ctx, now)
	if err != nil {
		return false, fmt.Errorf("failed to reset watch counters: %w", err)
	}

	userRows, err := w.users.ResetDailyCounters(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to reset user counters: %w", err)
	}

	w.logger.WithFields(map[string]interface{}{
		"date":       today,
		"watchKeys":  watchKeys,
		"usersReset": userRows,
	}).Info("daily counters reset")

	return true, nil
}

// NextResetIn returns the duration until the next reset boundary
func (w *ResetWorker) NextResetIn(now time.Time) time.Duration {
	local := now.In(w.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), w.resetHour, 0, 0, 0, w.loc)
	if !local.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(local)
}

// Status reports the worker's current state
type Status struct {
	Running             bool      `json:"running"`
	LastPollTime        time.Time `json:"lastPollTime"`
	PollIntervalSeconds int       `json:"pollIntervalSeconds"`
	ResetHour           int       `json:"resetHour"`
	Timezone            string    `json:"timezone"`
}

// GetStatus returns current worker status
func (w *ResetWorker) GetStatus() *Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return &Status{
		Running:             w.running,
		LastPollTime:        w.lastPollTime,
		PollIntervalSeconds: int(w.pollInterval.Seconds()),
		ResetHour:           w.resetHour,
		Timezone:            w.loc.String(),
	}
}
