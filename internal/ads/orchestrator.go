package ads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/types"
)

// WatchStore persists per-user per-provider watch counters
type WatchStore interface {
	Get(ctx context.Context, userID int64, provider string) (*models.AdWatchState, error)
	RecordWatch(ctx context.Context, userID int64, provider string, at time.Time) error
}

// Ledger credits completed watches
type Ledger interface {
	CreditEarning(ctx context.Context, userID int64, amount float64, txType types.TransactionType, description string) (*models.User, error)
}

// ConfigSource provides the ad slot settings document
type ConfigSource interface {
	Ads(ctx context.Context) (*models.AdsConfig, error)
}

// Orchestrator serializes ad watches and enforces the earning rules.
// Only one watch may be in flight at a time across all providers.
type Orchestrator struct {
	registry      *Registry
	watches       WatchStore
	ledger        Ledger
	configs       ConfigSource
	callbackFloor time.Duration
	logger        *logging.Logger

	mu       sync.Mutex
	watching string // provider holding the watch lock, empty if none
}

// NewOrchestrator creates a new watch orchestrator
func NewOrchestrator(registry *Registry, watches WatchStore, ledger Ledger, configs ConfigSource, callbackFloor time.Duration, logger *logging.Logger) *Orchestrator {
	if callbackFloor == 0 {
		callbackFloor = 15 * time.Second
	}
	return &Orchestrator{
		registry:      registry,
		watches:       watches,
		ledger:        ledger,
		configs:       configs,
		callbackFloor: callbackFloor,
		logger:        logger.WithField("component", "ads"),
	}
}

// WatchResult reports the outcome of a watch request. Precondition
// failures are results, not errors; errors are reserved for
// infrastructure problems.
type WatchResult struct {
	Completed bool    `json:"completed"`
	Reward    float64 `json:"reward,omitempty"`
	Message   string  `json:"message"`
	Balance   float64 `json:"balance,omitempty"`
}

func failed(message string) *WatchResult {
	return &WatchResult{Message: message}
}

// RequestWatch runs one ad watch for a user: acquire the global lock,
// check the slot and the user's counters, run the provider, verify the
// watch, then credit. The lock is released on every path through the
// single deferred release.
func (o *Orchestrator) RequestWatch(ctx context.Context, userID int64, provider string) (*WatchResult, error) {
	if !o.tryAcquire(provider) {
		return failed("Please complete the current ad first"), nil
	}
	defer o.release()

	if !o.registry.Known(provider) {
		return failed("This ad provider is temporarily unavailable"), nil
	}

	cfg, err := o.configs.Ads(ctx)
	if err != nil {
		return nil, err
	}
	slot := cfg.Slot(provider)
	if !slot.Enabled {
		return failed("This ad provider is temporarily unavailable"), nil
	}

	integration, state := o.registry.Integration(provider)
	switch state {
	case types.SlotReady:
	case types.SlotLoading, types.SlotNotLoaded:
		return failed("Ad provider is loading... Please wait a moment"), nil
	default:
		return failed("This ad provider is temporarily unavailable"), nil
	}

	watchState, err := o.watches.Get(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	if watchState.WatchedToday >= slot.DailyLimit {
		return failed("Daily limit reached. Come back tomorrow!"), nil
	}

	cooldown := time.Duration(slot.CooldownSec) * time.Second
	if watchState.LastWatched != nil {
		if since := time.Since(*watchState.LastWatched); since < cooldown {
			remaining := int((cooldown - since).Round(time.Second).Seconds())
			if remaining < 1 {
				remaining = 1
			}
			return failed(fmt.Sprintf("Please wait %ds before the next ad", remaining)), nil
		}
	}

	waitTime := time.Duration(slot.WaitTimeSec) * time.Second

	runCtx := ctx
	if integration.Kind() == types.KindCallback {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, callbackDeadline(o.callbackFloor, waitTime))
		defer cancel()
	}

	started := time.Now()
	runErr := integration.Run(runCtx)
	elapsed := time.Since(started)

	log := o.logger.WithFields(map[string]interface{}{
		"userId":   userID,
		"provider": provider,
	})

	if runErr != nil {
		if errors.Is(runErr, ErrCallbackTimeout) {
			log.Warn("ad watch timed out")
			return failed("Ad timed out. Please try again"), nil
		}
		log.WithError(runErr).Warn("ad watch failed")
		return failed("Ad failed to show. Please try again"), nil
	}

	// Promise-style SDKs can resolve instantly when the ad is skipped.
	// Callback-style providers signal genuine completion themselves.
	if integration.Kind() == types.KindPromise && elapsed < waitTime {
		log.WithField("elapsed", elapsed.String()).Warn("ad watch too short")
		return failed("Please watch the ad completely"), nil
	}

	if err := o.watches.RecordWatch(ctx, userID, provider, time.Now()); err != nil {
		return nil, err
	}

	user, err := o.ledger.CreditEarning(ctx, userID, slot.Reward, types.TypeEarn, fmt.Sprintf("Watched %s ad", provider))
	if err != nil {
		return nil, err
	}

	log.WithField("reward", slot.Reward).Info("ad watch completed")

	return &WatchResult{
		Completed: true,
		Reward:    slot.Reward,
		Message:   fmt.Sprintf("Ad completed! You earned %g", slot.Reward),
		Balance:   user.Balance,
	}, nil
}

// SlotView is the per-provider status shown on the dashboard. The
// hourly limit is carried for display; nothing enforces it.
type SlotView struct {
	Provider     string          `json:"provider"`
	State        types.SlotState `json:"state"`
	Enabled      bool            `json:"enabled"`
	Reward       float64         `json:"reward"`
	DailyLimit   int             `json:"dailyLimit"`
	HourlyLimit  int             `json:"hourlyLimit"`
	WatchedToday int             `json:"watchedToday"`
	CooldownSec  int             `json:"cooldownSeconds"`
	ReadyIn      int             `json:"readyInSeconds"`
}

// Slots returns the dashboard view of every declared provider for a user
func (o *Orchestrator) Slots(ctx context.Context, userID int64) ([]SlotView, error) {
	cfg, err := o.configs.Ads(ctx)
	if err != nil {
		return nil, err
	}

	providers := o.registry.Providers()
	inFlight := o.Watching()
	views := make([]SlotView, 0, len(providers))
	for _, provider := range providers {
		slot := cfg.Slot(provider)

		watchState, err := o.watches.Get(ctx, userID, provider)
		if err != nil {
			return nil, err
		}

		state := o.registry.State(provider)
		if provider == inFlight {
			state = types.SlotWatching
		}

		view := SlotView{
			Provider:     provider,
			State:        state,
			Enabled:      slot.Enabled,
			Reward:       slot.Reward,
			DailyLimit:   slot.DailyLimit,
			HourlyLimit:  slot.HourlyLimit,
			WatchedToday: watchState.WatchedToday,
			CooldownSec:  slot.CooldownSec,
		}

		if watchState.LastWatched != nil {
			cooldown := time.Duration(slot.CooldownSec) * time.Second
			if since := time.Since(*watchState.LastWatched); since < cooldown {
				view.ReadyIn = int((cooldown - since).Round(time.Second).Seconds())
			}
		}

		views = append(views, view)
	}

	return views, nil
}

// Watching returns the provider currently holding the watch lock
func (o *Orchestrator) Watching() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.watching
}

func (o *Orchestrator) tryAcquire(provider string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.watching != "" {
		return false
	}
	o.watching = provider
	return true
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.watching = ""
	o.mu.Unlock()
}
