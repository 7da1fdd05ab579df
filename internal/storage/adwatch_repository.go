package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/prime-rewards/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis key layout for watch counters
const (
	adWatchKeyPattern = "userads:*"
	lastResetDateKey  = "system:last_reset_date"
)

// AdWatchRepository handles per-user per-provider watch counters in
// Redis. Counters are hot-path state: every watch attempt reads them
// and every completed watch writes them.
type AdWatchRepository struct {
	store *RedisStore
}

// NewAdWatchRepository creates a new ad watch repository
func NewAdWatchRepository(store *RedisStore) *AdWatchRepository {
	return &AdWatchRepository{store: store}
}

func adWatchKey(userID int64, provider string) string {
	return fmt.Sprintf("userads:%d:%s", userID, provider)
}

// Get retrieves watch counters for one user and provider. A missing
// key yields zero counters.
func (r *AdWatchRepository) Get(ctx context.Context, userID int64, provider string) (*models.AdWatchState, error) {
	fields, err := r.store.Client().HGetAll(ctx, adWatchKey(userID, provider)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get watch state: %w", err)
	}

	state := &models.AdWatchState{Provider: provider}
	if v, ok := fields["watched_today"]; ok {
		if _, err := fmt.Sscanf(v, "%d", &state.WatchedToday); err != nil {
			return nil, fmt.Errorf("corrupt watched_today for %s: %w", provider, err)
		}
	}
	if v, ok := fields["last_watched"]; ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_watched for %s: %w", provider, err)
		}
		state.LastWatched = &t
	}
	if v, ok := fields["last_reset"]; ok && v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("corrupt last_reset for %s: %w", provider, err)
		}
		state.LastReset = &t
	}

	return state, nil
}

// RecordWatch increments the daily counter and stamps the watch time
func (r *AdWatchRepository) RecordWatch(ctx context.Context, userID int64, provider string, at time.Time) error {
	key := adWatchKey(userID, provider)

	pipe := r.store.Client().TxPipeline()
	pipe.HIncrBy(ctx, key, "watched_today", 1)
	pipe.HSet(ctx, key, "last_watched", at.UTC().Format(time.RFC3339))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record watch: %w", err)
	}

	return nil
}

// ResetUser zeroes the daily counters for one user across providers
func (r *AdWatchRepository) ResetUser(ctx context.Context, userID int64, providers []string, at time.Time) error {
	pipe := r.store.Client().TxPipeline()
	for _, provider := range providers {
		key := adWatchKey(userID, provider)
		pipe.HSet(ctx, key, "watched_today", 0, "last_reset", at.UTC().Format(time.RFC3339))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to reset user counters: %w", err)
	}

	return nil
}

// ResetAll zeroes the daily counter on every watch key. Returns the
// number of keys touched. The scan runs incrementally so a large key
// space does not block Redis.
func (r *AdWatchRepository) ResetAll(ctx context.Context, at time.Time) (int, error) {
	client := r.store.Client()
	stamp := at.UTC().Format(time.RFC3339)

	var cursor uint64
	total := 0
	for {
		keys, next, err := client.Scan(ctx, cursor, adWatchKeyPattern, 200).Result()
		if err != nil {
			return total, fmt.Errorf("failed to scan watch keys: %w", err)
		}

		if len(keys) > 0 {
			pipe := client.TxPipeline()
			for _, key := range keys {
				pipe.HSet(ctx, key, "watched_today", 0, "last_reset", stamp)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return total, fmt.Errorf("failed to reset watch keys: %w", err)
			}
			total += len(keys)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// LastResetDate reads the date marker of the last completed reset.
// Returns empty string when no reset has run yet.
func (r *AdWatchRepository) LastResetDate(ctx context.Context) (string, error) {
	val, err := r.store.Client().Get(ctx, lastResetDateKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get last reset date: %w", err)
	}
	return val, nil
}

// SetLastResetDate writes the date marker after a completed reset
func (r *AdWatchRepository) SetLastResetDate(ctx context.Context, date string) error {
	if err := r.store.Client().Set(ctx, lastResetDateKey, date, 0).Err(); err != nil {
		return fmt.Errorf("failed to set last reset date: %w", err)
	}
	return nil
}
