package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
)

// Remote config document names
const (
	ConfigAds    = "adsConfig"
	ConfigWallet = "walletConfig"
	ConfigApp    = "appConfig"
	ConfigDevice = "deviceRestrictions"
	ConfigGeo    = "vpnConfig"
)

// configChannel is the pub/sub channel used to fan out config changes
const configChannel = "config:changed"

// ConfigRepository handles the operator-editable JSONB config documents.
// Every document has a usable zero value, so a missing row never fails
// a read.
type ConfigRepository struct {
	db    *PostgresDB
	redis *RedisStore
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *PostgresDB, redis *RedisStore) *ConfigRepository {
	return &ConfigRepository{db: db, redis: redis}
}

// Ads loads the ad provider settings document
func (r *ConfigRepository) Ads(ctx context.Context) (*models.AdsConfig, error) {
	cfg := &models.AdsConfig{Providers: map[string]models.SlotConfig{}}
	if err := r.load(ctx, ConfigAds, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Wallet loads the wallet settings document
func (r *ConfigRepository) Wallet(ctx context.Context) (*models.WalletConfig, error) {
	cfg := &models.WalletConfig{
		Currency:             "USDT",
		CurrencySymbol:       "$",
		DefaultMinWithdrawal: 10,
	}
	if err := r.load(ctx, ConfigWallet, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// App loads the app settings document
func (r *ConfigRepository) App(ctx context.Context) (*models.AppConfig, error) {
	cfg := &models.AppConfig{AppName: "PRIME V1"}
	if err := r.load(ctx, ConfigApp, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Device loads the device restriction settings document
func (r *ConfigRepository) Device(ctx context.Context) (*models.DeviceConfig, error) {
	cfg := &models.DeviceConfig{Enabled: true, MaxAccountsPerDevice: 2}
	if err := r.load(ctx, ConfigDevice, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Geo loads the network guard settings document
func (r *ConfigRepository) Geo(ctx context.Context) (*models.GeoConfig, error) {
	cfg := &models.GeoConfig{}
	if err := r.load(ctx, ConfigGeo, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save upserts a config document and notifies watchers
func (r *ConfigRepository) Save(ctx context.Context, name string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config %s: %w", name, err)
	}

	query := `
		INSERT INTO config_documents (name, doc, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool().Exec(ctx, query, name, data, time.Now()); err != nil {
		return fmt.Errorf("failed to save config %s: %w", name, err)
	}

	if r.redis != nil {
		if err := r.redis.Publish(ctx, configChannel, name); err != nil {
			// Watchers fall back to their next periodic read
			logging.FromContext(ctx).WithError(err).Warnf("failed to publish config change for %s", name)
		}
	}

	return nil
}

// Watch delivers the names of changed config documents until the
// context is cancelled.
func (r *ConfigRepository) Watch(ctx context.Context) (<-chan string, error) {
	if r.redis == nil {
		return nil, fmt.Errorf("config watch requires redis")
	}

	sub := r.redis.Subscribe(ctx, configChannel)
	out := make(chan string)

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *ConfigRepository) load(ctx context.Context, name string, out interface{}) error {
	var doc []byte
	err := r.db.Pool().QueryRow(ctx, `SELECT doc FROM config_documents WHERE name = $1`, name).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Document absent: keep the caller-provided defaults
			return nil
		}
		return fmt.Errorf("failed to load config %s: %w", name, err)
	}

	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("failed to unmarshal config %s: %w", name, err)
	}

	return nil
}
