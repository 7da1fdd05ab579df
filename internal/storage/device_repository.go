package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/prime-rewards/internal/models"
)

// DeviceRepository handles device fingerprint records
type DeviceRepository struct {
	db *PostgresDB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(db *PostgresDB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// ErrDeviceNotFound is returned when a device record does not exist
var ErrDeviceNotFound = errors.New("device not found")

// Get retrieves a device record by fingerprint
func (r *DeviceRepository) Get(ctx context.Context, deviceID string) (*models.DeviceRecord, error) {
	query := `SELECT device_id, accounts, created_at, updated_at FROM devices WHERE device_id = $1`

	var record models.DeviceRecord
	var accountsJSON []byte

	err := r.db.Pool().QueryRow(ctx, query, deviceID).Scan(
		&record.DeviceID,
		&accountsJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if len(accountsJSON) > 0 {
		if err := json.Unmarshal(accountsJSON, &record.Accounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device accounts: %w", err)
		}
	}

	return &record, nil
}

// Save upserts a device record with its full account list
func (r *DeviceRepository) Save(ctx context.Context, record *models.DeviceRecord) error {
	accountsJSON, err := json.Marshal(record.Accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal device accounts: %w", err)
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	query := `
		INSERT INTO devices (device_id, accounts, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id)
		DO UPDATE SET accounts = EXCLUDED.accounts, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool().Exec(ctx, query, record.DeviceID, accountsJSON, record.CreatedAt, record.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}

	return nil
}
