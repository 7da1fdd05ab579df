package gate

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/storage"
)

// Device cap. The restriction document carries a configurable
// maxAccountsPerDevice, but enforcement has always used this constant
// and stored ids were registered against it.
const maxAccountsPerDevice = 2

// DeviceStore persists device fingerprint records
type DeviceStore interface {
	Get(ctx context.Context, deviceID string) (*models.DeviceRecord, error)
	Save(ctx context.Context, record *models.DeviceRecord) error
}

// ConfigSource provides the device restriction document
type ConfigSource interface {
	Device(ctx context.Context) (*models.DeviceConfig, error)
}

// Gate checks and records accounts per device
type Gate struct {
	devices DeviceStore
	configs ConfigSource
	logger  *logging.Logger
}

// NewGate creates a new device gate
func NewGate(devices DeviceStore, configs ConfigSource, logger *logging.Logger) *Gate {
	return &Gate{
		devices: devices,
		configs: configs,
		logger:  logger.WithField("component", "gate"),
	}
}

// RegisterAccount records a user against a device fingerprint and
// rejects the registration once the device already carries the maximum
// number of accounts. The first account on a device becomes its main
// account. Already-registered users pass through unchanged.
func (g *Gate) RegisterAccount(ctx context.Context, deviceID string, user *models.User) error {
	if deviceID == "" {
		return errors.NewInvalidParameterError("deviceId", "is required")
	}

	cfg, err := g.configs.Device(ctx)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		user.DeviceID = deviceID
		return nil
	}

	record, err := g.devices.Get(ctx, deviceID)
	if err != nil {
		if !stderrors.Is(err, storage.ErrDeviceNotFound) {
			return err
		}
		record = &models.DeviceRecord{DeviceID: deviceID}
	}

	if record.HasAccount(user.TelegramID) {
		user.DeviceID = deviceID
		return nil
	}

	if len(record.Accounts) >= maxAccountsPerDevice {
		g.logger.WithFields(map[string]interface{}{
			"deviceId": deviceID,
			"userId":   user.TelegramID,
		}).Warn("device account limit reached")
		var mainID int64
		var mainUsername string
		if main := record.MainAccount(); main != nil {
			mainID = main.TelegramID
			mainUsername = main.Username
		}
		return errors.NewDeviceLimitError(deviceID, maxAccountsPerDevice, mainID, mainUsername)
	}

	isMain := len(record.Accounts) == 0
	record.Accounts = append(record.Accounts, models.DeviceAccount{
		TelegramID:    user.TelegramID,
		Username:      user.Username,
		FirstName:     user.FirstName,
		RegisteredAt:  time.Now(),
		IsMainAccount: isMain,
	})

	if err := g.devices.Save(ctx, record); err != nil {
		return err
	}

	user.DeviceID = deviceID
	user.IsMainAccount = isMain

	return nil
}
