package models

import "time"

// DeviceAccount represents one account registered on a device
type DeviceAccount struct {
	TelegramID    int64     `json:"telegramId"`
	Username      string    `json:"username"`
	FirstName     string    `json:"firstName"`
	RegisteredAt  time.Time `json:"registeredAt"`
	IsMainAccount bool      `json:"isMainAccount"`
}

// DeviceRecord represents the accounts seen for one device fingerprint
type DeviceRecord struct {
	DeviceID  string          `json:"deviceId" db:"device_id"`
	Accounts  []DeviceAccount `json:"accounts" db:"accounts"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasAccount reports whether the given user is already registered on the device
func (d *DeviceRecord) HasAccount(telegramID int64) bool {
	for _, a := range d.Accounts {
		if a.TelegramID == telegramID {
			return true
		}
	}
	return false
}

// MainAccount returns the device's main account: the one flagged at
// registration, else the first registered. Nil when the device has no
// accounts yet.
func (d *DeviceRecord) MainAccount() *DeviceAccount {
	for i := range d.Accounts {
		if d.Accounts[i].IsMainAccount {
			return &d.Accounts[i]
		}
	}
	if len(d.Accounts) > 0 {
		return &d.Accounts[0]
	}
	return nil
}
