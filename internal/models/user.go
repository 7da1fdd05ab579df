// Package models provides data models for the rewards platform.
package models

import (
	"time"
)

// User represents a Telegram user account and its running balances
type User struct {
	TelegramID      int64          `json:"telegramId" db:"telegram_id"`
	Username        string         `json:"username" db:"username"`
	FirstName       string         `json:"firstName" db:"first_name"`
	LastName        string         `json:"lastName" db:"last_name"`
	ProfilePhoto    string         `json:"profilePhoto,omitempty" db:"profile_photo"`
	Balance         float64        `json:"balance" db:"balance"`
	TotalEarned     float64        `json:"totalEarned" db:"total_earned"`
	TotalWithdrawn  float64        `json:"totalWithdrawn" db:"total_withdrawn"`
	JoinDate        time.Time      `json:"joinDate" db:"join_date"`
	AdsWatchedToday int            `json:"adsWatchedToday" db:"ads_watched_today"`
	LastAdWatch     *time.Time     `json:"lastAdWatch,omitempty" db:"last_ad_watch"`
	TasksCompleted  map[string]int `json:"tasksCompleted,omitempty" db:"tasks_completed"`
	ReferredBy      int64          `json:"referredBy,omitempty" db:"referred_by"`
	DeviceID        string         `json:"deviceId,omitempty" db:"device_id"`
	IsMainAccount   bool           `json:"isMainAccount" db:"is_main_account"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" db:"updated_at"`
}

// DisplayName returns the best available human-readable name for the user
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Anonymous"
}
