package models

import (
	"time"

	"github.com/prime-rewards/internal/types"
)

// Task represents a configurable reward task shown to users
type Task struct {
	ID              string             `json:"id" db:"id"`
	Name            string             `json:"name" db:"name"`
	Reward          float64            `json:"reward" db:"reward"`
	Category        types.TaskCategory `json:"category" db:"category"`
	TotalRequired   int                `json:"totalRequired" db:"total_required"`
	URL             string             `json:"url,omitempty" db:"url"`
	ButtonText      string             `json:"buttonText,omitempty" db:"button_text"`
	UsersQuantity   int                `json:"usersQuantity" db:"users_quantity"`
	CompletedUsers  int                `json:"completedUsers" db:"completed_users"`
	TelegramChannel string             `json:"telegramChannel,omitempty" db:"telegram_channel"`
	CheckMembership bool               `json:"checkMembership" db:"check_membership"`
	InviteLink      string             `json:"inviteLink,omitempty" db:"invite_link"`
	CreatedAt       time.Time          `json:"createdAt" db:"created_at"`
}

// HasCap reports whether the task limits how many users may claim it
func (t *Task) HasCap() bool {
	return t.UsersQuantity > 0
}

// IsFull reports whether the claimant cap has been reached
func (t *Task) IsFull() bool {
	return t.HasCap() && t.CompletedUsers >= t.UsersQuantity
}
