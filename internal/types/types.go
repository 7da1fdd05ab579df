// Package types provides common type definitions for the rewards platform.
package types

// TransactionType represents the kind of ledger entry
type TransactionType string

const (
	// TypeEarn represents an ad watch earning
	TypeEarn TransactionType = "earn"
	// TypeReward represents a task completion reward
	TypeReward TransactionType = "reward"
	// TypeReferral represents a referral commission credit
	TypeReferral TransactionType = "referral_commission"
	// TypeWithdraw represents a withdrawal debit
	TypeWithdraw TransactionType = "withdrawal"
)

// TransactionStatus represents the settlement state of a ledger entry
type TransactionStatus string

const (
	// StatusCompleted represents a settled entry (all credits settle immediately)
	StatusCompleted TransactionStatus = "completed"
	// StatusPending represents a withdrawal awaiting manual payout
	StatusPending TransactionStatus = "pending"
	// StatusFailed represents a withdrawal refused during payout review
	StatusFailed TransactionStatus = "failed"
)

// SlotState represents the lifecycle of an ad provider slot
type SlotState string

const (
	// SlotNotLoaded represents a slot whose SDK has not been injected yet
	SlotNotLoaded SlotState = "not_loaded"
	// SlotLoading represents a slot whose SDK injection is in flight
	SlotLoading SlotState = "loading"
	// SlotReady represents a slot that can start a watch
	SlotReady SlotState = "ready"
	// SlotWatching represents a slot with a watch in progress
	SlotWatching SlotState = "watching"
	// SlotFailed represents a slot whose SDK injection failed
	SlotFailed SlotState = "failed"
)

// IntegrationKind distinguishes how a provider reports watch completion
type IntegrationKind string

const (
	// KindPromise represents providers that resolve or reject a single call
	KindPromise IntegrationKind = "promise"
	// KindCallback represents providers that fire success/error callbacks
	KindCallback IntegrationKind = "callback"
)

// TaskCategory represents the grouping shown for a task
type TaskCategory string

const (
	// CategoryDaily represents tasks that reset with the daily cycle
	CategoryDaily TaskCategory = "daily"
	// CategorySocial represents one-off social follow tasks
	CategorySocial TaskCategory = "social"
	// CategoryPartner represents sponsored partner tasks
	CategoryPartner TaskCategory = "partner"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
