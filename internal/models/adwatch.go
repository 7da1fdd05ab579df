package models

import "time"

// AdWatchState represents per-user per-provider watch counters
type AdWatchState struct {
	Provider     string     `json:"provider"`
	WatchedToday int        `json:"watchedToday"`
	LastWatched  *time.Time `json:"lastWatched,omitempty"`
	LastReset    *time.Time `json:"lastReset,omitempty"`
}
