package api

import (
	"context"
	"net/http"
	"sort"
	"time"
)

// leaderboardEntry is one row of the earnings leaderboard
type leaderboardEntry struct {
	UserID      int64   `json:"userId"`
	Username    string  `json:"username"`
	TotalEarned float64 `json:"totalEarned"`
}

// handleLeaderboard returns the top earners. When the analytics
// archive is configured it serves a 7-day window from there; otherwise
// all-time totals come from the primary store.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := queryInt(r, "limit", 10)
	if limit > 100 {
		limit = 100
	}

	if s.archive != nil {
		entries, err := s.archiveLeaderboard(ctx, limit)
		if err == nil {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"leaderboard": entries,
				"window":      "7d",
			})
			return
		}
		s.logger.WithError(err).Warn("archive leaderboard failed, falling back")
	}

	users, err := s.users.TopEarners(ctx, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := make([]leaderboardEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, leaderboardEntry{
			UserID:      u.TelegramID,
			Username:    u.DisplayName(),
			TotalEarned: u.TotalEarned,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leaderboard": entries,
		"window":      "all",
	})
}

func (s *Server) archiveLeaderboard(ctx context.Context, limit int) ([]leaderboardEntry, error) {
	earnings, err := s.archive.EarningsSince(ctx, time.Now().AddDate(0, 0, -7), limit)
	if err != nil {
		return nil, err
	}

	entries := make([]leaderboardEntry, 0, len(earnings))
	for userID, total := range earnings {
		entry := leaderboardEntry{UserID: userID, TotalEarned: total, Username: "Anonymous"}
		if user, err := s.users.GetByID(ctx, userID); err == nil {
			entry.Username = user.DisplayName()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalEarned > entries[j].TotalEarned
	})

	return entries, nil
}
