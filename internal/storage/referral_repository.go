package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/prime-rewards/internal/models"
)

// ReferralRepository handles per-referrer aggregate documents
type ReferralRepository struct {
	db *PostgresDB
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *PostgresDB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

// GetOrCreate loads the aggregate for a referrer, creating an empty one
// the first time a referrer is seen.
func (r *ReferralRepository) GetOrCreate(ctx context.Context, referrerID int64) (*models.ReferralData, error) {
	query := `
		SELECT referrer_id, referral_code, referred_count, referral_earnings, referred_users, updated_at
		FROM referrals
		WHERE referrer_id = $1
	`

	var data models.ReferralData
	var usersJSON []byte

	err := r.db.Pool().QueryRow(ctx, query, referrerID).Scan(
		&data.ReferrerID,
		&data.ReferralCode,
		&data.ReferredCount,
		&data.ReferralEarnings,
		&usersJSON,
		&data.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.create(ctx, referrerID)
		}
		return nil, fmt.Errorf("failed to get referral data: %w", err)
	}

	if len(usersJSON) > 0 {
		if err := json.Unmarshal(usersJSON, &data.ReferredUsers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal referred_users: %w", err)
		}
	}
	if data.ReferredUsers == nil {
		data.ReferredUsers = map[string]models.ReferredUser{}
	}

	return &data, nil
}

// Save writes the whole aggregate back. Concurrent commission updates
// are last-writer-wins, matching the rest of the balance bookkeeping.
func (r *ReferralRepository) Save(ctx context.Context, data *models.ReferralData) error {
	usersJSON, err := json.Marshal(data.ReferredUsers)
	if err != nil {
		return fmt.Errorf("failed to marshal referred_users: %w", err)
	}

	data.UpdatedAt = time.Now()

	query := `
		UPDATE referrals
		SET referral_code = $2, referred_count = $3, referral_earnings = $4,
			referred_users = $5, updated_at = $6
		WHERE referrer_id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		data.ReferrerID,
		data.ReferralCode,
		data.ReferredCount,
		data.ReferralEarnings,
		usersJSON,
		data.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save referral data: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("referral data not found: %d", data.ReferrerID)
	}

	return nil
}

// TopReferrers returns referrers ordered by referred count for the leaderboard
func (r *ReferralRepository) TopReferrers(ctx context.Context, limit int) ([]*models.ReferralData, error) {
	query := `
		SELECT referrer_id, referral_code, referred_count, referral_earnings, referred_users, updated_at
		FROM referrals
		ORDER BY referred_count DESC
		LIMIT $1
	`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top referrers: %w", err)
	}
	defer rows.Close()

	var out []*models.ReferralData
	for rows.Next() {
		var data models.ReferralData
		var usersJSON []byte

		err := rows.Scan(
			&data.ReferrerID,
			&data.ReferralCode,
			&data.ReferredCount,
			&data.ReferralEarnings,
			&usersJSON,
			&data.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral data: %w", err)
		}

		if len(usersJSON) > 0 {
			if err := json.Unmarshal(usersJSON, &data.ReferredUsers); err != nil {
				return nil, fmt.Errorf("failed to unmarshal referred_users: %w", err)
			}
		}

		out = append(out, &data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating referrers: %w", err)
	}

	return out, nil
}

func (r *ReferralRepository) create(ctx context.Context, referrerID int64) (*models.ReferralData, error) {
	data := &models.ReferralData{
		ReferrerID:    referrerID,
		ReferralCode:  strconv.FormatInt(referrerID, 10),
		ReferredUsers: map[string]models.ReferredUser{},
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO referrals (referrer_id, referral_code, referred_count, referral_earnings, referred_users, updated_at)
		VALUES ($1, $2, 0, 0, '{}', $3)
		ON CONFLICT (referrer_id) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, data.ReferrerID, data.ReferralCode, data.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create referral data: %w", err)
	}

	return data, nil
}
