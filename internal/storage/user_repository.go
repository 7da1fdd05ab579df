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

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// ErrUserNotFound is returned when a user does not exist
var ErrUserNotFound = errors.New("user not found")

const userColumns = `telegram_id, username, first_name, last_name, profile_photo,
	balance, total_earned, total_withdrawn, join_date,
	ads_watched_today, last_ad_watch, tasks_completed,
	referred_by, device_id, is_main_account, created_at, updated_at`

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.JoinDate.IsZero() {
		user.JoinDate = now
	}

	tasksJSON, err := marshalTasksCompleted(user.TasksCompleted)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = r.db.Pool().Exec(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.ProfilePhoto,
		user.Balance,
		user.TotalEarned,
		user.TotalWithdrawn,
		user.JoinDate,
		user.AdsWatchedToday,
		user.LastAdWatch,
		tasksJSON,
		user.ReferredBy,
		user.DeviceID,
		user.IsMainAccount,
		user.CreatedAt,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by Telegram ID
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.db.Pool().QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrUserNotFound, telegramID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Update persists all mutable fields of a user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()

	tasksJSON, err := marshalTasksCompleted(user.TasksCompleted)
	if err != nil {
		return err
	}

	query := `
		UPDATE users
		SET username = $2, first_name = $3, last_name = $4, profile_photo = $5,
			balance = $6, total_earned = $7, total_withdrawn = $8,
			ads_watched_today = $9, last_ad_watch = $10, tasks_completed = $11,
			referred_by = $12, device_id = $13, is_main_account = $14, updated_at = $15
		WHERE telegram_id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.ProfilePhoto,
		user.Balance,
		user.TotalEarned,
		user.TotalWithdrawn,
		user.AdsWatchedToday,
		user.LastAdWatch,
		tasksJSON,
		user.ReferredBy,
		user.DeviceID,
		user.IsMainAccount,
		user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, user.TelegramID)
	}

	return nil
}

// SaveLedgerFields writes only the running balance fields. Balances are
// read-modify-write at the service layer, so the last writer wins here.
func (r *UserRepository) SaveLedgerFields(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET balance = $2, total_earned = $3, total_withdrawn = $4,
			ads_watched_today = $5, last_ad_watch = $6, tasks_completed = $7,
			updated_at = $8
		WHERE telegram_id = $1
	`

	tasksJSON, err := marshalTasksCompleted(user.TasksCompleted)
	if err != nil {
		return err
	}

	result, err := r.db.Pool().Exec(ctx, query,
		user.TelegramID,
		user.Balance,
		user.TotalEarned,
		user.TotalWithdrawn,
		user.AdsWatchedToday,
		user.LastAdWatch,
		tasksJSON,
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to save ledger fields: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, user.TelegramID)
	}

	return nil
}

// SetReferredBy persists the referrer linkage for a user. Written once
// at referral registration; commission propagation reads it on every
// later credit.
func (r *UserRepository) SetReferredBy(ctx context.Context, telegramID, referrerID int64) error {
	query := `UPDATE users SET referred_by = $2, updated_at = $3 WHERE telegram_id = $1`

	result, err := r.db.Pool().Exec(ctx, query, telegramID, referrerID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set referred_by: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ErrUserNotFound, telegramID)
	}

	return nil
}

// Exists checks if a user exists by Telegram ID
func (r *UserRepository) Exists(ctx context.Context, telegramID int64) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE telegram_id = $1)`

	err := r.db.Pool().QueryRow(ctx, query, telegramID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}

	return exists, nil
}

// Count returns the total number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM users`

	err := r.db.Pool().QueryRow(ctx, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

// TopEarners returns users ordered by total earnings for the leaderboard
func (r *UserRepository) TopEarners(ctx context.Context, limit int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY total_earned DESC LIMIT $1`

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top earners: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// ResetDailyCounters zeroes ads_watched_today for every user. Called by
// the daily reset worker.
func (r *UserRepository) ResetDailyCounters(ctx context.Context) (int64, error) {
	query := `UPDATE users SET ads_watched_today = 0, updated_at = $1 WHERE ads_watched_today > 0`

	result, err := r.db.Pool().Exec(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily counters: %w", err)
	}

	return result.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var tasksJSON []byte

	err := row.Scan(
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.ProfilePhoto,
		&user.Balance,
		&user.TotalEarned,
		&user.TotalWithdrawn,
		&user.JoinDate,
		&user.AdsWatchedToday,
		&user.LastAdWatch,
		&tasksJSON,
		&user.ReferredBy,
		&user.DeviceID,
		&user.IsMainAccount,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tasksJSON) > 0 {
		if err := json.Unmarshal(tasksJSON, &user.TasksCompleted); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tasks_completed: %w", err)
		}
	}

	return &user, nil
}

func marshalTasksCompleted(tasks map[string]int) ([]byte, error) {
	if tasks == nil {
		tasks = map[string]int{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tasks_completed: %w", err)
	}
	return data, nil
}
