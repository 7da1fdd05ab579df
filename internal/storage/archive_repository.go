package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/prime-rewards/internal/models"
)

// ArchiveRepository mirrors ledger entries into ClickHouse for
// analytics queries. The archive is optional and write failures must
// never block the earning path.
type ArchiveRepository struct {
	db *ClickHouseDB
}

// NewArchiveRepository creates a new archive repository
func NewArchiveRepository(db *ClickHouseDB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// EnsureSchema creates the archive table if it does not exist
func (r *ArchiveRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS transactions_archive (
			id String,
			user_id Int64,
			type LowCardinality(String),
			amount Float64,
			description String,
			status LowCardinality(String),
			created_at DateTime
		) ENGINE = MergeTree()
		ORDER BY (user_id, created_at)
	`

	if err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create archive table: %w", err)
	}

	return nil
}

// Archive appends a ledger entry to the archive
func (r *ArchiveRepository) Archive(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions_archive (id, user_id, type, amount, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	err := r.db.Exec(ctx, query,
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount,
		tx.Description,
		string(tx.Status),
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive transaction: %w", err)
	}

	return nil
}

// EarningsSince aggregates credited amounts per user since a cutoff.
// Used by the weekly leaderboard view.
func (r *ArchiveRepository) EarningsSince(ctx context.Context, since time.Time, limit int) (map[int64]float64, error) {
	query := `
		SELECT user_id, sum(amount) AS total
		FROM transactions_archive
		WHERE type != 'withdraw' AND created_at >= $1
		GROUP BY user_id
		ORDER BY total DESC
		LIMIT $2
	`

	rows, err := r.db.Conn().Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive earnings: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]float64)
	for rows.Next() {
		var userID int64
		var total float64
		if err := rows.Scan(&userID, &total); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		out[userID] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive rows: %w", err)
	}

	return out, nil
}
