package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/types"
)

// TransactionRepository handles the append-only ledger history
type TransactionRepository struct {
	db *PostgresDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// ErrTransactionNotFound is returned when a ledger entry does not exist
var ErrTransactionNotFound = errors.New("transaction not found")

// Append inserts a new ledger entry. Entries are never updated or
// deleted except for withdrawal status transitions.
func (r *TransactionRepository) Append(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO transactions (id, user_id, type, amount, description, status, method, account_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Type,
		tx.Amount,
		tx.Description,
		tx.Status,
		tx.Method,
		tx.AccountNumber,
		tx.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// ListByUser retrieves a user's ledger entries, newest first
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, description, status, method, account_number, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Pool().Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		err := rows.Scan(
			&tx.ID,
			&tx.UserID,
			&tx.Type,
			&tx.Amount,
			&tx.Description,
			&tx.Status,
			&tx.Method,
			&tx.AccountNumber,
			&tx.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

// GetByID retrieves a single ledger entry
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, description, status, method, account_number, created_at
		FROM transactions
		WHERE id = $1
	`

	var tx models.Transaction
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Type,
		&tx.Amount,
		&tx.Description,
		&tx.Status,
		&tx.Method,
		&tx.AccountNumber,
		&tx.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// UpdateStatus transitions a withdrawal entry between settlement states
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id string, status types.TransactionStatus) error {
	query := `UPDATE transactions SET status = $2 WHERE id = $1 AND type = 'withdraw'`

	result, err := r.db.Pool().Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}

	return nil
}
