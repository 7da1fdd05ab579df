package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prime-rewards/internal/models"
)

// TaskRepository handles task catalog persistence
type TaskRepository struct {
	db *PostgresDB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *PostgresDB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ErrTaskNotFound is returned when a task does not exist
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskFull is returned when the claimant cap has been reached
var ErrTaskFull = errors.New("task claimant cap reached")

const taskColumns = `id, name, reward, category, total_required, url, button_text,
	users_quantity, completed_users, telegram_channel, check_membership, invite_link, created_at`

// Create inserts a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.TotalRequired == 0 {
		task.TotalRequired = 1
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		task.ID,
		task.Name,
		task.Reward,
		task.Category,
		task.TotalRequired,
		task.URL,
		task.ButtonText,
		task.UsersQuantity,
		task.CompletedUsers,
		task.TelegramChannel,
		task.CheckMembership,
		task.InviteLink,
		task.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// List retrieves all tasks
func (r *TaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ClaimSlot atomically takes one claimant slot on a capped task. The
// conditional increment guarantees the cap holds under concurrent
// claims. Uncapped tasks (users_quantity = 0) always succeed.
func (r *TaskRepository) ClaimSlot(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET completed_users = completed_users + 1
		WHERE id = $1 AND (users_quantity = 0 OR completed_users < users_quantity)
	`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to claim task slot: %w", err)
	}

	if result.RowsAffected() == 0 {
		exists, existsErr := r.exists(ctx, id)
		if existsErr != nil {
			return existsErr
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return fmt.Errorf("%w: %s", ErrTaskFull, id)
	}

	return nil
}

// ReleaseSlot returns a claimant slot after a failed reward credit
func (r *TaskRepository) ReleaseSlot(ctx context.Context, id string) error {
	query := `
		UPDATE tasks
		SET completed_users = completed_users - 1
		WHERE id = $1 AND completed_users > 0
	`

	if _, err := r.db.Pool().Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to release task slot: %w", err)
	}

	return nil
}

// Delete removes a task
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Pool().Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	return nil
}

func (r *TaskRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.Pool().QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check task existence: %w", err)
	}
	return exists, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var task models.Task
	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Reward,
		&task.Category,
		&task.TotalRequired,
		&task.URL,
		&task.ButtonText,
		&task.UsersQuantity,
		&task.CompletedUsers,
		&task.TelegramChannel,
		&task.CheckMembership,
		&task.InviteLink,
		&task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}
