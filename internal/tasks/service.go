// Package tasks implements the reward task catalog and completion flow.
package tasks

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/prime-rewards/internal/errors"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/storage"
	"github.com/prime-rewards/internal/types"
)

// TaskStore persists the task catalog
type TaskStore interface {
	List(ctx context.Context) ([]*models.Task, error)
	GetByID(ctx context.Context, id string) (*models.Task, error)
	ClaimSlot(ctx context.Context, id string) error
	ReleaseSlot(ctx context.Context, id string) error
}

// UserStore is the user persistence surface the task flow needs
type UserStore interface {
	GetByID(ctx context.Context, telegramID int64) (*models.User, error)
	SaveLedgerFields(ctx context.Context, user *models.User) error
}

// Ledger credits task rewards
type Ledger interface {
	CreditEarning(ctx context.Context, userID int64, amount float64, txType types.TransactionType, description string) (*models.User, error)
}

// MembershipChecker verifies Telegram channel membership
type MembershipChecker interface {
	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
}

// Service implements task listing and completion
type Service struct {
	tasks      TaskStore
	users      UserStore
	ledger     Ledger
	membership MembershipChecker // optional
	logger     *logging.Logger
}

// NewService creates a new task service. membership may be nil when no
// bot token is configured; membership-gated tasks then fail closed.
func NewService(tasks TaskStore, users UserStore, ledger Ledger, membership MembershipChecker, logger *logging.Logger) *Service {
	return &Service{
		tasks:      tasks,
		users:      users,
		ledger:     ledger,
		membership: membership,
		logger:     logger.WithField("component", "tasks"),
	}
}

// TaskView is a task combined with the caller's progress
type TaskView struct {
	*models.Task
	Progress  int  `json:"progress"`
	Completed bool `json:"userCompleted"`
}

// List returns the catalog annotated with the user's progress
func (s *Service) List(ctx context.Context, userID int64) ([]TaskView, error) {
	tasks, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		progress := user.TasksCompleted[task.ID]
		views = append(views, TaskView{
			Task:      task,
			Progress:  progress,
			Completed: progress >= task.TotalRequired,
		})
	}

	return views, nil
}

// CompleteResult reports one completion step
type CompleteResult struct {
	Progress  int     `json:"progress"`
	Required  int     `json:"required"`
	Completed bool    `json:"completed"`
	Reward    float64 `json:"reward,omitempty"`
}

// Complete advances a user's progress on a task and pays the reward on
// the final step. Capped tasks take their claimant slot before the
// credit so the cap holds under concurrent completions.
func (s *Service) Complete(ctx context.Context, userID int64, taskID string) (*CompleteResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if stderrors.Is(err, storage.ErrTaskNotFound) {
			return nil, errors.NewNotFoundError("task", taskID)
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	progress := user.TasksCompleted[taskID]
	if progress >= task.TotalRequired {
		return nil, errors.NewConflictError("task already completed")
	}

	if task.CheckMembership && task.TelegramChannel != "" {
		if err := s.verifyMembership(ctx, task, userID); err != nil {
			return nil, err
		}
	}

	progress++
	if user.TasksCompleted == nil {
		user.TasksCompleted = map[string]int{}
	}
	user.TasksCompleted[taskID] = progress

	if progress < task.TotalRequired {
		if err := s.users.SaveLedgerFields(ctx, user); err != nil {
			return nil, err
		}
		return &CompleteResult{Progress: progress, Required: task.TotalRequired}, nil
	}

	if err := s.tasks.ClaimSlot(ctx, taskID); err != nil {
		if stderrors.Is(err, storage.ErrTaskFull) {
			return nil, errors.NewTaskFullError(taskID)
		}
		return nil, err
	}

	// Persist the finished progress before crediting so the reward
	// credit reads the final state
	if err := s.users.SaveLedgerFields(ctx, user); err != nil {
		s.releaseSlot(ctx, taskID)
		return nil, err
	}

	if _, err := s.ledger.CreditEarning(ctx, userID, task.Reward, types.TypeReward, fmt.Sprintf("Completed: %s", task.Name)); err != nil {
		s.releaseSlot(ctx, taskID)
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"userId": userID,
		"taskId": taskID,
		"reward": task.Reward,
	}).Info("task completed")

	return &CompleteResult{
		Progress:  progress,
		Required:  task.TotalRequired,
		Completed: true,
		Reward:    task.Reward,
	}, nil
}

func (s *Service) verifyMembership(ctx context.Context, task *models.Task, userID int64) error {
	if s.membership == nil {
		return errors.NewTaskNotCompletedError(task.ID, "Membership verification is unavailable")
	}

	member, err := s.membership.IsMember(ctx, task.TelegramChannel, userID)
	if err != nil {
		return errors.NewProviderError("telegram", err)
	}
	if !member {
		return errors.NewTaskNotCompletedError(task.ID, "Join the channel first, then claim the reward")
	}

	return nil
}

func (s *Service) releaseSlot(ctx context.Context, taskID string) {
	if err := s.tasks.ReleaseSlot(ctx, taskID); err != nil {
		s.logger.WithError(err).WithField("taskId", taskID).Error("failed to release task slot")
	}
}
