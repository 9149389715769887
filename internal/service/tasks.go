package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type OwnerLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TaskService struct {
	tasks  TaskStore
	owners OwnerLookup
	now    func() time.Time
}

func NewTaskService(tasks TaskStore, owners OwnerLookup) *TaskService {
	return &TaskService{tasks: tasks, owners: owners, now: time.Now}
}

// Create adds an incomplete task for ownerID. Non-admins may only create
// tasks for themselves.
func (s *TaskService) Create(ctx context.Context, p access.Principal, ownerID string, in task.CreateInput) (task.Task, error) {
	now := s.now()
	if err := in.Validate(now); err != nil {
		return task.Task{}, err
	}
	if err := access.CanActOnTask(p, ownerID); err != nil {
		return task.Task{}, err
	}

	if _, err := s.owners.GetByID(ctx, ownerID); err != nil {
		return task.Task{}, err
	}

	created, err := s.tasks.Create(ctx, task.New(uuid.NewString(), ownerID, in, now.UTC()))
	if err != nil {
		return task.Task{}, err
	}

	slog.Default().InfoContext(ctx, "task.created", "task_id", created.ID, "owner_id", ownerID, "actor_id", p.UserID)
	return created, nil
}

// ListForOwner authorizes before looking the owner up, so a non-owner learns
// nothing about whether ownerID exists.
func (s *TaskService) ListForOwner(ctx context.Context, p access.Principal, ownerID string) ([]task.Task, error) {
	if err := access.CanActOnTask(p, ownerID); err != nil {
		return nil, err
	}
	if _, err := s.owners.GetByID(ctx, ownerID); err != nil {
		return nil, err
	}
	return s.tasks.ListByOwner(ctx, ownerID)
}

func (s *TaskService) ToggleStatus(ctx context.Context, p access.Principal, taskID string) (task.Task, error) {
	t, err := s.tasks.ToggleStatus(ctx, taskID, ownedBy(p))
	if err != nil {
		return task.Task{}, err
	}

	slog.Default().InfoContext(ctx, "task.status_toggled", "task_id", t.ID, "completed", t.Completed, "actor_id", p.UserID)
	return t, nil
}

// Delete is not idempotent: a second delete of the same id is ErrNotFound.
func (s *TaskService) Delete(ctx context.Context, p access.Principal, taskID string) error {
	if err := s.tasks.Delete(ctx, taskID, ownedBy(p)); err != nil {
		return err
	}

	slog.Default().InfoContext(ctx, "task.deleted", "task_id", taskID, "actor_id", p.UserID)
	return nil
}

// ToggleMany toggles each id in order and stops at the first failure,
// returning how many succeeded.
func (s *TaskService) ToggleMany(ctx context.Context, p access.Principal, taskIDs []string) (int, error) {
	for i, id := range taskIDs {
		if _, err := s.ToggleStatus(ctx, p, id); err != nil {
			return i, fmt.Errorf("toggle task %s: %w", id, err)
		}
	}
	return len(taskIDs), nil
}

func (s *TaskService) DeleteMany(ctx context.Context, p access.Principal, taskIDs []string) (int, error) {
	for i, id := range taskIDs {
		if err := s.Delete(ctx, p, id); err != nil {
			return i, fmt.Errorf("delete task %s: %w", id, err)
		}
	}
	return len(taskIDs), nil
}

func ownedBy(p access.Principal) func(task.Task) error {
	return func(t task.Task) error {
		return access.CanActOnTask(p, t.OwnerID)
	}
}
