package memory

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type TasksRepo struct {
	s *Store
}

func (r *TasksRepo) Create(_ context.Context, t task.Task) (task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[t.OwnerID]; !ok {
		return task.Task{}, user.ErrNotFound
	}

	r.s.tasks[t.ID] = t
	r.s.taskOrder = append(r.s.taskOrder, t.ID)
	return t, nil
}

func (r *TasksRepo) GetByID(_ context.Context, id string) (task.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	return t, nil
}

func (r *TasksRepo) ListByOwner(_ context.Context, ownerID string) ([]task.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []task.Task{}
	for _, id := range r.s.taskOrder {
		if t := r.s.tasks[id]; t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *TasksRepo) ToggleStatus(_ context.Context, id string, authorize func(task.Task) error) (task.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return task.Task{}, task.ErrNotFound
	}
	if err := authorize(t); err != nil {
		return task.Task{}, err
	}

	t.Completed = !t.Completed
	t.UpdatedAt = time.Now()
	r.s.tasks[id] = t
	return t, nil
}

func (r *TasksRepo) Delete(_ context.Context, id string, authorize func(task.Task) error) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return task.ErrNotFound
	}
	if err := authorize(t); err != nil {
		return err
	}

	delete(r.s.tasks, id)
	for i, tid := range r.s.taskOrder {
		if tid == id {
			r.s.taskOrder = append(r.s.taskOrder[:i], r.s.taskOrder[i+1:]...)
			break
		}
	}
	return nil
}
