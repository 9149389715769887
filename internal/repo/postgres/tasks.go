package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
)

const taskColumns = `id, user_id, task_name, start_date, due_date, task_status, created_at, updated_at`

type TasksRepo struct {
	base
}

func NewTasksRepo(pool *pgxpool.Pool, prom *observability.Prom) *TasksRepo {
	return &TasksRepo{base{pool: pool, prom: prom}}
}

func scanTask(row pgx.Row) (t task.Task, err error) {
	err = row.Scan(
		&t.ID,
		&t.OwnerID,
		&t.Name,
		&t.StartDate,
		&t.DueDate,
		&t.Completed,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return
}

func (r *TasksRepo) Create(ctx context.Context, t task.Task) (task.Task, error) {
	err := r.observe("tasks.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO tasks (id, user_id, task_name, start_date, due_date, task_status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, t.ID, t.OwnerID, t.Name, t.StartDate, t.DueDate, t.Completed, t.CreatedAt, t.UpdatedAt)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return task.Task{}, user.ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

func (r *TasksRepo) GetByID(ctx context.Context, id string) (t task.Task, err error) {
	err = r.observe("tasks.get_by_id", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1::uuid`, id))
		return err
	})
	if isNoRow(err) {
		err = task.ErrNotFound
	}
	return
}

func (r *TasksRepo) ListByOwner(ctx context.Context, ownerID string) ([]task.Task, error) {
	tasks := []task.Task{}
	err := r.observe("tasks.list_by_owner", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+taskColumns+`
			FROM tasks
			WHERE user_id = $1::uuid
			ORDER BY created_at, id
		`, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTask(rows)
			if err != nil {
				return err
			}
			tasks = append(tasks, t)
		}
		return rows.Err()
	})
	if isNoRow(err) {
		return []task.Task{}, nil
	}
	return tasks, err
}

// lockTask must run inside tx; it holds the row until commit or rollback.
func (r *TasksRepo) lockTask(ctx context.Context, tx pgx.Tx, id string) (t task.Task, err error) {
	err = r.observe("tasks.lock", func() error {
		t, err = scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1::uuid FOR UPDATE`, id))
		return err
	})
	if isNoRow(err) {
		err = task.ErrNotFound
	}
	return
}

func (r *TasksRepo) ToggleStatus(ctx context.Context, id string, authorize func(task.Task) error) (out task.Task, err error) {
	err = r.inTx(ctx, func(tx pgx.Tx) error {
		t, err := r.lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(t); err != nil {
			return err
		}

		err = r.observe("tasks.toggle_status", func() error {
			return tx.QueryRow(ctx, `
				UPDATE tasks
				SET task_status = NOT task_status, updated_at = NOW()
				WHERE id = $1
				RETURNING task_status, updated_at
			`, t.ID).Scan(&t.Completed, &t.UpdatedAt)
		})
		if err != nil {
			return err
		}

		out = t
		return nil
	})
	return
}

func (r *TasksRepo) Delete(ctx context.Context, id string, authorize func(task.Task) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		t, err := r.lockTask(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := authorize(t); err != nil {
			return err
		}

		return r.observe("tasks.delete", func() error {
			_, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, t.ID)
			return err
		})
	})
}
