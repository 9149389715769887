package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/domain/role"
	"github.com/geocoder89/taskhub/internal/observability"
)

type RolesRepo struct {
	base
}

func NewRolesRepo(pool *pgxpool.Pool, prom *observability.Prom) *RolesRepo {
	return &RolesRepo{base{pool: pool, prom: prom}}
}

func (r *RolesRepo) GetByName(ctx context.Context, name access.Role) (ro role.Role, err error) {
	err = r.observe("roles.get_by_name", func() error {
		return r.pool.QueryRow(ctx, `SELECT id, name FROM roles WHERE name = $1`, string(name)).Scan(&ro.ID, &ro.Name)
	})
	if isNoRow(err) {
		err = role.ErrNotFound
	}
	return
}

func (r *RolesRepo) GetByID(ctx context.Context, id string) (ro role.Role, err error) {
	err = r.observe("roles.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `SELECT id, name FROM roles WHERE id = $1::uuid`, id).Scan(&ro.ID, &ro.Name)
	})
	if isNoRow(err) {
		err = role.ErrNotFound
	}
	return
}

func (r *RolesRepo) ListAll(ctx context.Context) (roles []role.Role, err error) {
	err = r.observe("roles.list_all", func() error {
		rows, err := r.pool.Query(ctx, `SELECT id, name FROM roles`)
		if err != nil {
			return err
		}
		roles, err = pgx.CollectRows(rows, pgx.RowToStructByPos[role.Role])
		return err
	})
	return
}
