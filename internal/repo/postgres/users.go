package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/taskhub/internal/domain/role"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
)

const userColumns = `id, username, email, first_name, last_name, password_hash, enabled, created_at, updated_at`

type UsersRepo struct {
	base
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{base{pool: pool, prom: prom}}
}

func scanUser(row pgx.Row) (u user.User, err error) {
	err = row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.PasswordHash,
		&u.Enabled,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return
}

// mapUserWriteErr turns unique violations into domain conflicts.
func mapUserWriteErr(err error) error {
	if !IsUniqueViolation(err) {
		return err
	}
	switch constraintName(err) {
	case "users_username_uniq":
		return user.ErrUsernameTaken
	case "users_email_uniq":
		return user.ErrEmailTaken
	default:
		return err
	}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User, roleIDs []string) (user.User, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("users.create", func() error {
			_, err := tx.Exec(ctx, `
			INSERT INTO users (id, username, email, first_name, last_name, password_hash, enabled, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Enabled, u.CreatedAt, u.UpdatedAt)
			return err
		})
		if err != nil {
			return mapUserWriteErr(err)
		}

		return r.insertRoles(ctx, tx, u.ID, roleIDs)
	})
	if err != nil {
		return user.User{}, err
	}

	return r.GetByID(ctx, u.ID)
}

func (r *UsersRepo) insertRoles(ctx context.Context, tx pgx.Tx, userID string, roleIDs []string) error {
	for _, roleID := range roleIDs {
		err := r.observe("users.insert_role", func() error {
			_, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roleID)
			return err
		})
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return role.ErrNotFound
			}
			return err
		}
	}
	return nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id)
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_username", `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, arg string) (u user.User, err error) {
	err = r.observe(op, func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, query, arg))
		return err
	})
	if err != nil {
		if isNoRow(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	roles, err := r.rolesFor(ctx, []string{u.ID})
	if err != nil {
		return user.User{}, err
	}
	u.Roles = roles[u.ID]
	return u, nil
}

// rolesFor loads the roles of several users in one query.
func (r *UsersRepo) rolesFor(ctx context.Context, userIDs []string) (map[string][]role.Role, error) {
	out := make(map[string][]role.Role, len(userIDs))

	err := r.observe("users.roles", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT ur.user_id, r.id, r.name
			FROM user_roles ur
			JOIN roles r ON r.id = ur.role_id
			WHERE ur.user_id = ANY($1::uuid[])
			ORDER BY r.name
		`, userIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var userID string
			var ro role.Role
			if err := rows.Scan(&userID, &ro.ID, &ro.Name); err != nil {
				return err
			}
			out[userID] = append(out[userID], ro)
		}
		return rows.Err()
	})
	return out, err
}

func (r *UsersRepo) ExistsByUsername(ctx context.Context, username string) (exists bool, err error) {
	err = r.observe("users.exists_by_username", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	})
	return
}

func (r *UsersRepo) ExistsByEmail(ctx context.Context, email string) (exists bool, err error) {
	err = r.observe("users.exists_by_email", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	})
	return
}

func (r *UsersRepo) updateRow(ctx context.Context, db execer, u user.User) error {
	var tag pgconn.CommandTag
	err := r.observe("users.update", func() error {
		var err error
		tag, err = db.Exec(ctx, `
			UPDATE users
			SET username = $2,
			    email = $3,
			    first_name = $4,
			    last_name = $5,
			    password_hash = $6,
			    enabled = $7,
			    updated_at = $8
			WHERE id = $1::uuid
		`, u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Enabled, u.UpdatedAt)
		return err
	})
	switch {
	case isNoRow(err):
		return user.ErrNotFound
	case err != nil:
		return mapUserWriteErr(err)
	case tag.RowsAffected() == 0:
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	if err := r.updateRow(ctx, r.pool, u); err != nil {
		return user.User{}, err
	}
	return r.GetByID(ctx, u.ID)
}

// UpdateEndingSessions writes u and revokes every live refresh token of the
// user in one transaction.
func (r *UsersRepo) UpdateEndingSessions(ctx context.Context, u user.User) (user.User, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.updateRow(ctx, tx, u); err != nil {
			return err
		}
		return r.observe("refresh_tokens.revoke_all_for_user", func() error {
			_, err := tx.Exec(ctx, `
				UPDATE refresh_tokens
				SET revoked_at = NOW()
				WHERE user_id = $1::uuid AND revoked_at IS NULL
			`, u.ID)
			return err
		})
	})
	if err != nil {
		return user.User{}, err
	}
	return r.GetByID(ctx, u.ID)
}

func (r *UsersRepo) SetRoles(ctx context.Context, userID string, roleIDs []string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := r.observe("users.lock", func() error {
			return tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1::uuid FOR UPDATE`, userID).Scan(&id)
		})
		if err != nil {
			if isNoRow(err) {
				return user.ErrNotFound
			}
			return err
		}

		err = r.observe("users.clear_roles", func() error {
			_, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, id)
			return err
		})
		if err != nil {
			return err
		}

		return r.insertRoles(ctx, tx, id, roleIDs)
	})
}

// Delete relies on ON DELETE CASCADE for tasks, user_roles and refresh_tokens.
func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := r.observe("users.delete", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1::uuid`, id)
		return err
	})
	if err != nil && !isNoRow(err) {
		return err
	}
	if err != nil || tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) List(ctx context.Context, after *user.ListCursor, limit int) ([]user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id LIMIT $1`
	args := []any{limit}
	if after != nil {
		query = `SELECT ` + userColumns + ` FROM users
			WHERE (created_at, id) > ($2, $3::uuid)
			ORDER BY created_at, id
			LIMIT $1`
		args = append(args, after.CreatedAt, after.ID)
	}

	users := make([]user.User, 0, limit)
	err := r.observe("users.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return users, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	roles, err := r.rolesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Roles = roles[users[i].ID]
	}
	return users, nil
}
