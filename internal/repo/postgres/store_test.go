package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/geocoder89/taskhub/internal/access"
	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/db"
	"github.com/geocoder89/taskhub/internal/domain/session"
	"github.com/geocoder89/taskhub/internal/domain/task"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/repo/postgres"
)

// setupPool returns a migrated database. TEST_DB_DSN points at an existing
// server; otherwise a throwaway Postgres container is started.
func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres integration tests skipped in -short mode")
	}

	ctx := context.Background()
	dsn := os.Getenv("TEST_DB_DSN")

	if dsn == "" {
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "taskhub",
				"POSTGRES_PASSWORD": "taskhub",
				"POSTGRES_DB":       "taskhub",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			t.Skipf("docker unavailable: %v", err)
		}
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		host, err := container.Host(ctx)
		require.NoError(t, err)
		port, err := container.MappedPort(ctx, "5432")
		require.NoError(t, err)

		dsn = fmt.Sprintf("postgres://taskhub:taskhub@%s:%s/taskhub?sslmode=disable", host, port.Port())
	}

	require.NoError(t, db.ApplyMigrations(dsn))

	pool, err := db.NewPool(ctx, dsn, 5)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE users CASCADE`)
	require.NoError(t, err)

	return pool
}

func newUser(username string) user.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return user.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        username + "@x.com",
		FirstName:    "First",
		LastName:     "Last",
		PasswordHash: "hash",
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestPostgresStore(t *testing.T) {
	pool := setupPool(t)
	ctx := context.Background()
	prom := observability.NewProm(prometheus.NewRegistry())

	roles := postgres.NewRolesRepo(pool, prom)
	users := postgres.NewUsersRepo(pool, prom)
	tasks := postgres.NewTasksRepo(pool, prom)
	tokens := postgres.NewRefreshTokensRepo(pool, prom)

	userRole, err := roles.GetByName(ctx, access.RoleUser)
	require.NoError(t, err)
	adminRole, err := roles.GetByName(ctx, access.RoleAdmin)
	require.NoError(t, err)

	t.Run("roles are seeded by migration", func(t *testing.T) {
		all, err := roles.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)

		_, err = roles.GetByID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	alice, err := users.Create(ctx, newUser("alice"), []string{userRole.ID})
	require.NoError(t, err)

	t.Run("users are unique by username and email", func(t *testing.T) {
		require.True(t, alice.RoleSet().Has(access.RoleUser))

		dup := newUser("alice")
		dup.Email = "other@x.com"
		_, err := users.Create(ctx, dup, []string{userRole.ID})
		require.ErrorIs(t, err, user.ErrUsernameTaken)

		dup = newUser("alice2")
		dup.Email = alice.Email
		_, err = users.Create(ctx, dup, []string{userRole.ID})
		require.ErrorIs(t, err, user.ErrEmailTaken)

		exists, err := users.ExistsByEmail(ctx, "ALICE@x.com")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("set roles replaces the role set", func(t *testing.T) {
		require.NoError(t, users.SetRoles(ctx, alice.ID, []string{userRole.ID, adminRole.ID}))

		got, err := users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		require.True(t, got.RoleSet().Has(access.RoleAdmin))

		require.ErrorIs(t, users.SetRoles(ctx, uuid.NewString(), []string{userRole.ID}), apperr.ErrNotFound)
	})

	t.Run("task toggle runs authorize under the row lock", func(t *testing.T) {
		due := time.Now().AddDate(0, 0, 3)
		tk := task.New(uuid.NewString(), alice.ID, task.CreateInput{Name: "db task", StartDate: time.Now(), DueDate: &due}, time.Now().UTC())
		_, err := tasks.Create(ctx, tk)
		require.NoError(t, err)

		_, err = tasks.ToggleStatus(ctx, tk.ID, func(task.Task) error { return access.ErrNotOwner })
		require.ErrorIs(t, err, apperr.ErrForbidden)

		toggled, err := tasks.ToggleStatus(ctx, tk.ID, func(task.Task) error { return nil })
		require.NoError(t, err)
		require.True(t, toggled.Completed)

		list, err := tasks.ListByOwner(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, task.Date(due), *list[0].DueDate)

		_, err = tasks.ToggleStatus(ctx, uuid.NewString(), func(task.Task) error { return nil })
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("refresh token rotation", func(t *testing.T) {
		cur := session.RefreshToken{ID: uuid.NewString(), UserID: alice.ID, TokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
		require.NoError(t, tokens.Create(ctx, cur))

		next := session.RefreshToken{ID: uuid.NewString(), UserID: alice.ID, TokenHash: "h2", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
		require.NoError(t, tokens.Rotate(ctx, cur.ID, func(rt session.RefreshToken) error {
			if !rt.Active(time.Now()) {
				return session.ErrRefreshTokenNotFound
			}
			return nil
		}, next))

		err := tokens.Rotate(ctx, cur.ID, func(rt session.RefreshToken) error {
			if !rt.Active(time.Now()) {
				return session.ErrRefreshTokenNotFound
			}
			return nil
		}, session.RefreshToken{ID: uuid.NewString(), UserID: alice.ID, TokenHash: "h3", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()})
		require.ErrorIs(t, err, session.ErrRefreshTokenNotFound)

		n, err := tokens.PurgeExpired(ctx, time.Now(), time.Now().Add(time.Minute))
		require.NoError(t, err)
		require.EqualValues(t, 1, n)
	})

	t.Run("malformed ids read as not found", func(t *testing.T) {
		_, err := users.GetByID(ctx, "42")
		require.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = tasks.GetByID(ctx, "not-a-uuid")
		require.ErrorIs(t, err, apperr.ErrNotFound)

		_, err = tasks.ToggleStatus(ctx, "not-a-uuid", func(task.Task) error { return nil })
		require.ErrorIs(t, err, apperr.ErrNotFound)

		list, err := tasks.ListByOwner(ctx, "not-a-uuid")
		require.NoError(t, err)
		require.Empty(t, list)

		require.ErrorIs(t, users.Delete(ctx, "not-a-uuid"), apperr.ErrNotFound)
		require.ErrorIs(t, tokens.Revoke(ctx, "not-a-uuid"), session.ErrRefreshTokenNotFound)
	})

	t.Run("update ending sessions revokes live tokens in the same commit", func(t *testing.T) {
		live := session.RefreshToken{ID: uuid.NewString(), UserID: alice.ID, TokenHash: "h4", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
		require.NoError(t, tokens.Create(ctx, live))

		u, err := users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		u.Enabled = false

		got, err := users.UpdateEndingSessions(ctx, u)
		require.NoError(t, err)
		require.False(t, got.Enabled)

		err = tokens.Rotate(ctx, live.ID, func(rt session.RefreshToken) error {
			if !rt.Active(time.Now()) {
				return session.ErrRefreshTokenNotFound
			}
			return nil
		}, session.RefreshToken{ID: uuid.NewString(), UserID: alice.ID, TokenHash: "h5", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()})
		require.ErrorIs(t, err, session.ErrRefreshTokenNotFound)

		u.ID = uuid.NewString()
		_, err = users.UpdateEndingSessions(ctx, u)
		require.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("delete cascades to tasks", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, alice.ID))

		list, err := tasks.ListByOwner(ctx, alice.ID)
		require.NoError(t, err)
		require.Empty(t, list)

		require.ErrorIs(t, users.Delete(ctx, alice.ID), apperr.ErrNotFound)
	})
}
