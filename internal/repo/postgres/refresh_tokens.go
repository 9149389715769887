package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/taskhub/internal/domain/session"
	"github.com/geocoder89/taskhub/internal/observability"
)

type RefreshTokensRepo struct {
	base
}

func NewRefreshTokensRepo(pool *pgxpool.Pool, prom *observability.Prom) *RefreshTokensRepo {
	return &RefreshTokensRepo{base{pool: pool, prom: prom}}
}

func (r *RefreshTokensRepo) insert(ctx context.Context, db execer, row session.RefreshToken) error {
	return r.observe("refresh_tokens.create", func() error {
		_, err := db.Exec(ctx,
			`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			`,
			row.ID, row.UserID, row.TokenHash, row.ExpiresAt, row.RevokedAt, row.ReplacedBy, row.CreatedAt,
		)
		return err
	})
}

func (r *RefreshTokensRepo) Create(ctx context.Context, row session.RefreshToken) error {
	return r.insert(ctx, r.pool, row)
}

// Rotate locks the row to prevent concurrent refresh races.
func (r *RefreshTokensRepo) Rotate(ctx context.Context, currentID string, verify func(session.RefreshToken) error, next session.RefreshToken) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		var cur session.RefreshToken

		err := r.observe("refresh_tokens.get_for_update", func() error {
			return tx.QueryRow(ctx, `
				SELECT id, user_id, token_hash, expires_at, revoked_at, replaced_by, created_at
				FROM refresh_tokens
				WHERE id = $1::uuid
				FOR UPDATE
			`, currentID).Scan(
				&cur.ID,
				&cur.UserID,
				&cur.TokenHash,
				&cur.ExpiresAt,
				&cur.RevokedAt,
				&cur.ReplacedBy,
				&cur.CreatedAt,
			)
		})
		if err != nil {
			if isNoRow(err) {
				return session.ErrRefreshTokenNotFound
			}
			return err
		}

		if err := verify(cur); err != nil {
			return err
		}

		err = r.observe("refresh_tokens.revoke", func() error {
			_, err := tx.Exec(ctx, `
				UPDATE refresh_tokens
				SET revoked_at = NOW(), replaced_by = $2
				WHERE id = $1
			`, cur.ID, next.ID)
			return err
		})
		if err != nil {
			return err
		}

		return r.insert(ctx, tx, next)
	})
}

func (r *RefreshTokensRepo) Revoke(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := r.observe("refresh_tokens.revoke", func() error {
		var err error
		tag, err = r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = COALESCE(revoked_at, NOW())
			WHERE id = $1::uuid
		`, id)
		return err
	})
	if err != nil && !isNoRow(err) {
		return err
	}
	if err != nil || tag.RowsAffected() == 0 {
		return session.ErrRefreshTokenNotFound
	}
	return nil
}

func (r *RefreshTokensRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	return r.observe("refresh_tokens.revoke_all_for_user", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE refresh_tokens
			SET revoked_at = NOW()
			WHERE user_id = $1::uuid AND revoked_at IS NULL
		`, userID)
		return err
	})
}

// PurgeExpired deletes tokens past expiry and tokens revoked before revokedBefore.
func (r *RefreshTokensRepo) PurgeExpired(ctx context.Context, now time.Time, revokedBefore time.Time) (n int64, err error) {
	err = r.observe("refresh_tokens.purge", func() error {
		tag, err := r.pool.Exec(ctx, `
			DELETE FROM refresh_tokens
			WHERE expires_at < $1
			   OR (revoked_at IS NOT NULL AND revoked_at < $2)
		`, now, revokedBefore)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		return nil
	})
	return
}
