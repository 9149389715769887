package memory

import (
	"context"
	"time"

	"github.com/geocoder89/taskhub/internal/domain/session"
)

type RefreshTokensRepo struct {
	s *Store
}

func (r *RefreshTokensRepo) Create(_ context.Context, t session.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.refresh[t.ID] = t
	return nil
}

func (r *RefreshTokensRepo) Rotate(_ context.Context, currentID string, verify func(session.RefreshToken) error, next session.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.refresh[currentID]
	if !ok {
		return session.ErrRefreshTokenNotFound
	}
	if err := verify(cur); err != nil {
		return err
	}

	now := time.Now()
	cur.RevokedAt = &now
	cur.ReplacedBy = &next.ID
	r.s.refresh[cur.ID] = cur
	r.s.refresh[next.ID] = next
	return nil
}

func (r *RefreshTokensRepo) Revoke(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.refresh[id]
	if !ok {
		return session.ErrRefreshTokenNotFound
	}
	if t.RevokedAt == nil {
		now := time.Now()
		t.RevokedAt = &now
		r.s.refresh[id] = t
	}
	return nil
}

func (r *RefreshTokensRepo) RevokeAllForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.revokeAllLocked(userID, time.Now())
	return nil
}

func (r *RefreshTokensRepo) PurgeExpired(_ context.Context, now time.Time, revokedBefore time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, t := range r.s.refresh {
		if t.ExpiresAt.Before(now) || (t.RevokedAt != nil && t.RevokedAt.Before(revokedBefore)) {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

// Get is used by tests to inspect stored tokens.
func (r *RefreshTokensRepo) Get(id string) (session.RefreshToken, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.refresh[id]
	return t, ok
}
