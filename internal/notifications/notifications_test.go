package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyNotifier struct {
	fail  bool
	calls int
}

func (f *flakyNotifier) SendAccountNotice(ctx context.Context, _ AccountNotice) error {
	f.calls++
	if f.fail {
		return errors.New("provider down")
	}
	return nil
}

func TestProtectedNotifier_OpensAndRecovers(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inner := &flakyNotifier{fail: true}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 2, Cooldown: time.Minute})
	n.now = func() time.Time { return clock }

	notice := AccountNotice{Kind: KindWelcome, Email: "a@example.com"}

	require.Error(t, n.SendAccountNotice(ctx, notice))
	require.Error(t, n.SendAccountNotice(ctx, notice))

	// open: the provider is not called
	require.ErrorIs(t, n.SendAccountNotice(ctx, notice), ErrCircuitOpen)
	require.Equal(t, 2, inner.calls)

	// after the cooldown one trial call goes through and closes the circuit
	clock = clock.Add(time.Minute)
	inner.fail = false
	require.NoError(t, n.SendAccountNotice(ctx, notice))
	require.NoError(t, n.SendAccountNotice(ctx, notice))
	require.Equal(t, 4, inner.calls)
}

func TestProtectedNotifier_FailedTrialReopens(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	inner := &flakyNotifier{fail: true}
	n := NewProtectedNotifier(inner, ProtectedNotifierConfig{FailureThreshold: 1, Cooldown: time.Minute})
	n.now = func() time.Time { return clock }

	require.Error(t, n.SendAccountNotice(ctx, AccountNotice{}))

	clock = clock.Add(time.Minute)
	require.Error(t, n.SendAccountNotice(ctx, AccountNotice{}))
	require.ErrorIs(t, n.SendAccountNotice(ctx, AccountNotice{}), ErrCircuitOpen)
}

func TestLogNotifier_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, NewLogNotifier(nil).SendAccountNotice(ctx, AccountNotice{Kind: KindWelcome}), context.Canceled)
}
