package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier records notices instead of delivering them. It stands in for
// a mail provider in development.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendAccountNotice(ctx context.Context, in AccountNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification.account",
		"kind", string(in.Kind),
		"user_id", in.UserID,
		"email", in.Email,
	)
	return nil
}
