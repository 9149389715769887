package notifications

import "context"

type Kind string

const (
	KindWelcome         Kind = "welcome"
	KindPasswordChanged Kind = "password_changed"
	KindAccountDisabled Kind = "account_disabled"
)

// AccountNotice tells a user about something that happened to their account.
type AccountNotice struct {
	Kind     Kind
	UserID   string
	Username string
	Email    string
}

type Notifier interface {
	SendAccountNotice(ctx context.Context, notice AccountNotice) error
}
