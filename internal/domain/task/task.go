package task

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/geocoder89/taskhub/internal/apperr"
)

const (
	DateLayout    = "2006-01-02"
	MaxNameLength = 255
)

type Task struct {
	ID        string
	OwnerID   string
	Name      string
	StartDate time.Time
	DueDate   *time.Time
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

var ErrNotFound = apperr.New(apperr.ErrNotFound, "task not found")

type CreateInput struct {
	Name      string
	StartDate time.Time
	DueDate   *time.Time
}

// Date drops the clock part of t, keeping its calendar day in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// Validate checks a new task against the calendar day today.
func (in CreateInput) Validate(today time.Time) error {
	ve := &apperr.ValidationError{}
	today = Date(today)

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		ve.Add("name", "Task name must not be blank.")
	case utf8.RuneCountInString(name) > MaxNameLength:
		ve.Add("name", "Task name must be at most 255 characters.")
	}

	if in.StartDate.IsZero() {
		ve.Add("startDate", "Start date is required.")
	} else if Date(in.StartDate).After(today) {
		ve.Add("startDate", "Start date must be today or in the past.")
	}

	if in.DueDate != nil && !Date(*in.DueDate).After(today) {
		ve.Add("dueDate", "Due date must be in the future.")
	}

	return ve.OrNil()
}

// New builds an incomplete task owned by ownerID. The input must already be valid.
func New(id, ownerID string, in CreateInput, now time.Time) Task {
	t := Task{
		ID:        id,
		OwnerID:   ownerID,
		Name:      strings.TrimSpace(in.Name),
		StartDate: Date(in.StartDate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.DueDate != nil {
		due := Date(*in.DueDate)
		t.DueDate = &due
	}
	return t
}
