package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/geocoder89/taskhub/internal/apperr"
)

func TestNew_MatchesKindThroughWrapping(t *testing.T) {
	err := apperr.New(apperr.ErrConflict, "username already taken")
	wrapped := fmt.Errorf("register: %w", err)

	require.ErrorIs(t, wrapped, apperr.ErrConflict)
	require.False(t, errors.Is(wrapped, apperr.ErrNotFound))
	require.Equal(t, "username already taken", apperr.Message(wrapped, "fallback"))
}

func TestValidationError(t *testing.T) {
	ve := &apperr.ValidationError{}
	require.NoError(t, ve.OrNil())

	ve.Add("name", "must not be blank")
	ve.Add("dueDate", "must be in the future")

	err := ve.OrNil()
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, "must not be blank", apperr.Message(err, ""))
	require.Contains(t, err.Error(), "dueDate: must be in the future")
}

func TestMessage_FallbackForUnclassified(t *testing.T) {
	require.Equal(t, "internal", apperr.Message(errors.New("boom"), "internal"))
}
