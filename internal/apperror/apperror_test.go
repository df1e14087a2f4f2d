package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryKindAndMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"validation", Validation("subject too short: %d chars", 3), KindValidation},
		{"permission", Permission("grade %s cannot archive here", "SSS3"), KindPermission},
		{"precondition", Precondition("correspondence is not completed"), KindPrecondition},
		{"conflict", Conflict("step %d already recorded", 4), KindConflict},
		{"not_found", NotFound("user %s not found", "abc"), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.NotEmpty(t, tt.err.Message)
			assert.Contains(t, tt.err.Error(), string(tt.kind))
			assert.Nil(t, tt.err.Cause)
		})
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Wrap(KindConflict, cause, "reference already taken")

	assert.Equal(t, "conflict: reference already taken: duplicate key", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesChain(t *testing.T) {
	sentinel := errors.New("row not found")
	wrapped := Wrap(KindNotFound, sentinel, "correspondence %s", "123")
	outer := fmt.Errorf("load inbox: %w", wrapped)

	require.True(t, errors.Is(outer, sentinel))
	assert.True(t, IsKind(outer, KindNotFound))
	assert.False(t, IsKind(outer, KindConflict))
}

func TestIsKindOnPlainError(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), KindValidation))
	assert.False(t, IsKind(nil, KindValidation))
}
