package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := NotFound("user %s not found", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)
	assert.Equal(t, "user u1 not found", err.Error())

	wrapped := fmt.Errorf("register: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "user u1 not found", Message(wrapped))
}

func TestPersistenceHidesCause(t *testing.T) {
	cause := errors.New("pq: connection reset")
	err := Persistence("failed to create message", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, "failed to create message", Message(err))
}

func TestUnclassified(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal error", Message(err))
	assert.Equal(t, "PERMISSION_DENIED", PermissionDenied("no").Kind.String())
	assert.Equal(t, KindAuthFailure, KindOf(AuthFailure("bad token")))
	assert.Equal(t, KindValidation, KindOf(Validation("missing %s", "roomId")))
}
