package repository

import (
	"errors"
	"testing"

	"relay-service/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestLookupError(t *testing.T) {
	err := lookupError(gorm.ErrRecordNotFound, "post", "p1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Equal(t, "post p1 not found", apperror.Message(err))

	cause := errors.New("connection reset")
	err = lookupError(cause, "post", "p1")
	assert.ErrorIs(t, err, apperror.ErrPersistence)
	assert.ErrorIs(t, err, cause)
}

func TestWriteError(t *testing.T) {
	cause := errors.New("duplicate key")
	err := writeError(cause, "message")
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))
	assert.Equal(t, "failed to create message", apperror.Message(err))
	assert.ErrorIs(t, err, cause)
}
