package repository

import (
	"errors"
	"fmt"

	"relay-service/pkg/apperror"

	"gorm.io/gorm"
)

// lookupError maps a read failure to NotFound or Persistence
func lookupError(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound("%s %s not found", entity, id)
	}
	return apperror.Persistence(fmt.Sprintf("failed to load %s", entity), err)
}

func writeError(err error, entity string) error {
	return apperror.Persistence(fmt.Sprintf("failed to create %s", entity), err)
}
