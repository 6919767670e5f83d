package repository

import (
	"errors"

	"gorm.io/gorm"
)

// ErrDuplicate indicates a uniqueness rule rejected the write.
var ErrDuplicate = errors.New("duplicate record")

// ErrStaleState indicates a conditional transition found the row in another state.
var ErrStaleState = errors.New("record is not in the expected state")

func translateDuplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
