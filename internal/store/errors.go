package store

import (
	"errors"
	"fmt"
)

// ErrDuplicateKey reports that an event with the same fingerprint is
// already stored. Callers treat it as success.
var ErrDuplicateKey = errors.New("duplicate event fingerprint")

// DuplicateKeyError is returned by InsertEvents when some events were
// skipped as duplicates.
type DuplicateKeyError struct {
	Skipped int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s: %d event(s) skipped", ErrDuplicateKey, e.Skipped)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

// Skipped returns how many events err reports as duplicates. It is zero
// for errors that are not duplicate-key errors.
func Skipped(err error) int {
	var dup *DuplicateKeyError
	if errors.As(err, &dup) {
		return dup.Skipped
	}
	return 0
}
