package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded is matched by every *QuotaError.
	ErrQuotaExceeded = errors.New("local storage quota exceeded")
	// ErrStorageUnavailable means no backend can be used at all, e.g. the
	// data directory is not writable.
	ErrStorageUnavailable = errors.New("local storage unavailable")
)

// QuotaError reports a write that would push a backend past its capacity.
// Sizes are in bytes.
type QuotaError struct {
	Backend   string
	Current   int64
	Attempted int64
	Limit     int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s store holds %d bytes, write of %d bytes exceeds limit of %d bytes",
		ErrQuotaExceeded, e.Backend, e.Current, e.Attempted, e.Limit)
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
