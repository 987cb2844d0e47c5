package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/growthvault/internal/client/cache"
	"github.com/dmitrijs2005/growthvault/internal/client/persistence"
	"github.com/dmitrijs2005/growthvault/internal/client/remote"
	"github.com/dmitrijs2005/growthvault/internal/common"
)

var (
	ErrNothingToUndo  = errors.New("nothing to undo")
	ErrItemNotFound   = errors.New("item not found")
	ErrAuthorNotFound = errors.New("author not found")
)

// ValidationError rejects bad input before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, common.ErrorValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == common.ErrorValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ImportError means an import file was rejected as a whole.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import rejected: %v", e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Explain turns an error from this package or the layers below it into a
// message for the user, with a hint on what to do about it.
func Explain(err error) string {
	if err == nil {
		return ""
	}

	var (
		qe *cache.QuotaError
		ve *ValidationError
		ie *ImportError
		sw *persistence.SyncWarning
	)
	switch {
	case errors.As(err, &qe):
		return fmt.Sprintf("Local storage is full: %s stored, this save needs %s of %s allowed. "+
			"Delete some entries or images, or sign in to keep your data in the cloud.",
			humanBytes(qe.Current), humanBytes(qe.Attempted), humanBytes(qe.Limit))
	case errors.Is(err, cache.ErrStorageUnavailable):
		return "Local storage is not available on this device. " +
			"Check that the data directory is writable, or sign in to keep your data in the cloud."
	case errors.As(err, &ve):
		return fmt.Sprintf("Invalid %s: %s.", ve.Field, ve.Message)
	case errors.As(err, &ie):
		return fmt.Sprintf("The file could not be imported: %v. Nothing was changed.", ie.Err)
	case errors.As(err, &sw):
		return fmt.Sprintf("Saved on this device only, cloud sync failed (%v). "+
			"Changes will sync on the next save once the connection is back.", sw.Err)
	case errors.Is(err, ErrNothingToUndo):
		return "Nothing to undo."
	case errors.Is(err, remote.ErrUnauthorized):
		return "Sign-in failed or the session has expired. Sign in again."
	case errors.Is(err, remote.ErrUnavailable):
		return "The server cannot be reached. Your data is kept on this device."
	case errors.Is(err, remote.ErrNotSignedIn):
		return "You are not signed in."
	case errors.Is(err, common.ErrorAlreadyExists):
		return "That username is already taken."
	}
	return err.Error()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
