package observables

import (
	"errors"
	"fmt"

	"ctibridge/internal/opencti"
)

// Category classifies a gateway failure for callers that need to branch on
// it without inspecting the message.
type Category string

const (
	CategoryInvalidInput      Category = "invalid_input"
	CategoryAmbiguousInput    Category = "ambiguous_input"
	CategoryInvalidHashLength Category = "invalid_hash_length"
	CategoryNotFound          Category = "not_found"
	CategoryRemote            Category = "remote_error"
	CategoryCreationFailed    Category = "creation_failed"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrAmbiguousInput     = errors.New("ambiguous input")
	ErrNotFound           = errors.New("observable not found")
	ErrRemote             = errors.New("remote call failed")
	ErrCreationFailed     = errors.New("observable creation failed")
	ErrEnrichmentDisabled = errors.New("enrichment connector not configured")
)

// Error is returned by every Service operation. Err carries the sentinel
// and, when there is one, the underlying cause.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(cat Category, sentinel error, format string, args ...any) *Error {
	return &Error{Category: cat, Message: fmt.Sprintf(format, args...), Err: sentinel}
}

// remoteError keeps the transport error reachable for errors.As while still
// matching ErrRemote.
func remoteError(action string, cause error) *Error {
	return &Error{
		Category: CategoryRemote,
		Message:  fmt.Sprintf("%s: %v", action, cause),
		Err:      errors.Join(ErrRemote, cause),
	}
}

// CategoryOf reports the category of err, or "" when err did not come
// from this package.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// Retryable reports whether retrying the same call could succeed: only
// remote calls that ran out of time qualify.
func Retryable(err error) bool {
	if CategoryOf(err) != CategoryRemote {
		return false
	}
	var re *opencti.RemoteError
	return errors.As(err, &re) && re.Timeout()
}

func hashLengthError(err error) *Error {
	return &Error{
		Category: CategoryInvalidHashLength,
		Message:  fmt.Sprintf("cannot create hash observable: %v", err),
		Err:      errors.Join(ErrCreationFailed, err),
	}
}
