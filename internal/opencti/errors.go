package opencti

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// RemoteError is any failure surfaced while talking to OpenCTI: transport
// errors, non-2xx statuses, undecodable bodies and GraphQL errors alike.
type RemoteError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return "opencti: " + msg
	}
	return fmt.Sprintf("opencti %s: %s", e.Op, msg)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed because it ran out of time.
func (e *RemoteError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(e.Err, &nerr) && nerr.Timeout()
}

func remoteErr(op, msg string, err error) *RemoteError {
	return &RemoteError{Op: op, Message: msg, Err: err}
}

// IsRemote reports whether err came from the OpenCTI transport.
func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
