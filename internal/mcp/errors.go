package mcp

import (
	"context"
	"errors"
	"fmt"

	"ctibridge/internal/gateway/service/observables"
	"ctibridge/internal/opencti"
)

// Error categories beyond those produced by the observable gateway.
const (
	CategoryInvalidInput = "invalid_input"
	CategoryNotFound     = "not_found"
	CategoryRemote       = "remote_error"
	CategoryInternal     = "internal"
)

// ToolError is a failure a tool detected itself, such as a bad argument or
// an id OpenCTI does not know.
type ToolError struct {
	Category string
	Message  string
}

func (e *ToolError) Error() string { return e.Message }

func invalidInput(format string, args ...any) error {
	return &ToolError{Category: CategoryInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &ToolError{Category: CategoryNotFound, Message: fmt.Sprintf(format, args...)}
}

// ErrorInfo is the machine-readable half of a failed tool result.
type ErrorInfo struct {
	Category  string `json:"category"`
	Retryable bool   `json:"retryable"`
}

// Classify maps err onto an ErrorInfo. Only remote failures caused by a
// timeout are retryable.
func Classify(err error) ErrorInfo {
	if cat := observables.CategoryOf(err); cat != "" {
		return ErrorInfo{Category: string(cat), Retryable: observables.Retryable(err)}
	}
	var te *ToolError
	if errors.As(err, &te) {
		return ErrorInfo{Category: te.Category}
	}
	var re *opencti.RemoteError
	if errors.As(err, &re) {
		return ErrorInfo{Category: CategoryRemote, Retryable: re.Timeout()}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorInfo{Category: CategoryRemote, Retryable: true}
	}
	if errors.Is(err, ErrUnknownTool) {
		return ErrorInfo{Category: CategoryInvalidInput}
	}
	return ErrorInfo{Category: CategoryInternal}
}
