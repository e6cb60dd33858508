package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDatabase            = errors.New("database error")
	ErrUnsupportedType     = errors.New("unsupported document type")
	ErrEmptyDocument       = errors.New("document is empty")
	ErrNoResult            = errors.New("strategy produced no result")
	ErrStrategyUnavailable = errors.New("strategy unavailable")
	ErrVersionConflict     = errors.New("concurrent modification")
)

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// UnsupportedTypeError is a terminal rejection of an input document.
func UnsupportedTypeError(detected string) error {
	return NewAppError("UNSUPPORTED_TYPE",
		fmt.Sprintf("unsupported document type %q (expected PDF, PNG or JPEG)", detected),
		errors.Join(ErrInvalidInput, ErrUnsupportedType))
}

// EmptyDocumentError is a terminal rejection of a zero-byte upload.
func EmptyDocumentError() error {
	return NewAppError("EMPTY_DOCUMENT", "document has zero bytes", errors.Join(ErrInvalidInput, ErrEmptyDocument))
}

// IsTerminal reports whether err rejects the input outright (no fallback applies).
func IsTerminal(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// ToStatus maps an application error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case IsTerminal(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, ErrVersionConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, ErrStrategyUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
