package ocr

import (
	"errors"
	"fmt"
)

var (
	ErrToolMissing        = errors.New("ocr toolchain binary not found")
	ErrNoPages            = errors.New("no pages rendered")
	ErrEmptyText          = errors.New("ocr produced no text")
	ErrTooManyPages       = errors.New("document exceeds the synchronous page limit")
	ErrUnsupportedInput   = errors.New("unsupported ocr input")
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")
)

// Error wraps an OCR failure with the operation that produced it.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}

// WrapError wraps err as an *Error unless it already is one.
func WrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ocrErr *Error
	if errors.As(err, &ocrErr) {
		return err
	}
	return NewError(op, err, details)
}
