package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrModelsExhausted means every model in the fallback list rejected the request.
var ErrModelsExhausted = errors.New("all models rejected the request")

// StatusError is a non-2xx answer from an HTTP provider.
type StatusError struct {
	Provider   string
	Model      string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s model %s: status %d: %s", e.Provider, e.Model, e.StatusCode, e.Body)
}

func (e *StatusError) HTTPCode() int {
	return e.StatusCode
}

// StatusCode extracts an HTTP-class status from a provider error, 0 when unknown.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return coded.HTTPCode()
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.InvalidArgument:
			return http.StatusBadRequest
		case codes.NotFound:
			return http.StatusNotFound
		case codes.ResourceExhausted:
			return http.StatusTooManyRequests
		case codes.Unavailable:
			return http.StatusServiceUnavailable
		case codes.DeadlineExceeded:
			return http.StatusGatewayTimeout
		}
	}
	return 0
}

// IsModelRejected reports whether err means "this model will not serve the
// request, try the next one": a 400/404 rejection, a 429 quota answer, or a
// transport failure (502/503/504, an unreachable endpoint, a per-call timeout).
// The caller checks its own context first, so a deadline here is the call's.
func IsModelRejected(err error) bool {
	if err == nil {
		return false
	}
	switch StatusCode(err) {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
