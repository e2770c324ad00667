package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid or expired link")
	ErrNotFound     = errors.New("not found")
)

// ValidationError reports malformed or out-of-range input. It is raised before any I/O.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a failure of the market API, an email provider or the data store.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return e.Op + ": upstream failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// ConfigurationError is fatal for the invocation that hits it.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Key, e.Message)
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter.Round(time.Second))
}

// BatchFailure is one failed item of a batch that otherwise proceeded.
type BatchFailure struct {
	Item string `json:"item"`
	Err  string `json:"error"`
}

func (f BatchFailure) String() string {
	return f.Item + ": " + f.Err
}

func Failure(item string, err error) BatchFailure {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return BatchFailure{Item: item, Err: msg}
}

// HTTPStatus maps an error of this taxonomy onto a response status.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ve *ValidationError
	var rl *RateLimitError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidToken):
		return http.StatusBadRequest
	case errors.As(err, &rl):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
