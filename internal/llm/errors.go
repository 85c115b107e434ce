package llm

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest       = errors.New("invalid completion request")
	ErrNoMessages           = fmt.Errorf("%w: messages empty", ErrInvalidRequest)
	ErrNoModel              = fmt.Errorf("%w: model empty", ErrInvalidRequest)
	ErrEmptyResponse        = errors.New("llm empty response")
	ErrAdapterNotConfigured = errors.New("llm adapter not configured")
)

// UpstreamError indica que el proveedor falló o respondió con status de error.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s upstream error: status=%d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func upstream(provider string, status int, err error) error {
	return &UpstreamError{Provider: provider, StatusCode: status, Err: err}
}
