package errors

import (
	"fmt"

	sterrors "errors"
)

var (
	ErrConfigRequired     = sterrors.New("vlmrelay: configuration is required")
	ErrLoggerRequired     = sterrors.New("vlmrelay: logger is required")
	ErrLogClientRequired  = sterrors.New("vlmrelay: upstream log client is required")
	ErrHandlerRequired    = sterrors.New("vlmrelay: entry handler is required")
	ErrRegistryRequired   = sterrors.New("vlmrelay: subscriber registry is required")
	ErrStreamNameRequired = sterrors.New("vlmrelay: stream name is required")
	ErrNotConnected       = sterrors.New("vlmrelay: upstream log client is not connected")
)

// ConfigValidationError wraps configuration validation failures so callers can
// distinguish them from runtime errors with errors.As.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("vlmrelay: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError wraps err in a ConfigValidationError. Returns nil
// when err is nil.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
