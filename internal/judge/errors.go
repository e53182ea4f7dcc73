package judge

import (
	"errors"
	"fmt"
)

// ConfigError reports misuse of a primitive's configuration: a setter
// called twice, a missing setter, an unknown judge. It is fatal and never
// retried.
type ConfigError struct {
	// Component names the misconfigured primitive (e.g. "iterate").
	Component string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Component == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("%s: config: %s", e.Component, e.Message)
}

// TypeError reports a value of the wrong kind where the core needs a
// specific one, such as a stored cursor that is not an integer.
type TypeError struct {
	// Where identifies the offending value (e.g. "cursor issues/7").
	Where string

	// Want and Got are the expected and actual kinds.
	Want string
	Got  string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Where, e.Want, e.Got)
}

// IsConfigError returns true if the error is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTypeError returns true if the error is a TypeError.
// Uses errors.As to handle wrapped errors.
func IsTypeError(err error) bool {
	var te *TypeError
	return errors.As(err, &te)
}

func configError(component, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Message: fmt.Sprintf(format, args...)}
}
