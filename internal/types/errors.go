package types

import (
	"errors"
	"fmt"
)

// ConfigError reports a problem with deployment configuration, most commonly
// the rate card. It maps to a server error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// InputError reports a problem with caller supplied data. It maps to a client
// error.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func NewConfigError(format string, args ...interface{}) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

func NewInputError(format string, args ...interface{}) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether any error in err's chain is a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}

// IsInputError reports whether any error in err's chain is an InputError.
func IsInputError(err error) bool {
	var target *InputError
	return errors.As(err, &target)
}
