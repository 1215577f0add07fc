package rubric

import (
	"errors"
	"strings"
)

// ErrInvalid is the sentinel every ConfigError unwraps to.
var ErrInvalid = errors.New("rubric: invalid configuration")

// ConfigError lists every problem found in a rubric. It is fatal at startup.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return ErrInvalid.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Unwrap() error { return ErrInvalid }
