package flagbase

import (
	"errors"
	"fmt"

	"github.com/flagbase/flagbase-go/internal/domain"
)

// Error types that may be returned by Flagbase operations.

// ErrNotRunning is returned by operations that need a started client.
var ErrNotRunning = errors.New("flagbase client is not running")

// NotFoundError indicates a flag is not in the local cache.
type NotFoundError = domain.NotFoundError

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	return domain.IsNotFound(err)
}

// ConfigError indicates invalid configuration.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error [%s]: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
