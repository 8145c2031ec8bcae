package completion

import (
	"errors"
	"fmt"
)

// ErrEmptyTranscript is returned when ChatComplete is called without any turns
var ErrEmptyTranscript = errors.New("transcript is empty")

// ConfigurationError means the client could not be built. It is returned
// before any network activity happens.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid client configuration: %s %s", e.Field, e.Reason)
}

// ServiceError wraps any failure of a remote operation. The cause is kept
// as-is; use errors.As to reach *openai.APIError or *openai.RequestError.
type ServiceError struct {
	Op  string // chat, completion, image, embedding
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsServiceError reports whether err is or wraps a ServiceError
func IsServiceError(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
