package ai

import (
	"errors"
	"fmt"
)

// ErrBackend matches every failure reported by the completion backend.
var ErrBackend = errors.New("llm backend error")

var errEmptyReply = errors.New("backend returned an empty reply")

// BackendError wraps a transport, timeout or malformed-response failure from
// the inference server.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("llm backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBackend) match any BackendError.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}
