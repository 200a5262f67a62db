package suggest

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyIndex       = errors.New("index is required")
	ErrEmptyKeyword     = errors.New("keyword is empty")
	ErrEmptyDocument    = errors.New("document is empty")
	ErrUnknownMode      = errors.New("unknown update mode")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrBuilderFinalized = errors.New("request builder already executed")
	ErrQueueFull        = errors.New("suggest pool queue is full")
	ErrPoolClosed       = errors.New("suggest pool is closed")
)

// EngineError wraps a failure of the suggester engine with the index and the operation that failed
type EngineError struct {
	Index string
	Op    string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("suggester %s on [%s] failed: %v", e.Op, e.Index, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func engineError(idx, op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return &EngineError{Index: idx, Op: op, Err: err}
}

// IsClientError reports whether err was caused by the caller's input
func IsClientError(err error) bool {
	for _, e := range []error{ErrEmptyIndex, ErrEmptyKeyword, ErrEmptyDocument, ErrUnknownMode,
		ErrInvalidParameter, ErrBuilderFinalized} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
