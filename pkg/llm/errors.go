package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSchemaInvalid     = errors.New("structured output does not match schema")
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")
	ErrTimeout           = errors.New("provider call timed out")
	// ErrUnverifiable marks notifications whose authenticity check failed.
	// Redelivering them cannot succeed.
	ErrUnverifiable = errors.New("notification could not be verified")
)

// ProviderError is returned for every failed provider call: transport
// failures, timeouts, schema-invalid output and wrong dimensionality.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm %s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Wrap turns err into a *ProviderError. Errors already wrapped are returned as is
// and deadline expiry becomes ErrTimeout.
func Wrap(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
