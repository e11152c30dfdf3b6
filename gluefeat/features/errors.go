package features

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned before any example is processed when the
	// call itself is invalid.
	ErrConfiguration   = errors.New("invalid feature configuration")
	ErrUnknownLabel    = errors.New("label not in label space")
	ErrMalformedLabel  = errors.New("regression label is not a number")
	ErrLengthInvariant = errors.New("feature length invariant violated")
)

// ExampleError attributes a conversion failure to one input example.
type ExampleError struct {
	Index int
	ID    string
	Err   error
}

func (e *ExampleError) Error() string {
	return fmt.Sprintf("example %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *ExampleError) Unwrap() error { return e.Err }
