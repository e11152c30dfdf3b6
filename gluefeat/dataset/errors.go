package dataset

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSplit  = errors.New("unknown dataset split")
	ErrMalformedRow  = errors.New("malformed row")
	ErrInvalidSchema = errors.New("invalid dataset schema")
	ErrUnknownPolicy = errors.New("unknown malformed row policy")
	ErrNoSplitFile   = errors.New("schema has no file for split")
)

// RowError reports a row that could not be turned into an Example.
type RowError struct {
	Path string
	Row  int // zero-based line number in the file
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: row %d: %v", e.Path, e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
