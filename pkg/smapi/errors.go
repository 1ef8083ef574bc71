package smapi

import "fmt"

// Op names the step of an attribute access that failed.
type Op string

const (
	OpOpen  Op = "open"
	OpRead  Op = "read"
	OpWrite Op = "write"
	OpClose Op = "close"
)

// IOError is returned by a Store when an attribute could not be accessed.
type IOError struct {
	Op   Op
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("could not %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
