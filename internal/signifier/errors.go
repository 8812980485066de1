package signifier

import (
	"errors"
	"fmt"
)

// Sentinel errors, one per validation failure. Use errors.Is against an
// *Error to find which check rejected a reference.
var (
	ErrMalformed       = errors.New("malformed signifier")
	ErrMissingName     = errors.New("missing variable name")
	ErrInvalidIndex    = errors.New("invalid index")
	ErrInvalidToIndex  = errors.New("invalid toIndex")
	ErrUnknownType     = errors.New("unknown type")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrNotAVector      = errors.New("not a vector")
	ErrIndexOutOfRange = errors.New("index out of range")
)

const usage = "should be in the format <name>([<index>(:<toIndex>)?])?(:<as-type>)?"

// Error reports a rejected variable reference together with the module that
// owns it.
type Error struct {
	Reason    error
	Signifier string
	Module    string
	Detail    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("invalid signifier %q for module %s: %v", e.Signifier, e.Module, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Reason
}
