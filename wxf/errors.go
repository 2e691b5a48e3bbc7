package wxf

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrMalformedStream matches every *MalformedStreamError.
	ErrMalformedStream = errors.New("wxf: malformed stream")

	// ErrUnsupportedType matches every *UnsupportedTypeError. An
	// ObjectProcessor returns it to decline a value.
	ErrUnsupportedType = errors.New("wxf: unsupported type")

	// ErrMaxDepth is returned when nesting exceeds the configured limit, on
	// either side.
	ErrMaxDepth = errors.New("wxf: maximum depth exceeded")

	// ErrInvalidUTF8 is returned when a String or Symbol is not UTF-8.
	ErrInvalidUTF8 = errors.New("wxf: invalid UTF-8")
)

// MalformedStreamError describes a structural violation in a WXF stream.
type MalformedStreamError struct {
	Reason string
	Offset int   // byte offset in the logical (decompressed) stream
	Err    error // underlying cause, may be nil
}

func (e *MalformedStreamError) Error() string {
	msg := fmt.Sprintf("wxf: %s at offset %d", e.Reason, e.Offset)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrMalformedStream) succeed.
func (e *MalformedStreamError) Is(target error) bool {
	return target == ErrMalformedStream
}

func (e *MalformedStreamError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError is returned when no encoder handles a value.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	if e.Type == nil {
		return "wxf: cannot encode value of unknown type"
	}
	return fmt.Sprintf("wxf: cannot encode value of type %s", e.Type)
}

// Is makes errors.Is(err, ErrUnsupportedType) succeed.
func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}
