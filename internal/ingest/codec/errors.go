package codec

import (
	"errors"
	"strconv"
)

// Domain errors for the codec package. Use errors.Is() to check for these.
var (
	// ErrMissingDeviceID is returned when a frame has no device_id.
	ErrMissingDeviceID = errors.New("codec: missing device_id")

	// ErrClockSkew is returned when a frame's timestamp is too far from
	// server time.
	ErrClockSkew = errors.New("codec: timestamp outside max clock skew")

	// ErrMalformed is returned when the raw payload is not valid JSON or
	// doesn't match the expected envelope shape.
	ErrMalformed = errors.New("codec: malformed payload")
)

// DecodeError is a typed decode failure carrying the byte offset in the
// input where decoding failed, when known. Decoding never panics on
// malformed input; every failure path returns one of these.
type DecodeError struct {
	Err    error
	Offset int64 // -1 when the offset is not known
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return e.Err.Error() + " (offset " + strconv.FormatInt(e.Offset, 10) + ")"
	}
	return e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

func newDecodeError(err error, offset int64) *DecodeError {
	return &DecodeError{Err: err, Offset: offset}
}
