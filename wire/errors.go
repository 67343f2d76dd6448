package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse indicates that a reply lacked an expected field or
	// carried it with the wrong type or extent.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrUnsupportedTensorRank indicates an observation space whose shape has
	// a rank other than 1, 2 or 3.
	ErrUnsupportedTensorRank = errors.New("unsupported tensor rank")
	// ErrInvalidAction indicates an action value that cannot be encoded for
	// its space, such as an empty vector or a non-finite float.
	ErrInvalidAction = errors.New("invalid action")
	// ErrInvalidCompression indicates a compression level outside 0-9.
	ErrInvalidCompression = errors.New("invalid compression level")
	// ErrEmptyEnvironmentName indicates an attempt to instantiate an
	// environment without a name.
	ErrEmptyEnvironmentName = errors.New("empty environment name")
)

// MalformedResponseError reports the reply field that could not be extracted.
type MalformedResponseError struct {
	Field  string // dotted path of the offending field; empty for the whole message
	Reason string
}

func (e *MalformedResponseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed response: %s", e.Reason)
	}
	return fmt.Sprintf("malformed response field %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// UnsupportedRankError reports the observation rank that could not be decoded.
type UnsupportedRankError struct {
	Rank int
}

func (e *UnsupportedRankError) Error() string {
	return fmt.Sprintf("unsupported tensor rank %d (want 1, 2 or 3)", e.Rank)
}

// Is reports whether target is ErrUnsupportedTensorRank.
func (e *UnsupportedRankError) Is(target error) bool {
	return target == ErrUnsupportedTensorRank
}

func malformed(field, format string, args ...any) error {
	return &MalformedResponseError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
