package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every *Error.
	ErrTransport = errors.New("transport error")
	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("connection closed")
	// ErrMessageTooLarge indicates a reply exceeding the configured maximum.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrInvalidCompression indicates a compression level outside 0-9.
	ErrInvalidCompression = errors.New("invalid compression level")
)

// Error describes a failed dial, write or read. The underlying cause is
// surfaced unchanged through Unwrap.
type Error struct {
	Op   string // "dial", "write", "read" or "inflate"
	Addr string
	Err  error
}

func (e *Error) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrTransport.
func (e *Error) Is(target error) bool { return target == ErrTransport }
