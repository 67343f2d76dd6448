package transport

import (
	"log/slog"
	"time"
)

// Option customizes a Conn.
type Option func(*Conn)

// WithLogger overrides the logger. Frames are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDialTimeout bounds how long Dial waits for the TCP handshake in
// addition to any deadline carried by its context.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Conn) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithMaxMessageSize caps the size of a single reply, both on the wire and
// after inflation.
func WithMaxMessageSize(n int) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxMessageSize = n
		}
	}
}
