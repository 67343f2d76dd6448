package environment

import (
	"log/slog"

	"github.com/ggoodman/gym-tcp-go/transport"
)

// Option customizes a Session.
type Option func(*Session)

// WithLogger overrides the logger. It is also handed to the transport by Dial.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTransportOptions passes options through to transport.Dial.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(s *Session) {
		s.transportOpts = append(s.transportOpts, opts...)
	}
}

// WithoutInstanceAck is for servers that answer environment instantiation
// with nothing. InstanceID stays empty.
func WithoutInstanceAck() Option {
	return func(s *Session) { s.instanceAck = false }
}

// WithRender sets the initial render flag.
func WithRender(enabled bool) Option {
	return func(s *Session) { s.render.Store(enabled) }
}

// WithObserver registers an observer for reset and step events.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}
