package logctx

import (
	"context"
	"log/slog"
)

// Handler adds the gym attributes carried by the context to every record.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if sd, ok := ctx.Value(sessionDataKey{}).(*SessionData); ok {
		r.AddAttrs(slog.Group("gym",
			slog.String("env", sd.Env),
			slog.String("instance", sd.Instance),
			slog.String("state", sd.State),
		))
	}

	if msg, ok := ctx.Value(messageKey{}).(*Message); ok {
		r.AddAttrs(slog.Group("msg",
			slog.String("intent", msg.Intent),
		))
	}

	if ed, ok := ctx.Value(episodeDataKey{}).(*EpisodeData); ok {
		r.AddAttrs(slog.Group("episode",
			slog.String("id", ed.EpisodeID),
			slog.Int("worker", ed.Worker),
		))
	}

	return h.Handler.Handle(ctx, r)
}

// WithAttrs and WithGroup keep the wrapper in place so derived loggers still
// see context attributes.
func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type sessionDataKey struct{}

type SessionData struct {
	Env      string
	Instance string
	State    string
}

func WithSessionData(ctx context.Context, data *SessionData) context.Context {
	return context.WithValue(ctx, sessionDataKey{}, data)
}

type messageKey struct{}

type Message struct {
	Intent string
}

func WithMessage(ctx context.Context, msg *Message) context.Context {
	return context.WithValue(ctx, messageKey{}, msg)
}

type episodeDataKey struct{}

type EpisodeData struct {
	EpisodeID string
	Worker    int
}

func WithEpisodeData(ctx context.Context, data *EpisodeData) context.Context {
	return context.WithValue(ctx, episodeDataKey{}, data)
}

// Wrap returns l with its handler wrapped in Handler, unless it already is.
func Wrap(l *slog.Logger) *slog.Logger {
	if _, ok := l.Handler().(Handler); ok {
		return l
	}
	return slog.New(Handler{Handler: l.Handler()})
}
