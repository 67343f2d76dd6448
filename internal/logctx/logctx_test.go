package logctx

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerAddsContextGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})

	ctx := WithSessionData(context.Background(), &SessionData{Env: "CartPole-v0", Instance: "abc", State: "ready"})
	ctx = WithMessage(ctx, &Message{Intent: "step"})
	log.With("k", "v").InfoContext(ctx, "session.step.ok")

	out := buf.String()
	for _, want := range []string{"gym.env=CartPole-v0", "gym.instance=abc", "gym.state=ready", "msg.intent=step", "k=v"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "episode.") {
		t.Fatalf("unexpected episode group in %q", out)
	}
}

func TestHandlerWithoutContextData(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(Handler{Handler: slog.NewTextHandler(&buf, nil)})
	ctx := WithEpisodeData(context.Background(), &EpisodeData{EpisodeID: "ep-1", Worker: 2})
	log.InfoContext(ctx, "episode.done")
	out := buf.String()
	if !strings.Contains(out, "episode.id=ep-1") || !strings.Contains(out, "episode.worker=2") {
		t.Fatalf("missing episode attrs in %q", out)
	}
	if strings.Contains(out, "gym.") {
		t.Fatalf("unexpected gym group in %q", out)
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	base := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	once := Wrap(base)
	if _, ok := once.Handler().(Handler); !ok {
		t.Fatalf("expected wrapped handler")
	}
	if twice := Wrap(once); twice != once {
		t.Fatalf("expected Wrap to return an already wrapped logger unchanged")
	}
}
