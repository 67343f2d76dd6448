package transport

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ggoodman/gym-tcp-go/transport/transporttest"
)

// pair returns a client Conn and the server end of a loopback TCP connection.
func pair(t *testing.T, opts ...Option) (*Conn, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, addr.IP.String(), addr.Port, opts...)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	srv, ok := <-accepted
	if !ok {
		t.Fatalf("accept failed")
	}
	t.Cleanup(func() {
		_ = c.Close()
		_ = srv.Close()
	})
	return c, srv
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSendAppendsLineDelimiter(t *testing.T) {
	c, srv := pair(t)
	if err := c.Send(testCtx(t), []byte(`{"env":{"action":"reset"}}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	line, err := bufio.NewReader(srv).ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if line != "{\"env\":{\"action\":\"reset\"}}\r\n" {
		t.Fatalf("unexpected frame %q", line)
	}
}

func TestSendRejectsLineBreaks(t *testing.T) {
	c, _ := pair(t)
	err := c.Send(testCtx(t), []byte("{}\r\n"))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestReceiveSplitsReplies(t *testing.T) {
	c, srv := pair(t)
	go func() {
		_, _ = srv.Write([]byte("{\"a\":1}\r\n\r\n{\"b\":2}\r\n\r\n"))
	}()
	ctx := testCtx(t)
	for _, want := range []string{`{"a":1}`, `{"b":2}`} {
		got, err := c.Receive(ctx)
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestReceivePartialWrites(t *testing.T) {
	c, srv := pair(t)
	go func() {
		for _, part := range []string{`{"obs`, `ervation":[1]}`, "\r\n", "\r\n"} {
			_, _ = srv.Write([]byte(part))
			time.Sleep(10 * time.Millisecond)
		}
	}()
	got, err := c.Receive(testCtx(t))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(got) != `{"observation":[1]}` {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestReceiveCompressed(t *testing.T) {
	c, srv := pair(t)
	if err := c.SetCompression(6); err != nil {
		t.Fatalf("set compression: %v", err)
	}
	body := []byte(`{"observation":[` + strings.Repeat("0,", 500) + `0]}`)
	frame, err := transporttest.Frame(body, 6)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	go func() { _, _ = srv.Write(frame) }()

	got, err := c.Receive(testCtx(t))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("inflated body mismatch: %q", got)
	}
}

func TestReceiveCompressedStreamContainingDelimiter(t *testing.T) {
	c, srv := pair(t)
	if err := c.SetCompression(1); err != nil {
		t.Fatalf("set compression: %v", err)
	}
	// Stored deflate blocks carry the payload verbatim, delimiter included.
	body := []byte("{\"info\":{\"note\":\"a\r\n\r\nb\"}}")
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.NoCompression)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	_, _ = zw.Write(body)
	_ = zw.Close()
	if !bytes.Contains(buf.Bytes(), []byte(ReplyDelimiter)) {
		t.Fatalf("stream does not contain the delimiter")
	}
	buf.WriteString(ReplyDelimiter)
	go func() { _, _ = srv.Write(buf.Bytes()) }()

	got, err := c.Receive(testCtx(t))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestReceiveCorruptStream(t *testing.T) {
	c, srv := pair(t)
	_ = c.SetCompression(1)
	go func() { _, _ = srv.Write([]byte("not zlib\r\n\r\n")) }()
	_, err := c.Receive(testCtx(t))
	var tErr *Error
	if !errors.As(err, &tErr) || tErr.Op != "inflate" {
		t.Fatalf("expected inflate error, got %v", err)
	}
}

func TestReceiveEOF(t *testing.T) {
	c, srv := pair(t)
	_ = srv.Close()
	_, err := c.Receive(testCtx(t))
	if !errors.Is(err, ErrTransport) || !errors.Is(err, io.EOF) {
		t.Fatalf("expected transport EOF, got %v", err)
	}
}

func TestReceiveTruncatedReply(t *testing.T) {
	c, srv := pair(t)
	go func() {
		_, _ = srv.Write([]byte(`{"observation":`))
		_ = srv.Close()
	}()
	_, err := c.Receive(testCtx(t))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestReceiveCancelled(t *testing.T) {
	c, _ := pair(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.Receive(ctx)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrTransport) {
		t.Fatalf("expected cancelled transport error, got %v", err)
	}
}

func TestReceiveTooLarge(t *testing.T) {
	c, srv := pair(t, WithMaxMessageSize(8))
	go func() { _, _ = srv.Write([]byte(`{"observation":[1,2,3,4]}` + ReplyDelimiter)) }()
	_, err := c.Receive(testCtx(t))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestSetCompressionRange(t *testing.T) {
	c, _ := pair(t)
	for _, level := range []int{-1, 10} {
		if err := c.SetCompression(level); !errors.Is(err, ErrInvalidCompression) {
			t.Fatalf("level %d: expected ErrInvalidCompression, got %v", level, err)
		}
	}
	if err := c.SetCompression(9); err != nil {
		t.Fatalf("set compression: %v", err)
	}
	if c.Compression() != 9 {
		t.Fatalf("compression: got %d, want 9", c.Compression())
	}
}

func TestClose(t *testing.T) {
	c, _ := pair(t)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := c.Send(testCtx(t), []byte("{}")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on send, got %v", err)
	}
	if _, err := c.Receive(testCtx(t)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed on receive, got %v", err)
	}
}

func TestDialRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	_, err = Dial(testCtx(t), "127.0.0.1", port, WithDialTimeout(time.Second))
	var tErr *Error
	if !errors.As(err, &tErr) || tErr.Op != "dial" {
		t.Fatalf("expected dial error, got %v", err)
	}
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport")
	}
}
