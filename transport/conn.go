package transport

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// RequestDelimiter terminates every request line. Servers read requests
	// line-wise, so a request must never be followed by an extra blank line.
	RequestDelimiter = "\r\n"
	// ReplyDelimiter terminates every reply body, compressed or not.
	ReplyDelimiter = "\r\n\r\n"

	DefaultMaxMessageSize = 64 << 20
	DefaultDialTimeout    = 10 * time.Second
)

var replyDelimiter = []byte(ReplyDelimiter)

// Connection is the collaborator a session drives. Implementations need not
// be safe for concurrent use by multiple sessions.
type Connection interface {
	// Send writes one request body followed by RequestDelimiter.
	Send(ctx context.Context, msg []byte) error
	// Receive blocks for the next reply body, inflated when compression is on.
	Receive(ctx context.Context) ([]byte, error)
	// SetCompression records the zlib level the peer now applies to replies.
	SetCompression(level int) error
	// Compression returns the level last recorded by SetCompression.
	Compression() int
	Close() error
}

// Conn is a TCP Connection.
type Conn struct {
	log            *slog.Logger
	dialTimeout    time.Duration
	maxMessageSize int

	nc   net.Conn
	addr string
	sc   *bufio.Scanner

	level  atomic.Int32
	closed atomic.Bool

	writeMu sync.Mutex
	readMu  sync.Mutex
}

var _ Connection = (*Conn)(nil)

func newConn(opts []Option) *Conn {
	c := &Conn{
		log:            slog.New(slog.DiscardHandler),
		dialTimeout:    DefaultDialTimeout,
		maxMessageSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial connects to a gym server at host:port.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Conn, error) {
	c := newConn(opts)
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	d := net.Dialer{Timeout: c.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.log.WarnContext(ctx, "transport.dial.fail", slog.String("addr", addr), slog.String("err", err.Error()))
		return nil, &Error{Op: "dial", Addr: addr, Err: err}
	}
	c.attach(nc)
	c.log.DebugContext(ctx, "transport.dial.ok", slog.String("addr", c.addr))
	return c, nil
}

// NewConn wraps an established connection. It is mainly useful with
// net.Pipe in tests.
func NewConn(nc net.Conn, opts ...Option) *Conn {
	c := newConn(opts)
	c.attach(nc)
	return c
}

func (c *Conn) attach(nc net.Conn) {
	c.nc = nc
	if ra := nc.RemoteAddr(); ra != nil {
		c.addr = ra.String()
	}
	c.sc = bufio.NewScanner(nc)
	limit := c.maxMessageSize + len(ReplyDelimiter)
	c.sc.Buffer(make([]byte, 0, min(64<<10, limit)), limit)
	c.sc.Split(c.split)
}

// Addr returns the remote address.
func (c *Conn) Addr() string { return c.addr }

// Send implements Connection.
func (c *Conn) Send(ctx context.Context, msg []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if bytes.ContainsAny(msg, "\r\n") {
		return &Error{Op: "write", Addr: c.addr, Err: errors.New("request contains a line break")}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	stop := c.watch(ctx, c.nc.SetWriteDeadline)
	defer stop()

	frame := make([]byte, 0, len(msg)+len(RequestDelimiter))
	frame = append(frame, msg...)
	frame = append(frame, RequestDelimiter...)
	if _, err := c.nc.Write(frame); err != nil {
		return c.fail(ctx, "write", err)
	}
	c.log.DebugContext(ctx, "transport.send", slog.Int("bytes", len(msg)))
	return nil
}

// Receive implements Connection. A failed Receive leaves the stream at an
// unknown position; the Conn should be closed.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	stop := c.watch(ctx, c.nc.SetReadDeadline)
	defer stop()

	if !c.sc.Scan() {
		err := c.sc.Err()
		switch {
		case err == nil:
			err = io.EOF
		case errors.Is(err, bufio.ErrTooLong):
			err = ErrMessageTooLarge
		}
		return nil, c.fail(ctx, "read", err)
	}
	body := bytes.Clone(c.sc.Bytes())
	c.log.DebugContext(ctx, "transport.receive", slog.Int("bytes", len(body)), slog.Int("compression", c.Compression()))
	return body, nil
}

// SetCompression implements Connection.
func (c *Conn) SetCompression(level int) error {
	if level < 0 || level > 9 {
		return fmt.Errorf("%w: %d", ErrInvalidCompression, level)
	}
	c.level.Store(int32(level))
	return nil
}

// Compression implements Connection.
func (c *Conn) Compression() int { return int(c.level.Load()) }

// Close closes the underlying connection. Closing twice returns ErrClosed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return c.nc.Close()
}

// split is a bufio.SplitFunc yielding reply bodies. With compression on, a
// delimiter may occur inside the zlib stream itself; a candidate body that
// inflates to a truncated stream is extended to the next delimiter.
func (c *Conn) split(data []byte, atEOF bool) (int, []byte, error) {
	from := 0
	for {
		i := bytes.Index(data[from:], replyDelimiter)
		if i < 0 {
			break
		}
		end := from + i
		body := data[:end]
		if c.Compression() == 0 {
			return end + len(replyDelimiter), body, nil
		}
		out, err := c.inflate(body)
		switch {
		case err == nil:
			return end + len(replyDelimiter), out, nil
		case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
			from = end + 1
		default:
			return 0, nil, &Error{Op: "inflate", Addr: c.addr, Err: err}
		}
	}
	if atEOF && len(data) > 0 {
		return 0, nil, io.ErrUnexpectedEOF
	}
	return 0, nil, nil
}

func (c *Conn) inflate(body []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(c.maxMessageSize)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > c.maxMessageSize {
		return nil, ErrMessageTooLarge
	}
	return out, nil
}

// watch applies the context deadline to the connection and forces a pending
// read or write to return when ctx is cancelled.
func (c *Conn) watch(ctx context.Context, set func(time.Time) error) (stop func()) {
	deadline, _ := ctx.Deadline()
	_ = set(deadline)
	if ctx.Done() == nil {
		return func() {}
	}
	cancel := context.AfterFunc(ctx, func() { _ = set(time.Unix(1, 0)) })
	return func() { cancel() }
}

func (c *Conn) fail(ctx context.Context, op string, err error) error {
	var tErr *Error
	if errors.As(err, &tErr) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	c.log.WarnContext(ctx, "transport."+op+".fail", slog.String("err", err.Error()))
	return &Error{Op: op, Addr: c.addr, Err: err}
}
