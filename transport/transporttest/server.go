// Package transporttest provides an in-process gym server for exercising
// clients over a real loopback TCP connection.
package transporttest

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ggoodman/gym-tcp-go/wire"
)

// Env describes a simulated environment.
type Env struct {
	ActionSpace      wire.SpaceDescriptor
	ObservationSpace wire.SpaceDescriptor
	// EpisodeLength is the step on which done is reported. Zero means never.
	EpisodeLength int
	Reward        float64
	Info          map[string]any
	Sample        int
	// Observe returns the observation after step steps of the current
	// episode (zero on reset). When nil, Filled(shape, step) is used for Box
	// spaces and step itself for Discrete spaces.
	Observe func(step int) any
}

// CartPole has a Discrete(2) action space and a Box(4) observation space and
// ends episodes after ten steps.
func CartPole() Env {
	return Env{
		ActionSpace: wire.SpaceDescriptor{Name: "Discrete", N: 2},
		ObservationSpace: wire.SpaceDescriptor{
			Name:  "Box",
			Shape: []int{4},
			Low:   []float64{-4.8, -1e100, -0.42, -1e100},
			High:  []float64{4.8, 1e100, 0.42, 1e100},
		},
		EpisodeLength: 10,
		Reward:        1,
		Info:          map[string]any{},
	}
}

// Pixels has a Box(3) action space and a Box(h, w, c) image observation.
func Pixels(h, w, c int) Env {
	return Env{
		ActionSpace: wire.SpaceDescriptor{
			Name:  "Box",
			Shape: []int{3},
			Low:   []float64{-1, 0, 0},
			High:  []float64{1, 1, 1},
		},
		ObservationSpace: wire.SpaceDescriptor{Name: "Box", Shape: []int{h, w, c}, Low: []float64{0}, High: []float64{255}},
		EpisodeLength:    3,
		Reward:           0.5,
		Info:             map[string]any{"lives": 3},
	}
}

// Filled returns a nested array of the given shape with every element set to
// v.
func Filled(shape []int, v float64) any {
	if len(shape) == 0 {
		return v
	}
	out := make([]any, shape[0])
	for i := range out {
		out[i] = Filled(shape[1:], v)
	}
	return out
}

// Option customizes a Server.
type Option func(*Server)

// WithEnv registers env under name.
func WithEnv(name string, env Env) Option {
	return func(s *Server) { s.envs[name] = env }
}

// WithoutInstanceAck makes the server answer environment instantiation with
// nothing, like older servers do.
func WithoutInstanceAck() Option {
	return func(s *Server) { s.ack = false }
}

// WithURL sets the video location returned for url requests.
func WithURL(u string) Option {
	return func(s *Server) { s.url = u }
}

// Server is a gym server on a loopback listener. It is closed automatically
// when the test ends.
type Server struct {
	t   testing.TB
	ln  net.Listener
	ack bool
	url string

	mu       sync.Mutex
	envs     map[string]Env
	requests []string
	inject   []string
	conns    map[net.Conn]struct{}

	wg sync.WaitGroup
}

// NewServer starts a Server. CartPole is registered as "CartPole-v0".
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{
		t:     t,
		ln:    ln,
		ack:   true,
		url:   "https://example.invalid/output.webm",
		envs:  map[string]Env{"CartPole-v0": CartPole()},
		conns: map[net.Conn]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// Host returns the listener host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the listener port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// Requests returns every request line received so far, without delimiters.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Inject makes the server answer the next reply-bearing request with raw
// instead of the simulated reply. Raw is still compressed and framed.
func (s *Server) Inject(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject = append(s.inject, raw)
}

// DropConnections closes every accepted connection.
func (s *Server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

// Close stops the listener and waits for connection handlers to exit.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.DropConnections()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, c)
				s.mu.Unlock()
				_ = c.Close()
			}()
			s.handle(c)
		}()
	}
}

// session is the per-connection server state.
type session struct {
	env      *Env
	instance string
	level    int
	step     int
}

func (s *Server) handle(c net.Conn) {
	br := bufio.NewReader(c)
	var st session
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.requests = append(s.requests, line)
		s.mu.Unlock()

		if strings.TrimSpace(line) == "" {
			// A blank line makes real servers drop every environment.
			st.env = nil
			if !s.write(c, st.level, []byte("error")) {
				return
			}
			continue
		}

		var req wire.Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return
		}
		reply, ok := s.dispatch(&st, req)
		if !ok {
			return
		}
		if reply == nil {
			continue
		}
		if raw, injected := s.popInject(); injected {
			reply = []byte(raw)
		}
		if !s.write(c, st.level, reply) {
			return
		}
	}
}

// dispatch returns the reply body for req, nil when the request has no
// reply, or false when the connection must be dropped.
func (s *Server) dispatch(st *session, req wire.Request) ([]byte, bool) {
	switch {
	case req.Env != nil && req.Env.Name != "":
		s.mu.Lock()
		env, found := s.envs[req.Env.Name]
		s.mu.Unlock()
		if !found {
			return nil, false
		}
		st.env = &env
		st.instance = uuid.NewString()
		st.level = 0
		st.step = 0
		if !s.ack {
			return nil, true
		}
		return marshal(wire.InstanceReply{Instance: st.instance}), true

	case req.Server != nil:
		level, err := strconv.Atoi(req.Server.Compression)
		if err != nil || level < 0 || level > 9 {
			level = 0
		}
		st.level = level
		return nil, true
	}

	if st.env == nil {
		return nil, false
	}
	env := st.env

	switch {
	case req.Env != nil && req.Env.ActionSpace == wire.ActionSample:
		return marshal(wire.SampleReply{Sample: env.Sample}), true

	case req.Env != nil && req.Env.Action != "":
		switch req.Env.Action {
		case wire.ActionClose:
			st.env = nil
			return nil, true
		case wire.ActionReset:
			st.step = 0
			return marshal(map[string]any{"observation": observe(env, 0)}), true
		case wire.ActionActionSpace:
			return marshal(wire.SpaceReply{Info: env.ActionSpace}), true
		case wire.ActionObservationSpace:
			return marshal(wire.SpaceReply{Info: env.ObservationSpace}), true
		}
		return nil, false

	case req.Step != nil:
		st.step++
		info := env.Info
		if info == nil {
			info = map[string]any{}
		}
		return marshal(wire.StepReply{
			Observation: observe(env, st.step),
			Reward:      env.Reward,
			Done:        env.EpisodeLength > 0 && st.step >= env.EpisodeLength,
			Info:        info,
		}), true

	case req.URL != nil:
		return marshal(wire.URLReply{URL: s.url}), true
	}

	// seed, monitor and record_episode_stats have no reply.
	return nil, true
}

func observe(env *Env, step int) any {
	if env.Observe != nil {
		return env.Observe(step)
	}
	if env.ObservationSpace.Name == "Discrete" {
		return step
	}
	return Filled(env.ObservationSpace.Shape, float64(step))
}

func (s *Server) popInject() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inject) == 0 {
		return "", false
	}
	raw := s.inject[0]
	s.inject = s.inject[1:]
	return raw, true
}

func (s *Server) write(c net.Conn, level int, body []byte) bool {
	frame, err := Frame(body, level)
	if err != nil {
		s.t.Errorf("transporttest: frame reply: %v", err)
		return false
	}
	_, err = c.Write(frame)
	return err == nil
}

// Frame compresses body at level (when above zero) and appends the reply
// delimiter.
func Frame(body []byte, level int) ([]byte, error) {
	if level <= 0 {
		return append(append([]byte(nil), body...), "\r\n\r\n"...), nil
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("\r\n\r\n")
	return buf.Bytes(), nil
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
