package environment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/gym-tcp-go/internal/logctx"
	"github.com/ggoodman/gym-tcp-go/space"
	"github.com/ggoodman/gym-tcp-go/transport"
	"github.com/ggoodman/gym-tcp-go/wire"
)

// Session owns one Connection and the environment instantiated on it.
type Session struct {
	log           *slog.Logger
	transportOpts []transport.Option
	instanceAck   bool
	observers     []Observer

	conn   transport.Connection
	state  atomic.Int32
	render atomic.Bool

	mu               sync.Mutex
	name             string
	instance         string
	actionSpace      space.Space
	observationSpace space.Space
	observation      *wire.Tensor
	reward           float64
	done             bool
	info             string
	steps            int
}

func newSession(opts []Option) *Session {
	s := &Session{
		log:         slog.New(slog.DiscardHandler),
		instanceAck: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logctx.Wrap(s.log)
	return s
}

// New wraps an established connection. The Session takes ownership of conn
// and closes it on Close.
func New(conn transport.Connection, opts ...Option) *Session {
	s := newSession(opts)
	s.conn = conn
	s.state.Store(int32(Connected))
	return s
}

// Dial connects to the gym server at host:port.
func Dial(ctx context.Context, host string, port int, opts ...Option) (*Session, error) {
	s := newSession(opts)
	topts := append([]transport.Option{transport.WithLogger(s.log)}, s.transportOpts...)
	conn, err := transport.Dial(ctx, host, port, topts...)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.state.Store(int32(Connected))
	s.log.InfoContext(ctx, "session.connect.ok", slog.String("host", host), slog.Int("port", port))
	return s, nil
}

// State returns the current lifecycle state. It does not wait for a pending
// operation, so it reports Stepping while a Step is in flight.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// enter validates the state for op and decorates ctx for logging. Callers
// hold s.mu.
func (s *Session) enter(ctx context.Context, op string, allowed ...State) (context.Context, error) {
	st := s.State()
	if st == Closed {
		return ctx, ErrSessionClosed
	}
	if !slices.Contains(allowed, st) {
		return ctx, &StateError{Op: op, State: st}
	}
	ctx = logctx.WithSessionData(ctx, &logctx.SessionData{Env: s.name, Instance: s.instance, State: st.String()})
	ctx = logctx.WithMessage(ctx, &logctx.Message{Intent: op})
	return ctx, nil
}

// exchange sends msg and decodes the reply.
func (s *Session) exchange(ctx context.Context, msg wire.Message) (*wire.Response, error) {
	if err := s.conn.Send(ctx, msg); err != nil {
		return nil, err
	}
	body, err := s.conn.Receive(ctx)
	if err != nil {
		return nil, err
	}
	return wire.Parse(body)
}

func (s *Session) failed(ctx context.Context, op string, err error) error {
	s.log.WarnContext(ctx, "session."+op+".fail", slog.String("err", err.Error()))
	return err
}

// Make instantiates the named environment and queries its action and
// observation spaces. Calling Make again replaces the environment; the server
// closes the previous instance. If either space cannot be decoded the Session
// falls back to Connected.
func (s *Session) Make(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, "make", Connected, Made, Ready)
	if err != nil {
		return err
	}
	msg, err := wire.EnvironmentName(name)
	if err != nil {
		return err
	}

	// Instantiation resets the server's compression level.
	if err := s.conn.SetCompression(0); err != nil {
		return s.failed(ctx, "make", err)
	}

	s.setState(Connected)
	s.name = name
	s.instance = ""
	s.actionSpace, s.observationSpace = space.Space{}, space.Space{}
	s.clearEpisode()

	if err := s.conn.Send(ctx, msg); err != nil {
		return s.failed(ctx, "make", err)
	}
	if s.instanceAck {
		body, err := s.conn.Receive(ctx)
		if err != nil {
			return s.failed(ctx, "make", err)
		}
		resp, err := wire.Parse(body)
		if err != nil {
			return s.failed(ctx, "make", err)
		}
		if s.instance, err = resp.InstanceID(); err != nil {
			return s.failed(ctx, "make", err)
		}
	}

	action, err := s.querySpace(ctx, wire.EnvironmentActionSpace())
	if err != nil {
		return s.failed(ctx, "make", fmt.Errorf("action space: %w", err))
	}
	observation, err := s.querySpace(ctx, wire.EnvironmentObservationSpace())
	if err != nil {
		return s.failed(ctx, "make", fmt.Errorf("observation space: %w", err))
	}
	s.actionSpace, s.observationSpace = action, observation
	s.setState(Made)

	s.log.InfoContext(ctx, "session.make.ok",
		slog.String("env", name),
		slog.String("instance", s.instance),
		slog.String("action_space", action.String()),
		slog.String("observation_space", observation.String()),
	)
	return nil
}

func (s *Session) querySpace(ctx context.Context, msg wire.Message) (space.Space, error) {
	resp, err := s.exchange(ctx, msg)
	if err != nil {
		return space.Space{}, err
	}
	return resp.Space()
}

func (s *Session) clearEpisode() {
	s.observation = nil
	s.reward = 0
	s.done = false
	s.info = ""
	s.steps = 0
}

// Reset starts a new episode and returns its first observation. Reward, done
// and info are cleared.
func (s *Session) Reset(ctx context.Context) (*wire.Tensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, "reset", Made, Ready)
	if err != nil {
		return nil, err
	}
	resp, err := s.exchange(ctx, wire.EnvironmentReset())
	if err != nil {
		return nil, s.failed(ctx, "reset", err)
	}
	obs, err := resp.Observation(s.observationSpace)
	if err != nil {
		return nil, s.failed(ctx, "reset", err)
	}
	s.clearEpisode()
	s.observation = obs
	s.setState(Ready)

	s.log.DebugContext(ctx, "session.reset.ok")
	s.emit(ctx, Event{Kind: EventReset})
	return obs, nil
}

// Step sends action, encoded for the action space, and records the resulting
// observation, reward, done flag and info. A Discrete action may be a single
// index or a score vector whose first maximum is sent. Stepping after done
// without a Reset is passed through to the server unchanged.
func (s *Session) Step(ctx context.Context, action []float64) (wire.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, "step", Ready)
	if err != nil {
		return wire.StepResult{}, err
	}
	msg, err := wire.Step(action, s.actionSpace, s.render.Load())
	if err != nil {
		return wire.StepResult{}, err
	}
	return s.step(ctx, msg)
}

// StepIndex sends an already reduced Discrete action.
func (s *Session) StepIndex(ctx context.Context, index int) (wire.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, "step", Ready)
	if err != nil {
		return wire.StepResult{}, err
	}
	if err := s.actionSpace.Require(space.Discrete); err != nil {
		return wire.StepResult{}, err
	}
	msg, err := wire.StepDiscrete(index, s.render.Load())
	if err != nil {
		return wire.StepResult{}, err
	}
	return s.step(ctx, msg)
}

func (s *Session) step(ctx context.Context, msg wire.Message) (wire.StepResult, error) {
	s.setState(Stepping)
	defer s.setState(Ready)

	resp, err := s.exchange(ctx, msg)
	if err != nil {
		return wire.StepResult{}, s.failed(ctx, "step", err)
	}
	obs, err := resp.Observation(s.observationSpace)
	if err != nil {
		return wire.StepResult{}, s.failed(ctx, "step", err)
	}
	res, err := resp.StepResult()
	if err != nil {
		return wire.StepResult{}, s.failed(ctx, "step", err)
	}

	s.observation = obs
	s.reward, s.done, s.info = res.Reward, res.Done, res.Info
	s.steps++

	s.log.DebugContext(ctx, "session.step.ok",
		slog.Int("step", s.steps),
		slog.Float64("reward", res.Reward),
		slog.Bool("done", res.Done),
	)
	s.emit(ctx, Event{Kind: EventStep, Step: s.steps, Reward: res.Reward, Done: res.Done, Info: res.Info})
	return res, nil
}

func (s *Session) emit(ctx context.Context, ev Event) {
	if len(s.observers) == 0 {
		return
	}
	ev.Env, ev.Instance, ev.Time = s.name, s.instance, time.Now()
	for _, o := range s.observers {
		if err := o(ctx, ev); err != nil {
			s.log.WarnContext(ctx, "session.observer.fail", slog.String("event", string(ev.Kind)), slog.String("err", err.Error()))
		}
	}
}

// Sample asks the server for a random action from a Discrete action space.
func (s *Session) Sample(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, "sample", Made, Ready)
	if err != nil {
		return 0, err
	}
	if err := s.actionSpace.Require(space.Discrete); err != nil {
		return 0, err
	}
	resp, err := s.exchange(ctx, wire.EnvironmentActionSpaceSample())
	if err != nil {
		return 0, s.failed(ctx, "sample", err)
	}
	n, err := resp.ActionSample(s.actionSpace)
	if err != nil {
		return 0, s.failed(ctx, "sample", err)
	}
	return n, nil
}

// Render toggles the render flag sent with subsequent steps. It sends
// nothing.
func (s *Session) Render() error {
	if s.State() == Closed {
		return ErrSessionClosed
	}
	for {
		v := s.render.Load()
		if s.render.CompareAndSwap(v, !v) {
			return nil
		}
	}
}

// Rendering reports the current render flag.
func (s *Session) Rendering() bool { return s.render.Load() }

// send delivers a one-way control message; the server does not reply.
func (s *Session) send(ctx context.Context, op string, msg wire.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, op, Made, Ready)
	if err != nil {
		return err
	}
	if err := s.conn.Send(ctx, msg); err != nil {
		return s.failed(ctx, op, err)
	}
	s.log.DebugContext(ctx, "session."+op+".ok")
	return nil
}

// Seed seeds the environment's random number generator.
func (s *Session) Seed(ctx context.Context, seed int64) error {
	return s.send(ctx, "seed", wire.EnvironmentSeed(seed))
}

// Compression asks the server to zlib-compress replies at level (0 disables
// compression). Make resets the level to zero.
func (s *Session) Compression(ctx context.Context, level int) error {
	msg, err := wire.ServerCompression(level)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err = s.enter(ctx, "compression", Made, Ready)
	if err != nil {
		return err
	}
	if err := s.conn.SetCompression(level); err != nil {
		return err
	}
	if err := s.conn.Send(ctx, msg); err != nil {
		return s.failed(ctx, "compression", err)
	}
	s.log.DebugContext(ctx, "session.compression.ok", slog.Int("level", level))
	return nil
}

// MonitorStart wraps the environment in a server-side recording monitor.
func (s *Session) MonitorStart(ctx context.Context, directory string, force, resume bool) error {
	return s.send(ctx, "monitor_start", wire.MonitorStart(directory, force, resume))
}

// MonitorClose flushes and closes the recording monitor.
func (s *Session) MonitorClose(ctx context.Context) error {
	return s.send(ctx, "monitor_close", wire.MonitorClose())
}

// RecordEpisodeStatistics enables server-side episode statistics.
func (s *Session) RecordEpisodeStatistics(ctx context.Context) error {
	return s.send(ctx, "record_episode_stats", wire.RecordEpisodeStatisticsStart())
}

// URL returns the location of the recorded episode video.
func (s *Session) URL(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.enter(ctx, "url", Made, Ready)
	if err != nil {
		return "", err
	}
	resp, err := s.exchange(ctx, wire.URL())
	if err != nil {
		return "", s.failed(ctx, "url", err)
	}
	u, err := resp.URL()
	if err != nil {
		return "", s.failed(ctx, "url", err)
	}
	return u, nil
}

// Close sends the close intent when an environment is active and closes the
// connection. Closing a closed Session returns ErrSessionClosed.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.State()
	switch st {
	case Closed:
		return ErrSessionClosed
	case Unconnected:
		s.setState(Closed)
		return nil
	}
	ctx, _ = s.enter(ctx, "close", st)

	var sendErr error
	if st == Made || st == Ready {
		sendErr = s.conn.Send(ctx, wire.EnvironmentClose())
	}
	closeErr := s.conn.Close()
	s.setState(Closed)

	if err := errors.Join(sendErr, closeErr); err != nil {
		return s.failed(ctx, "close", err)
	}
	s.log.InfoContext(ctx, "session.close.ok")
	return nil
}

// Name returns the environment name passed to the last Make.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// InstanceID returns the server-assigned instance identifier, or "" when the
// server did not acknowledge instantiation.
func (s *Session) InstanceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// ActionSpace returns the negotiated action space.
func (s *Session) ActionSpace() space.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actionSpace
}

// ObservationSpace returns the negotiated observation space.
func (s *Session) ObservationSpace() space.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observationSpace
}

// Observation returns the latest observation, or nil before the first Reset.
func (s *Session) Observation() *wire.Tensor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observation
}

// Reward returns the reward of the latest step.
func (s *Session) Reward() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reward
}

// Done reports whether the latest step ended the episode.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Info returns the space-separated info keys of the latest step.
func (s *Session) Info() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Steps returns the number of steps taken since the last Reset.
func (s *Session) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}
