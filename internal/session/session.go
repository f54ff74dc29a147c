// Package session implements the Device Session (C8): the state machine,
// reconnect backoff, heartbeat and framed-protocol plumbing shared by every
// simulator/eye-tracker transport, spec.md §4.8. Grounded on the teacher's
// WebSocketClient's connect/reconnect-channel shape in
// internal/providers/kraken/websocket.go, generalized from a single
// exchange feed to an arbitrary framed transport. An earlier revision
// wrapped the transport connect call in a sony/gobreaker breaker (matching
// infra/breakers' settings shape); that was dropped because gobreaker
// times its Open->HalfOpen transition off time.Now() with no clock
// injection hook, which can't be driven by this package's VirtualClock in
// tests. The attempts/backoff state machine in onTransportFail and
// scheduleReconnect already gates "too many consecutive failures" the same
// way a breaker would, so dropping it costs nothing.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/synopticon/telemetry-fusion/internal/clock"
	"github.com/synopticon/telemetry-fusion/internal/metrics"
)

// State is one node of the Device Session state machine, spec.md §4.8.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
	StateError         State = "error"
	StateFailed        State = "failed"
)

// ErrFrameTooLarge is returned by a Transport's frame reader when a single
// frame exceeds MaxFrameBytes, spec.md §4.8.
var ErrFrameTooLarge = errors.New("frame-too-large")

// MaxFrameBytes bounds a single protocol frame, spec.md §4.8.
const MaxFrameBytes = 1 << 20 // 1 MiB

// ReconnectConfig controls the reconnect backoff schedule, spec.md §4.8.
type ReconnectConfig struct {
	Enabled     bool
	Base        time.Duration
	Max         time.Duration
	Backoff     float64
	AttemptsMax int
}

// DefaultReconnectConfig matches spec.md §4.8's documented defaults.
var DefaultReconnectConfig = ReconnectConfig{
	Enabled:     true,
	Base:        5 * time.Second,
	Max:         30 * time.Second,
	Backoff:     1.5,
	AttemptsMax: 10,
}

// Config bundles session-level timeouts and reconnect policy, spec.md §5/§6.
type Config struct {
	Reconnect        ReconnectConfig
	ConnectTimeout   time.Duration
	HeartbeatInterval time.Duration
	FrameReadTimeout time.Duration
	DisconnectWait   time.Duration
	MockMode         bool
}

func (c Config) withDefaults() Config {
	if c.Reconnect.Base == 0 && c.Reconnect.Max == 0 && c.Reconnect.Backoff == 0 && c.Reconnect.AttemptsMax == 0 {
		c.Reconnect = DefaultReconnectConfig
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 5 * time.Second
	}
	if c.FrameReadTimeout <= 0 {
		c.FrameReadTimeout = 30 * time.Second
	}
	if c.DisconnectWait <= 0 {
		c.DisconnectWait = 2 * time.Second
	}
	return c
}

// Transport is the minimal contract every simulator/eye-tracker client
// implements, spec.md §4.8: "the transport layer provides send(bytes)->bool
// and on_message(bytes) only."
type Transport interface {
	// Connect establishes the underlying link (TCP/UDP/WS/pipe). It must
	// respect ctx's deadline.
	Connect(ctx context.Context) error
	// Send writes one already-framed message. Returns false (not an
	// error) on a transient write failure the caller should treat as a
	// transport_fail.
	Send(ctx context.Context, frame []byte) bool
	// Receive blocks for the next inbound frame, or returns an error
	// (including ErrFrameTooLarge) on failure.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases the underlying link. Idempotent.
	Close() error
}

// OnMessage is invoked with every inbound frame while Connected.
type OnMessage func(frame []byte)

// OnStateChange is invoked whenever the session transitions states.
type OnStateChange func(from, to State)

// Session drives one Transport through the Device Session state machine.
type Session struct {
	name      string
	cfg       Config
	transport Transport
	clk       clock.Clock
	log       zerolog.Logger
	metrics   *metrics.Registry

	onMessage     OnMessage
	onStateChange OnStateChange

	mu       sync.Mutex
	state    State
	attempts int

	cancelIngest   context.CancelFunc
	reconnectGen   int64 // bumped on every disconnect/connect to invalidate stale reconnect timers
	lastActivityNs atomic.Int64
	wg             sync.WaitGroup
}

// New builds a Session around transport, idle in Disconnected.
func New(name string, cfg Config, transport Transport, clk clock.Clock, log zerolog.Logger) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		name:      name,
		cfg:       cfg,
		transport: transport,
		clk:       clk,
		log:       log.With().Str("component", "device-session").Str("session", name).Logger(),
		state:     StateDisconnected,
	}
}

// SetMetrics wires a Registry for reconnect/heartbeat instrumentation. Nil
// (the default) disables it.
func (s *Session) SetMetrics(m *metrics.Registry) { s.metrics = m }

// OnMessage registers the inbound-frame callback.
func (s *Session) OnMessage(fn OnMessage) { s.onMessage = fn }

// OnStateChange registers the state-transition callback.
func (s *Session) OnStateChange(fn OnStateChange) { s.onStateChange = fn }

// Clock returns the clock this session was constructed with, so callers
// wiring dependent components (e.g. an Adaptive Batcher) share the same
// time source rather than defaulting to the wall clock.
func (s *Session) Clock() clock.Clock { return s.clk }

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect transitions Disconnected|Error -> Connecting and attempts the
// transport connection. connect();connect() is a no-op while already
// Connected, spec.md §8 round-trip law.
func (s *Session) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	if s.state != StateDisconnected && s.state != StateError {
		s.mu.Unlock()
		return
	}
	s.setState(StateConnecting)
	s.mu.Unlock()

	s.attemptConnect(ctx)
}

func (s *Session) attemptConnect(ctx context.Context) {
	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	err := s.transport.Connect(connectCtx)

	if err != nil {
		s.log.Warn().Err(err).Msg("transport connect failed")
		s.onTransportFail(ctx)
		return
	}

	s.mu.Lock()
	s.attempts = 0
	s.setState(StateConnected)
	genAtEntry := s.reconnectGen
	s.mu.Unlock()
	s.lastActivityNs.Store(s.clk.NowNs())

	ingestCtx, cancelIngest := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelIngest = cancelIngest
	s.mu.Unlock()

	s.wg.Add(2)
	go s.ingestLoop(ingestCtx)
	go s.heartbeatLoop(ingestCtx, genAtEntry)
}

// onTransportFail implements the Error + reconnect-or-Failed branch,
// spec.md §4.8.
func (s *Session) onTransportFail(ctx context.Context) {
	s.mu.Lock()
	s.setState(StateError)
	s.attempts++
	attempts := s.attempts
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordReconnectAttempt(s.name)
	}

	if !s.cfg.Reconnect.Enabled || attempts > s.cfg.Reconnect.AttemptsMax {
		s.mu.Lock()
		s.setState(StateFailed)
		s.mu.Unlock()
		return
	}

	delay := backoffDelay(s.cfg.Reconnect, attempts-1)
	s.scheduleReconnect(ctx, delay)
}

// backoffDelay computes min(base*backoff^attempt, max), spec.md §4.8/§8
// scenario 6.
func backoffDelay(cfg ReconnectConfig, attempt int) time.Duration {
	d := float64(cfg.Base)
	for i := 0; i < attempt; i++ {
		d *= cfg.Backoff
	}
	if time.Duration(d) > cfg.Max {
		return cfg.Max
	}
	return time.Duration(d)
}

// scheduleReconnect arms exactly one reconnect timer (invariant 4: ≤1
// concurrent reconnect timer per session). Bumping reconnectGen on every
// disconnect/fresh-connect invalidates any timer that fires after a
// newer attempt has already superseded it.
func (s *Session) scheduleReconnect(ctx context.Context, delay time.Duration) {
	s.mu.Lock()
	s.reconnectGen++
	myGen := s.reconnectGen
	s.mu.Unlock()

	timer := s.clk.After(delay)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-timer:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.reconnectGen != myGen || s.state != StateError {
			s.mu.Unlock()
			return
		}
		s.setState(StateConnecting)
		s.mu.Unlock()
		s.attemptConnect(ctx)
	}()
}

// Disconnect is cancellation-safe: Disconnecting -> stop tasks -> close
// transport -> Disconnected, bounded by DisconnectWait, spec.md §5.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateDisconnected {
		s.mu.Unlock()
		return
	}
	s.setState(StateDisconnecting)
	s.reconnectGen++ // invalidate any pending reconnect timer
	cancel := s.cancelIngest
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-s.clk.After(s.cfg.DisconnectWait):
	}

	_ = s.transport.Close()

	s.mu.Lock()
	s.setState(StateDisconnected)
	s.mu.Unlock()
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if s.onStateChange != nil && from != to {
		cb := s.onStateChange
		go cb(from, to)
	}
}

// ingestLoop owns the one ingestion task per Device Session, spec.md §5.
func (s *Session) ingestLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := s.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn().Err(err).Msg("transport receive failed")
			s.onTransportFail(ctx)
			return
		}
		s.lastActivityNs.Store(s.clk.NowNs())
		if s.onMessage != nil {
			s.onMessage(frame)
		}
	}
}

// heartbeatLoop owns the one heartbeat task per Device Session. Any inbound
// frame counts as liveness; a gap of 2x the heartbeat interval with no
// activity demotes Connected -> Disconnected then the reconnect logic,
// spec.md §4.8.
func (s *Session) heartbeatLoop(ctx context.Context, gen int64) {
	defer s.wg.Done()
	missDeadline := 2 * s.cfg.HeartbeatInterval

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clk.After(s.cfg.HeartbeatInterval):
		}

		s.mu.Lock()
		if s.reconnectGen != gen || s.state != StateConnected {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		elapsed := time.Duration(s.clk.NowNs() - s.lastActivityNs.Load())
		if elapsed >= missDeadline {
			s.log.Warn().Msg("heartbeat missed")
			if s.metrics != nil {
				s.metrics.RecordHeartbeatMiss(s.name)
			}
			s.mu.Lock()
			s.setState(StateDisconnected)
			s.mu.Unlock()
			s.onTransportFail(ctx)
			return
		}
	}
}

// Send publishes a command frame through the transport, spec.md §4.8.
func (s *Session) Send(ctx context.Context, frame []byte) bool {
	if s.State() != StateConnected {
		return false
	}
	return s.transport.Send(ctx, frame)
}
