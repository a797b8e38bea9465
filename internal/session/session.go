// Package session owns one connection to a room: the state machine, the
// inbound/probe/tick loops, and the bounded intent queue feeding the
// dispatcher. Everything that used to be ambient (offset, last version,
// open connection) lives as fields here.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zmagdon/watchparty/internal/clock"
	"github.com/zmagdon/watchparty/internal/engine"
	"github.com/zmagdon/watchparty/internal/player"
	"github.com/zmagdon/watchparty/internal/ws"
	"github.com/zmagdon/watchparty/pkg/protocol"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateJoined       State = "joined"
)

// ErrAlreadyRunning is returned by Run when the session is not in
// Disconnected.
var ErrAlreadyRunning = errors.New("session: already running")

// Dialer opens the transport. Injectable for tests.
type Dialer func(ctx context.Context) (ws.Session, error)

type Config struct {
	UserID            string
	Name              string
	HeartbeatInterval time.Duration // ping cadence, default 25s
	TickInterval      time.Duration // local position re-read cadence, default 250ms
}

const (
	defaultHeartbeat = 25 * time.Second
	defaultTick      = 250 * time.Millisecond
	intentQueueSize  = 16
	eventBufferSize  = 32
)

type Session struct {
	cfg    Config
	dial   Dialer
	player player.Adapter
	log    *zap.Logger

	clock *clock.Sync
	recon *engine.Reconciler

	intents chan Intent
	events  chan Event

	lastPosMs atomic.Int64 // last observed local position, -1 until seen

	mu    sync.Mutex
	state State
}

func New(cfg Config, dial Dialer, p player.Adapter, log *zap.Logger) *Session {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeat
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTick
	}
	s := &Session{
		cfg:     cfg,
		dial:    dial,
		player:  p,
		log:     log,
		intents: make(chan Intent, intentQueueSize),
		events:  make(chan Event, eventBufferSize),
		state:   StateDisconnected,
	}
	s.lastPosMs.Store(-1)
	return s
}

// Events is where presence, chat, applied states, server errors and ticks
// come out. The session never blocks on a slow consumer; events are dropped
// when the buffer is full.
func (s *Session) Events() <-chan Event { return s.events }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastPosition is the most recent locally observed position, false before
// any observation. Survives disconnect, which is what the resume store wants.
func (s *Session) LastPosition() (float64, bool) {
	ms := s.lastPosMs.Load()
	if ms < 0 {
		return 0, false
	}
	return float64(ms) / 1000.0, true
}

// Do enqueues a user intent. Reports false when the session is not joined or
// the queue is full; the intent is dropped rather than blocked on.
func (s *Session) Do(in Intent) bool {
	if s.State() != StateJoined {
		return false
	}
	select {
	case s.intents <- in:
		return true
	default:
		return false
	}
}

// Run connects, joins, and drives all session loops until the context is
// cancelled or the transport fails. The transport is released on every exit
// path. Run may be called again after it returns; each run starts with a
// fresh clock estimate and version filter.
func (s *Session) Run(ctx context.Context) (err error) {
	if !s.transition(StateDisconnected, StateConnecting) {
		return ErrAlreadyRunning
	}
	defer s.setState(StateDisconnected)

	s.clock = clock.NewSync()
	s.recon = engine.NewReconciler()
	s.drainIntents()

	conn, dialErr := s.dial(ctx)
	if dialErr != nil {
		return fmt.Errorf("connect: %w", dialErr)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	join := protocol.Message{Type: protocol.TypeJoin, UserID: s.cfg.UserID, Name: s.cfg.Name}
	if err := conn.Send(ctx, join); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	s.setState(StateJoined)
	s.log.Info("joined room", zap.String("name", s.cfg.Name), zap.String("userId", s.cfg.UserID))

	corr := engine.NewCorrector(s.clock, s.player, s.log)
	disp := engine.NewDispatcher(conn, s.player)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(ctx, conn, corr) })
	g.Go(func() error { return s.pingLoop(ctx, conn) })
	g.Go(func() error { return s.tickLoop(ctx) })
	g.Go(func() error { return s.intentLoop(ctx, disp) })
	return g.Wait()
}

func (s *Session) readLoop(ctx context.Context, conn ws.Session, corr *engine.Corrector) error {
	for {
		msg, err := conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, ws.ErrMalformed) {
				s.log.Warn("dropping malformed message", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}
		s.handle(ctx, msg, corr)
	}
}

func (s *Session) handle(ctx context.Context, msg protocol.Message, corr *engine.Corrector) {
	switch msg.Type {
	case protocol.TypeWelcome:
		s.log.Debug("welcome")

	case protocol.TypePong:
		s.clock.Observe(msg.T, msg.ServerTimeMs)
		s.log.Debug("pong", zap.Int64("offset", s.clock.Offset()), zap.Int64("rtt", s.clock.RTT()))

	case protocol.TypePresence:
		names := make([]string, 0, len(msg.Users))
		for _, u := range msg.Users {
			names = append(names, u.Name)
		}
		s.emit(Event{Kind: EventPresence, Users: names})

	case protocol.TypeChat:
		from := "?"
		if msg.From != nil {
			from = msg.From.Name
		}
		s.emit(Event{Kind: EventChat, From: from, Text: msg.Text})

	case protocol.TypeState:
		if msg.State == nil {
			return
		}
		snap, outcome := s.recon.Apply(*msg.State)
		if outcome == engine.OutcomeStale {
			s.log.Debug("stale state", zap.Int64("version", msg.State.Version))
			return
		}
		corr.Correct(ctx, snap)
		s.emit(Event{
			Kind:    EventStateApplied,
			Version: snap.Version,
			Playing: snap.IsPlaying,
			Target:  engine.TargetSeconds(snap, s.clock.ServerNow()),
			By:      snap.UpdatedBy,
		})

	case protocol.TypeError:
		// surfaced, never session-fatal
		s.emit(Event{Kind: EventServerError, Code: msg.Code, Text: msg.Message})

	default:
		s.log.Debug("ignoring message", zap.String("type", msg.Type))
	}
}

func (s *Session) pingLoop(ctx context.Context, conn ws.Session) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		if err := conn.Send(ctx, protocol.Message{Type: protocol.TypePing, T: clock.NowMs()}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ping: %w", err)
		}
		// a lost probe costs nothing; the next tick just tries again
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Session) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pos, ok := s.player.Position(ctx)
		if !ok {
			continue
		}
		s.lastPosMs.Store(int64(pos * 1000))
		dur, _ := s.player.Duration(ctx)
		s.emit(Event{Kind: EventTick, Position: pos, Duration: dur})
	}
}

func (s *Session) intentLoop(ctx context.Context, disp *engine.Dispatcher) error {
	for {
		var in Intent
		select {
		case <-ctx.Done():
			return nil
		case in = <-s.intents:
		}

		var err error
		switch in.Kind {
		case IntentPlay:
			err = disp.SendPlay(ctx)
		case IntentPause:
			err = disp.SendPause(ctx)
		case IntentSeek:
			err = disp.SendSeek(ctx, in.Seconds)
		case IntentSeekRelative:
			err = disp.SendSeekRelative(ctx, in.Seconds)
		case IntentSeekFraction:
			err = disp.SendSeekFraction(ctx, in.Seconds)
		case IntentChat:
			err = disp.SendChat(ctx, in.Text)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatch: %w", err)
		}
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		// consumer is behind; drop rather than stall a loop
	}
}

func (s *Session) drainIntents() {
	for {
		select {
		case <-s.intents:
		default:
			return
		}
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) transition(from, to State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}
