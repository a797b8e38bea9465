package roomserver_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zmagdon/watchparty/internal/roomserver"
	"github.com/zmagdon/watchparty/internal/session"
	"github.com/zmagdon/watchparty/internal/ws"
	"github.com/zmagdon/watchparty/pkg/protocol"
)

type recordingPlayer struct {
	mu       sync.Mutex
	position float64
	paused   bool
	seeks    []float64
}

func (p *recordingPlayer) Position(context.Context) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, true
}

func (p *recordingPlayer) Duration(context.Context) (float64, bool) { return 7200, true }

func (p *recordingPlayer) Paused(context.Context) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused, true
}

func (p *recordingPlayer) SetPaused(_ context.Context, paused bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
	return nil
}

func (p *recordingPlayer) SeekAbsolute(_ context.Context, seconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, seconds)
	p.position = seconds
	return nil
}

func (p *recordingPlayer) SetSpeed(context.Context, float64) error { return nil }
func (p *recordingPlayer) SetVolume(context.Context, int) error    { return nil }
func (p *recordingPlayer) Load(context.Context, string) error      { return nil }

func (p *recordingPlayer) lastSeek() (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.seeks) == 0 {
		return 0, false
	}
	return p.seeks[len(p.seeks)-1], true
}

// One client seeks; the other's session must converge on the echoed
// authoritative state.
func TestEndToEnd_SeekPropagatesAcrossClients(t *testing.T) {
	hub := roomserver.NewHub(context.Background(), zap.NewNop())
	srv := httptest.NewServer(roomserver.SetupRoutes(hub))
	defer srv.Close()
	baseURL := strings.Replace(srv.URL, "http://", "ws://", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// client B: full session with a recording player sitting at 10s
	playerB := &recordingPlayer{position: 10.0, paused: true}
	sessB := session.New(session.Config{
		UserID: "b", Name: "B",
		HeartbeatInterval: 50 * time.Millisecond,
		TickInterval:      time.Hour,
	}, func(ctx context.Context) (ws.Session, error) {
		return ws.Dial(ctx, baseURL, "e2e")
	}, playerB, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- sessB.Run(ctx) }()

	// wait for B's initial state (version 0) to be applied-or-filtered; the
	// first pong settles the offset
	require.Eventually(t, func() bool {
		return sessB.State() == session.StateJoined
	}, 2*time.Second, 10*time.Millisecond)
	time.Sleep(200 * time.Millisecond)

	// client A: raw transport, seeks to 90s
	connA, err := ws.Dial(ctx, baseURL, "e2e")
	require.NoError(t, err)
	defer connA.Close()
	require.NoError(t, connA.Send(ctx, protocol.Message{Type: protocol.TypeJoin, UserID: "a", Name: "A"}))
	require.NoError(t, connA.Send(ctx, protocol.Message{
		Type: protocol.TypeControl, Action: protocol.ActionSeek, PositionMs: 90000,
	}))

	// server echoes {version:N+1, positionMs:90000, updatedBy:"A"}; B's
	// drift is ~80s, far past the hard-seek boundary
	require.Eventually(t, func() bool {
		seek, ok := playerB.lastSeek()
		return ok && seek >= 89.5 && seek <= 91.0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

// Chat is relayed between clients with the sender's name attached.
func TestEndToEnd_ChatAndPresence(t *testing.T) {
	hub := roomserver.NewHub(context.Background(), zap.NewNop())
	srv := httptest.NewServer(roomserver.SetupRoutes(hub))
	defer srv.Close()
	baseURL := strings.Replace(srv.URL, "http://", "ws://", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	playerB := &recordingPlayer{paused: true}
	sessB := session.New(session.Config{
		UserID: "b", Name: "B",
		HeartbeatInterval: time.Hour,
		TickInterval:      time.Hour,
	}, func(ctx context.Context) (ws.Session, error) {
		return ws.Dial(ctx, baseURL, "chatroom")
	}, playerB, zap.NewNop())

	go func() { _ = sessB.Run(ctx) }()
	require.Eventually(t, func() bool {
		return sessB.State() == session.StateJoined
	}, 2*time.Second, 10*time.Millisecond)

	connA, err := ws.Dial(ctx, baseURL, "chatroom")
	require.NoError(t, err)
	defer connA.Close()
	require.NoError(t, connA.Send(ctx, protocol.Message{Type: protocol.TypeJoin, UserID: "a", Name: "A"}))
	require.NoError(t, connA.Send(ctx, protocol.Message{Type: protocol.TypeChat, Text: "movie time"}))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sessB.Events():
			if ev.Kind == session.EventChat && ev.From == "A" && ev.Text == "movie time" {
				return
			}
		case <-deadline:
			t.Fatalf("chat from A never reached B")
		}
	}
}
