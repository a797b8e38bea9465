package engine

import (
	"context"
	"math"

	"github.com/zmagdon/watchparty/internal/player"
	"github.com/zmagdon/watchparty/pkg/protocol"
)

// Sender is where outgoing control messages go.
type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

// Dispatcher turns local user intents into outgoing control messages. It
// never mutates local playback state itself: the UI reflects only the next
// server-confirmed RoomState, so two racing clients cannot diverge on
// assumed state.
type Dispatcher struct {
	sender Sender
	player player.Adapter
}

func NewDispatcher(sender Sender, p player.Adapter) *Dispatcher {
	return &Dispatcher{sender: sender, player: p}
}

func (d *Dispatcher) SendPlay(ctx context.Context) error {
	return d.sender.Send(ctx, protocol.Message{Type: protocol.TypeControl, Action: protocol.ActionPlay})
}

func (d *Dispatcher) SendPause(ctx context.Context) error {
	return d.sender.Send(ctx, protocol.Message{Type: protocol.TypeControl, Action: protocol.ActionPause})
}

func (d *Dispatcher) SendSeek(ctx context.Context, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	return d.sender.Send(ctx, protocol.Message{
		Type:       protocol.TypeControl,
		Action:     protocol.ActionSeek,
		PositionMs: int64(math.Round(seconds * 1000)),
	})
}

// SendSeekRelative reads the live position best-effort (0 when the player
// cannot answer) and seeks to local+delta, floored at zero. Racing an
// in-flight reconciliation is fine: the server's next state wins anyway.
func (d *Dispatcher) SendSeekRelative(ctx context.Context, delta float64) error {
	cur, ok := d.player.Position(ctx)
	if !ok {
		cur = 0
	}
	target := cur + delta
	if target < 0 {
		target = 0
	}
	return d.SendSeek(ctx, target)
}

// SendSeekFraction seeks to a fraction of the media duration, for slider
// style seeks. Skipped silently when the duration is not known yet.
func (d *Dispatcher) SendSeekFraction(ctx context.Context, frac float64) error {
	dur, ok := d.player.Duration(ctx)
	if !ok || dur <= 0 {
		return nil
	}
	return d.SendSeek(ctx, dur*clamp(frac, 0, 1))
}

func (d *Dispatcher) SendChat(ctx context.Context, text string) error {
	return d.sender.Send(ctx, protocol.Message{
		Type: protocol.TypeChat,
		Text: protocol.TruncateChat(text),
	})
}
