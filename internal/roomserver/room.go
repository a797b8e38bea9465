// Package roomserver is a small authoritative room server speaking the same
// wire protocol as the client. It exists for local testing and the
// integration tests; a deployment would normally point clients at the hosted
// room service instead.
package roomserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/zmagdon/watchparty/internal/clock"
	"github.com/zmagdon/watchparty/pkg/protocol"
)

type Msg interface{ isRoomMsg() }

type Join struct {
	ClientID string
	Name     string
	Outbox   chan protocol.Message // where this client receives frames
}

func (Join) isRoomMsg() {}

type Leave struct{ ClientID string }

func (Leave) isRoomMsg() {}

// Inbound is a frame read from one client's websocket.
type Inbound struct {
	ClientID string
	Msg      protocol.Message
}

func (Inbound) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetView reflects internal state without data races; test-only.
type GetView struct {
	Reply chan View
}

func (GetView) isRoomMsg() {}

type View struct {
	State      protocol.RoomState
	NumClients int
}

type roomClient struct {
	name   string
	outbox chan protocol.Message
}

type Room struct {
	inbox   chan Msg
	state   protocol.RoomState
	clients map[string]roomClient
	log     *zap.Logger
	now     func() int64
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewRoom(parent context.Context, log *zap.Logger) *Room {
	return newRoom(parent, log, clock.NowMs)
}

func newRoom(parent context.Context, log *zap.Logger, now func() int64) *Room {
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		inbox:   make(chan Msg, 64),
		clients: make(map[string]roomClient),
		log:     log,
		now:     now,
		ctx:     ctx,
		cancel:  cancel,
	}
	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.clients[msg.ClientID] = roomClient{name: msg.Name, outbox: msg.Outbox}
				r.sendTo(msg.ClientID, protocol.Message{Type: protocol.TypeWelcome})
				r.sendTo(msg.ClientID, r.stateFrame())
				r.broadcast(r.presenceFrame())

			case Leave:
				if c, ok := r.clients[msg.ClientID]; ok {
					close(c.outbox) // ends the connection's writer
					delete(r.clients, msg.ClientID)
				}
				r.broadcast(r.presenceFrame())

			case Inbound:
				r.handleInbound(msg.ClientID, msg.Msg)

			case GetView:
				msg.Reply <- View{State: r.state, NumClients: len(r.clients)}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleInbound(clientID string, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePing:
		r.sendTo(clientID, protocol.Message{
			Type:         protocol.TypePong,
			T:            msg.T,
			ServerTimeMs: r.now(),
		})

	case protocol.TypeControl:
		if !r.applyControl(clientID, msg) {
			r.sendTo(clientID, protocol.Message{
				Type: protocol.TypeError, Code: "bad_action", Message: "unknown control action",
			})
			return
		}
		r.log.Debug("state updated",
			zap.Int64("version", r.state.Version),
			zap.Bool("playing", r.state.IsPlaying),
			zap.Int64("positionMs", r.state.PositionMs),
			zap.String("by", r.state.UpdatedBy),
		)
		r.broadcast(r.stateFrame())

	case protocol.TypeChat:
		name := r.clients[clientID].name
		r.broadcast(protocol.Message{
			Type: protocol.TypeChat,
			From: &protocol.User{Name: name},
			Text: protocol.TruncateChat(msg.Text),
		})

	case protocol.TypeJoin:
		// duplicate join from a registered client; nothing to do

	default:
		r.sendTo(clientID, protocol.Message{
			Type: protocol.TypeError, Code: "bad_type", Message: "unknown message type",
		})
	}
}

// applyControl advances the room state. Position is settled to "now" first
// so pausing freezes the extrapolated position, not the stale base value.
func (r *Room) applyControl(clientID string, msg protocol.Message) bool {
	now := r.now()
	if r.state.IsPlaying {
		elapsed := now - r.state.UpdatedAt
		if elapsed > 0 {
			r.state.PositionMs += elapsed
		}
	}

	switch msg.Action {
	case protocol.ActionPlay:
		r.state.IsPlaying = true
	case protocol.ActionPause:
		r.state.IsPlaying = false
	case protocol.ActionSeek:
		pos := msg.PositionMs
		if pos < 0 {
			pos = 0
		}
		r.state.PositionMs = pos
	default:
		return false
	}

	r.state.Version++
	r.state.UpdatedAt = now
	r.state.UpdatedBy = r.clients[clientID].name
	return true
}

func (r *Room) stateFrame() protocol.Message {
	st := r.state
	return protocol.Message{Type: protocol.TypeState, State: &st}
}

func (r *Room) presenceFrame() protocol.Message {
	users := make([]protocol.User, 0, len(r.clients))
	for _, c := range r.clients {
		users = append(users, protocol.User{Name: c.name})
	}
	return protocol.Message{Type: protocol.TypePresence, Users: users}
}

func (r *Room) sendTo(clientID string, msg protocol.Message) {
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	select {
	case c.outbox <- msg:
	default:
		// client is slow/full - drop them
		close(c.outbox)
		delete(r.clients, clientID)
	}
}

func (r *Room) broadcast(msg protocol.Message) {
	for id, c := range r.clients {
		select {
		case c.outbox <- msg:
		default:
			close(c.outbox)
			delete(r.clients, id)
		}
	}
}

func (r *Room) shutdown() {
	for id, c := range r.clients {
		close(c.outbox)
		delete(r.clients, id)
	}
	r.cancel()
}
