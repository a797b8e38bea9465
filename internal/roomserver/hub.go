package roomserver

import (
	"context"

	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

type EnsureRoom struct {
	ID    string
	Reply chan *Room
}

type GetRoom struct {
	ID    string
	Reply chan *Room
}

type RemoveRoom struct {
	ID string
}

type ShutdownHub struct{}

func (EnsureRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of live rooms. Rooms come into existence the first time
// someone joins them, which matches how the hosted service behaves.
type Hub struct {
	inbox  chan HubMsg
	rooms  map[string]*Room
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*Room),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureRoom:
				if rm := h.rooms[msg.ID]; rm != nil {
					msg.Reply <- rm
					break
				}
				rm := NewRoom(h.ctx, h.log.With(zap.String("room", msg.ID)))
				h.rooms[msg.ID] = rm
				h.log.Info("room created", zap.String("room", msg.ID))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.ID] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.ID)

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Inbox() <- Shutdown{}
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}
