package roomserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zmagdon/watchparty/pkg/protocol"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 90 * time.Second // clients ping every 25s
)

// WSHandler upgrades /room/{roomID} and bridges the connection into the
// room actor. The first client frame must be a join carrying the display
// name.
func WSHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		reply := make(chan *Room, 1)
		h.Inbox() <- EnsureRoom{ID: roomID, Reply: reply}
		rm := <-reply

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		join, ok := readFrame(r.Context(), conn)
		if !ok || join.Type != protocol.TypeJoin {
			_ = writeFrame(r.Context(), conn, protocol.Message{
				Type: protocol.TypeError, Code: "bad_join", Message: "expected a join message first",
			})
			return
		}
		name := join.Name
		if name == "" {
			name = "anon"
		}

		out := make(chan protocol.Message, 8)
		clientID := uuid.NewString()

		rm.Inbox() <- Join{ClientID: clientID, Name: name, Outbox: out}
		defer func() { rm.Inbox() <- Leave{ClientID: clientID} }()

		// writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range out {
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = writeFrame(ctx, conn, msg)
				cancel()
			}
		}()

		// reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var msg protocol.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = writeFrame(r.Context(), conn, protocol.Message{
					Type: protocol.TypeError, Code: "bad_json", Message: "undecodable payload",
				})
				continue
			}
			rm.Inbox() <- Inbound{ClientID: clientID, Msg: msg}
		}
	}
}

func readFrame(ctx context.Context, conn *websocket.Conn) (protocol.Message, bool) {
	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	if err != nil {
		return protocol.Message{}, false
	}
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return protocol.Message{}, false
	}
	return msg, true
}

func writeFrame(ctx context.Context, conn *websocket.Conn, msg protocol.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, payload)
}
