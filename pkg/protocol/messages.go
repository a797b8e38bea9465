package protocol

import "unicode/utf8"

// Wire protocol for a room, JSON over a websocket at <base-url>/room/<roomId>.
//
// Client -> Server
//   join:    userId, name
//   ping:    t (client clock, ms)
//   control: action "PLAY" | "PAUSE" | "SEEK", positionMs for SEEK
//   chat:    text (truncated to 500 chars)
//
// Server -> Client
//   welcome
//   pong:     t (echoed), serverTimeMs
//   presence: users [{name}]
//   chat:     from {name}, text
//   state:    state (RoomState)
//   error:    code, message

const (
	TypeJoin     = "join"
	TypePing     = "ping"
	TypeControl  = "control"
	TypeChat     = "chat"
	TypeWelcome  = "welcome"
	TypePong     = "pong"
	TypePresence = "presence"
	TypeState    = "state"
	TypeError    = "error"
)

const (
	ActionPlay  = "PLAY"
	ActionPause = "PAUSE"
	ActionSeek  = "SEEK"
)

// MaxChatLen is enforced on send; the server may enforce it again.
const MaxChatLen = 500

type User struct {
	Name string `json:"name"`
}

// Message is the single wire envelope for both directions. Fields not used
// by a given type stay zero and are omitted on the wire, which also gives
// us the required decode defaults for free: a state frame with missing
// fields simply unmarshals to zero values.
type Message struct {
	Type string `json:"type"`

	// join
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`

	// ping / pong
	T            int64 `json:"t,omitempty"`
	ServerTimeMs int64 `json:"serverTimeMs,omitempty"`

	// control
	Action     string `json:"action,omitempty"`
	PositionMs int64  `json:"positionMs,omitempty"`

	// chat
	Text string `json:"text,omitempty"`
	From *User  `json:"from,omitempty"`

	// presence
	Users []User `json:"users,omitempty"`

	// state
	State *RoomState `json:"state,omitempty"`

	// error
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// TruncateChat caps a chat line at MaxChatLen runes the way the clients do
// before sending. Cutting on a rune boundary keeps the wire payload valid
// UTF-8.
func TruncateChat(text string) string {
	if utf8.RuneCountInString(text) <= MaxChatLen {
		return text
	}
	return string([]rune(text)[:MaxChatLen])
}
