package session

// Intent is a queued user action. Intents are requests, not truth: nothing
// local changes until the server echoes a new state.
type Intent struct {
	Kind    IntentKind
	Seconds float64 // seek target, delta, or fraction depending on Kind
	Text    string  // chat
}

type IntentKind int

const (
	IntentPlay IntentKind = iota
	IntentPause
	IntentSeek
	IntentSeekRelative
	IntentSeekFraction
	IntentChat
)

// Event is what the session surfaces to its consumer (CLI, UI).
type Event struct {
	Kind EventKind

	// EventStateApplied
	Version int64
	Playing bool
	Target  float64
	By      string

	// EventChat / EventServerError
	From string
	Text string
	Code string

	// EventPresence
	Users []string

	// EventTick
	Position float64
	Duration float64
}

type EventKind int

const (
	EventStateApplied EventKind = iota
	EventChat
	EventPresence
	EventServerError
	EventTick
)
