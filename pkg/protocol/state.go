package protocol

// RoomState is the authoritative, server-issued playback state. Version is a
// strictly increasing ordinal; PositionMs is the position at UpdatedAt in
// server-clock milliseconds. Clients never treat their own intents as truth,
// only the next RoomState.
type RoomState struct {
	Version    int64  `json:"version"`
	IsPlaying  bool   `json:"isPlaying"`
	PositionMs int64  `json:"positionMs"`
	UpdatedAt  int64  `json:"updatedAt"`
	UpdatedBy  string `json:"updatedBy"`
}
