// Package player defines the capability surface over a local playback engine
// and an mpv-backed implementation of it.
package player

import "context"

// Adapter is the query/command surface the sync core drives. Queries return
// ok=false when the engine is not ready to answer (no file loaded yet, IPC
// hiccup); callers treat that as "skip this cycle", never as a failure.
type Adapter interface {
	Position(ctx context.Context) (seconds float64, ok bool)
	Duration(ctx context.Context) (seconds float64, ok bool)
	Paused(ctx context.Context) (paused bool, ok bool)

	SetPaused(ctx context.Context, paused bool) error
	SeekAbsolute(ctx context.Context, seconds float64) error
	SetSpeed(ctx context.Context, speed float64) error
	SetVolume(ctx context.Context, percent int) error
	Load(ctx context.Context, path string) error
}
