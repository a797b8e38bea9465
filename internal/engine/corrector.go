package engine

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/zmagdon/watchparty/internal/player"
	"github.com/zmagdon/watchparty/pkg/protocol"
)

// Clock provides the estimated server time used to extrapolate targets.
type Clock interface {
	ServerNow() int64
}

// Smooth-speed correction policy. Of the two policies the source family
// shipped (hard-seek with a 0.6s dead zone, and this one) we keep exactly
// one: small drift is absorbed by a speed nudge instead of a visible seek,
// and only drift past hardSeekSeconds forces a hard correction.
const (
	deadZoneSeconds = 0.25
	hardSeekSeconds = 1.5
	speedGain       = 0.10
	maxSpeedDelta   = 0.10
)

// Corrector compares the extrapolated target position against the live
// player position and issues correction commands.
type Corrector struct {
	clock  Clock
	player player.Adapter
	log    *zap.Logger
}

func NewCorrector(clock Clock, p player.Adapter, log *zap.Logger) *Corrector {
	return &Corrector{clock: clock, player: p, log: log}
}

// TargetSeconds extrapolates where playback should be right now. While
// playing, the snapshot position advances with server time since UpdatedAt;
// paused state pins it.
func TargetSeconds(st protocol.RoomState, serverNow int64) float64 {
	targetMs := st.PositionMs
	if st.IsPlaying {
		elapsed := serverNow - st.UpdatedAt
		if elapsed > 0 {
			targetMs += elapsed
		}
	}
	if targetMs < 0 {
		targetMs = 0
	}
	return float64(targetMs) / 1000.0
}

// Correct reads the live player observation and drives it toward the
// snapshot. If the player cannot answer, the cycle is skipped; the next
// state or tick retries.
func (c *Corrector) Correct(ctx context.Context, st protocol.RoomState) {
	cur, ok := c.player.Position(ctx)
	if !ok {
		return
	}
	paused, ok := c.player.Paused(ctx)
	if !ok {
		return
	}

	// Play/pause reconciliation happens before any position math.
	if st.IsPlaying && paused {
		_ = c.player.SetPaused(ctx, false)
	} else if !st.IsPlaying && !paused {
		_ = c.player.SetPaused(ctx, true)
	}

	target := TargetSeconds(st, c.clock.ServerNow())
	drift := target - cur

	switch {
	case math.Abs(drift) < deadZoneSeconds:
		_ = c.player.SetSpeed(ctx, 1.0)
	case math.Abs(drift) < hardSeekSeconds:
		speed := 1.0 + clamp(drift*speedGain, -maxSpeedDelta, maxSpeedDelta)
		_ = c.player.SetSpeed(ctx, speed)
	default:
		_ = c.player.SetSpeed(ctx, 1.0)
		_ = c.player.SeekAbsolute(ctx, target)
	}

	c.log.Debug("corrected",
		zap.Int64("version", st.Version),
		zap.Bool("playing", st.IsPlaying),
		zap.Float64("target", target),
		zap.Float64("drift", drift),
		zap.String("by", st.UpdatedBy),
	)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
