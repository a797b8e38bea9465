package clock

import (
	"sync"
	"time"
)

// NowMs is the local wall clock in milliseconds, the unit everything on the
// wire uses.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// Sync estimates the offset between the local clock and the server clock from
// ping/pong round trips. Each successful probe overwrites the estimate
// outright; with a single sample per round trip there is nothing worth
// averaging, and an overwrite recovers immediately after a clock step.
type Sync struct {
	mu     sync.RWMutex
	offset int64
	rtt    int64
	now    func() int64
}

func NewSync() *Sync {
	return &Sync{now: NowMs}
}

// Observe records one completed probe round trip. t is the local send time
// carried in the ping, serverTimeMs the server clock from the pong.
func (s *Sync) Observe(t, serverTimeMs int64) {
	rtt := s.nowMs() - t
	if rtt < 1 {
		rtt = 1
	}

	s.mu.Lock()
	s.rtt = rtt
	s.offset = serverTimeMs - (t + rtt/2)
	s.mu.Unlock()
}

// Offset is the current estimate of serverClock - localClock in ms.
// Zero until the first pong arrives.
func (s *Sync) Offset() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offset
}

// RTT is the round-trip time of the last successful probe.
func (s *Sync) RTT() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rtt
}

// ServerNow is the estimated current server time in milliseconds.
func (s *Sync) ServerNow() int64 {
	return s.nowMs() + s.Offset()
}

func (s *Sync) nowMs() int64 {
	if s.now != nil {
		return s.now()
	}
	return NowMs()
}
