package clock

import "testing"

func TestObserve_SymmetricRoundTrip(t *testing.T) {
	// localSend=1000, serverTime=1050, localReceive=1100
	// => rtt=100, offset = 1050 - (1000 + 50) = 0
	s := NewSync()
	s.now = func() int64 { return 1100 }

	s.Observe(1000, 1050)

	if got := s.RTT(); got != 100 {
		t.Fatalf("rtt: got %d, want 100", got)
	}
	if got := s.Offset(); got != 0 {
		t.Fatalf("offset: got %d, want 0", got)
	}

	s.now = func() int64 { return 2000 }
	if got := s.ServerNow(); got != 2000 {
		t.Fatalf("ServerNow: got %d, want 2000", got)
	}
}

func TestObserve_Cases(t *testing.T) {
	cases := []struct {
		name       string
		sent       int64
		serverTime int64
		received   int64
		wantOffset int64
		wantRTT    int64
	}{
		{
			name: "server ahead",
			sent: 1000, serverTime: 2050, received: 1100,
			wantOffset: 1000, wantRTT: 100,
		},
		{
			name: "server behind",
			sent: 5000, serverTime: 4100, received: 5200,
			wantOffset: -1000, wantRTT: 200,
		},
		{
			name: "instant round trip clamps rtt to 1",
			sent: 1000, serverTime: 1000, received: 1000,
			wantOffset: 0, wantRTT: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSync()
			s.now = func() int64 { return tc.received }
			s.Observe(tc.sent, tc.serverTime)
			if got := s.Offset(); got != tc.wantOffset {
				t.Fatalf("offset: got %d, want %d", got, tc.wantOffset)
			}
			if got := s.RTT(); got != tc.wantRTT {
				t.Fatalf("rtt: got %d, want %d", got, tc.wantRTT)
			}
		})
	}
}

func TestObserve_LaterProbeOverwrites(t *testing.T) {
	s := NewSync()
	s.now = func() int64 { return 1100 }
	s.Observe(1000, 2050) // offset +1000

	s.now = func() int64 { return 3100 }
	s.Observe(3000, 3050) // offset 0 again

	if got := s.Offset(); got != 0 {
		t.Fatalf("offset after second probe: got %d, want 0", got)
	}
}
