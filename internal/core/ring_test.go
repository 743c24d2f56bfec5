package core

import (
	"math"
	"testing"
)

func TestRingDebounce(t *testing.T) {
	var r dropRing

	if !r.Push(1000) {
		t.Fatal("first edge rejected")
	}
	if r.Push(1030) {
		t.Error("edge 30ms after previous should be discarded as bounce")
	}
	if r.Push(1050) {
		t.Error("edge exactly 50ms after previous should be discarded")
	}
	if !r.Push(1051) {
		t.Error("edge 51ms after previous should be accepted")
	}
	if got := r.Len(); got != 2 {
		t.Errorf("ring length %d, want 2", got)
	}
}

func TestRingDrainOrderAndReseed(t *testing.T) {
	var r dropRing

	for i := int64(0); i < 5; i++ {
		r.Push(1000 + i*500)
	}

	ts := r.Drain()
	if len(ts) != 5 {
		t.Fatalf("drained %d timestamps, want 5", len(ts))
	}
	for i := 1; i < len(ts); i++ {
		if ts[i] <= ts[i-1] {
			t.Fatalf("timestamps not monotonic: %v", ts)
		}
	}

	if r.Len() != 0 {
		t.Errorf("ring not empty after drain, length %d", r.Len())
	}

	r.Reseed(ts[len(ts)-1])
	if r.Len() != 1 {
		t.Errorf("ring length %d after reseed, want 1", r.Len())
	}
	if got := r.Drain(); len(got) != 1 || got[0] != ts[len(ts)-1] {
		t.Errorf("reseeded timestamp = %v, want [%d]", got, ts[len(ts)-1])
	}
}

func TestRingOverflowDropsOldest(t *testing.T) {
	var r dropRing

	total := DropRingCapacity + 5
	for i := 0; i < total; i++ {
		r.Push(int64(1000 + i*100))
	}

	if r.Len() != DropRingCapacity {
		t.Fatalf("ring length %d, want capacity %d", r.Len(), DropRingCapacity)
	}

	ts := r.Drain()
	// The oldest 5 entries must have been overwritten.
	if ts[0] != int64(1000+5*100) {
		t.Errorf("oldest surviving timestamp = %d, want %d", ts[0], 1000+5*100)
	}
	if ts[len(ts)-1] != int64(1000+(total-1)*100) {
		t.Errorf("newest timestamp = %d, want %d", ts[len(ts)-1], 1000+(total-1)*100)
	}
}

func TestTickRate(t *testing.T) {
	tests := []struct {
		name      string
		ts        []int64
		wantRate  float64
		wantDrops int
	}{
		{"empty", nil, 0, 0},
		{"single timestamp", []int64{1000}, 0, 0},
		{"two drops 500ms apart", []int64{1000, 1500, 2000}, 2.0, 2},
		{"bounce interval excluded", []int64{1000, 1040, 1540}, 2.0, 1},
		{"gap interval excluded", []int64{1000, 7000, 7500}, 2.0, 1},
		{"all intervals invalid", []int64{1000, 1010, 9000}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, drops := tickRate(tt.ts)
			if drops != tt.wantDrops {
				t.Errorf("drops = %d, want %d", drops, tt.wantDrops)
			}
			if math.Abs(rate-tt.wantRate) > 1e-9 {
				t.Errorf("rate = %v, want %v", rate, tt.wantRate)
			}
		})
	}
}
