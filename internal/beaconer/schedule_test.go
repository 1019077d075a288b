package beaconer

import (
	"math/rand"
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return tm
}

func TestNextBeaconTimeMatchesFixedSegmentRule(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	interval := 6 * time.Hour
	currentTime := mustParse(t, "2023-09-01T09:20:00Z")

	currentSegment := segmentTrunc(currentTime, interval)
	nextSegment := currentSegment.Add(interval)
	if !currentTime.Before(nextSegment) {
		t.Fatal("fixture invariant violated: currentTime not before nextSegment")
	}

	t.Run("no prior beacon time picks somewhere ahead", func(t *testing.T) {
		next := nextBeaconTime(rng, currentTime, nil, interval)
		if !next.After(currentTime) {
			t.Fatalf("next = %v, want after %v", next, currentTime)
		}
		if !next.Before(nextSegment.Add(interval)) {
			t.Fatalf("next = %v, want before %v", next, nextSegment.Add(interval))
		}
	})

	t.Run("future beacon time in current segment is kept", func(t *testing.T) {
		bt := currentTime.Add(10 * time.Minute)
		if !segmentTrunc(bt, interval).Equal(currentSegment) {
			t.Fatal("fixture invariant violated")
		}
		next := nextBeaconTime(rng, currentTime, &bt, interval)
		if !next.After(currentTime) || !next.Before(nextSegment) {
			t.Fatalf("next = %v, want in (%v, %v)", next, currentTime, nextSegment)
		}
		if !segmentTrunc(next, interval).Equal(currentSegment) {
			t.Fatalf("next = %v landed outside the current segment", next)
		}
	})

	t.Run("future beacon time in next segment is kept", func(t *testing.T) {
		bt := nextSegment.Add(10 * time.Minute)
		next := nextBeaconTime(rng, currentTime, &bt, interval)
		if !next.After(currentTime) || !next.After(nextSegment) {
			t.Fatalf("next = %v, want after %v and %v", next, currentTime, nextSegment)
		}
		if !segmentTrunc(next, interval).Equal(nextSegment) {
			t.Fatalf("next = %v landed outside the next segment", next)
		}
	})

	t.Run("past beacon time in current segment rolls to next segment", func(t *testing.T) {
		bt := currentSegment.Add(10 * time.Minute)
		if !bt.Before(currentTime) {
			t.Fatal("fixture invariant violated")
		}
		next := nextBeaconTime(rng, currentTime, &bt, interval)
		if !next.After(currentTime) {
			t.Fatalf("next = %v, want after %v", next, currentTime)
		}
		if !segmentTrunc(next, interval).Equal(nextSegment) {
			t.Fatalf("next = %v, want in the next segment %v", next, nextSegment)
		}
	})

	t.Run("past beacon time in previous segment picks the remainder of this segment", func(t *testing.T) {
		bt := currentSegment.Add(-10 * time.Minute)
		next := nextBeaconTime(rng, currentTime, &bt, interval)
		if !next.After(currentTime) || !next.Before(nextSegment) {
			t.Fatalf("next = %v, want in (%v, %v)", next, currentTime, nextSegment)
		}
		if !segmentTrunc(next, interval).Equal(currentSegment) {
			t.Fatalf("next = %v landed outside the current segment", next)
		}
	})
}

func TestSegmentTruncIsIdempotent(t *testing.T) {
	interval := 6 * time.Hour
	tm := mustParse(t, "2023-09-01T09:20:00Z")
	trunc := segmentTrunc(tm, interval)
	if !segmentTrunc(trunc, interval).Equal(trunc) {
		t.Fatalf("segmentTrunc(segmentTrunc(t)) != segmentTrunc(t): %v", trunc)
	}
}
