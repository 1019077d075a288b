package beaconer

import (
	"math/rand"
	"time"
)

// segmentTrunc truncates t down to the nearest multiple of interval
// since the Unix epoch, the Go analogue of a duration_trunc over
// fixed-width segments.
func segmentTrunc(t time.Time, interval time.Duration) time.Time {
	span := int64(interval / time.Second)
	stamp := t.Unix()
	delta := stamp % span
	if delta < 0 {
		delta += span
	}
	return time.Unix(stamp-delta, 0).In(t.Location())
}

func randomDuration(rng *rand.Rand, max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// nextBeaconTime recomputes the next beacon instant given the new
// region-parameter timestamp and the previously scheduled beacon
// time (if any), per the fixed-segment scheduling rule: a future
// beacon time is kept as-is; a past beacon time still in the current
// segment rolls forward into the next segment; a past beacon time in
// an earlier segment picks a time in the remainder of the current
// segment; with no prior beacon time, one is picked in the current
// segment and the rule is reapplied.
func nextBeaconTime(rng *rand.Rand, currentTime time.Time, beaconTime *time.Time, interval time.Duration) time.Time {
	currentSegment := segmentTrunc(currentTime, interval)
	nextSegment := currentSegment.Add(interval)

	if beaconTime == nil {
		picked := currentSegment.Add(randomDuration(rng, interval))
		return nextBeaconTime(rng, currentTime, &picked, interval)
	}
	if beaconTime.After(currentTime) {
		return *beaconTime
	}

	beaconSegment := segmentTrunc(*beaconTime, interval)
	if beaconSegment.Equal(currentSegment) {
		return nextSegment.Add(randomDuration(rng, interval))
	}
	return currentTime.Add(randomDuration(rng, nextSegment.Sub(currentTime)))
}
