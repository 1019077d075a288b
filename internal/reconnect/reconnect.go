// Package reconnect implements the exponential backoff schedule and
// retry counter shared by the conduits and the region watcher. The
// region watcher sleeps for Wait between fetches; the conduits only
// record failures and successes and redial on their next Send without
// sleeping.
package reconnect

import (
	"math"
	"time"
)

const (
	// MaxRetries bounds the exponent; retry_count above this is a
	// sentinel meaning "connection healthy, stay at MaxWait".
	MaxRetries = 40
	MinWait    = 5 * time.Second
	MaxWait    = 1800 * time.Second
)

// Reconnect tracks the retry count driving an exponential backoff
// curve between MinWait and MaxWait.
type Reconnect struct {
	retryCount uint32
	maxRetries uint32
	minWait    time.Duration
	maxWait    time.Duration
}

// New creates a Reconnect record at retry_count 0, using the default
// bounds.
func New() *Reconnect {
	return NewWithBounds(MaxRetries, MinWait, MaxWait)
}

// NewWithBounds creates a Reconnect record at retry_count 0 with
// caller-supplied bounds, for policies other than the conduit default
// (e.g. the region watcher's own retry/wait limits).
func NewWithBounds(maxRetries uint32, minWait, maxWait time.Duration) *Reconnect {
	return &Reconnect{maxRetries: maxRetries, minWait: minWait, maxWait: maxWait}
}

// Wait returns the backoff duration for the current retry count:
// min(minWait * 2^retryCount, maxWait).
func (r *Reconnect) Wait() time.Duration {
	if r.retryCount > r.maxRetries {
		return r.maxWait
	}
	d := time.Duration(float64(r.minWait) * math.Pow(2, float64(r.retryCount)))
	if d > r.maxWait || d < 0 {
		d = r.maxWait
	}
	return d
}

// Fail increments the retry count on a failed attempt, resetting to 1
// if the counter was sitting at the "healthy" sentinel above
// maxRetries.
func (r *Reconnect) Fail() {
	if r.retryCount > r.maxRetries {
		r.retryCount = 1
		return
	}
	if r.retryCount < r.maxRetries {
		r.retryCount++
	}
}

// Success sets the retry count to the sentinel value (maxRetries+1)
// that collapses Wait to maxWait, maximizing time-to-next-disconnect
// attempt while the connection is healthy.
func (r *Reconnect) Success() {
	r.retryCount = r.maxRetries + 1
}

// RetryCount exposes the current counter for diagnostics and tests.
func (r *Reconnect) RetryCount() uint32 { return r.retryCount }
