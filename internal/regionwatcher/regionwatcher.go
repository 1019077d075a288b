// Package regionwatcher polls the configuration service for the
// active region's parameter set and broadcasts it, replace-on-change,
// to every in-process subscriber.
package regionwatcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/reconnect"
	"github.com/lorawan-server/gatewayd/internal/region"
)

const (
	backoffRetries = 10
	minWait        = 5 * time.Second
	maxWait        = 3600 * time.Second
)

// Fetcher issues one signed request/response round trip to the
// configuration service and returns the decoded, verified parameter
// set.
type Fetcher interface {
	Fetch(ctx context.Context, regionName region.Region, kp *keypair.Keypair) (*region.RegionParams, error)
}

// Watcher owns the current region-parameter snapshot and rebroadcasts
// it on every change.
type Watcher struct {
	fetcher Fetcher
	kp      *keypair.Keypair
	log     zerolog.Logger

	mu        sync.RWMutex
	current   *region.RegionParams
	subs      []chan *region.RegionParams
	reconnect *reconnect.Reconnect
}

// New creates a Watcher with no current snapshot.
func New(fetcher Fetcher, kp *keypair.Keypair, log zerolog.Logger) *Watcher {
	r := reconnect.NewWithBounds(backoffRetries, minWait, maxWait)
	return &Watcher{fetcher: fetcher, kp: kp, log: log, reconnect: r}
}

// Subscribe returns a channel that receives every future published
// snapshot. The channel is buffered by one so a slow subscriber never
// blocks the watcher; only the latest pending snapshot is retained.
func (w *Watcher) Subscribe() <-chan *region.RegionParams {
	ch := make(chan *region.RegionParams, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	if w.current != nil {
		ch <- w.current
	}
	w.mu.Unlock()
	return ch
}

// Current returns the latest published snapshot, or nil if none has
// ever been published.
func (w *Watcher) Current() *region.RegionParams {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) onSuccess() { w.reconnect.Success() }
func (w *Watcher) onFailure() { w.reconnect.Fail() }

// Run polls the configuration service until ctx is canceled,
// publishing a new snapshot whenever the decoded parameters differ
// from the current one.
func (w *Watcher) Run(ctx context.Context, regionName region.Region) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		params, err := w.fetcher.Fetch(ctx, regionName, w.kp)
		if err != nil {
			w.log.Warn().Err(err).Msg("region params fetch failed")
			w.onFailure()
		} else {
			w.onSuccess()
			w.publish(params)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.reconnect.Wait()):
		}
	}
}

func (w *Watcher) publish(params *region.RegionParams) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if region.Equal(w.current, params) {
		return
	}
	w.current = params
	for _, ch := range w.subs {
		select {
		case ch <- params:
		default:
			// drop the stale pending snapshot, then deliver the new one
			select {
			case <-ch:
			default:
			}
			ch <- params
		}
	}
}
