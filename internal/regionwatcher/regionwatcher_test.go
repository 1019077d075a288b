package regionwatcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/region"
)

type fakeFetcher struct {
	calls  int32
	params []*region.RegionParams
	err    error
}

func (f *fakeFetcher) Fetch(ctx context.Context, r region.Region, kp *keypair.Keypair) (*region.RegionParams, error) {
	n := atomic.AddInt32(&f.calls, 1) - 1
	if f.err != nil {
		return nil, f.err
	}
	if int(n) >= len(f.params) {
		n = int32(len(f.params)) - 1
	}
	return f.params[n], nil
}

func sampleParams(freq uint64) *region.RegionParams {
	return &region.RegionParams{
		Region: "EU868",
		Params: []region.ChannelParam{{ChannelFrequency: freq, Bandwidth: 125000}},
	}
}

func TestPublishSkipsNoOpUpdate(t *testing.T) {
	f := &fakeFetcher{}
	w := New(f, nil, zerolog.Nop())
	sub := w.Subscribe()

	w.publish(sampleParams(1))
	first := <-sub
	if first.Params[0].ChannelFrequency != 1 {
		t.Fatalf("first published frequency = %d, want 1", first.Params[0].ChannelFrequency)
	}

	w.publish(sampleParams(1)) // byte-equal to current, must not republish
	w.publish(sampleParams(2))
	second := <-sub
	if second.Params[0].ChannelFrequency != 2 {
		t.Fatalf("second published frequency = %d, want 2 (the no-op republish of 1 must have been skipped)", second.Params[0].ChannelFrequency)
	}
}

func TestSubscribeReplaysCurrentSnapshot(t *testing.T) {
	f := &fakeFetcher{params: []*region.RegionParams{sampleParams(42)}}
	w := New(f, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx, "EU868")
	time.Sleep(10 * time.Millisecond)
	cancel()

	sub := w.Subscribe()
	select {
	case got := <-sub:
		if got.Params[0].ChannelFrequency != 42 {
			t.Fatalf("replayed frequency = %d, want 42", got.Params[0].ChannelFrequency)
		}
	case <-time.After(time.Second):
		t.Fatal("Subscribe did not replay the current snapshot")
	}
}
