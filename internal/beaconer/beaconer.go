// Package beaconer builds and transmits proof-of-coverage beacons on a
// jittered schedule, reports every emitted and witnessed beacon to the
// PoC ingest service, and dedupes witnesses against a short LRU of
// recently seen beacon payloads.
package beaconer

import (
	"context"
	cryptorand "crypto/rand"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorawan-server/gatewayd/internal/beacon"
	"github.com/lorawan-server/gatewayd/internal/cache"
	"github.com/lorawan-server/gatewayd/internal/conduit"
	"github.com/lorawan-server/gatewayd/internal/gatewayio"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/lorawan"
	"github.com/lorawan-server/gatewayd/internal/region"
	"github.com/lorawan-server/gatewayd/internal/wire"
)

const lastSeenCapacity = 15

// EntropyFetcher fetches the remote entropy value mixed into the
// beacon seed.
type EntropyFetcher interface {
	Fetch(ctx context.Context) (beacon.Entropy, error)
}

// Beaconer owns the beacon emission schedule, the witness dedup cache,
// and the conduit to the PoC ingest service.
type Beaconer struct {
	disabled bool
	gw       *gatewayio.Gateway
	poc      *conduit.Conduit
	kp       *keypair.Keypair
	entropy  EntropyFetcher
	witness  <-chan gatewayio.WitnessFrame
	regions  <-chan *region.RegionParams
	interval time.Duration
	log      zerolog.Logger

	lastSeen       *cache.Cache[string]
	nextBeaconTime *time.Time
	regionParams   *region.RegionParams
}

// New creates a Beaconer. regionUpdates should be a regionwatcher
// subscription; witness should be the Gateway's toBeaconer channel.
func New(gw *gatewayio.Gateway, poc *conduit.Conduit, kp *keypair.Keypair, entropy EntropyFetcher, witness <-chan gatewayio.WitnessFrame, regionUpdates <-chan *region.RegionParams, interval time.Duration, disabled bool, log zerolog.Logger) *Beaconer {
	return &Beaconer{
		disabled: disabled,
		gw:       gw,
		poc:      poc,
		kp:       kp,
		entropy:  entropy,
		witness:  witness,
		regions:  regionUpdates,
		interval: interval,
		log:      log,
		lastSeen: cache.New[string](lastSeenCapacity),
	}
}

// Run drives the beacon-tick, witness, and region-update loop until
// ctx is canceled. Session handshake messages arriving on the PoC
// conduit are dispatched to HandleSessionOffer by the caller's own
// receive loop, mirroring the packet-router client.
func (b *Beaconer) Run(ctx context.Context) error {
	b.log.Info().Dur("interval", b.interval).Bool("disabled", b.disabled).Msg("starting beaconer")

	nextTick := time.Now().Add(b.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(time.Until(nextTick)):
			if !b.disabled && b.regionParams.Valid() {
				b.handleBeaconTick(ctx)
			}
			nextTick = time.Now().Add(b.interval)

		case wf, ok := <-b.witness:
			if !ok {
				b.log.Warn().Msg("ignoring closed witness channel")
				continue
			}
			b.handleWitness(ctx, wf)

		case params, ok := <-b.regions:
			if !ok {
				b.log.Warn().Msg("ignoring closed region watch channel")
				continue
			}
			b.handleRegionChange(params)
			nextTick = b.nextTickDeadline()
		}
	}
}

// handleRegionChange recomputes next_beacon_time against the region
// service's own timestamp, per the fixed-segment scheduling rule.
func (b *Beaconer) handleRegionChange(params *region.RegionParams) {
	if !params.Valid() {
		return
	}
	newTimestamp := time.Unix(int64(params.Timestamp), 0).UTC()
	newBeaconTime := nextBeaconTime(rand.New(rand.NewSource(newTimestamp.UnixNano())), newTimestamp, b.nextBeaconTime, b.interval)

	if b.nextBeaconTime == nil || !newBeaconTime.Equal(*b.nextBeaconTime) {
		b.log.Info().Time("beacon_time", newBeaconTime).Msg("next beacon time")
	}
	b.nextBeaconTime = &newBeaconTime
	b.regionParams = params
}

// nextTickDeadline translates next_beacon_time, expressed against the
// region service's clock, into a deadline on the local clock.
func (b *Beaconer) nextTickDeadline() time.Time {
	if b.nextBeaconTime == nil {
		return time.Now().Add(b.interval)
	}
	return time.Now().Add(time.Until(*b.nextBeaconTime))
}

func (b *Beaconer) handleBeaconTick(ctx context.Context) {
	remote, err := b.entropy.Fetch(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("fetch remote entropy")
		return
	}
	local, err := localEntropy()
	if err != nil {
		b.log.Warn().Err(err).Msg("build local entropy")
		return
	}

	bcn, err := beacon.New(remote, local, b.regionParams)
	if err != nil {
		b.log.Warn().Err(err).Msg("construct beacon")
		return
	}

	power := int(b.regionParams.MaxConductedPower())
	win := gatewayio.TXWindow{
		// tmst 0 asks the concentrator to schedule onto its next free
		// immediate slot; gatewayd does not track the concentrator's
		// own clock closely enough to pick an exact future tmst.
		Timestamp: 0,
		Frequency: float64(bcn.Frequency),
		Datarate:  bcn.Datarate.String(),
		Power:     power,
	}

	phy, err := lorawan.Write(lorawan.Downlink, &lorawan.Frame{
		MHDR:        lorawan.MHDR{MType: lorawan.Proprietary},
		Proprietary: bcn.Data,
	})
	if err != nil {
		b.log.Warn().Err(err).Str("beacon_id", bcn.ID()).Msg("encode beacon")
		return
	}

	if err := b.gw.Dispatch(ctx, gatewayio.DownlinkRequest{Payload: phy, Rx1: win}); err != nil {
		b.log.Warn().Err(err).Str("beacon_id", bcn.ID()).Msg("transmit beacon")
		return
	}
	b.log.Info().Str("beacon_id", bcn.ID()).Msg("transmitted beacon")

	report := &wire.LoraBeaconReportReqV1{
		PubKey:         b.kp.Public,
		LocalEntropy:   local.Data,
		RemoteEntropy:  remote.Data,
		Data:           bcn.Data,
		Frequency:      bcn.Frequency,
		Datarate:       bcn.Datarate.String(),
		TxPower:        int32(power),
		Timestamp:      uint64(win.Timestamp),
		CreatedAtNanos: uint64(time.Now().UnixNano()),
	}
	if err := keypair.Sign(b.kp, report); err != nil {
		b.log.Warn().Err(err).Msg("sign beacon report")
		return
	}
	if err := b.poc.Send(ctx, report); err != nil {
		b.log.Warn().Err(err).Str("beacon_id", bcn.ID()).Msg("submit beacon report")
		return
	}
	b.log.Info().Str("beacon_id", bcn.ID()).Msg("submitted beacon report")

	b.lastSeen.TagNow(string(bcn.Data))
}

func (b *Beaconer) handleWitness(ctx context.Context, wf gatewayio.WitnessFrame) {
	if b.disabled {
		return
	}

	if b.lastSeen.TagNow(string(wf.Payload)) {
		b.log.Debug().Msg("ignoring duplicate or self beacon witness")
		return
	}

	report := &wire.LoraWitnessReportReqV1{
		PubKey:    b.kp.Public,
		Data:      wf.Payload,
		Timestamp: uint64(wf.Timestamp),
		Signal:    int32(wf.RSSI),
		SNR:       int32(wf.SNR * 10),
		Frequency: uint64(wf.Frequency),
		Datarate:  wf.Datarate,
	}
	if err := keypair.Sign(b.kp, report); err != nil {
		b.log.Warn().Err(err).Msg("sign witness report")
		return
	}
	if err := b.poc.Send(ctx, report); err != nil {
		b.log.Warn().Err(err).Msg("submit witness report")
		return
	}
	b.log.Info().Msg("submitted witness report")
}

// HandleSessionOffer responds to the PoC ingest service's session
// offer and resets the conduit's backoff to the success sentinel on
// success, identically to the packet-router client.
func (b *Beaconer) HandleSessionOffer(ctx context.Context, offer *wire.LoraStreamSessionOfferV1) error {
	init := &wire.LoraStreamSessionInitV1{Nonce: offer.Nonce, Address: b.kp.Public}
	if err := keypair.Sign(b.kp, init); err != nil {
		return fmt.Errorf("beaconer: sign session init: %w", err)
	}
	if err := b.poc.Send(ctx, init); err != nil {
		return fmt.Errorf("beaconer: send session init: %w", err)
	}
	b.poc.Reconnect().Success()
	return nil
}

// localEntropyBytes matches the spec's local entropy size: 4 random
// bytes captured alongside the creation timestamp.
const localEntropyBytes = 4

func localEntropy() (beacon.Entropy, error) {
	data := make([]byte, localEntropyBytes)
	if _, err := cryptorand.Read(data); err != nil {
		return beacon.Entropy{}, fmt.Errorf("beaconer: local entropy: %w", err)
	}
	return beacon.Entropy{Version: 0, Timestamp: time.Now().Unix(), Data: data}, nil
}
