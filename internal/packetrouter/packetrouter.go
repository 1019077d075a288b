// Package packetrouter maintains the conduit to the packet-router
// service: a bounded replay queue of uplinks, the session handshake
// state machine, and downlink fan-out back to gateway I/O.
package packetrouter

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorawan-server/gatewayd/internal/cache"
	"github.com/lorawan-server/gatewayd/internal/conduit"
	"github.com/lorawan-server/gatewayd/internal/gatewayio"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/wire"
)

const storeGCInterval = 60 * time.Second

// SessionState is the client's view of the session handshake with the
// router.
type SessionState int

const (
	Offline SessionState = iota
	Offered
	Sessioned
)

// UplinkPacket is one queued uplink awaiting transmission, tagged with
// the instant it was received for age-based garbage collection.
type UplinkPacket struct {
	Msg      *wire.PacketRouterPacketUpV1
	Received time.Time
}

// Hash returns the packet's payload bytes as its identity. The cache
// has no ack-based eviction; the packet router drives pop_front by age.
func (p UplinkPacket) Hash() []byte { return p.Msg.Payload }

// Status is a synchronous snapshot of the client's connection state.
type Status struct {
	URI        string
	Connected  bool
	SessionKey ed25519.PublicKey
}

// Client owns the conduit, the replay queue, and the session state
// machine for the packet-router service.
type Client struct {
	uri     string
	c       *conduit.Conduit
	gw      *gatewayio.Gateway
	kp      *keypair.Keypair
	log     zerolog.Logger
	queue   *cache.Cache[UplinkPacket]
	state   SessionState
	nonce   []byte
	sessKey ed25519.PublicKey
}

// New creates a Client bound to the given conduit and queue depth.
func New(uri string, c *conduit.Conduit, gw *gatewayio.Gateway, kp *keypair.Keypair, queueDepth int, log zerolog.Logger) *Client {
	return &Client{uri: uri, c: c, gw: gw, kp: kp, log: log, queue: cache.New[UplinkPacket](queueDepth)}
}

// Status returns a synchronous snapshot of the client's state.
func (cl *Client) Status() Status {
	return Status{URI: cl.uri, Connected: cl.c.Connected(), SessionKey: cl.sessKey}
}

// Uplink enqueues packet and, if sessioned, drains the queue.
func (cl *Client) Uplink(ctx context.Context, packet *wire.PacketRouterPacketUpV1, received time.Time) {
	cl.queue.PushBack(UplinkPacket{Msg: packet, Received: received}, received)
	if cl.state == Sessioned {
		cl.drain(ctx)
	}
}

// HandleSessionOffer responds to the server's SessionOffer with a
// signed SessionInit and transitions to Sessioned on success.
func (cl *Client) HandleSessionOffer(ctx context.Context, offer *wire.PacketRouterSessionOfferV1) error {
	cl.state = Offered
	init := &wire.PacketRouterSessionInitV1{Nonce: offer.Nonce, Gateway: cl.kp.Public}
	if err := keypair.Sign(cl.kp, init); err != nil {
		return fmt.Errorf("packetrouter: sign session init: %w", err)
	}
	if err := cl.c.Send(ctx, init); err != nil {
		cl.state = Offline
		return fmt.Errorf("packetrouter: send session init: %w", err)
	}
	cl.state = Sessioned
	cl.sessKey = cl.kp.Public
	cl.c.Reconnect().Success()
	cl.drain(ctx)
	return nil
}

// HandleDownlink forwards a router-issued downlink to gateway I/O for
// rx1/rx2 scheduling.
func (cl *Client) HandleDownlink(ctx context.Context, down *wire.PacketRouterPacketDownV1) {
	req := gatewayio.DownlinkRequest{Payload: down.Payload}
	if down.Rx1 != nil {
		req.Rx1 = gatewayio.TXWindow{Timestamp: uint32(down.Rx1.Timestamp), Frequency: float64(down.Rx1.Frequency), Datarate: down.Rx1.Datarate}
	}
	if down.Rx2 != nil {
		req.Rx2 = &gatewayio.TXWindow{Timestamp: uint32(down.Rx2.Timestamp), Frequency: float64(down.Rx2.Frequency), Datarate: down.Rx2.Datarate}
	}
	if err := cl.gw.Dispatch(ctx, req); err != nil {
		cl.log.Warn().Err(err).Msg("downlink dispatch failed")
	}
}

// drain transmits queued packets, stopping and re-queuing the one
// that failed if a send fails.
func (cl *Client) drain(ctx context.Context) {
	for {
		dropped, next, ok := cl.queue.PopFrontAge(time.Now(), storeGCInterval)
		if dropped > 0 {
			cl.log.Info().Int("dropped", dropped).Msg("discarded expired queued packets")
		}
		if !ok {
			return
		}

		next.Msg.Gateway = cl.kp.Public
		next.Msg.HoldTime = uint64(time.Since(next.Received) / time.Millisecond)
		if err := keypair.Sign(cl.kp, next.Msg); err != nil {
			cl.log.Warn().Err(err).Msg("failed to sign uplink")
			cl.queue.PushFront(next, next.Received)
			cl.state = Offline
			return
		}
		if err := cl.c.Send(ctx, next.Msg); err != nil {
			cl.log.Warn().Err(err).Msg("failed to send uplink")
			cl.queue.PushFront(next, next.Received)
			cl.state = Offline
			return
		}
	}
}

// Disconnect tears down the conduit and marks the session offline;
// only a fresh session offer/init cycle restores Sessioned.
func (cl *Client) Disconnect() {
	cl.c.Disconnect()
	cl.state = Offline
	cl.sessKey = nil
}
