package packetrouter

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"

	"github.com/lorawan-server/gatewayd/internal/conduit"
	"github.com/lorawan-server/gatewayd/internal/grpcx"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/wire"
)

// streamMethod is the bidirectional RPC the packet-router service
// serves uplinks and downlinks on.
const streamMethod = "/lorawan.PacketRouter/Stream"

var streamDesc = &grpc.StreamDesc{
	StreamName:    "Stream",
	ServerStreams: true,
	ClientStreams: true,
}

// grpcStream adapts a raw bidi grpc.ClientStream to conduit.Stream,
// wrapping every outbound message in EnvelopeUpV1 and unwrapping every
// inbound message out of EnvelopeDownV1.
type grpcStream struct {
	cs grpc.ClientStream
}

func (s *grpcStream) Send(up interface{}) error {
	env := &wire.EnvelopeUpV1{}
	switch m := up.(type) {
	case *wire.PacketRouterRegisterV1:
		env.Register = m
	case *wire.PacketRouterPacketUpV1:
		env.Packet = m
	case *wire.PacketRouterSessionInitV1:
		env.SessionInit = m
	default:
		return fmt.Errorf("packetrouter: cannot send %T over the router stream", up)
	}
	return s.cs.SendMsg(env)
}

func (s *grpcStream) Recv() (interface{}, error) {
	env := &wire.EnvelopeDownV1{}
	if err := s.cs.RecvMsg(env); err != nil {
		return nil, err
	}
	switch {
	case env.SessionOffer != nil:
		return env.SessionOffer, nil
	case env.Packet != nil:
		return env.Packet, nil
	default:
		return nil, fmt.Errorf("packetrouter: received an empty envelope")
	}
}

func (s *grpcStream) CloseSend() error { return s.cs.CloseSend() }

// Adapter is the conduit.ClientAdapter for the packet-router service:
// it opens the bidi stream, then registers the gateway by sending a
// signed Register message.
type Adapter struct{}

// Init opens the bidirectional stream.
func (Adapter) Init(ctx context.Context, conn *grpc.ClientConn) (conduit.Stream, error) {
	cs, err := conn.NewStream(ctx, streamDesc, streamMethod, grpcx.CallOption)
	if err != nil {
		return nil, fmt.Errorf("packetrouter: open stream: %w", err)
	}
	return &grpcStream{cs: cs}, nil
}

// Register sends the signed Register message identifying this
// gateway to the router.
func (Adapter) Register(ctx context.Context, stream conduit.Stream, kp *keypair.Keypair) error {
	reg := &wire.PacketRouterRegisterV1{Gateway: kp.Public, Timestamp: uint64(time.Now().Unix())}
	if err := keypair.Sign(kp, reg); err != nil {
		return fmt.Errorf("packetrouter: sign register: %w", err)
	}
	return stream.Send(reg)
}
