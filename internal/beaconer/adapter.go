package beaconer

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/lorawan-server/gatewayd/internal/conduit"
	"github.com/lorawan-server/gatewayd/internal/grpcx"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/wire"
)

// streamMethod is the bidirectional RPC the PoC ingest service serves
// beacon/witness reports and the session handshake on.
const streamMethod = "/lorawan.PocIngest/Stream"

var streamDesc = &grpc.StreamDesc{
	StreamName:    "Stream",
	ServerStreams: true,
	ClientStreams: true,
}

// grpcStream adapts a raw bidi grpc.ClientStream to conduit.Stream,
// identically to the packet-router client's adapter but wrapping the
// PoC ingest envelope types instead.
type grpcStream struct {
	cs grpc.ClientStream
}

func (s *grpcStream) Send(up interface{}) error {
	env := &wire.EnvelopePocUpV1{}
	switch m := up.(type) {
	case *wire.LoraStreamSessionInitV1:
		env.SessionInit = m
	case *wire.LoraBeaconReportReqV1:
		env.BeaconReport = m
	case *wire.LoraWitnessReportReqV1:
		env.WitnessReport = m
	default:
		return fmt.Errorf("beaconer: cannot send %T over the poc stream", up)
	}
	return s.cs.SendMsg(env)
}

func (s *grpcStream) Recv() (interface{}, error) {
	env := &wire.EnvelopePocDownV1{}
	if err := s.cs.RecvMsg(env); err != nil {
		return nil, err
	}
	if env.SessionOffer == nil {
		return nil, fmt.Errorf("beaconer: received an empty envelope")
	}
	return env.SessionOffer, nil
}

func (s *grpcStream) CloseSend() error { return s.cs.CloseSend() }

// Adapter is the conduit.ClientAdapter for the PoC ingest service. It
// has no registration message of its own: the session handshake
// (offer/init) is driven entirely by HandleSessionOffer once the
// server sends its first SessionOffer.
type Adapter struct{}

// Init opens the bidirectional stream.
func (Adapter) Init(ctx context.Context, conn *grpc.ClientConn) (conduit.Stream, error) {
	cs, err := conn.NewStream(ctx, streamDesc, streamMethod, grpcx.CallOption)
	if err != nil {
		return nil, fmt.Errorf("beaconer: open stream: %w", err)
	}
	return &grpcStream{cs: cs}, nil
}

// Register is a no-op: the PoC ingest service identifies the gateway
// from the session handshake, not an upfront registration message.
func (Adapter) Register(ctx context.Context, stream conduit.Stream, kp *keypair.Keypair) error {
	return nil
}
