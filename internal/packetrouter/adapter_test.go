package packetrouter

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"

	"github.com/lorawan-server/gatewayd/internal/wire"
)

// fakeClientStream is a minimal grpc.ClientStream double that records
// the last SendMsg call and returns a canned value from RecvMsg.
type fakeClientStream struct {
	sent    interface{}
	recvOut *wire.EnvelopeDownV1
	recvErr error
}

func (f *fakeClientStream) Header() (metadata.MD, error) { return nil, nil }
func (f *fakeClientStream) Trailer() metadata.MD          { return nil }
func (f *fakeClientStream) CloseSend() error              { return nil }
func (f *fakeClientStream) Context() context.Context      { return context.Background() }

func (f *fakeClientStream) SendMsg(m interface{}) error {
	f.sent = m
	return nil
}

func (f *fakeClientStream) RecvMsg(m interface{}) error {
	if f.recvErr != nil {
		return f.recvErr
	}
	env := m.(*wire.EnvelopeDownV1)
	*env = *f.recvOut
	return nil
}

func TestGrpcStreamSendWrapsKnownMessageTypes(t *testing.T) {
	fake := &fakeClientStream{}
	s := &grpcStream{cs: fake}

	reg := &wire.PacketRouterRegisterV1{Gateway: []byte{1}}
	if err := s.Send(reg); err != nil {
		t.Fatalf("Send(Register): %v", err)
	}
	env, ok := fake.sent.(*wire.EnvelopeUpV1)
	if !ok || env.Register != reg {
		t.Fatalf("got %+v, want an EnvelopeUpV1 wrapping the Register message", fake.sent)
	}
}

func TestGrpcStreamSendRejectsUnknownMessageType(t *testing.T) {
	s := &grpcStream{cs: &fakeClientStream{}}
	if err := s.Send("not a router message"); err == nil {
		t.Fatal("Send with an unsupported type returned nil error")
	}
}

func TestGrpcStreamRecvUnwrapsSessionOffer(t *testing.T) {
	offer := &wire.PacketRouterSessionOfferV1{Nonce: []byte{9}}
	fake := &fakeClientStream{recvOut: &wire.EnvelopeDownV1{SessionOffer: offer}}
	s := &grpcStream{cs: fake}

	got, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.(*wire.PacketRouterSessionOfferV1) != offer {
		t.Fatalf("got %+v, want the session offer", got)
	}
}

func TestGrpcStreamRecvErrorsOnEmptyEnvelope(t *testing.T) {
	s := &grpcStream{cs: &fakeClientStream{recvOut: &wire.EnvelopeDownV1{}}}
	if _, err := s.Recv(); err == nil {
		t.Fatal("Recv with an empty envelope returned nil error")
	}
}
