package beaconer

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"

	"github.com/lorawan-server/gatewayd/internal/wire"
)

type fakeClientStream struct {
	sent    interface{}
	recvOut *wire.EnvelopePocDownV1
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
	env := m.(*wire.EnvelopePocDownV1)
	*env = *f.recvOut
	return nil
}

func TestGrpcStreamSendWrapsReports(t *testing.T) {
	fake := &fakeClientStream{}
	s := &grpcStream{cs: fake}

	report := &wire.LoraBeaconReportReqV1{Data: []byte{1}}
	if err := s.Send(report); err != nil {
		t.Fatalf("Send(BeaconReport): %v", err)
	}
	env, ok := fake.sent.(*wire.EnvelopePocUpV1)
	if !ok || env.BeaconReport != report {
		t.Fatalf("got %+v, want an EnvelopePocUpV1 wrapping the beacon report", fake.sent)
	}
}

func TestGrpcStreamSendRejectsUnknownMessageType(t *testing.T) {
	s := &grpcStream{cs: &fakeClientStream{}}
	if err := s.Send(42); err == nil {
		t.Fatal("Send with an unsupported type returned nil error")
	}
}

func TestGrpcStreamRecvUnwrapsSessionOffer(t *testing.T) {
	offer := &wire.LoraStreamSessionOfferV1{Nonce: []byte{7}}
	fake := &fakeClientStream{recvOut: &wire.EnvelopePocDownV1{SessionOffer: offer}}
	s := &grpcStream{cs: fake}

	got, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got.(*wire.LoraStreamSessionOfferV1) != offer {
		t.Fatalf("got %+v, want the session offer", got)
	}
}

func TestAdapterRegisterIsANoop(t *testing.T) {
	if err := (Adapter{}).Register(context.Background(), &grpcStream{}, nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
}
