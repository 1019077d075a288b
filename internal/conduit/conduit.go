// Package conduit wraps one bidirectional streaming gRPC call behind
// a lazy-connect send/receive API shared by every outbound client
// (packet router, PoC ingest).
package conduit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/lorawan-server/gatewayd/internal/grpcx"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/reconnect"
)

var ErrDisconnected = errors.New("conduit: disconnected")

// Stream is the subset of a gRPC bidi-stream client the conduit
// drives: send one message, receive one message.
type Stream interface {
	Send(up interface{}) error
	Recv() (interface{}, error)
	CloseSend() error
}

// ClientAdapter opens the concrete gRPC stream for a service and
// performs its registration handshake.
type ClientAdapter interface {
	Init(ctx context.Context, conn *grpc.ClientConn) (Stream, error)
	Register(ctx context.Context, stream Stream, kp *keypair.Keypair) error
}

// Conduit owns one lazily-connected stream to a remote service.
type Conduit struct {
	mu        sync.Mutex
	uri       string
	insecure  bool
	adapter   ClientAdapter
	kp        *keypair.Keypair
	log       zerolog.Logger
	reconnect *reconnect.Reconnect

	conn   *grpc.ClientConn
	stream Stream

	// connected is closed and replaced with a fresh channel every time
	// connect establishes c.stream, so a Recv call parked on an
	// idle conduit wakes up as soon as some other caller's Send
	// establishes a connection, instead of waiting out ctx forever.
	connected chan struct{}
}

// New creates a disconnected Conduit for uri.
func New(uri string, insecureTLS bool, adapter ClientAdapter, kp *keypair.Keypair, log zerolog.Logger) *Conduit {
	return &Conduit{
		uri:       uri,
		insecure:  insecureTLS,
		adapter:   adapter,
		kp:        kp,
		log:       log,
		reconnect: reconnect.New(),
		connected: make(chan struct{}),
	}
}

// Connected reports whether the conduit currently holds a live
// stream.
func (c *Conduit) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Reconnect exposes the backoff record so callers can read/drive its
// retry schedule (e.g. the beaconer resets it to the success sentinel
// on its own session-offer handshake).
func (c *Conduit) Reconnect() *reconnect.Reconnect { return c.reconnect }

func (c *Conduit) connect(ctx context.Context) error {
	conn, err := grpcx.Dial(ctx, c.uri, c.insecure)
	if err != nil {
		return err
	}
	stream, err := c.adapter.Init(ctx, conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("conduit: init stream: %w", err)
	}
	if err := c.adapter.Register(ctx, stream, c.kp); err != nil {
		conn.Close()
		return fmt.Errorf("conduit: register: %w", err)
	}
	c.conn = conn
	c.stream = stream
	c.wake()
	return nil
}

// disconnect tears down the current stream and connection, if any.
// Caller must hold c.mu.
func (c *Conduit) disconnect() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.stream = nil
	if c.connected == nil {
		c.connected = make(chan struct{})
	}
}

// wake closes the current connected channel, waking every Recv call
// parked on an idle conduit, and replaces it with a fresh one for the
// next idle period. Caller must hold c.mu.
func (c *Conduit) wake() {
	if c.connected != nil {
		close(c.connected)
	}
	c.connected = make(chan struct{})
}

// Send connects if idle, then sends msg. Any transport failure
// disconnects and is propagated.
func (c *Conduit) Send(ctx context.Context, msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		if err := c.connect(ctx); err != nil {
			c.reconnect.Fail()
			return err
		}
	}
	if err := c.stream.Send(msg); err != nil {
		c.disconnect()
		c.reconnect.Fail()
		return fmt.Errorf("conduit: send: %w", err)
	}
	return nil
}

// Recv returns the next frame on the current stream. When the conduit
// is idle it waits for either ctx or another caller's Send to
// establish a connection, then retries; a nil connected channel (a
// zero-value Conduit) behaves like ctx alone, since it never fires.
func (c *Conduit) Recv(ctx context.Context) (interface{}, error) {
	c.mu.Lock()
	stream := c.stream
	woken := c.connected
	c.mu.Unlock()

	if stream == nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-woken:
			return c.Recv(ctx)
		}
	}

	msg, err := stream.Recv()
	if err != nil {
		c.mu.Lock()
		c.disconnect()
		c.reconnect.Fail()
		c.mu.Unlock()
		return nil, fmt.Errorf("conduit: recv: %w", err)
	}
	return msg, nil
}

// Disconnect tears down the current connection, if any. It leaves the
// reconnect backoff untouched.
func (c *Conduit) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect()
}
