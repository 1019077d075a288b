package grpcx

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// KeepAlivePeriod is kept below common load-balancer idle timeouts
// (AWS NLB hard-caps idle connections at 350s).
const KeepAlivePeriod = 300 * time.Second

const connectTimeout = 10 * time.Second

// CallOption selects the hand-rolled wire codec for every RPC made
// over a connection dialed by Dial.
var CallOption = grpc.CallContentSubtype(CodecName)

// Dial opens a gRPC connection to uri, using TLS when insecureTLS is
// false and plaintext credentials otherwise.
func Dial(ctx context.Context, uri string, insecureTLS bool) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if insecureTLS {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(&tls.Config{})
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, uri,
		grpc.WithTransportCredentials(creds),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                KeepAlivePeriod,
			Timeout:             20 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(CallOption),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("grpcx: dial %s: %w", uri, err)
	}
	return conn, nil
}
