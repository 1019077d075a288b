// Package configclient fetches a region's lawful channel parameter
// set from the configuration service, satisfying regionwatcher's
// Fetcher interface.
package configclient

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"google.golang.org/grpc"

	"github.com/lorawan-server/gatewayd/internal/grpcx"
	"github.com/lorawan-server/gatewayd/internal/keypair"
	"github.com/lorawan-server/gatewayd/internal/region"
	"github.com/lorawan-server/gatewayd/internal/wire"
)

// RegionParamsMethod is the unary RPC the configuration service
// serves region parameter sets on.
const RegionParamsMethod = "/lorawan.ConfigService/RegionParams"

// Client issues one signed unary RPC per Fetch call, dialing lazily
// and reusing the connection across calls; a failed call drops the
// connection so the next Fetch redials. Every response is verified
// against serverPubKey before its parameters are trusted.
type Client struct {
	uri          string
	insecure     bool
	serverPubKey ed25519.PublicKey
	conn         *grpc.ClientConn
}

// New creates a Client against uri. serverPubKey verifies every
// RegionParamsRespV1's signature; a nil or empty key skips
// verification (e.g. against a fixture with no signing key).
func New(uri string, insecureTLS bool, serverPubKey ed25519.PublicKey) *Client {
	return &Client{uri: uri, insecure: insecureTLS, serverPubKey: serverPubKey}
}

// Fetch requests and decodes regionName's parameter set, signing the
// request with kp and verifying the response's signature against the
// configuration service's declared public key.
func (c *Client) Fetch(ctx context.Context, regionName region.Region, kp *keypair.Keypair) (*region.RegionParams, error) {
	if c.conn == nil {
		conn, err := grpcx.Dial(ctx, c.uri, c.insecure)
		if err != nil {
			return nil, fmt.Errorf("configclient: dial: %w", err)
		}
		c.conn = conn
	}

	req := &wire.RegionParamsReqV1{Region: string(regionName), Address: kp.Public}
	if err := keypair.Sign(kp, req); err != nil {
		return nil, fmt.Errorf("configclient: sign request: %w", err)
	}

	resp := &wire.RegionParamsRespV1{}
	if err := c.conn.Invoke(ctx, RegionParamsMethod, req, resp, grpcx.CallOption); err != nil {
		c.conn.Close()
		c.conn = nil
		return nil, fmt.Errorf("configclient: invoke: %w", err)
	}

	if len(c.serverPubKey) > 0 {
		ok, err := keypair.Verify(c.serverPubKey, resp)
		if err != nil {
			return nil, fmt.Errorf("configclient: verify response: %w", err)
		}
		if !ok {
			c.conn.Close()
			c.conn = nil
			return nil, fmt.Errorf("configclient: response signature does not match the configured server key")
		}
	}

	return region.FromWire(region.Region(resp.Region), resp.Gain, resp.Params), nil
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
