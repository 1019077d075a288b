// Package entropyclient fetches the remote entropy value mixed into
// every proof-of-coverage beacon's seed from the configured entropy
// service over a single, un-retried HTTP GET.
package entropyclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lorawan-server/gatewayd/internal/beacon"
)

// Client issues one HTTP GET per Fetch call against uri, with no
// retries; the beaconer's own backoff-free tick schedule is the retry
// mechanism.
type Client struct {
	uri string
	hc  *http.Client
}

// New creates a Client against uri using http.DefaultClient's
// transport settings.
func New(uri string) *Client {
	return &Client{uri: uri, hc: &http.Client{}}
}

type entropyResponse struct {
	Version   uint32 `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Data      string `json:"data"`
}

// Fetch performs the GET and decodes the JSON response into an
// Entropy value.
func (c *Client) Fetch(ctx context.Context) (beacon.Entropy, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		return beacon.Entropy{}, fmt.Errorf("entropyclient: build request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return beacon.Entropy{}, fmt.Errorf("entropyclient: get %s: %w", c.uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return beacon.Entropy{}, fmt.Errorf("entropyclient: get %s: status %s", c.uri, resp.Status)
	}

	var body entropyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return beacon.Entropy{}, fmt.Errorf("entropyclient: decode response: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		return beacon.Entropy{}, fmt.Errorf("entropyclient: decode data: %w", err)
	}

	return beacon.Entropy{Version: body.Version, Timestamp: body.Timestamp, Data: data}, nil
}
