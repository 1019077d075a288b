package beacon

import (
	"testing"

	"github.com/lorawan-server/gatewayd/internal/region"
)

func testParams() *region.RegionParams {
	return &region.RegionParams{
		Region: "EU868",
		Params: []region.ChannelParam{
			{ChannelFrequency: 869525000, MaxEIRPTenths: 270, Bandwidth: 125000},
		},
	}
}

func TestNewBeaconDeterministic(t *testing.T) {
	remote := Entropy{Version: 0, Timestamp: 100, Data: []byte{1, 2, 3, 4}}
	local := Entropy{Version: 0, Timestamp: 200, Data: []byte{5, 6, 7, 8}}

	b1, err := New(remote, local, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b2, err := New(remote, local, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b1.ID() != b2.ID() {
		t.Fatalf("beacon construction is not deterministic: %s != %s", b1.ID(), b2.ID())
	}
	if b1.Frequency != b2.Frequency {
		t.Fatalf("frequency differs across identical builds: %d != %d", b1.Frequency, b2.Frequency)
	}
}

func TestNewBeaconPayloadSizeInRange(t *testing.T) {
	remote := Entropy{Version: 0, Timestamp: 1, Data: []byte{1}}
	local := Entropy{Version: 0, Timestamp: 2, Data: []byte{2}}
	b, err := New(remote, local, testParams())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(b.Data) < 5 || len(b.Data) > 10 {
		t.Fatalf("payload size = %d, want in [5,10]", len(b.Data))
	}
	if b.Datarate != region.SF7BW125 {
		t.Fatalf("datarate = %v, want SF7BW125", b.Datarate)
	}
}

func TestNewBeaconRejectsBadVersion(t *testing.T) {
	remote := Entropy{Version: 1}
	local := Entropy{Version: 0}
	if _, err := New(remote, local, testParams()); err != ErrUnsupportedVersion {
		t.Fatalf("New() err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestNewBeaconRejectsInvalidRegion(t *testing.T) {
	remote := Entropy{Version: 0}
	local := Entropy{Version: 0}
	if _, err := New(remote, local, &region.RegionParams{}); err != ErrInvalidRegion {
		t.Fatalf("New() err = %v, want ErrInvalidRegion", err)
	}
}
