// Package beacon builds the deterministic proof-of-coverage beacon
// frame from a pair of entropy values and the active region
// parameters.
package beacon

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/lorawan-server/gatewayd/internal/region"
)

var (
	ErrUnsupportedVersion = errors.New("beacon: unsupported entropy version")
	ErrInvalidRegion      = errors.New("beacon: region params invalid")
)

// Beacon is a fully-built proof-of-coverage beacon, ready to be
// PHY-encoded and transmitted.
type Beacon struct {
	Data          []byte
	Frequency     uint64
	Datarate      region.DataRate
	RemoteEntropy Entropy
	LocalEntropy  Entropy
}

// ID is the base64 encoding of the beacon payload, used to correlate
// reports with transmissions.
func (b *Beacon) ID() string {
	return base64.StdEncoding.EncodeToString(b.Data)
}

// New builds a beacon from remote/local entropy and the current
// region parameters, per the version-0 construction algorithm.
func New(remote, local Entropy, params *region.RegionParams) (*Beacon, error) {
	if remote.Version != 0 || local.Version != 0 {
		return nil, ErrUnsupportedVersion
	}
	if !params.Valid() {
		return nil, ErrInvalidRegion
	}

	seed := sha256.New()
	seed.Write(remote.Data)
	seed.Write(nativeBytes(remote.Timestamp))
	seed.Write(local.Data)
	seed.Write(nativeBytes(local.Timestamp))
	digest := seed.Sum(nil)

	var seed32 [32]byte
	copy(seed32[:], digest)
	rng := newChaCha12(seed32)

	channelIdx := rng.uintn(uint32(len(params.Params)))
	frequency := params.Params[channelIdx].ChannelFrequency

	payloadSize := 5 + rng.uintn(6) // uniform in [5, 10]

	return &Beacon{
		Data:          digest[:payloadSize],
		Frequency:     frequency,
		Datarate:      region.SF7BW125,
		RemoteEntropy: remote,
		LocalEntropy:  local,
	}, nil
}

// nativeBytes renders an int64 timestamp in the host's native byte
// order. The upstream network mixes timestamps this way rather than a
// fixed endianness, and gateways must match it exactly to reach the
// same beacon payload as every other implementation on the same host
// architecture.
func nativeBytes(v int64) []byte {
	b := make([]byte, 8)
	if isLittleEndian() {
		binary.LittleEndian.PutUint64(b, uint64(v))
	} else {
		binary.BigEndian.PutUint64(b, uint64(v))
	}
	return b
}

func isLittleEndian() bool {
	var x uint16 = 1
	return *(*byte)(unsafe.Pointer(&x)) == 1
}
