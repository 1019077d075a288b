// Package region holds decoded regional radio parameter sets and the
// datarate/power selection rules that use them.
package region

import (
	"errors"
	"fmt"

	"github.com/lorawan-server/gatewayd/internal/wire"
)

var (
	ErrUnsupportedRegion = errors.New("region: unsupported region")
	ErrNoRegionParams    = errors.New("region: no region params")
	ErrNoDataRate        = errors.New("region: no datarate for packet size")
)

// Region names a geographic regulatory region. The zero value is
// Unknown.
type Region string

const Unknown Region = ""

// TaggedSpreading is one entry of a channel's spreading table: the
// largest packet size (bytes) that may use RegionSpreading.
type TaggedSpreading struct {
	MaxPacketSize   uint32
	RegionSpreading uint32 // spreading factor, e.g. 7..12
}

// ChannelParam is one lawful channel within a region.
type ChannelParam struct {
	ChannelFrequency uint64 // Hz
	MaxEIRPTenths    int32  // one decimal place, e.g. 270 == 27.0 dBm
	Bandwidth        uint32 // Hz
	Spreading        []TaggedSpreading
}

// RegionParams is the decoded parameter set served by the
// configuration service for one region.
type RegionParams struct {
	Region     Region
	GainTenths int32 // one decimal place
	Params     []ChannelParam
	Timestamp  uint64
}

// Valid reports whether params are usable: a known region with at
// least one channel.
func (p *RegionParams) Valid() bool {
	return p != nil && p.Region != Unknown && len(p.Params) > 0
}

// DataRate is a fixed spreading-factor/bandwidth pair, rendered as
// "SF{n}BW{kHz}".
type DataRate struct {
	SpreadingFactor uint32
	BandwidthKHz    uint32
}

func (d DataRate) String() string {
	return fmt.Sprintf("SF%dBW%d", d.SpreadingFactor, d.BandwidthKHz)
}

// SF7BW125 is the beacon's fixed datarate.
var SF7BW125 = DataRate{SpreadingFactor: 7, BandwidthKHz: 125}

// SelectDataRate walks the first channel's spreading table in stored
// (not sorted) order and returns the first entry whose MaxPacketSize
// accommodates packetSize. This intentionally reproduces the legacy
// first-match-in-insertion-order behavior rather than picking the
// tightest fit.
func (p *RegionParams) SelectDataRate(packetSize int) (DataRate, error) {
	if !p.Valid() {
		return DataRate{}, ErrNoRegionParams
	}
	first := p.Params[0]
	for _, ts := range first.Spreading {
		if int(ts.MaxPacketSize) >= packetSize {
			return DataRate{SpreadingFactor: ts.RegionSpreading, BandwidthKHz: first.Bandwidth / 1000}, nil
		}
	}
	return DataRate{}, ErrNoDataRate
}

// MaxEIRPTenths returns the maximum max-eirp over all channels, one
// decimal place.
func (p *RegionParams) MaxEIRPTenths() int32 {
	var max int32
	for i, ch := range p.Params {
		if i == 0 || ch.MaxEIRPTenths > max {
			max = ch.MaxEIRPTenths
		}
	}
	return max
}

// MaxConductedPower returns trunc(max_eirp - gain), both one-decimal
// fixed point, truncated toward zero to a whole dBm value.
func (p *RegionParams) MaxConductedPower() uint32 {
	diff := p.MaxEIRPTenths() - p.GainTenths
	if diff < 0 {
		diff = 0
	}
	return uint32(diff / 10)
}

// Decode unmarshals a wire-encoded region parameter set as served by
// the configuration service.
func Decode(region Region, gainTenths int32, data []byte) (*RegionParams, error) {
	var msg wire.BlockchainRegionParamsV1
	if err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("region: decode: %w", err)
	}
	return FromWire(region, gainTenths, &msg), nil
}

// FromWire builds a RegionParams from an already-decoded wire
// parameter set, as returned directly in a configuration-service RPC
// response (bypassing the byte-level Decode above).
func FromWire(region Region, gainTenths int32, msg *wire.BlockchainRegionParamsV1) *RegionParams {
	if msg == nil {
		return &RegionParams{Region: region, GainTenths: gainTenths}
	}
	params := make([]ChannelParam, 0, len(msg.Params))
	for _, c := range msg.Params {
		spreading := make([]TaggedSpreading, 0, len(c.GetSpreading().GetTaggedSpreading()))
		for _, ts := range c.GetSpreading().GetTaggedSpreading() {
			spreading = append(spreading, TaggedSpreading{
				MaxPacketSize:   ts.GetMaxPacketSize(),
				RegionSpreading: uint32(ts.GetRegionSpreading()),
			})
		}
		params = append(params, ChannelParam{
			ChannelFrequency: c.GetChannelFrequency(),
			MaxEIRPTenths:    c.GetMaxEirp(),
			Bandwidth:        c.GetBandwidth(),
			Spreading:        spreading,
		})
	}
	return &RegionParams{Region: region, GainTenths: gainTenths, Params: params}
}

// Equal reports byte-level structural equality, used by the region
// watcher to suppress no-op publishes.
func Equal(a, b *RegionParams) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Region != b.Region || a.GainTenths != b.GainTenths || a.Timestamp != b.Timestamp {
		return false
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if !channelEqual(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return true
}

func channelEqual(a, b ChannelParam) bool {
	if a.ChannelFrequency != b.ChannelFrequency || a.MaxEIRPTenths != b.MaxEIRPTenths || a.Bandwidth != b.Bandwidth {
		return false
	}
	if len(a.Spreading) != len(b.Spreading) {
		return false
	}
	for i := range a.Spreading {
		if a.Spreading[i] != b.Spreading[i] {
			return false
		}
	}
	return true
}
