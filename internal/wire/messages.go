package wire

// Signable is implemented by every message with a trailing signature
// field. Canonical form is the message's own Marshal output with that
// field cleared.
type Signable interface {
	ClearSignature() Signable
	GetSignature() []byte
	SetSignature(sig []byte)
	Marshal() ([]byte, error)
}

// EntropyV1 mirrors the local/remote entropy values mixed into a
// beacon's seed.
type EntropyV1 struct {
	Version   uint32
	Timestamp int64
	Data      []byte
}

func (m *EntropyV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putUint32(m.Version)
	w.putInt64(m.Timestamp)
	w.putBytes(m.Data)
	return w.bytes(), nil
}

func (m *EntropyV1) Unmarshal(b []byte) error {
	r := newReader(b)
	var err error
	if m.Version, err = r.getUint32(); err != nil {
		return err
	}
	if m.Timestamp, err = r.getInt64(); err != nil {
		return err
	}
	if m.Data, err = r.getBytes(); err != nil {
		return err
	}
	return nil
}

// PacketRouterRegisterV1 is the signed, timestamped envelope naming
// the local gateway, sent immediately after a conduit connects.
type PacketRouterRegisterV1 struct {
	Gateway   []byte
	Timestamp uint64
	Signature []byte
}

func (m *PacketRouterRegisterV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.Gateway)
	w.putUint64(m.Timestamp)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *PacketRouterRegisterV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *PacketRouterRegisterV1) GetSignature() []byte    { return m.Signature }
func (m *PacketRouterRegisterV1) SetSignature(sig []byte) { m.Signature = sig }

// PacketRouterSessionOfferV1 is sent by the server to start the
// session handshake.
type PacketRouterSessionOfferV1 struct {
	Nonce []byte
}

func (m *PacketRouterSessionOfferV1) Unmarshal(b []byte) error {
	r := newReader(b)
	var err error
	m.Nonce, err = r.getBytes()
	return err
}

// PacketRouterSessionInitV1 is the client's signed reply to a session
// offer.
type PacketRouterSessionInitV1 struct {
	Nonce     []byte
	Gateway   []byte
	Signature []byte
}

func (m *PacketRouterSessionInitV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.Nonce)
	w.putBytes(m.Gateway)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *PacketRouterSessionInitV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *PacketRouterSessionInitV1) GetSignature() []byte    { return m.Signature }
func (m *PacketRouterSessionInitV1) SetSignature(sig []byte) { m.Signature = sig }

// PacketRouterPacketUpV1 carries one uplink frame to the router.
type PacketRouterPacketUpV1 struct {
	Payload   []byte
	Timestamp uint64 // µs, radio tmst
	RSSI      int32
	SNR       int32 // fixed point, tenths of a dB
	Frequency uint32 // Hz
	Datarate  string
	Region    string
	HoldTime  uint64 // ms
	Gateway   []byte
	Signature []byte
}

func (m *PacketRouterPacketUpV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.Payload)
	w.putUint64(m.Timestamp)
	w.putInt32(m.RSSI)
	w.putInt32(m.SNR)
	w.putUint32(m.Frequency)
	w.putString(m.Datarate)
	w.putString(m.Region)
	w.putUint64(m.HoldTime)
	w.putBytes(m.Gateway)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *PacketRouterPacketUpV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *PacketRouterPacketUpV1) GetSignature() []byte    { return m.Signature }
func (m *PacketRouterPacketUpV1) SetSignature(sig []byte) { m.Signature = sig }

// WindowV1 is one rx1/rx2 downlink scheduling window.
type WindowV1 struct {
	Timestamp uint64
	Frequency uint32
	Datarate  string
}

// PacketRouterPacketDownV1 carries one downlink frame from the router,
// destined for gateway I/O's rx1/rx2 scheduler.
type PacketRouterPacketDownV1 struct {
	Payload []byte
	Rx1     *WindowV1
	Rx2     *WindowV1 // nil if no rx2 window was offered
}

func (m *PacketRouterPacketDownV1) Unmarshal(b []byte) error {
	r := newReader(b)
	var err error
	if m.Payload, err = r.getBytes(); err != nil {
		return err
	}
	hasRx2, err := r.getBool()
	if err != nil {
		return err
	}
	m.Rx1 = &WindowV1{}
	if m.Rx1.Timestamp, err = r.getUint64(); err != nil {
		return err
	}
	if m.Rx1.Frequency, err = r.getUint32(); err != nil {
		return err
	}
	if m.Rx1.Datarate, err = r.getString(); err != nil {
		return err
	}
	if hasRx2 {
		m.Rx2 = &WindowV1{}
		if m.Rx2.Timestamp, err = r.getUint64(); err != nil {
			return err
		}
		if m.Rx2.Frequency, err = r.getUint32(); err != nil {
			return err
		}
		if m.Rx2.Datarate, err = r.getString(); err != nil {
			return err
		}
	}
	return nil
}

// LoraStreamSessionOfferV1 starts the PoC ingest session handshake.
type LoraStreamSessionOfferV1 struct {
	Nonce []byte
}

func (m *LoraStreamSessionOfferV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.Nonce)
	return w.bytes(), nil
}

func (m *LoraStreamSessionOfferV1) Unmarshal(b []byte) error {
	r := newReader(b)
	var err error
	m.Nonce, err = r.getBytes()
	return err
}

// LoraStreamSessionInitV1 is the client's signed reply.
type LoraStreamSessionInitV1 struct {
	Nonce     []byte
	Address   []byte
	Signature []byte
}

func (m *LoraStreamSessionInitV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.Nonce)
	w.putBytes(m.Address)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *LoraStreamSessionInitV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *LoraStreamSessionInitV1) GetSignature() []byte    { return m.Signature }
func (m *LoraStreamSessionInitV1) SetSignature(sig []byte) { m.Signature = sig }

// LoraBeaconReportReqV1 is the signed report submitted after emitting
// a beacon.
type LoraBeaconReportReqV1 struct {
	PubKey         []byte
	LocalEntropy   []byte
	RemoteEntropy  []byte
	Data           []byte
	Frequency      uint64
	Datarate       string
	TxPower        int32
	Timestamp      uint64 // radio tmst at transmit
	CreatedAtNanos uint64
	Signature      []byte
}

func (m *LoraBeaconReportReqV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.PubKey)
	w.putBytes(m.LocalEntropy)
	w.putBytes(m.RemoteEntropy)
	w.putBytes(m.Data)
	w.putUint64(m.Frequency)
	w.putString(m.Datarate)
	w.putInt32(m.TxPower)
	w.putUint64(m.Timestamp)
	w.putUint64(m.CreatedAtNanos)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *LoraBeaconReportReqV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *LoraBeaconReportReqV1) GetSignature() []byte    { return m.Signature }
func (m *LoraBeaconReportReqV1) SetSignature(sig []byte) { m.Signature = sig }

// LoraWitnessReportReqV1 is the signed report submitted for a received
// beacon witness.
type LoraWitnessReportReqV1 struct {
	PubKey    []byte
	Data      []byte
	Timestamp uint64
	Signal    int32 // rssi
	SNR       int32 // fixed point, tenths of a dB
	Frequency uint64
	Datarate  string
	Signature []byte
}

func (m *LoraWitnessReportReqV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putBytes(m.PubKey)
	w.putBytes(m.Data)
	w.putUint64(m.Timestamp)
	w.putInt32(m.Signal)
	w.putInt32(m.SNR)
	w.putUint64(m.Frequency)
	w.putString(m.Datarate)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *LoraWitnessReportReqV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *LoraWitnessReportReqV1) GetSignature() []byte    { return m.Signature }
func (m *LoraWitnessReportReqV1) SetSignature(sig []byte) { m.Signature = sig }

// RegionParamsReqV1 requests the lawful channel set for a region.
type RegionParamsReqV1 struct {
	Region    string
	Address   []byte
	Signature []byte
}

func (m *RegionParamsReqV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putString(m.Region)
	w.putBytes(m.Address)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *RegionParamsReqV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *RegionParamsReqV1) GetSignature() []byte    { return m.Signature }
func (m *RegionParamsReqV1) SetSignature(sig []byte) { m.Signature = sig }

// BlockchainRegionTaggedSpreadingV1 is one (max size, spreading
// factor) entry in a channel's spreading table.
type BlockchainRegionTaggedSpreadingV1 struct {
	MaxPacketSize   uint32
	RegionSpreading uint32
}

// BlockchainRegionSpreadingV1 is the ordered spreading table for one
// channel.
type BlockchainRegionSpreadingV1 struct {
	TaggedSpreading []*BlockchainRegionTaggedSpreadingV1
}

// BlockchainRegionParamV1 is one lawful channel.
type BlockchainRegionParamV1 struct {
	ChannelFrequency uint64
	MaxEirp          int32
	Bandwidth        uint32
	Spreading        *BlockchainRegionSpreadingV1
}

// BlockchainRegionParamsV1 is the full ordered channel list for a
// region, as served by the configuration service.
type BlockchainRegionParamsV1 struct {
	Params []*BlockchainRegionParamV1
}

func (m *BlockchainRegionParamsV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putUint32(uint32(len(m.Params)))
	for _, c := range m.Params {
		w.putUint64(c.ChannelFrequency)
		w.putInt32(c.MaxEirp)
		w.putUint32(c.Bandwidth)
		if c.Spreading == nil {
			w.putUint32(0)
			continue
		}
		w.putUint32(uint32(len(c.Spreading.TaggedSpreading)))
		for _, ts := range c.Spreading.TaggedSpreading {
			w.putUint32(ts.MaxPacketSize)
			w.putUint32(ts.RegionSpreading)
		}
	}
	return w.bytes(), nil
}

func (m *BlockchainRegionParamsV1) Unmarshal(b []byte) error {
	r := newReader(b)
	n, err := r.getUint32()
	if err != nil {
		return err
	}
	m.Params = make([]*BlockchainRegionParamV1, n)
	for i := range m.Params {
		c := &BlockchainRegionParamV1{}
		if c.ChannelFrequency, err = r.getUint64(); err != nil {
			return err
		}
		if c.MaxEirp, err = r.getInt32(); err != nil {
			return err
		}
		if c.Bandwidth, err = r.getUint32(); err != nil {
			return err
		}
		ns, err := r.getUint32()
		if err != nil {
			return err
		}
		spreading := &BlockchainRegionSpreadingV1{TaggedSpreading: make([]*BlockchainRegionTaggedSpreadingV1, ns)}
		for j := range spreading.TaggedSpreading {
			ts := &BlockchainRegionTaggedSpreadingV1{}
			if ts.MaxPacketSize, err = r.getUint32(); err != nil {
				return err
			}
			if ts.RegionSpreading, err = r.getUint32(); err != nil {
				return err
			}
			spreading.TaggedSpreading[j] = ts
		}
		c.Spreading = spreading
		m.Params[i] = c
	}
	return nil
}

func (c *BlockchainRegionParamV1) GetSpreading() *BlockchainRegionSpreadingV1 {
	if c == nil {
		return nil
	}
	return c.Spreading
}
func (c *BlockchainRegionParamV1) GetChannelFrequency() uint64 {
	if c == nil {
		return 0
	}
	return c.ChannelFrequency
}
func (c *BlockchainRegionParamV1) GetMaxEirp() int32 {
	if c == nil {
		return 0
	}
	return c.MaxEirp
}
func (c *BlockchainRegionParamV1) GetBandwidth() uint32 {
	if c == nil {
		return 0
	}
	return c.Bandwidth
}
func (s *BlockchainRegionSpreadingV1) GetTaggedSpreading() []*BlockchainRegionTaggedSpreadingV1 {
	if s == nil {
		return nil
	}
	return s.TaggedSpreading
}
func (t *BlockchainRegionTaggedSpreadingV1) GetMaxPacketSize() uint32 {
	if t == nil {
		return 0
	}
	return t.MaxPacketSize
}
func (t *BlockchainRegionTaggedSpreadingV1) GetRegionSpreading() uint32 {
	if t == nil {
		return 0
	}
	return t.RegionSpreading
}

// RegionParamsRespV1 is the configuration service's signed response.
type RegionParamsRespV1 struct {
	Region    string
	Params    *BlockchainRegionParamsV1
	Gain      int32
	Signature []byte
}

func (m *RegionParamsRespV1) Unmarshal(b []byte) error {
	r := newReader(b)
	var err error
	if m.Region, err = r.getString(); err != nil {
		return err
	}
	paramBytes, err := r.getBytes()
	if err != nil {
		return err
	}
	m.Params = &BlockchainRegionParamsV1{}
	if len(paramBytes) > 0 {
		if err := m.Params.Unmarshal(paramBytes); err != nil {
			return err
		}
	}
	if m.Gain, err = r.getInt32(); err != nil {
		return err
	}
	if m.Signature, err = r.getBytes(); err != nil {
		return err
	}
	return nil
}

func (m *RegionParamsRespV1) Marshal() ([]byte, error) {
	w := &writer{}
	w.putString(m.Region)
	var paramBytes []byte
	if m.Params != nil {
		b, err := m.Params.Marshal()
		if err != nil {
			return nil, err
		}
		paramBytes = b
	}
	w.putBytes(paramBytes)
	w.putInt32(m.Gain)
	w.putBytes(m.Signature)
	return w.bytes(), nil
}

func (m *RegionParamsRespV1) ClearSignature() Signable {
	c := *m
	c.Signature = nil
	return &c
}
func (m *RegionParamsRespV1) GetSignature() []byte    { return m.Signature }
func (m *RegionParamsRespV1) SetSignature(sig []byte) { m.Signature = sig }

// EnvelopeUpV1 is the tagged union of messages a client may send on
// the packet-router conduit.
type EnvelopeUpV1 struct {
	Register    *PacketRouterRegisterV1
	Packet      *PacketRouterPacketUpV1
	SessionInit *PacketRouterSessionInitV1
}

func (m *EnvelopeUpV1) Marshal() ([]byte, error) {
	w := &writer{}
	switch {
	case m.Register != nil:
		w.buf.WriteByte(1)
		b, _ := m.Register.Marshal()
		w.putBytes(b)
	case m.Packet != nil:
		w.buf.WriteByte(2)
		b, _ := m.Packet.Marshal()
		w.putBytes(b)
	case m.SessionInit != nil:
		w.buf.WriteByte(3)
		b, _ := m.SessionInit.Marshal()
		w.putBytes(b)
	default:
		w.buf.WriteByte(0)
	}
	return w.bytes(), nil
}

// EnvelopeDownV1 is the tagged union of messages the server may send.
type EnvelopeDownV1 struct {
	SessionOffer *PacketRouterSessionOfferV1
	Packet       *PacketRouterPacketDownV1
}

func (m *EnvelopeDownV1) Unmarshal(b []byte) error {
	r := newReader(b)
	tag, err := r.r.ReadByte()
	if err != nil {
		return errShortRead
	}
	payload, err := r.getBytes()
	if err != nil {
		return err
	}
	switch tag {
	case 1:
		m.SessionOffer = &PacketRouterSessionOfferV1{}
		return m.SessionOffer.Unmarshal(payload)
	case 2:
		m.Packet = &PacketRouterPacketDownV1{}
		return m.Packet.Unmarshal(payload)
	}
	return nil
}

// EnvelopePocUpV1 is the tagged union of messages a client may send on
// the PoC ingest conduit.
type EnvelopePocUpV1 struct {
	SessionInit   *LoraStreamSessionInitV1
	BeaconReport  *LoraBeaconReportReqV1
	WitnessReport *LoraWitnessReportReqV1
}

func (m *EnvelopePocUpV1) Marshal() ([]byte, error) {
	w := &writer{}
	switch {
	case m.SessionInit != nil:
		w.buf.WriteByte(1)
		b, _ := m.SessionInit.Marshal()
		w.putBytes(b)
	case m.BeaconReport != nil:
		w.buf.WriteByte(2)
		b, _ := m.BeaconReport.Marshal()
		w.putBytes(b)
	case m.WitnessReport != nil:
		w.buf.WriteByte(3)
		b, _ := m.WitnessReport.Marshal()
		w.putBytes(b)
	default:
		w.buf.WriteByte(0)
	}
	return w.bytes(), nil
}

// EnvelopePocDownV1 is the tagged union of messages the PoC ingest
// service may send.
type EnvelopePocDownV1 struct {
	SessionOffer *LoraStreamSessionOfferV1
}

func (m *EnvelopePocDownV1) Unmarshal(b []byte) error {
	r := newReader(b)
	tag, err := r.r.ReadByte()
	if err != nil {
		return errShortRead
	}
	if tag == 0 {
		return nil
	}
	payload, err := r.getBytes()
	if err != nil {
		return err
	}
	if tag == 1 {
		m.SessionOffer = &LoraStreamSessionOfferV1{}
		return m.SessionOffer.Unmarshal(payload)
	}
	return nil
}
