// Package gatewayio speaks the Semtech UDP packet-forwarder protocol
// to the locally attached concentrator, classifies received frames,
// and schedules rx1/rx2 downlink transmission.
package gatewayio

import "github.com/lorawan-server/gatewayd/internal/lorawan"

// Semtech UDP packet-forwarder protocol identifiers.
const (
	ProtocolVersion = 2

	PushData = 0x00
	PushAck  = 0x01
	PullData = 0x02
	PullResp = 0x03
	PullAck  = 0x04
	TxAck    = 0x05
)

// RXPacket is one uplink frame reported by the concentrator in a
// push_data message's rxpk array.
type RXPacket struct {
	Data      []byte
	Timestamp uint32 // tmst, concentrator internal clock, µs
	Frequency float64
	Datarate  string
	RSSI      float64
	SNR       float64
	CRCStatus int // 1 ok, -1 bad, 0 disabled
}

// TXWindow describes one scheduled transmit opportunity.
type TXWindow struct {
	Timestamp uint32
	Frequency float64
	Datarate  string
	Power     int
}

// DownlinkRequest is what callers (packet router, beaconer) hand to
// Dispatch: the PHY payload plus its rx1 window and optional rx2
// fallback.
type DownlinkRequest struct {
	Payload []byte
	Rx1     TXWindow
	Rx2     *TXWindow
}

// WitnessFrame is a received Proprietary-framed payload together with
// the RF metadata the beaconer needs to build a witness report.
type WitnessFrame struct {
	Payload   []byte
	Timestamp uint32
	Frequency float64
	Datarate  string
	RSSI      float64
	SNR       float64
}

// UplinkFrame is a received, decoded non-proprietary frame together
// with its raw PHY payload and the RF metadata the packet-router
// client needs to build a PacketRouterPacketUpV1.
type UplinkFrame struct {
	Frame     lorawan.Frame
	Payload   []byte
	Timestamp uint32
	Frequency float64
	Datarate  string
	RSSI      float64
	SNR       float64
}

// DispatchError classifies why a transmit attempt was rejected by the
// concentrator.
type DispatchError int

const (
	DispatchOK DispatchError = iota
	DispatchTooEarly
	DispatchTooLate
	DispatchOther
)
