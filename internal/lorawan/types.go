// Package lorawan implements the LoRaWAN PHY frame codec and the
// DevAddr/NetID/Subnet arithmetic used to recognize local traffic.
package lorawan

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// EUI64 is an 8-byte extended identifier, stored in the order it appears
// on the wire (little-endian). String and JSON forms print the
// conventional big-endian hex representation.
type EUI64 [8]byte

func (e EUI64) String() string {
	var b [8]byte
	for i := range b {
		b[i] = e[7-i]
	}
	return hex.EncodeToString(b[:])
}

func (e EUI64) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *EUI64) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(b) != 8 {
		return fmt.Errorf("lorawan: EUI64 needs 8 bytes, got %d", len(b))
	}
	for i := range b {
		e[7-i] = b[i]
	}
	return nil
}

// DevAddr is a 32-bit LoRaWAN device address.
type DevAddr uint32

func (d DevAddr) String() string {
	return fmt.Sprintf("%08X", uint32(d))
}

// AES128Key is a 128-bit AES key.
type AES128Key [16]byte

func (k AES128Key) String() string {
	return hex.EncodeToString(k[:])
}

// MType is the 3-bit frame type code carried in MHDR.
type MType byte

const (
	JoinRequest MType = iota
	JoinAccept
	UnconfirmedUp
	UnconfirmedDown
	ConfirmedUp
	ConfirmedDown
	mtypeInvalid
	Proprietary
)

func (m MType) String() string {
	switch m {
	case JoinRequest:
		return "JoinRequest"
	case JoinAccept:
		return "JoinAccept"
	case UnconfirmedUp:
		return "UnconfirmedUp"
	case UnconfirmedDown:
		return "UnconfirmedDown"
	case ConfirmedUp:
		return "ConfirmedUp"
	case ConfirmedDown:
		return "ConfirmedDown"
	case Proprietary:
		return "Proprietary"
	default:
		return "Invalid"
	}
}

func (m MType) valid() bool {
	return m != mtypeInvalid
}

func (m MType) hasMIC() bool {
	return m != Proprietary
}

// Direction distinguishes uplink (device-to-gateway) from downlink
// (gateway-to-device) frames, since FCtrl is laid out differently.
type Direction int

const (
	Uplink Direction = iota
	Downlink
)

// MHDR is the single-byte MAC header.
type MHDR struct {
	MType MType
	Major byte
}

func (h MHDR) encode() byte {
	return byte(h.MType)<<5 | (h.Major & 0x03)
}

func decodeMHDR(b byte) MHDR {
	return MHDR{MType: MType(b >> 5), Major: b & 0x03}
}

// FCtrl is the frame-control byte. ADRACKReq and FPending are
// meaningful only on uplink; ClassB only on downlink.
type FCtrl struct {
	ADR       bool
	ADRACKReq bool
	ACK       bool
	ClassB    bool
	FPending  bool
	FOptsLen  uint8
}

func (c FCtrl) encode(dir Direction) byte {
	var b byte
	if c.ADR {
		b |= 0x80
	}
	if dir == Uplink && c.ADRACKReq {
		b |= 0x40
	}
	if c.ACK {
		b |= 0x20
	}
	if dir == Uplink && c.FPending {
		b |= 0x10
	}
	if dir == Downlink && c.ClassB {
		b |= 0x10
	}
	b |= c.FOptsLen & 0x0F
	return b
}

func decodeFCtrl(dir Direction, b byte) FCtrl {
	c := FCtrl{
		ADR:      b&0x80 != 0,
		ACK:      b&0x20 != 0,
		FOptsLen: b & 0x0F,
	}
	if dir == Uplink {
		c.ADRACKReq = b&0x40 != 0
		c.FPending = b&0x10 != 0
	} else {
		c.ClassB = b&0x10 != 0
	}
	return c
}

// FHDR is the frame header of a MAC payload.
type FHDR struct {
	DevAddr DevAddr
	FCtrl   FCtrl
	FCnt    uint16
	FOpts   []byte
}

// MACPayload is the body of a JoinRequest/Accept-free data frame.
type MACPayload struct {
	FHDR       FHDR
	FPort      *uint8
	FRMPayload []byte
}

// JoinRequestPayload is the body of a JoinRequest frame.
type JoinRequestPayload struct {
	JoinEUI  EUI64
	DevEUI   EUI64
	DevNonce [2]byte
}

// DLSettings configures the device's RX1/RX2 windows after a join.
type DLSettings struct {
	RX1DROffset uint8
	RX2DataRate uint8
}

// JoinAcceptPayload is the body of a JoinAccept frame.
type JoinAcceptPayload struct {
	JoinNonce  [3]byte
	NetID      [3]byte
	DevAddr    DevAddr
	DLSettings DLSettings
	RxDelay    uint8
	CFList     []byte
}

// Frame is a decoded PHY payload: exactly one of the payload fields is
// populated, selected by MHDR.MType.
type Frame struct {
	MHDR        MHDR
	JoinRequest *JoinRequestPayload
	JoinAccept  *JoinAcceptPayload
	MACPayload  *MACPayload
	Proprietary []byte
	MIC         [4]byte
}
