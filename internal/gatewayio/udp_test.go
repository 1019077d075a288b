package gatewayio

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/lorawan-server/gatewayd/internal/lorawan"
)

func newTestGateway(toPR chan UplinkFrame, toBeacon chan WitnessFrame) *Gateway {
	return &Gateway{log: zerolog.Nop(), toPacketRouter: toPR, toBeaconer: toBeacon}
}

func proprietaryFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	frame := &lorawan.Frame{
		MHDR:        lorawan.MHDR{MType: lorawan.Proprietary, Major: 0},
		Proprietary: payload,
	}
	b, err := lorawan.Write(lorawan.Uplink, frame)
	if err != nil {
		t.Fatalf("lorawan.Write: %v", err)
	}
	return b
}

func unconfirmedUpFrame(t *testing.T) []byte {
	t.Helper()
	port := uint8(1)
	frame := &lorawan.Frame{
		MHDR: lorawan.MHDR{MType: lorawan.UnconfirmedUp, Major: 0},
		MACPayload: &lorawan.MACPayload{
			FHDR:       lorawan.FHDR{DevAddr: 0x01020304},
			FPort:      &port,
			FRMPayload: []byte{0xAA},
		},
	}
	b, err := lorawan.Write(lorawan.Uplink, frame)
	if err != nil {
		t.Fatalf("lorawan.Write: %v", err)
	}
	return b
}

func TestHandleRXPKDropsBadCRC(t *testing.T) {
	toPR := make(chan UplinkFrame, 1)
	toBeacon := make(chan WitnessFrame, 1)
	g := newTestGateway(toPR, toBeacon)

	g.handleRXPK(rawRXPK{Stat: -1, Data: encodeBase64(unconfirmedUpFrame(t))})

	select {
	case <-toPR:
		t.Fatal("bad-CRC frame was forwarded to the packet router")
	default:
	}
}

func TestHandleRXPKDropsDisabledCRC(t *testing.T) {
	toPR := make(chan UplinkFrame, 1)
	toBeacon := make(chan WitnessFrame, 1)
	g := newTestGateway(toPR, toBeacon)

	g.handleRXPK(rawRXPK{Stat: 0, Data: encodeBase64(unconfirmedUpFrame(t))})

	select {
	case <-toPR:
		t.Fatal("disabled-CRC frame was forwarded to the packet router")
	default:
	}
}

func TestHandleRXPKRoutesProprietaryToBeaconer(t *testing.T) {
	toPR := make(chan UplinkFrame, 1)
	toBeacon := make(chan WitnessFrame, 1)
	g := newTestGateway(toPR, toBeacon)

	payload := []byte{1, 2, 3, 4, 5}
	g.handleRXPK(rawRXPK{Stat: 1, Freq: 869525000, Datr: "SF7BW125", RSSI: -80, LSNR: 5.5, Data: encodeBase64(proprietaryFrame(t, payload))})

	select {
	case got := <-toBeacon:
		if string(got.Payload) != string(payload) {
			t.Fatalf("got payload %v, want %v", got.Payload, payload)
		}
		if got.Frequency != 869525000 || got.Datarate != "SF7BW125" {
			t.Fatalf("witness frame lost RF metadata: %+v", got)
		}
	default:
		t.Fatal("proprietary frame was not forwarded to the beaconer")
	}

	select {
	case <-toPR:
		t.Fatal("proprietary frame was also forwarded to the packet router")
	default:
	}
}

func TestHandleRXPKRoutesDataFrameToPacketRouter(t *testing.T) {
	toPR := make(chan UplinkFrame, 1)
	toBeacon := make(chan WitnessFrame, 1)
	g := newTestGateway(toPR, toBeacon)

	raw := unconfirmedUpFrame(t)
	g.handleRXPK(rawRXPK{Stat: 1, Freq: 868100000, Datr: "SF7BW125", RSSI: -70, LSNR: 8, Tmst: 12345, Data: encodeBase64(raw)})

	select {
	case uf := <-toPR:
		if uf.Frame.MHDR.MType != lorawan.UnconfirmedUp {
			t.Fatalf("got MType %v, want UnconfirmedUp", uf.Frame.MHDR.MType)
		}
		if string(uf.Payload) != string(raw) {
			t.Fatalf("uplink frame lost its raw payload")
		}
		if uf.Frequency != 868100000 || uf.Datarate != "SF7BW125" || uf.Timestamp != 12345 {
			t.Fatalf("uplink frame lost RF metadata: %+v", uf)
		}
	default:
		t.Fatal("data frame was not forwarded to the packet router")
	}
}
