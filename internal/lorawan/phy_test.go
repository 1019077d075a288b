package lorawan

import (
	"bytes"
	"testing"
)

func TestReadUnconfirmedUp(t *testing.T) {
	b := []byte{64, 71, 165, 101, 0, 128, 130, 41, 2, 214, 3, 27, 61, 140, 165, 211, 143, 196, 1, 134, 56, 31, 122, 222}

	frame, err := Read(Uplink, b)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if frame.MHDR.MType != UnconfirmedUp {
		t.Fatalf("MType = %v, want UnconfirmedUp", frame.MHDR.MType)
	}
	if frame.MACPayload.FHDR.DevAddr != DevAddr(0x0065A547) {
		t.Fatalf("DevAddr = %08X, want 0065A547", uint32(frame.MACPayload.FHDR.DevAddr))
	}

	out, err := Write(Uplink, frame)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(out, b) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", out, b)
	}
}

func TestReadJoinRequest(t *testing.T) {
	b := []byte{0, 141, 8, 0, 32, 176, 213, 179, 112, 127, 140, 3, 32, 176, 213, 179, 112, 135, 15, 125, 90, 77, 199}

	frame, err := Read(Uplink, b)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if frame.MHDR.MType != JoinRequest {
		t.Fatalf("MType = %v, want JoinRequest", frame.MHDR.MType)
	}
	if got := frame.JoinRequest.JoinEUI.String(); got != "70b3d5b02000088d" {
		t.Fatalf("JoinEUI = %s, want 70b3d5b02000088d", got)
	}
	if got := frame.JoinRequest.DevEUI.String(); got != "70b3d5b020038c7f" {
		t.Fatalf("DevEUI = %s, want 70b3d5b020038c7f", got)
	}

	out, err := Write(Uplink, frame)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(out, b) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", out, b)
	}
}

func TestReadRejectsBadMajor(t *testing.T) {
	b := []byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if _, err := Read(Uplink, b); err != ErrInvalidMajor {
		t.Fatalf("err = %v, want ErrInvalidMajor", err)
	}
}

func TestReadRejectsShortJoinRequest(t *testing.T) {
	b := make([]byte, 22)
	if _, err := Read(Uplink, b); err != ErrBadJoinRequest {
		t.Fatalf("err = %v, want ErrBadJoinRequest", err)
	}
}

func TestProprietaryRoundTrip(t *testing.T) {
	f := &Frame{
		MHDR:        MHDR{MType: Proprietary, Major: 0},
		Proprietary: []byte{1, 2, 3, 4, 5},
	}
	out, err := Write(Uplink, f)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	back, err := Read(Uplink, out)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(back.Proprietary, f.Proprietary) {
		t.Fatalf("Proprietary round trip mismatch: got %v want %v", back.Proprietary, f.Proprietary)
	}
}

func TestFPort0WithFOptsRejected(t *testing.T) {
	mp := &MACPayload{
		FHDR: FHDR{DevAddr: 1, FCtrl: FCtrl{}, FCnt: 0, FOpts: []byte{1}},
	}
	fport := uint8(0)
	mp.FPort = &fport
	f := &Frame{MHDR: MHDR{MType: UnconfirmedUp}, MACPayload: mp}
	b, err := Write(Uplink, f)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := Read(Uplink, b); err != ErrFOptsWithFPort0 {
		t.Fatalf("err = %v, want ErrFOptsWithFPort0", err)
	}
}
