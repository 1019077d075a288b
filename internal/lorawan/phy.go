package lorawan

import "encoding/binary"

const micLen = 4

// Read decodes a PHY payload received in the given direction.
func Read(dir Direction, b []byte) (*Frame, error) {
	if len(b) < 1 {
		return nil, ErrFrameTooShort
	}
	mhdr := decodeMHDR(b[0])
	if mhdr.Major != 0 {
		return nil, ErrInvalidMajor
	}
	if !mhdr.MType.valid() {
		return nil, ErrInvalidMType
	}

	frame := &Frame{MHDR: mhdr}
	body := b[1:]

	switch mhdr.MType {
	case JoinRequest:
		if len(b) != 23 {
			return nil, ErrBadJoinRequest
		}
		payload := body[:len(body)-micLen]
		jr := &JoinRequestPayload{}
		copy(jr.JoinEUI[:], payload[0:8])
		copy(jr.DevEUI[:], payload[8:16])
		copy(jr.DevNonce[:], payload[16:18])
		frame.JoinRequest = jr
		copy(frame.MIC[:], body[len(body)-micLen:])
		return frame, nil

	case JoinAccept:
		if len(b) != 17 && len(b) != 33 {
			return nil, ErrBadJoinAccept
		}
		payload := body[:len(body)-micLen]
		ja := &JoinAcceptPayload{}
		copy(ja.JoinNonce[:], payload[0:3])
		copy(ja.NetID[:], payload[3:6])
		ja.DevAddr = DevAddr(binary.LittleEndian.Uint32(payload[6:10]))
		ja.DLSettings = DLSettings{RX1DROffset: payload[10] >> 4, RX2DataRate: payload[10] & 0x0F}
		ja.RxDelay = payload[11]
		if len(payload) > 12 {
			ja.CFList = append([]byte{}, payload[12:]...)
		}
		frame.JoinAccept = ja
		copy(frame.MIC[:], body[len(body)-micLen:])
		return frame, nil

	case UnconfirmedUp, UnconfirmedDown, ConfirmedUp, ConfirmedDown:
		if len(b) < 12 {
			return nil, ErrFrameTooShort
		}
		payload := body[:len(body)-micLen]
		mp, err := decodeMACPayload(dir, payload)
		if err != nil {
			return nil, err
		}
		frame.MACPayload = mp
		copy(frame.MIC[:], body[len(body)-micLen:])
		return frame, nil

	case Proprietary:
		frame.Proprietary = append([]byte{}, body...)
		return frame, nil
	}

	return nil, ErrInvalidMType
}

func decodeMACPayload(dir Direction, payload []byte) (*MACPayload, error) {
	if len(payload) < 7 {
		return nil, ErrFrameTooShort
	}
	devAddr := DevAddr(binary.LittleEndian.Uint32(payload[0:4]))
	fctrl := decodeFCtrl(dir, payload[4])
	fcnt := binary.LittleEndian.Uint16(payload[5:7])

	off := 7
	foptsLen := int(fctrl.FOptsLen)
	if len(payload) < off+foptsLen {
		return nil, ErrFrameTooShort
	}
	fopts := append([]byte{}, payload[off:off+foptsLen]...)
	off += foptsLen

	mp := &MACPayload{
		FHDR: FHDR{DevAddr: devAddr, FCtrl: fctrl, FCnt: fcnt, FOpts: fopts},
	}

	if off < len(payload) {
		fport := payload[off]
		off++
		if fport == 0 && foptsLen > 0 {
			return nil, ErrFOptsWithFPort0
		}
		mp.FPort = &fport
		mp.FRMPayload = append([]byte{}, payload[off:]...)
	}
	return mp, nil
}

// Write encodes a frame back into PHY wire bytes.
func Write(dir Direction, f *Frame) ([]byte, error) {
	out := []byte{f.MHDR.encode()}

	switch f.MHDR.MType {
	case JoinRequest:
		jr := f.JoinRequest
		out = append(out, jr.JoinEUI[:]...)
		out = append(out, jr.DevEUI[:]...)
		out = append(out, jr.DevNonce[:]...)
		out = append(out, f.MIC[:]...)
		return out, nil

	case JoinAccept:
		ja := f.JoinAccept
		out = append(out, ja.JoinNonce[:]...)
		out = append(out, ja.NetID[:]...)
		var addr [4]byte
		binary.LittleEndian.PutUint32(addr[:], uint32(ja.DevAddr))
		out = append(out, addr[:]...)
		out = append(out, ja.DLSettings.RX1DROffset<<4|ja.DLSettings.RX2DataRate&0x0F)
		out = append(out, ja.RxDelay)
		out = append(out, ja.CFList...)
		out = append(out, f.MIC[:]...)
		return out, nil

	case UnconfirmedUp, UnconfirmedDown, ConfirmedUp, ConfirmedDown:
		mp := f.MACPayload
		var addr [4]byte
		binary.LittleEndian.PutUint32(addr[:], uint32(mp.FHDR.DevAddr))
		out = append(out, addr[:]...)
		fctrl := mp.FHDR.FCtrl
		fctrl.FOptsLen = uint8(len(mp.FHDR.FOpts))
		out = append(out, fctrl.encode(dir))
		var fcnt [2]byte
		binary.LittleEndian.PutUint16(fcnt[:], mp.FHDR.FCnt)
		out = append(out, fcnt[:]...)
		out = append(out, mp.FHDR.FOpts...)
		if mp.FPort != nil {
			out = append(out, *mp.FPort)
			out = append(out, mp.FRMPayload...)
		}
		out = append(out, f.MIC[:]...)
		return out, nil

	case Proprietary:
		out = append(out, f.Proprietary...)
		return out, nil
	}

	return nil, ErrInvalidMType
}
