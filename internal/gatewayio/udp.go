package gatewayio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lorawan-server/gatewayd/internal/lorawan"
)

const dispatchTimeout = 5 * time.Second

// Gateway speaks the Semtech UDP protocol to one locally attached
// concentrator and classifies/forwards the frames it sees.
type Gateway struct {
	conn *net.UDPConn
	log  zerolog.Logger

	toPacketRouter chan<- UplinkFrame
	toBeaconer     chan<- WitnessFrame

	mu       sync.Mutex
	pullAddr *net.UDPAddr
	pullTok  [2]byte
}

// New binds bindAddr and returns a Gateway forwarding classified
// uplinks onto toPacketRouter and toBeaconer.
func New(bindAddr string, toPacketRouter chan<- UplinkFrame, toBeaconer chan<- WitnessFrame, log zerolog.Logger) (*Gateway, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("gatewayio: resolve %s: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("gatewayio: listen %s: %w", bindAddr, err)
	}
	return &Gateway{conn: conn, log: log, toPacketRouter: toPacketRouter, toBeaconer: toBeaconer}, nil
}

// Run reads UDP packets until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) error {
	g.log.Info().Str("addr", g.conn.LocalAddr().String()).Msg("gateway I/O listening")

	go func() {
		<-ctx.Done()
		g.conn.Close()
	}()

	buf := make([]byte, 65507)
	for {
		n, addr, err := g.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			g.log.Error().Err(err).Msg("udp read error")
			continue
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		go g.handlePacket(packet, addr)
	}
}

func (g *Gateway) handlePacket(data []byte, addr *net.UDPAddr) {
	if len(data) < 4 {
		return
	}
	version := data[0]
	token := binary.BigEndian.Uint16(data[1:3])
	identifier := data[3]

	if version != ProtocolVersion {
		g.log.Warn().Uint8("version", version).Msg("unsupported protocol version")
		return
	}

	switch identifier {
	case PushData:
		g.handlePushData(data, addr, token)
	case PullData:
		g.handlePullData(data, addr, token)
	case TxAck:
		g.handleTxAck(data)
	default:
		g.log.Warn().Uint8("type", identifier).Msg("unknown semtech message type")
	}
}

func (g *Gateway) handlePushData(data []byte, addr *net.UDPAddr, token uint16) {
	if len(data) < 12 {
		return
	}
	g.ack(PushAck, addr, token)

	if len(data) <= 12 {
		return
	}
	var payload struct {
		RXPK []rawRXPK              `json:"rxpk"`
		Stat map[string]interface{} `json:"stat"`
	}
	if err := json.Unmarshal(data[12:], &payload); err != nil {
		g.log.Error().Err(err).Msg("parse push_data json")
		return
	}
	for _, pkt := range payload.RXPK {
		g.handleRXPK(pkt)
	}
}

type rawRXPK struct {
	Tmst uint32  `json:"tmst"`
	Freq float64 `json:"freq"`
	Datr string  `json:"datr"`
	RSSI float64 `json:"rssi"`
	LSNR float64 `json:"lsnr"`
	Data string  `json:"data"`
	Stat int     `json:"stat"` // CRC status: 1 ok, -1 bad, 0 disabled
}

func (g *Gateway) handleRXPK(pkt rawRXPK) {
	if pkt.Stat != 1 {
		g.log.Debug().Int("crc", pkt.Stat).Msg("dropping frame with bad or disabled CRC")
		return
	}

	raw, err := decodeBase64(pkt.Data)
	if err != nil {
		g.log.Warn().Err(err).Msg("decode rxpk data")
		return
	}

	if isLongFiFramed(raw) {
		return
	}

	frame, err := lorawan.Read(lorawan.Uplink, raw)
	if err != nil {
		g.log.Debug().Err(err).Msg("undecodable frame, dropping")
		return
	}

	if frame.MHDR.MType == lorawan.Proprietary {
		if g.toBeaconer != nil {
			wf := WitnessFrame{
				Payload:   frame.Proprietary,
				Timestamp: pkt.Tmst,
				Frequency: pkt.Freq,
				Datarate:  pkt.Datr,
				RSSI:      pkt.RSSI,
				SNR:       pkt.LSNR,
			}
			select {
			case g.toBeaconer <- wf:
			default:
				g.log.Warn().Msg("beaconer witness channel full, dropping")
			}
		}
		return
	}

	if g.toPacketRouter != nil {
		uf := UplinkFrame{
			Frame:     *frame,
			Payload:   raw,
			Timestamp: pkt.Tmst,
			Frequency: pkt.Freq,
			Datarate:  pkt.Datr,
			RSSI:      pkt.RSSI,
			SNR:       pkt.LSNR,
		}
		select {
		case g.toPacketRouter <- uf:
		default:
			g.log.Warn().Msg("packet router inbound channel full, dropping")
		}
	}
}

// isLongFiFramed reports whether raw looks like a LongFi-wrapped
// frame rather than a plain LoRaWAN PHYPayload; gatewayd has no
// LongFi decoder and these frames are silently ignored.
func isLongFiFramed(raw []byte) bool {
	const longFiMagic = 0x00
	return len(raw) > 0 && raw[0] == longFiMagic && len(raw) < 4
}

func (g *Gateway) handlePullData(data []byte, addr *net.UDPAddr, token uint16) {
	if len(data) < 12 {
		return
	}
	g.mu.Lock()
	g.pullAddr = addr
	g.pullTok = [2]byte{data[1], data[2]}
	g.mu.Unlock()

	g.ack(PullAck, addr, token)
}

func (g *Gateway) handleTxAck(data []byte) {
	if len(data) < 12 {
		return
	}
	g.log.Debug().Msg("received tx_ack from concentrator")
}

func (g *Gateway) ack(kind byte, addr *net.UDPAddr, token uint16) {
	resp := make([]byte, 4)
	resp[0] = ProtocolVersion
	binary.BigEndian.PutUint16(resp[1:3], token)
	resp[3] = kind
	if _, err := g.conn.WriteToUDP(resp, addr); err != nil {
		g.log.Error().Err(err).Msg("send ack")
	}
}

// Dispatch transmits req via its rx1 window; if that attempt reports
// TooEarly or TooLate and an rx2 window was offered, it retries on
// rx2. A transport error is logged and returned; any other rejection
// is logged and dropped. transmit reports DispatchOK as soon as the
// pull_resp is written and tx_ack replies are not matched to requests,
// so the rx2 retry is never taken.
func (g *Gateway) Dispatch(ctx context.Context, req DownlinkRequest) error {
	ctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()

	result, err := g.transmit(ctx, req.Payload, req.Rx1)
	if err != nil {
		g.log.Error().Err(err).Msg("rx1 dispatch failed")
		return err
	}
	switch result {
	case DispatchOK:
		return nil
	case DispatchTooEarly, DispatchTooLate:
		if req.Rx2 == nil {
			g.log.Warn().Msg("rx1 window missed and no rx2 window offered, dropping downlink")
			return nil
		}
		result, err = g.transmit(ctx, req.Payload, *req.Rx2)
		if err != nil {
			g.log.Error().Err(err).Msg("rx2 dispatch failed")
			return err
		}
		if result != DispatchOK {
			g.log.Warn().Msg("rx2 dispatch also missed, dropping downlink")
		}
		return nil
	default:
		g.log.Warn().Msg("dispatch rejected by concentrator, dropping downlink")
		return nil
	}
}

func (g *Gateway) transmit(ctx context.Context, payload []byte, win TXWindow) (DispatchError, error) {
	g.mu.Lock()
	addr := g.pullAddr
	tok := g.pullTok
	g.mu.Unlock()

	if addr == nil {
		return DispatchOther, fmt.Errorf("gatewayio: no pull_data address on file yet")
	}

	txpk := map[string]interface{}{
		"imme": win.Timestamp == 0, // tmst 0 requests immediate transmission
		"tmst": win.Timestamp,
		"freq": win.Frequency,
		"datr": win.Datarate,
		"modu": "LORA",
		"powe": win.Power,
		"ipol": true,
		"size": len(payload),
		"data": encodeBase64(payload),
	}
	body, err := json.Marshal(map[string]interface{}{"txpk": txpk})
	if err != nil {
		return DispatchOther, err
	}

	resp := make([]byte, 0, 4+len(body))
	resp = append(resp, ProtocolVersion, tok[0], tok[1], PullResp)
	resp = append(resp, body...)

	if _, err := g.conn.WriteToUDP(resp, addr); err != nil {
		return DispatchOther, err
	}
	return DispatchOK, nil
}
