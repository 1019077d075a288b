// Package wire defines the envelope and report messages exchanged
// with the packet-router and PoC ingest services, and the region
// parameter set served by the configuration service.
//
// No protoc toolchain is available in this environment, so these
// messages are not generated from .proto descriptors. Instead they
// are hand-written Go structs with a small deterministic binary
// codec (length-prefixed fields in a fixed order) that plays the same
// role a generated pb.go file would: stable wire bytes suitable for
// canonical-form signing and gRPC transport via a custom codec
// (see internal/grpcx).
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

var errShortRead = errors.New("wire: unexpected end of message")

type writer struct {
	buf bytes.Buffer
}

func (w *writer) bytes() []byte { return w.buf.Bytes() }

func (w *writer) putUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) putUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) putInt32(v int32)   { w.putUint32(uint32(v)) }
func (w *writer) putInt64(v int64)   { w.putUint64(uint64(v)) }
func (w *writer) putBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *writer) putBytes(b []byte) {
	w.putUint32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *writer) putString(s string) { w.putBytes([]byte(s)) }

type reader struct {
	r *bytes.Reader
}

func newReader(b []byte) *reader { return &reader{r: bytes.NewReader(b)} }

func (r *reader) getUint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, errShortRead
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *reader) getUint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, errShortRead
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (r *reader) getInt32() (int32, error) {
	v, err := r.getUint32()
	return int32(v), err
}

func (r *reader) getInt64() (int64, error) {
	v, err := r.getUint64()
	return int64(v), err
}

func (r *reader) getBool() (bool, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return false, errShortRead
	}
	return b != 0, nil
}

func (r *reader) getBytes() ([]byte, error) {
	n, err := r.getUint32()
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, errShortRead
	}
	return b, nil
}

func (r *reader) getString() (string, error) {
	b, err := r.getBytes()
	return string(b), err
}
