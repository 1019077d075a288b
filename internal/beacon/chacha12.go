package beacon

import (
	"encoding/binary"
	"math/bits"
)

// chacha12 is a reduced-round (12, not the usual 20) ChaCha stream
// cipher used only as a deterministic RNG over a 32-byte seed.
// golang.org/x/crypto's chacha20 implementations are hardcoded to 20
// rounds, so this is implemented from the published ChaCha quarter-
// round construction with the round count changed.
type chacha12 struct {
	state  [16]uint32
	block  [64]byte
	offset int
}

var chachaConstants = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

func newChaCha12(seed [32]byte) *chacha12 {
	c := &chacha12{}
	copy(c.state[0:4], chachaConstants[:])
	for i := 0; i < 8; i++ {
		c.state[4+i] = binary.LittleEndian.Uint32(seed[i*4 : i*4+4])
	}
	// counter and nonce are zero: the seed alone determines the stream.
	c.offset = 64
	return c
}

func quarterRound(state *[16]uint32, a, b, c, d int) {
	state[a] += state[b]
	state[d] = bits.RotateLeft32(state[d]^state[a], 16)
	state[c] += state[d]
	state[b] = bits.RotateLeft32(state[b]^state[c], 12)
	state[a] += state[b]
	state[d] = bits.RotateLeft32(state[d]^state[a], 8)
	state[c] += state[d]
	state[b] = bits.RotateLeft32(state[b]^state[c], 7)
}

func (c *chacha12) nextBlock() {
	var working [16]uint32
	copy(working[:], c.state[:])

	for i := 0; i < 6; i++ { // 6 double-rounds = 12 rounds
		quarterRound(&working, 0, 4, 8, 12)
		quarterRound(&working, 1, 5, 9, 13)
		quarterRound(&working, 2, 6, 10, 14)
		quarterRound(&working, 3, 7, 11, 15)
		quarterRound(&working, 0, 5, 10, 15)
		quarterRound(&working, 1, 6, 11, 12)
		quarterRound(&working, 2, 7, 8, 13)
		quarterRound(&working, 3, 4, 9, 14)
	}

	for i := range working {
		working[i] += c.state[i]
		binary.LittleEndian.PutUint32(c.block[i*4:i*4+4], working[i])
	}

	c.state[12]++ // 32-bit block counter
	c.offset = 0
}

// nextUint32 draws the next little-endian 32 bits of keystream.
func (c *chacha12) nextUint32() uint32 {
	if c.offset+4 > len(c.block) {
		c.nextBlock()
	}
	v := binary.LittleEndian.Uint32(c.block[c.offset : c.offset+4])
	c.offset += 4
	return v
}

// uintn draws a uniform value in [0, n) by rejection over 32-bit
// draws: a draw at or above the largest multiple of n below 2^32 is
// discarded, and an accepted draw is reduced modulo n.
func (c *chacha12) uintn(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	limit := (1 << 32) - (1<<32)%uint64(n)
	for {
		v := uint64(c.nextUint32())
		if v < limit {
			return uint32(v % uint64(n))
		}
	}
}
