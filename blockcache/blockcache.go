// Package blockcache implements BlockCache (§4.2): a read-only cache of a
// single 4x4 texel block, decoded from one of four backing formats into 16
// RGBA8888 texels held across four banks so any 2x2 footprint hits four
// distinct banks in one tick.
//
// Grounded on original_source/src/texblock.py. Per §9's REDESIGN note, the
// A8 format from an older revision is dropped; only RGBA4444, RGBA8888,
// NXTC-0 and NXTC-1 are implemented.
package blockcache

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Format selects how a 4x4 block is decoded from backing memory.
type Format uint8

const (
	FormatRGBA4444 Format = iota
	FormatRGBA8888
	FormatNXTC0
	FormatNXTC1
)

// String implements fmt.Stringer for logging.
func (f Format) String() string {
	switch f {
	case FormatRGBA4444:
		return "RGBA4444"
	case FormatRGBA8888:
		return "RGBA8888"
	case FormatNXTC0:
		return "NXTC-0"
	case FormatNXTC1:
		return "NXTC-1"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// WordShift is the log2 of the block's size in 32-bit words, used by
// TexCache to compute per-block addresses (§4.3 step 4).
func (f Format) WordShift() uint {
	switch f {
	case FormatRGBA4444:
		return 3
	case FormatRGBA8888:
		return 4
	case FormatNXTC0:
		return 1
	case FormatNXTC1:
		return 2
	default:
		return 0
	}
}

// Valid reports whether f names one of the four supported formats.
func (f Format) Valid() bool {
	return f <= FormatNXTC1
}

type state uint8

const (
	stateIdle state = iota
	stateFillRGBA4444
	stateFillRGBA8888
	stateFillNXTC0
	stateFillNXTC1
	stateFillNXTC2
	stateFillNXTC3
	stateDecodeNXTC
)

// Cluster is the 2x2 texel read returned for a sample position, in the
// order (sx,sy), (sx+1,sy), (sx,sy+1), (sx+1,sy+1) — same order as §4.2.
type Cluster [4]uint32

// SubPos is a top-left sample position within a 4x4 block, 0..3 per axis.
// Corners past x=3 or y=3 wrap to 0 within the same block (see Peek).
type SubPos struct {
	X, Y uint8
}

// BlockCache holds one decoded 4x4 block. Zero value is a valid, empty
// (miss-everything) cache.
type BlockCache struct {
	banks [4][4]uint32 // [bank][bank_offset] -> RGBA8888, per §4.2 bank layout

	tag   uint32
	valid bool

	st        state
	fillAddr  uint32 // base address of the block currently being filled
	fillOffs  uint8  // word offset within the block fill sequence

	nxtcMode     uint8 // 0 or 1, latched at fill start
	nxtcMedRGB   uint32
	nxtcLumaRGB  int32
	nxtcIdxRGB   uint32
	nxtcMedA     uint8
	nxtcLumaA    int32
	nxtcIdxA     uint32

	Log *log.Logger // optional; nil is fine

	id string // for logging only
}

// New returns an empty BlockCache. id is used only in log messages.
func New(id string) *BlockCache {
	return &BlockCache{id: id}
}

func bank(x, y uint8) uint8 {
	return ((y & 1) << 1) | (x & 1)
}

func bankOffset(x, y uint8) uint8 {
	return (((y >> 1) & 1) << 1) | ((x >> 1) & 1)
}

// Peek is the combinational read path (§4.2 "access"): it reflects the
// block's state as of the last completed commit, independent of whatever
// fill transition Commit performs this tick. ack is true iff the cache
// currently holds addr's block and stb is asserted.
func (b *BlockCache) Peek(addr uint32, subPos SubPos, stb bool) (out Cluster, ack bool) {
	ack = b.valid && b.tag == addr && stb

	corners := [4]struct{ x, y uint8 }{
		{subPos.X, subPos.Y},
		{(subPos.X + 1) & 3, subPos.Y},
		{subPos.X, (subPos.Y + 1) & 3},
		{(subPos.X + 1) & 3, (subPos.Y + 1) & 3},
	}
	for i, c := range corners {
		out[i] = b.banks[bank(c.x, c.y)][bankOffset(c.x, c.y)]
	}
	return out, ack
}

// PendingRequest reports the memory request this block wants to make this
// tick, purely a function of its current fill state (§4.2's o_mem_stb /
// o_mem_adr). A block only ever wants the bus while mid-fill.
func (b *BlockCache) PendingRequest() (addr uint32, stb bool) {
	switch b.st {
	case stateFillRGBA4444, stateFillRGBA8888, stateFillNXTC0, stateFillNXTC1, stateFillNXTC2, stateFillNXTC3:
		return b.fillAddr + uint32(b.fillOffs), true
	default:
		return 0, false
	}
}

// Commit advances the block's internal state by one tick: it may start a
// new fill (if idle or tag-mismatched and stb requests addr/format), or
// consume this tick's memory ack to make fill progress, or perform the
// one-tick NXTC decode. This is the clk_logic half of §4.2's state machine.
func (b *BlockCache) Commit(addr uint32, format Format, stb bool, memAck bool, memData uint32) {
	switch b.st {
	case stateIdle:
		if stb && (!b.valid || b.tag != addr) {
			b.logMiss(addr, format)
			b.fillAddr = addr
			b.fillOffs = 0
			switch format {
			case FormatRGBA4444:
				b.st = stateFillRGBA4444
			case FormatRGBA8888:
				b.st = stateFillRGBA8888
			case FormatNXTC0:
				b.nxtcMode = 0
				b.st = stateFillNXTC0
			case FormatNXTC1:
				b.nxtcMode = 1
				b.st = stateFillNXTC0
			}
		}
	case stateFillRGBA4444:
		if memAck {
			b.fillRGBA4444Word(memData)
			if b.fillOffs == 7 {
				b.completeFill()
			} else {
				b.fillOffs++
			}
		}
	case stateFillRGBA8888:
		if memAck {
			b.fillRGBA8888Word(memData)
			if b.fillOffs == 15 {
				b.completeFill()
			} else {
				b.fillOffs++
			}
		}
	case stateFillNXTC0:
		if memAck {
			b.nxtcMedRGB = memData & 0xFFFFFF
			b.nxtcLumaRGB = int32(memData >> 24)
			b.fillOffs = 1
			b.st = stateFillNXTC1
		}
	case stateFillNXTC1:
		if memAck {
			b.nxtcIdxRGB = memData
			b.fillOffs = 2
			if b.nxtcMode == 1 {
				b.st = stateFillNXTC2
			} else {
				b.st = stateDecodeNXTC
			}
		}
	case stateFillNXTC2:
		if memAck {
			b.nxtcMedA = uint8(memData & 0xFF)
			b.nxtcLumaA = int32(memData >> 24)
			b.fillOffs = 3
			b.st = stateFillNXTC3
		}
	case stateFillNXTC3:
		if memAck {
			b.nxtcIdxA = memData
			b.st = stateDecodeNXTC
		}
	case stateDecodeNXTC:
		b.decodeNXTC()
		b.completeFill()
	}
}

func (b *BlockCache) completeFill() {
	b.tag = b.fillAddr
	b.valid = true
	b.st = stateIdle
}

func (b *BlockCache) logMiss(addr uint32, format Format) {
	if b.Log == nil {
		return
	}
	b.Log.Debug("block cache miss", "id", b.id, "addr", addr, "format", format, "loaded", b.tag, "valid", b.valid)
}

// fillRGBA4444Word unpacks one source word into two texels (§4.2:
// "Each source word carries two 4-bit pixels expanded to 8-bit by
// replicating the nibble into the high bits").
func (b *BlockCache) fillRGBA4444Word(word uint32) {
	expand := func(nibble uint32) uint8 { return uint8(nibble << 4) }
	r := expand(word & 0xF)
	g := expand((word >> 4) & 0xF)
	bl := expand((word >> 8) & 0xF)
	a := expand((word >> 12) & 0xF)
	col := packRGBA(r, g, bl, a)

	idx := b.fillOffs * 2
	x0, y0 := idx&3, (idx>>2)&3
	x1 := (idx + 1) & 3
	y1 := ((idx + 1) >> 2) & 3

	b.banks[bank(x0, y0)][bankOffset(x0, y0)] = col
	b.banks[bank(x1, y1)][bankOffset(x1, y1)] = col
}

func (b *BlockCache) fillRGBA8888Word(word uint32) {
	idx := b.fillOffs
	x, y := idx&3, (idx>>2)&3
	b.banks[bank(x, y)][bankOffset(x, y)] = word
}

func packRGBA(r, g, bl, a uint8) uint32 {
	return uint32(r) | uint32(g)<<8 | uint32(bl)<<16 | uint32(a)<<24
}

func sat8(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// decodeNXTC performs the one-tick combinational decode of both the
// latched RGB block and (mode 1 only) alpha block into all 16 texels, in
// z-curve texel order per §6.2. The luma table is the literal 4-entry
// table (-(scale>>1), scale>>1, scale, scale) taken directly from
// original_source/src/util/nxtc_dec.py's decode_block_0 / nxtc_enc.py's
// encode_block_0, resolving §9's open question: treat the encoder's table
// as authoritative for both the RGB and (mode 1) alpha blocks.
func (b *BlockCache) decodeNXTC() {
	r0 := int32(b.nxtcMedRGB & 0xFF)
	g0 := int32((b.nxtcMedRGB >> 8) & 0xFF)
	bl0 := int32((b.nxtcMedRGB >> 16) & 0xFF)
	lumaTableRGB := [4]int32{-(b.nxtcLumaRGB >> 1), b.nxtcLumaRGB >> 1, b.nxtcLumaRGB, b.nxtcLumaRGB}

	var lumaTableA [4]int32
	if b.nxtcMode == 1 {
		lumaTableA = [4]int32{-(b.nxtcLumaA >> 1), b.nxtcLumaA >> 1, b.nxtcLumaA, b.nxtcLumaA}
	}

	// z-curve order: texel i's (x,y) position within the 4x4 block.
	zOrder := [16][2]uint8{
		{0, 0}, {1, 0}, {0, 1}, {1, 1},
		{2, 0}, {3, 0}, {2, 1}, {3, 1},
		{0, 2}, {1, 2}, {0, 3}, {1, 3},
		{2, 2}, {3, 2}, {2, 3}, {3, 3},
	}

	for i := 0; i < 16; i++ {
		idxRGB := (b.nxtcIdxRGB >> uint(i*2)) & 3
		offs := lumaTableRGB[idxRGB]
		r := sat8(r0 + offs)
		g := sat8(g0 + offs)
		bv := sat8(bl0 + offs)

		a := uint8(255)
		if b.nxtcMode == 1 {
			idxA := (b.nxtcIdxA >> uint(i*2)) & 3
			offsA := lumaTableA[idxA]
			a = sat8(int32(b.nxtcMedA) + offsA)
		}

		x, y := zOrder[i][0], zOrder[i][1]
		b.banks[bank(x, y)][bankOffset(x, y)] = packRGBA(r, g, bv, a)
	}
}
