package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlaireDaggers/Athena-GPU/blockcache"
	"github.com/GlaireDaggers/Athena-GPU/memio"
	"github.com/GlaireDaggers/Athena-GPU/raster"
)

func TestTileBuffer_ApplyThenReadQuadRoundTrips(t *testing.T) {
	tb := NewTileBuffer()
	w := raster.QuadWrite{
		QuadX:       3,
		QuadY:       5,
		WriteEnable: [4]bool{true, true, false, true},
		ColorRGBA:   [4]uint32{0x11, 0x22, 0x33, 0x44},
		Depth:       [4]uint32{100, 200, 300, 400},
	}
	tb.Apply(w)

	color, depth := tb.ReadQuad(3, 5)
	assert.Equal(t, uint32(0x11), color[0])
	assert.Equal(t, uint32(0x22), color[1])
	assert.Equal(t, uint32(0), color[2], "corner 2 was not write-enabled")
	assert.Equal(t, uint32(0x44), color[3])
	assert.Equal(t, uint32(100), depth[0])
	assert.Equal(t, uint32(0), depth[2])

	c, d := tb.At(6, 10) // (qx=3,qy=5)*2 + (0,0)
	assert.Equal(t, uint32(0x11), c)
	assert.Equal(t, uint32(100), d)
}

func TestCore_FillThenTick(t *testing.T) {
	fb := NewTileBuffer()
	texMem := memio.NewRAM(16, 0)
	core := NewCore(fb, texMem)

	require.NoError(t, core.SubmitFill([4]uint8{5, 6, 7, 8}, 0x1000))
	assert.True(t, core.Busy())

	const quadsPerSide = raster.DIM / 2
	for i := 0; i < quadsPerSide*quadsPerSide; i++ {
		w := core.Tick()
		fb.Apply(w)
	}
	assert.False(t, core.Busy())

	c, d := fb.At(0, 0)
	r, g, b, a := uint8(c), uint8(c>>8), uint8(c>>16), uint8(c>>24)
	assert.Equal(t, uint8(5), r)
	assert.Equal(t, uint8(6), g)
	assert.Equal(t, uint8(7), b)
	assert.Equal(t, uint8(8), a)
	assert.Equal(t, uint32(0x1000), d)

	stats := core.Stats()
	assert.Equal(t, uint64(1), stats.TrianglesCompleted)
	assert.Equal(t, uint64(quadsPerSide*quadsPerSide), stats.QuadsWritten)
}

func TestCore_RunUntilIdle_FlatTriangle(t *testing.T) {
	fb := NewTileBuffer()
	texMem := memio.NewRAM(16, 0)
	core := NewCore(fb, texMem)

	tri := raster.TriangleInput{
		V0:  [2]int32{0, 0},
		V1:  [2]int32{10, 0},
		V2:  [2]int32{0, 10},
		Col: [4]raster.ChannelDeltas{{Init: 255 << 12}, {Init: 0}, {Init: 0}, {Init: 255 << 12}},
	}

	writes, err := RunUntilIdle(core, tri, 4096)
	require.NoError(t, err)
	require.NotEmpty(t, writes)

	for _, w := range writes {
		fb.Apply(w)
	}

	c, _ := fb.At(1, 1)
	r, _, _, a := uint8(c), uint8(c>>8), uint8(c>>16), uint8(c>>24)
	assert.Equal(t, uint8(255), r)
	assert.Equal(t, uint8(255), a)
}

func TestCore_SubmitTriangleWhileBusyErrors(t *testing.T) {
	fb := NewTileBuffer()
	texMem := memio.NewRAM(16, 0)
	core := NewCore(fb, texMem)

	tri := raster.TriangleInput{V0: [2]int32{0, 0}, V1: [2]int32{4, 0}, V2: [2]int32{0, 4}}
	require.NoError(t, core.SubmitTriangle(tri))
	assert.Error(t, core.SubmitTriangle(tri))
}

// TestCore_PerspectiveCorrectBilinearTexturedTriangle checks §8 S2: an
// 8x8 RGBA4444 checkerboard (one block per quadrant, since RGBA4444's
// fill format packs two texels per word and so can't toggle color at
// single-texel granularity), 1/w held at 1.0 so s/w, t/w map directly to
// texture space, bilinear filtering, clamp S and T.
func TestCore_PerspectiveCorrectBilinearTexturedTriangle(t *testing.T) {
	const red = uint32(0xF00F)   // R=0xF, A=0xF nibbles -> expands to (240,0,0,240)
	const green = uint32(0xF0F0) // G=0xF, A=0xF nibbles -> expands to (0,240,0,240)

	words := make([]uint32, 32)
	fillBlock := func(blockIdx int, word uint32) {
		for i := 0; i < 8; i++ {
			words[blockIdx*8+i] = word
		}
	}
	fillBlock(0, red)   // block (0,0): texels x=0..3, y=0..3
	fillBlock(1, green) // block (1,0): texels x=4..7, y=0..3
	fillBlock(2, green) // block (0,1): texels x=0..3, y=4..7
	fillBlock(3, red)   // block (1,1): texels x=4..7, y=4..7

	texMem := memio.NewRAM(64, 0)
	texMem.Load(0, words)

	fb := NewTileBuffer()
	core := NewCore(fb, texMem)

	white := raster.ChannelDeltas{Init: 255 << 12}
	tri := raster.TriangleInput{
		V0:        [2]int32{0, 0},
		V1:        [2]int32{8, 0},
		V2:        [2]int32{0, 8},
		Col:       [4]raster.ChannelDeltas{white, white, white, white},
		OneOverW:  raster.ChannelDeltas{Init: 1 << 12},
		SOverW:    raster.ChannelDeltas{DX: 512},
		TOverW:    raster.ChannelDeltas{DY: 512},
		TexEnable: true, TexAddr: 0, TexW: 3, TexH: 3,
		TexFormat:    blockcache.FormatRGBA4444,
		ClampS:       true,
		ClampT:       true,
		FilterEnable: true,
	}

	writes, err := RunUntilIdle(core, tri, 8192)
	require.NoError(t, err)
	for _, w := range writes {
		fb.Apply(w)
	}

	// Deep in the red quadrant: r=g=b irrelevant to modulate, but the
	// vertex color's own rounding (round8(255, x) = (255x+128)>>8) means
	// a full-scale texel nibble (240) modulates down to 239, not 240.
	c, _ := fb.At(1, 1)
	r, g, _, a := uint8(c), uint8(c>>8), uint8(c>>16), uint8(c>>24)
	assert.Equal(t, uint8(239), r)
	assert.Equal(t, uint8(0), g)
	assert.Equal(t, uint8(239), a)

	// Deep in the green quadrant.
	c, _ = fb.At(5, 1)
	r, g, _, a = uint8(c), uint8(c>>8), uint8(c>>16), uint8(c>>24)
	assert.Equal(t, uint8(0), r)
	assert.Equal(t, uint8(239), g)
	assert.Equal(t, uint8(239), a)

	// Straddling the block boundary in s: bilinear filtering must blend
	// red and green rather than hard-snapping to one texel.
	c, _ = fb.At(4, 0)
	r, g, _, _ = uint8(c), uint8(c>>8), uint8(c>>16), uint8(c>>24)
	assert.Greater(t, r, uint8(0))
	assert.Less(t, r, uint8(239))
	assert.Greater(t, g, uint8(0))
	assert.Less(t, g, uint8(239))
}
