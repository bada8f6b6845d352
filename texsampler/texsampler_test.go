package texsampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GlaireDaggers/Athena-GPU/blockcache"
	"github.com/GlaireDaggers/Athena-GPU/memio"
	"github.com/GlaireDaggers/Athena-GPU/texcache"
)

func TestSampler_UniformTextureSettlesToUniformColor(t *testing.T) {
	mem := memio.NewRAM(16, 0)
	words := make([]uint32, 16)
	for i := range words {
		words[i] = 0x40404040
	}
	mem.Load(0, words)

	tc := texcache.New()
	s := New()

	req := Request{
		ST:      ST{S: 2048, T: 2048},
		TexW:    2,
		TexH:    2,
		ClampS:  true,
		ClampT:  true,
		Filter:  true,
		TexAddr: 0,
		Format:  blockcache.FormatRGBA8888,
	}

	var color uint32
	var ack bool
	for i := 0; i < 128 && !ack; i++ {
		color, ack = s.Tick(true, req, tc, mem)
	}
	require.True(t, ack, "sampler never produced an ack within the tick budget")
	assert.Equal(t, uint32(0x40404040), color)
}

// TestSampler_FilterDisabledForwardsTexelOnAckCycle checks §4.4's point
// sampling path: with Filter false, the sampler must ack the very tick the
// cache ack arrives and return the raw top-left cluster texel, without the
// Lerp1/Lerp2 pipeline's usual two extra ticks of latency.
func TestSampler_FilterDisabledForwardsTexelOnAckCycle(t *testing.T) {
	mem := memio.NewRAM(16, 0)
	words := make([]uint32, 16)
	for i := range words {
		words[i] = 0x11223344
	}
	mem.Load(0, words)

	tc := texcache.New()
	s := New()

	req := Request{
		ST:      ST{S: 2048, T: 2048},
		TexW:    2,
		TexH:    2,
		ClampS:  true,
		ClampT:  true,
		Filter:  false,
		TexAddr: 0,
		Format:  blockcache.FormatRGBA8888,
	}

	var color uint32
	var ack bool
	for i := 0; i < 128 && !ack; i++ {
		color, ack = s.Tick(true, req, tc, mem)
	}
	require.True(t, ack, "point-sampled request never acked within the tick budget")
	assert.Equal(t, uint32(0x11223344), color)
}

func TestSampler_IdleBeforeFirstRequestDoesNotAck(t *testing.T) {
	mem := memio.NewRAM(16, 0)
	tc := texcache.New()
	s := New()

	_, ack := s.Tick(false, Request{}, tc, mem)
	assert.False(t, ack)
}

func TestMipLevel_ZeroAtOrUnderOneTexelPerPixel(t *testing.T) {
	assert.Equal(t, uint(0), MipLevel(1<<24, 8))
	assert.Equal(t, uint(0), MipLevel(0, 8))
}

func TestMipLevel_ClampsToMaxLevel(t *testing.T) {
	huge := uint64(1) << 60
	assert.Equal(t, uint(3), MipLevel(huge, 3))
}

func TestMaxMipLevel(t *testing.T) {
	assert.Equal(t, uint(0), MaxMipLevel(1, 1))
	assert.Equal(t, uint(0), MaxMipLevel(2, 2))
	assert.Equal(t, uint(3), MaxMipLevel(5, 5))
	assert.Equal(t, uint(2), MaxMipLevel(4, 6))
}
