package raster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlendFactorRGB_Zero(t *testing.T) {
	r, g, b := blendFactorRGB(BlendZero, 10, 20, 30, 40, 50, 60, 70, 80)
	assert.Equal(t, uint8(0), r)
	assert.Equal(t, uint8(0), g)
	assert.Equal(t, uint8(0), b)
}

func TestBlendFactorRGB_InvSrcAlpha(t *testing.T) {
	r, g, b := blendFactorRGB(BlendInvSrcAlpha, 0, 0, 0, 64, 0, 0, 0, 0)
	assert.Equal(t, uint8(191), r)
	assert.Equal(t, uint8(191), g)
	assert.Equal(t, uint8(191), b)
}

func TestBlendFactorRGB_DstColor(t *testing.T) {
	r, g, b := blendFactorRGB(BlendDstColor, 0, 0, 0, 0, 11, 22, 33, 0)
	assert.Equal(t, uint8(11), r)
	assert.Equal(t, uint8(22), g)
	assert.Equal(t, uint8(33), b)
}

func TestBlendChannel_AddSaturates(t *testing.T) {
	assert.Equal(t, uint8(255), blendChannel(255, 255, 255, 255, BlendOpAdd))
}

func TestBlendChannel_SubFloorsAtZero(t *testing.T) {
	assert.Equal(t, uint8(0), blendChannel(255, 255, 10, 255, BlendOpSub))
}

// TestBlendAlpha_MatchesWorkedExample reproduces the scenario that pinned
// alpha blending to implicit ONE/ONE factors: src.a=128 over dst.a=255 with
// ADD saturates to 255, which the factor-weighted RGB formula alone would
// not reach for these inputs.
func TestBlendAlpha_MatchesWorkedExample(t *testing.T) {
	assert.Equal(t, uint8(255), blendAlpha(128, 255, BlendOpAdd))
}

func TestBlendAlpha_Sub(t *testing.T) {
	assert.Equal(t, uint8(127), blendAlpha(128, 255, BlendOpSub))
}

func TestBlendPixel_OneMinusSrcAlphaOverSolidDst(t *testing.T) {
	src := packRGBA(200, 200, 200, 128)
	dst := packRGBA(0, 0, 0, 255)

	out := blendPixel(src, dst, BlendSrcAlpha, BlendInvSrcAlpha, BlendOpAdd)
	r, g, b, a := unpackRGBA(out)

	// src*srcAlpha/256 + dst*(1-srcAlpha)/256, srcAlpha=128 ~ half weight.
	assert.InDelta(t, 100, int(r), 2)
	assert.InDelta(t, 100, int(g), 2)
	assert.InDelta(t, 100, int(b), 2)
	assert.Equal(t, uint8(255), a)
}
