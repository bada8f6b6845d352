// Package raster implements TriRaster (§4.5): the triangle traversal
// engine. It iterates a 2x2 quad across a clipped bounding box,
// incrementally interpolating attributes, and produces per-quad writes
// after an optional texture/fog/blend fragment pipeline.
//
// Grounded on original_source/src/tri_raster.py for the traversal core;
// the depth test, texturing, fog and blend stages are spec.md's addition
// over that ancestor and have no direct source-file ancestor.
package raster

import "github.com/GlaireDaggers/Athena-GPU/blockcache"

// DIM is the width/height in pixels of the render tile.
const DIM = 32

// ChannelDeltas is one linearly-interpolated attribute: its value at the
// triangle bounding box's top-left corner, and its increment per one-pixel
// step in x and y (a quad step adds twice that).
type ChannelDeltas struct {
	Init, DX, DY int32
}

// DepthCompare selects the depth test comparison function (§4.5 table).
type DepthCompare uint8

const (
	DepthNever DepthCompare = iota
	DepthAlways
	DepthEqual
	DepthNotEqual
	DepthLess
	DepthGreater
	DepthLessEqual
	DepthGreaterEqual
)

// BlendFactor selects a per-channel blend multiplier (§4.5, §6.1:
// bl_src/bl_dst ∈ 0..9).
type BlendFactor uint8

const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcColor
	BlendSrcAlpha
	BlendDstColor
	BlendDstAlpha
	BlendInvSrcColor
	BlendInvSrcAlpha
	BlendInvDstColor
	BlendInvDstAlpha
)

// BlendOp selects how the scaled src/dst terms combine.
type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSub
)

// TriangleInput is the tri_stb payload (§6.1): everything latched at the
// start of a triangle's rasterization.
type TriangleInput struct {
	V0, V1, V2 [2]int32 // vertex (x,y), pixel units

	Col [4]ChannelDeltas // R,G,B,A, Q8.12 signed

	OneOverW ChannelDeltas // Q12.12 signed
	SOverW   ChannelDeltas
	TOverW   ChannelDeltas
	ZOverW   ChannelDeltas // Q12.12 signed; Q8.24 at output bit layout

	TexEnable    bool
	TexAddr      uint32
	TexW         uint // log2 width
	TexH         uint // log2 height
	TexFormat    blockcache.Format
	ClampS       bool
	ClampT       bool
	MipEnable    bool
	FilterEnable bool // bilinear filtering; false selects point sampling (§4.4)

	DepthTestEnable bool
	DepthCompare    DepthCompare

	BlendEnable bool
	BlendSrc    BlendFactor
	BlendDst    BlendFactor
	BlendOp     BlendOp

	FogEnable bool
	FogColor  [3]uint8 // RGB
	FogTable  [64]uint8
}

// FrameBuffer is the read side of the frame buffer protocol (§6.4):
// queried by the rasterizer for the existing contents at a quad position,
// needed for depth test and blend dst. Unlike the texture bus, spec.md's
// external interfaces section gives this no handshake, so it is modeled as
// a zero-latency synchronous read the core calls directly (mirroring the
// plain i_rd_data_rgb/i_rd_data_d input wires in the hardware source).
type FrameBuffer interface {
	ReadQuad(qx, qy int32) (color [4]uint32, depth [4]uint32)
}

// QuadWrite is the per-tick frame buffer write protocol (§6.4).
type QuadWrite struct {
	QuadX, QuadY int32
	WriteEnable  [4]bool
	ColorRGBA    [4]uint32
	Depth        [4]uint32
}
