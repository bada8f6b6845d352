package raster

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/GlaireDaggers/Athena-GPU/memio"
	"github.com/GlaireDaggers/Athena-GPU/texcache"
	"github.com/GlaireDaggers/Athena-GPU/texsampler"
)

type state uint8

const (
	stateWaiting state = iota
	stateSetup1
	stateSetup2
	stateSetup3
	stateSetup4
	stateRasterLoop
	stateTex
	stateCombine
	stateBlend
	stateFill
)

// Raster is the triangle traversal engine (§4.5).
type Raster struct {
	st  state
	tri TriangleInput

	needsPipeline bool

	bmin, bmax [2]int32
	offs       [2]int32

	a01, a12, a20 int32
	b01, b12, b20 int32
	bias0         int32
	bias1         int32
	bias2         int32

	w0Row, w1Row, w2Row int32
	w0, w1, w2          [4]int32

	p [2]int32

	colRow [4]int32
	col    [4][4]int32

	oneOwRow, sowRow, towRow, zowRow int32
	oneOw, sow, tow, zow             [4]int32

	sampleValid [4]bool
	depthPass   [4]bool
	texCol      [4]uint32
	outCol      [4]uint32
	rdColor     [4]uint32
	rdDepth     [4]uint32

	awaitingWrite          bool
	texCorner              int
	texSettling            int
	texPendingCombine      bool
	blendCorner            int
	derivDone              bool
	dsdx, dtdx, dsdy, dtdy int32

	sampler *texsampler.Sampler

	fillColor uint32
	fillDepth uint32
	fillP     [2]int32

	Log *log.Logger
}

// New returns an idle rasterizer.
func New() *Raster {
	return &Raster{sampler: texsampler.New()}
}

// Busy reports whether a triangle or fill is currently in progress.
func (r *Raster) Busy() bool {
	return r.st != stateWaiting
}

func validateTriangle(tri TriangleInput) error {
	if tri.TexEnable {
		if !tri.TexFormat.Valid() {
			return fmt.Errorf("raster: invalid texture format %v", tri.TexFormat)
		}
		if tri.TexW < 2 || tri.TexH < 2 {
			return fmt.Errorf("raster: texture log2 size must be >= 2, got (%d,%d)", tri.TexW, tri.TexH)
		}
	}
	if tri.DepthCompare > DepthGreaterEqual {
		return fmt.Errorf("raster: invalid depth compare code %d", tri.DepthCompare)
	}
	if tri.BlendEnable {
		if tri.BlendSrc > BlendInvDstAlpha || tri.BlendDst > BlendInvDstAlpha {
			return fmt.Errorf("raster: invalid blend factor (src=%d dst=%d)", tri.BlendSrc, tri.BlendDst)
		}
		if tri.BlendOp > BlendOpSub {
			return fmt.Errorf("raster: invalid blend op %d", tri.BlendOp)
		}
	}
	return nil
}

// Begin latches a new triangle (the WAITING->SETUP1 transition of §4.5),
// mirroring tri_raster.py's i_en branch. Returns an error (refusing the
// request at the boundary, per §7) if busy or misconfigured.
func (r *Raster) Begin(tri TriangleInput) error {
	if r.st != stateWaiting {
		return fmt.Errorf("raster: Begin called while busy")
	}
	if err := validateTriangle(tri); err != nil {
		return err
	}

	r.tri = tri
	r.needsPipeline = tri.TexEnable || tri.FogEnable || tri.BlendEnable

	for i := 0; i < 4; i++ {
		r.colRow[i] = tri.Col[i].Init
	}
	r.oneOwRow = tri.OneOverW.Init
	r.sowRow = tri.SOverW.Init
	r.towRow = tri.TOverW.Init
	r.zowRow = tri.ZOverW.Init

	r.bmin[0] = min2(tri.V0[0], tri.V1[0])
	r.bmin[1] = min2(tri.V0[1], tri.V1[1])
	r.bmax[0] = max2(tri.V0[0], tri.V1[0])
	r.bmax[1] = max2(tri.V0[1], tri.V1[1])

	r.awaitingWrite = false
	r.st = stateSetup1
	if r.Log != nil {
		r.Log.Debug("triangle begin", "tex", tri.TexEnable, "blend", tri.BlendEnable, "fog", tri.FogEnable)
	}
	return nil
}

// BeginFill kicks off the alternate fill path (§4.5 "Fill path").
func (r *Raster) BeginFill(color [4]uint8, depth uint32) error {
	if r.st != stateWaiting {
		return fmt.Errorf("raster: BeginFill called while busy")
	}
	r.fillColor = packRGBA(color[0], color[1], color[2], color[3])
	r.fillDepth = depth
	r.fillP = [2]int32{0, 0}
	r.st = stateFill
	return nil
}

// Tick advances the rasterizer by one cycle, per §5's two-phase model
// (this call performs both the combinational evaluation and the edge
// commit for whatever state is current). fb, tc and mem are only consulted
// by the states that need them (RASTERLOOP reads fb; TEX drives tc and mem).
func (r *Raster) Tick(fb FrameBuffer, tc *texcache.TexCache, mem memio.Port) QuadWrite {
	switch r.st {
	case stateWaiting:
		return QuadWrite{}
	case stateSetup1:
		r.setup1()
		return QuadWrite{}
	case stateSetup2:
		r.setup2()
		return QuadWrite{}
	case stateSetup3:
		r.setup3()
		return QuadWrite{}
	case stateSetup4:
		r.setup4()
		return QuadWrite{}
	case stateRasterLoop:
		return r.tickRasterLoop(fb)
	case stateTex:
		return r.tickTex(tc, mem)
	case stateCombine:
		return r.tickCombine()
	case stateBlend:
		return r.tickBlend()
	case stateFill:
		return r.tickFill()
	default:
		return QuadWrite{}
	}
}

func (r *Raster) setup1() {
	r.bmin[0] = min2(r.bmin[0], r.tri.V2[0])
	r.bmin[1] = min2(r.bmin[1], r.tri.V2[1])
	r.bmax[0] = max2(r.bmax[0], r.tri.V2[0])
	r.bmax[1] = max2(r.bmax[1], r.tri.V2[1])

	v0, v1, v2 := r.tri.V0, r.tri.V1, r.tri.V2
	r.a01 = v0[1] - v1[1]
	r.a12 = v1[1] - v2[1]
	r.a20 = v2[1] - v0[1]
	r.b01 = v1[0] - v0[0]
	r.b12 = v2[0] - v1[0]
	r.b20 = v0[0] - v2[0]

	r.bias0 = biasFor(v1[1], v2[1], v1[0], v2[0])
	r.bias1 = biasFor(v2[1], v0[1], v2[0], v0[0])
	r.bias2 = biasFor(v0[1], v1[1], v0[0], v1[0])

	r.st = stateSetup2
}

func biasFor(ay, by, ax, bx int32) int32 {
	if isTopLeft(ay, by, ax, bx) {
		return 0
	}
	return -1
}

func (r *Raster) setup2() {
	r.offs[0] = 0
	if r.bmin[0] < 0 {
		r.offs[0] = -r.bmin[0]
	}
	r.offs[1] = 0
	if r.bmin[1] < 0 {
		r.offs[1] = -r.bmin[1]
	}

	r.bmin[0] = max2(r.bmin[0]>>1, 0)
	r.bmin[1] = max2(r.bmin[1]>>1, 0)
	r.bmax[0] = min2((r.bmax[0]+1)>>1, (DIM>>1)-1)
	r.bmax[1] = min2((r.bmax[1]+1)>>1, (DIM>>1)-1)

	r.st = stateSetup3
}

func (r *Raster) setup3() {
	for i := 0; i < 4; i++ {
		r.colRow[i] += r.tri.Col[i].DX*r.offs[0] + r.tri.Col[i].DY*r.offs[1]
	}
	r.oneOwRow += r.tri.OneOverW.DX*r.offs[0] + r.tri.OneOverW.DY*r.offs[1]
	r.sowRow += r.tri.SOverW.DX*r.offs[0] + r.tri.SOverW.DY*r.offs[1]
	r.towRow += r.tri.TOverW.DX*r.offs[0] + r.tri.TOverW.DY*r.offs[1]
	r.zowRow += r.tri.ZOverW.DX*r.offs[0] + r.tri.ZOverW.DY*r.offs[1]

	r.p[0] = r.bmin[0]
	r.p[1] = r.bmin[1]

	w0Row := orient2D(r.tri.V1[0], r.tri.V1[1], r.tri.V2[0], r.tri.V2[1], r.bmin[0], r.bmin[1]) + r.bias0
	w1Row := orient2D(r.tri.V2[0], r.tri.V2[1], r.tri.V0[0], r.tri.V0[1], r.bmin[0], r.bmin[1]) + r.bias1
	w2Row := orient2D(r.tri.V0[0], r.tri.V0[1], r.tri.V1[0], r.tri.V1[1], r.bmin[0], r.bmin[1]) + r.bias2
	r.w0Row, r.w1Row, r.w2Row = w0Row, w1Row, w2Row

	r.w0 = [4]int32{w0Row, w0Row + r.a12, w0Row + r.b12, w0Row + r.a12 + r.b12}
	r.w1 = [4]int32{w1Row, w1Row + r.a20, w1Row + r.b20, w1Row + r.a20 + r.b20}
	r.w2 = [4]int32{w2Row, w2Row + r.a01, w2Row + r.b01, w2Row + r.a01 + r.b01}

	r.st = stateSetup4
}

func (r *Raster) setup4() {
	for i := 0; i < 4; i++ {
		row, dx, dy := r.colRow[i], r.tri.Col[i].DX, r.tri.Col[i].DY
		r.col[0][i] = row
		r.col[1][i] = row + dx
		r.col[2][i] = row + dy
		r.col[3][i] = row + dx + dy
	}
	r.oneOw = seedCorners(r.oneOwRow, r.tri.OneOverW.DX, r.tri.OneOverW.DY)
	r.sow = seedCorners(r.sowRow, r.tri.SOverW.DX, r.tri.SOverW.DY)
	r.tow = seedCorners(r.towRow, r.tri.TOverW.DX, r.tri.TOverW.DY)
	r.zow = seedCorners(r.zowRow, r.tri.ZOverW.DX, r.tri.ZOverW.DY)

	r.awaitingWrite = false
	r.st = stateRasterLoop
}

func seedCorners(row, dx, dy int32) [4]int32 {
	return [4]int32{row, row + dx, row + dy, row + dx + dy}
}

// nextEligibleCorner returns the smallest corner index > from that is both
// sample-valid and depth-passing, or 4 if none remain.
func (r *Raster) nextEligibleCorner(from int) int {
	for i := from + 1; i < 4; i++ {
		if r.sampleValid[i] && r.depthPass[i] {
			return i
		}
	}
	return 4
}

// depthTestPass compares zow as unsigned Q8.24 bits (§3, §6.1): zow is never
// a signed quantity, so the comparison must not treat bit 31 as a sign bit.
func depthTestPass(cmp DepthCompare, enabled bool, newZ, storedZ uint32) bool {
	if !enabled {
		return true
	}
	switch cmp {
	case DepthNever:
		return false
	case DepthAlways:
		return true
	case DepthEqual:
		return newZ == storedZ
	case DepthNotEqual:
		return newZ != storedZ
	case DepthLess:
		return newZ < storedZ
	case DepthGreater:
		return newZ > storedZ
	case DepthLessEqual:
		return newZ <= storedZ
	case DepthGreaterEqual:
		return newZ >= storedZ
	default:
		return false
	}
}

func cornerValid(w0, w1, w2 int32) bool {
	return (uint32(w0)|uint32(w1)|uint32(w2))>>31 == 0
}

// tickRasterLoop implements §4.5's "Raster loop" bullet list. When
// returning from a completed fragment pipeline pass (awaitingWrite), it
// emits the write and advances to the next quad in the same tick, then
// immediately evaluates and dispatches that quad — folding together what
// the source's bullet list describes as "emit writes", "advance" and "if
// texturing enabled transition to TEX0" into one combined tick, since in
// this design tex_en/fog_en/bl_en are fixed for the whole triangle.
func (r *Raster) tickRasterLoop(fb FrameBuffer) QuadWrite {
	var write QuadWrite

	if r.awaitingWrite {
		write = r.buildWrite()
		r.awaitingWrite = false

		if r.p[0] == r.bmax[0] && r.p[1] == r.bmax[1] {
			r.st = stateWaiting
			return write
		}
		r.advancePosition()
	}

	r.evaluateQuad(fb)

	if !r.needsPipeline {
		for i := 0; i < 4; i++ {
			r.outCol[i] = packRGBA(satAndTruncate(r.col[i][0]), satAndTruncate(r.col[i][1]), satAndTruncate(r.col[i][2]), satAndTruncate(r.col[i][3]))
		}
		r.awaitingWrite = true
		return write
	}

	if r.tri.TexEnable {
		r.texCorner = r.nextEligibleCorner(-1)
		if r.texCorner < 4 {
			r.st = stateTex
			return write
		}
	}
	r.st = stateCombine
	return write
}

func (r *Raster) evaluateQuad(fb FrameBuffer) {
	rdColor, rdDepth := fb.ReadQuad(r.p[0], r.p[1])
	r.rdColor = rdColor
	r.rdDepth = rdDepth
	for i := 0; i < 4; i++ {
		r.sampleValid[i] = cornerValid(r.w0[i], r.w1[i], r.w2[i])
		r.depthPass[i] = depthTestPass(r.tri.DepthCompare, r.tri.DepthTestEnable, uint32(r.zow[i]), rdDepth[i])
	}
}

func (r *Raster) buildWrite() QuadWrite {
	var wr QuadWrite
	wr.QuadX, wr.QuadY = r.p[0], r.p[1]
	for i := 0; i < 4; i++ {
		wr.WriteEnable[i] = r.sampleValid[i] && r.depthPass[i]
		wr.ColorRGBA[i] = r.outCol[i]
		wr.Depth[i] = uint32(r.zow[i])
	}
	return wr
}

func (r *Raster) advancePosition() {
	if r.p[0] == r.bmax[0] {
		nextW0Row := r.w0Row + (r.b12 << 1)
		nextW1Row := r.w1Row + (r.b20 << 1)
		nextW2Row := r.w2Row + (r.b01 << 1)
		r.w0Row, r.w1Row, r.w2Row = nextW0Row, nextW1Row, nextW2Row
		r.w0 = [4]int32{nextW0Row, nextW0Row + r.a12, nextW0Row + r.b12, nextW0Row + r.a12 + r.b12}
		r.w1 = [4]int32{nextW1Row, nextW1Row + r.a20, nextW1Row + r.b20, nextW1Row + r.a20 + r.b20}
		r.w2 = [4]int32{nextW2Row, nextW2Row + r.a01, nextW2Row + r.b01, nextW2Row + r.a01 + r.b01}

		for i := 0; i < 4; i++ {
			next := r.colRow[i] + (r.tri.Col[i].DY << 1)
			r.colRow[i] = next
			dx, dy := r.tri.Col[i].DX, r.tri.Col[i].DY
			r.col[0][i] = next
			r.col[1][i] = next + dx
			r.col[2][i] = next + dy
			r.col[3][i] = next + dx + dy
		}
		r.oneOwRow += r.tri.OneOverW.DY << 1
		r.oneOw = seedCorners(r.oneOwRow, r.tri.OneOverW.DX, r.tri.OneOverW.DY)
		r.sowRow += r.tri.SOverW.DY << 1
		r.sow = seedCorners(r.sowRow, r.tri.SOverW.DX, r.tri.SOverW.DY)
		r.towRow += r.tri.TOverW.DY << 1
		r.tow = seedCorners(r.towRow, r.tri.TOverW.DX, r.tri.TOverW.DY)
		r.zowRow += r.tri.ZOverW.DY << 1
		r.zow = seedCorners(r.zowRow, r.tri.ZOverW.DX, r.tri.ZOverW.DY)

		r.p[0] = r.bmin[0]
		r.p[1]++
		return
	}

	for i := 0; i < 4; i++ {
		r.w0[i] += r.a12 << 1
		r.w1[i] += r.a20 << 1
		r.w2[i] += r.a01 << 1
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r.col[i][j] += r.tri.Col[j].DX << 1
		}
		r.oneOw[i] += r.tri.OneOverW.DX << 1
		r.sow[i] += r.tri.SOverW.DX << 1
		r.tow[i] += r.tri.TOverW.DX << 1
		r.zow[i] += r.tri.ZOverW.DX << 1
	}
	r.p[0]++
}

// perspectiveST recovers (s,t) for corner k: s = (sow[k]*1ow[k])>>12 —
// the caller is responsible for having produced s/w, t/w and 1/w such
// that this multiply (not a division) recovers true s,t; see §4.5.
func (r *Raster) perspectiveST(k int) (s, t int32) {
	s = int32((int64(r.sow[k]) * int64(r.oneOw[k])) >> 12)
	t = int32((int64(r.tow[k]) * int64(r.oneOw[k])) >> 12)
	return s, t
}

// tickTex drives one bilinear sample through the sampler per eligible
// corner. A corner switch costs two extra "settling" ticks (stb deasserted)
// to let the sampler's internal pipeline drain back to idle before the
// next corner's request is issued — otherwise a request for corner k+1
// could be launched on the same tick the sampler reports corner k's ack,
// using corner k's coordinates.
func (r *Raster) tickTex(tc *texcache.TexCache, mem memio.Port) QuadWrite {
	if r.texSettling > 0 {
		// Filter set so the sampler steps Lerp1 -> Lerp2 -> Idle.
		r.sampler.Tick(false, texsampler.Request{Filter: true}, tc, mem)
		r.texSettling--
		if r.texSettling == 0 && r.texPendingCombine {
			r.texPendingCombine = false
			r.dsdx, r.dtdx, r.dsdy, r.dtdy = 0, 0, 0, 0
			r.derivDone = false
			r.st = stateCombine
		}
		return QuadWrite{}
	}

	if !r.derivDone && r.tri.MipEnable {
		s0, t0 := r.perspectiveST(0)
		s1, t1 := r.perspectiveST(1)
		s2, t2 := r.perspectiveST(2)
		r.dsdx, r.dtdx = s1-s0, t1-t0
		r.dsdy, r.dtdy = s2-s0, t2-t0
		r.derivDone = true
	}

	s, t := r.perspectiveST(r.texCorner)
	req := texsampler.Request{
		ST:        texsampler.ST{S: s, T: t},
		DsDx:      r.dsdx, DtDx: r.dtdx, DsDy: r.dsdy, DtDy: r.dtdy,
		TexW: r.tri.TexW, TexH: r.tri.TexH,
		ClampS: r.tri.ClampS, ClampT: r.tri.ClampT,
		MipEnable: r.tri.MipEnable,
		Filter:    r.tri.FilterEnable,
		TexAddr:   r.tri.TexAddr,
		Format:    r.tri.TexFormat,
	}

	sampled, ack := r.sampler.Tick(true, req, tc, mem)
	if !ack {
		return QuadWrite{}
	}

	vr, vg, vb, va := unpackRGBA(packRGBA(satAndTruncate(r.col[r.texCorner][0]), satAndTruncate(r.col[r.texCorner][1]), satAndTruncate(r.col[r.texCorner][2]), satAndTruncate(r.col[r.texCorner][3])))
	tr, tg, tb, ta := unpackRGBA(sampled)
	r.texCol[r.texCorner] = packRGBA(round8(vr, tr), round8(vg, tg), round8(vb, tb), round8(va, ta))

	next := r.nextEligibleCorner(r.texCorner)
	r.texSettling = 2
	if next < 4 {
		r.texCorner = next
	} else {
		r.texPendingCombine = true
	}
	return QuadWrite{}
}

func round8(a, b uint8) uint8 {
	return uint8(((int32(a)*int32(b)) + 128) >> 8)
}

func (r *Raster) tickCombine() QuadWrite {
	for i := 0; i < 4; i++ {
		if !(r.sampleValid[i] && r.depthPass[i]) {
			continue
		}
		var src uint32
		if r.tri.TexEnable {
			src = r.texCol[i]
		} else {
			src = packRGBA(satAndTruncate(r.col[i][0]), satAndTruncate(r.col[i][1]), satAndTruncate(r.col[i][2]), satAndTruncate(r.col[i][3]))
		}
		if r.tri.FogEnable {
			src = applyFog(src, r.tri.FogColor, r.tri.FogTable, r.zow[i])
		}
		r.outCol[i] = src
	}

	if r.tri.BlendEnable {
		r.blendCorner = r.nextEligibleCorner(-1)
		if r.blendCorner < 4 {
			r.st = stateBlend
			return QuadWrite{}
		}
	}
	r.awaitingWrite = true
	r.st = stateRasterLoop
	return QuadWrite{}
}

// applyFog blends src toward fogRGB by density d/256. The scaled delta is
// divided, not arithmetic-shifted: §8 S6 works out fog=128, src.r=255,
// d=240 to red channel 136, which requires truncating the negative
// (128-255)*240/256 toward zero (-119) rather than flooring it (-120, via
// >>8), so a negative delta rounds the same direction as a positive one.
func applyFog(src uint32, fogRGB [3]uint8, table [64]uint8, zow int32) uint32 {
	idx := uint32(zow) >> 26
	d := int32(table[idx&0x3F])
	sr, sg, sb, sa := unpackRGBA(src)
	r := int32(sr) + (((int32(fogRGB[0])-int32(sr))*d)/256)
	g := int32(sg) + (((int32(fogRGB[1])-int32(sg))*d)/256)
	b := int32(sb) + (((int32(fogRGB[2])-int32(sb))*d)/256)
	return packRGBA(sat8i32(r), sat8i32(g), sat8i32(b), sa)
}

func (r *Raster) tickBlend() QuadWrite {
	k := r.blendCorner
	r.outCol[k] = blendPixel(r.outCol[k], r.rdColor[k], r.tri.BlendSrc, r.tri.BlendDst, r.tri.BlendOp)

	next := r.nextEligibleCorner(k)
	if next < 4 {
		r.blendCorner = next
		return QuadWrite{}
	}
	r.awaitingWrite = true
	r.st = stateRasterLoop
	return QuadWrite{}
}

func (r *Raster) tickFill() QuadWrite {
	var wr QuadWrite
	wr.QuadX, wr.QuadY = r.fillP[0], r.fillP[1]
	for i := 0; i < 4; i++ {
		wr.WriteEnable[i] = true
		wr.ColorRGBA[i] = r.fillColor
		wr.Depth[i] = r.fillDepth
	}

	const quadsPerSide = DIM / 2
	if r.fillP[0] == quadsPerSide-1 && r.fillP[1] == quadsPerSide-1 {
		r.st = stateWaiting
		return wr
	}
	if r.fillP[0] == quadsPerSide-1 {
		r.fillP[0] = 0
		r.fillP[1]++
	} else {
		r.fillP[0]++
	}
	return wr
}
