// Package texsampler implements TexSampler (§4.4): converts signed Q24.12
// (S,T) coordinates into a texel cluster request against a
// texcache.TexCache, with bilinear filtering, optional clamp and optional
// derivative-based mip-level selection.
//
// Grounded on original_source/src/texsample.py, an earlier revision with no
// clamp or mip support; both are spec.md additions layered on top here.
package texsampler

import (
	"github.com/GlaireDaggers/Athena-GPU/blockcache"
	"github.com/GlaireDaggers/Athena-GPU/memio"
	"github.com/GlaireDaggers/Athena-GPU/texcache"
)

type state uint8

const (
	stateIdle state = iota
	stateLerp1
	stateLerp2
)

// ST is a Q24.12 signed fixed-point texture coordinate pair.
type ST struct {
	S, T int32
}

// Sampler is a pipelined bilinear texture sampler.
type Sampler struct {
	st state

	samples blockcache.Cluster // latched at request time

	pxFrac, pyFrac int64 // 12-bit fractions latched at request time

	dx0r, dx0g, dx0b, dx0a int64
	dyr, dyg, dyb, dya     int64
}

// New returns an idle sampler.
func New() *Sampler {
	return &Sampler{}
}

func channel(c uint32, shift uint) int64 {
	return int64((c >> shift) & 0xFF)
}

func packChannels(r, g, b, a int64) uint32 {
	return uint32(r&0xFF) | uint32(g&0xFF)<<8 | uint32(b&0xFF)<<16 | uint32(a&0xFF)<<24
}

// MipLevel picks a mip index from the squared footprint derivative rho2
// (Q24.24, the square of a Q12.12 delta), per §4.4 step 1:
// mip = clamp(floor(log2(rho2))/2, 0, maxLevel).
func MipLevel(rho2 uint64, maxLevel uint) uint {
	if rho2 <= 1<<24 { // rho2 <= 1.0 in Q24.24: at or under one texel per pixel
		return 0
	}
	log2 := uint(0)
	for v := rho2 >> 24; v > 1; v >>= 1 {
		log2++
	}
	level := log2 / 2
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

// MaxMipLevel computes max(0, min(w-2, h-2)) per §4.4 step 1.
func MaxMipLevel(texW, texH uint) uint {
	lo := texW
	if texH < lo {
		lo = texH
	}
	if lo < 2 {
		return 0
	}
	return lo - 2
}

func clampI64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Request holds one tick's sample request parameters.
type Request struct {
	ST                     ST
	DsDx, DtDx, DsDy, DtDy int32 // derivatives, Q12.12; ignored unless MipEnable
	TexW, TexH             uint  // log2 base texture dimensions
	ClampS, ClampT         bool
	MipEnable              bool
	Filter                 bool // bilinear filtering; false selects point sampling
	TexAddr                uint32
	Format                 blockcache.Format
}

// Tick performs one full pipeline cycle: it may issue a new request to tc
// (if idle, or finishing a request while stb is held), and returns the
// filtered color and valid flag corresponding to whatever request is
// currently completing — the output reflects state from *before* this
// tick's new request is latched, matching texsample.py's pipeline being one
// stage behind the request that triggered it.
//
// With req.Filter false, the Lerp1/Lerp2 stages are bypassed entirely: s[0]
// (the top-left cluster texel) is forwarded as-is and acked on the very
// tick tc's cache ack arrives, per §4.4.
func (s *Sampler) Tick(stb bool, req Request, tc *texcache.TexCache, mem memio.Port) (color uint32, ack bool) {
	wantsTC := stb && (s.st == stateIdle || s.st == stateLerp2)

	wEff, hEff := req.TexW, req.TexH
	if req.MipEnable {
		rho2 := rho2Q24(req.DsDx, req.DtDx, req.DsDy, req.DtDy)
		mip := MipLevel(rho2, MaxMipLevel(req.TexW, req.TexH))
		if mip > 0 {
			wEff -= mip
			hEff -= mip
		}
	}

	maxw := int64(1)<<wEff - 1
	maxh := int64(1)<<hEff - 1

	x := (int64(req.ST.S) << wEff) - 2048
	y := (int64(req.ST.T) << hEff) - 2048

	if req.ClampS {
		x = clampI64(x, 0, maxw<<12)
	}
	if req.ClampT {
		y = clampI64(y, 0, maxh<<12)
	}

	smp := texcache.Sample{
		X: uint32(x>>12) & uint32(maxw),
		Y: uint32(y>>12) & uint32(maxh),
	}
	px := x & 0xFFF
	py := y & 0xFFF

	cluster, tcAck := tc.Tick(req.TexAddr, wEff, hEff, req.Format, smp, req.ClampS, req.ClampT, wantsTC, mem)

	if !req.Filter {
		if wantsTC && tcAck {
			return cluster[0], true
		}
		return 0, false
	}

	color = s.output()
	ack = stb && s.st == stateLerp2

	switch s.st {
	case stateIdle:
		if wantsTC && tcAck {
			s.latch(cluster, px, py)
			s.st = stateLerp1
		}
	case stateLerp1:
		s.lerp1()
		s.st = stateLerp2
	case stateLerp2:
		if wantsTC && tcAck {
			s.latch(cluster, px, py)
			s.st = stateLerp1
		} else {
			s.st = stateIdle
		}
	}

	return color, ack
}

// rho2Q24 computes max(ds/dx^2+dt/dx^2, ds/dy^2+dt/dy^2) from Q12.12
// derivatives, returning a Q24.24 result.
func rho2Q24(dsdx, dtdx, dsdy, dtdy int32) uint64 {
	sq := func(v int32) uint64 { w := int64(v); return uint64(w * w) }
	rx := sq(dsdx) + sq(dtdx)
	ry := sq(dsdy) + sq(dtdy)
	if ry > rx {
		return ry
	}
	return rx
}

func (s *Sampler) latch(cluster blockcache.Cluster, px, py int64) {
	s.samples = cluster
	s.pxFrac = px
	s.pyFrac = py
}

func (s *Sampler) lerp1() {
	dx0 := [4]int64{
		channel(s.samples[1], 0) - channel(s.samples[0], 0),
		channel(s.samples[1], 8) - channel(s.samples[0], 8),
		channel(s.samples[1], 16) - channel(s.samples[0], 16),
		channel(s.samples[1], 24) - channel(s.samples[0], 24),
	}
	dx1 := [4]int64{
		channel(s.samples[3], 0) - channel(s.samples[2], 0),
		channel(s.samples[3], 8) - channel(s.samples[2], 8),
		channel(s.samples[3], 16) - channel(s.samples[2], 16),
		channel(s.samples[3], 24) - channel(s.samples[2], 24),
	}

	top := [4]int64{
		channel(s.samples[0], 0) + ((dx0[0] * s.pxFrac) >> 12),
		channel(s.samples[0], 8) + ((dx0[1] * s.pxFrac) >> 12),
		channel(s.samples[0], 16) + ((dx0[2] * s.pxFrac) >> 12),
		channel(s.samples[0], 24) + ((dx0[3] * s.pxFrac) >> 12),
	}
	bottom := [4]int64{
		channel(s.samples[2], 0) + ((dx1[0] * s.pxFrac) >> 12),
		channel(s.samples[2], 8) + ((dx1[1] * s.pxFrac) >> 12),
		channel(s.samples[2], 16) + ((dx1[2] * s.pxFrac) >> 12),
		channel(s.samples[2], 24) + ((dx1[3] * s.pxFrac) >> 12),
	}

	s.dx0r, s.dx0g, s.dx0b, s.dx0a = top[0], top[1], top[2], top[3]
	s.dyr = bottom[0] - top[0]
	s.dyg = bottom[1] - top[1]
	s.dyb = bottom[2] - top[2]
	s.dya = bottom[3] - top[3]
}

func (s *Sampler) output() uint32 {
	r := s.dx0r + ((s.dyr * s.pyFrac) >> 12)
	g := s.dx0g + ((s.dyg * s.pyFrac) >> 12)
	b := s.dx0b + ((s.dyb * s.pyFrac) >> 12)
	a := s.dx0a + ((s.dya * s.pyFrac) >> 12)
	return packChannels(r, g, b, a)
}
