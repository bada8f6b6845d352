package main

import (
	"fmt"
	"math"

	"github.com/GlaireDaggers/Athena-GPU/raster"
)

// fitPlane solves for the (init, dx, dy) linear plane through the three
// given (x, y, a) samples, with init taken at the triangle's bounding-box
// top-left pixel (where raster.ChannelDeltas.Init applies), then quantizes
// it to Qn.shift fixed point. This
// is the attribute setup math a real vertex stage performs before handing
// interpolant gradients to TriRaster; spec.md's TriRaster itself takes
// ChannelDeltas as already-solved input, so the demo has to do this step
// itself to turn ordinary vertex data into something the rasterizer
// consumes.
func fitPlane(x0, y0, x1, y1, x2, y2 int32, a0, a1, a2 float64, shift uint) raster.ChannelDeltas {
	fx0, fy0 := float64(x0), float64(y0)
	fx1, fy1 := float64(x1), float64(y1)
	fx2, fy2 := float64(x2), float64(y2)

	denom := (fx1-fx0)*(fy2-fy0) - (fx2-fx0)*(fy1-fy0)

	var dx, dy float64
	if denom != 0 {
		dx = ((a1-a0)*(fy2-fy0) - (a2-a0)*(fy1-fy0)) / denom
		dy = ((a2-a0)*(fx1-fx0) - (a1-a0)*(fx2-fx0)) / denom
	}
	init := a0 - dx*(fx0-float64(min(x0, x1, x2))) - dy*(fy0-float64(min(y0, y1, y2)))

	scale := float64(int64(1) << shift)
	return raster.ChannelDeltas{
		Init: int32(math.Round(init * scale)),
		DX:   int32(math.Round(dx * scale)),
		DY:   int32(math.Round(dy * scale)),
	}
}

const attrShift = 12

func buildTriangleInput(st sceneTriangle, textures map[string]sceneTexture) (raster.TriangleInput, error) {
	var tri raster.TriangleInput

	v0, v1, v2 := st.V[0], st.V[1], st.V[2]
	tri.V0 = [2]int32{v0.X, v0.Y}
	tri.V1 = [2]int32{v1.X, v1.Y}
	tri.V2 = [2]int32{v2.X, v2.Y}

	for ch := 0; ch < 4; ch++ {
		tri.Col[ch] = fitPlane(v0.X, v0.Y, v1.X, v1.Y, v2.X, v2.Y, v0.RGBA[ch], v1.RGBA[ch], v2.RGBA[ch], attrShift)
	}

	invW := [3]float64{1 / v0.W, 1 / v1.W, 1 / v2.W}
	tri.OneOverW = fitPlane(v0.X, v0.Y, v1.X, v1.Y, v2.X, v2.Y, invW[0], invW[1], invW[2], attrShift)
	tri.SOverW = fitPlane(v0.X, v0.Y, v1.X, v1.Y, v2.X, v2.Y, v0.S*invW[0], v1.S*invW[1], v2.S*invW[2], attrShift)
	tri.TOverW = fitPlane(v0.X, v0.Y, v1.X, v1.Y, v2.X, v2.Y, v0.T*invW[0], v1.T*invW[1], v2.T*invW[2], attrShift)
	tri.ZOverW = fitPlane(v0.X, v0.Y, v1.X, v1.Y, v2.X, v2.Y, v0.Z*invW[0], v1.Z*invW[1], v2.Z*invW[2], attrShift)

	tri.DepthTestEnable = st.DepthTest
	if st.DepthTest {
		cmp, ok := depthCompareNames[st.DepthCompare]
		if !ok {
			return tri, fmt.Errorf("unknown depth_compare %q", st.DepthCompare)
		}
		tri.DepthCompare = cmp
	}

	if st.Texture != "" {
		tex, ok := textures[st.Texture]
		if !ok {
			return tri, fmt.Errorf("unknown texture %q", st.Texture)
		}
		format, ok := textureFormatNames[tex.Format]
		if !ok {
			return tri, fmt.Errorf("unknown texture format %q", tex.Format)
		}
		tri.TexEnable = true
		tri.TexAddr = tex.Addr
		tri.TexW = tex.W
		tri.TexH = tex.H
		tri.TexFormat = format
		tri.ClampS = st.ClampS
		tri.ClampT = st.ClampT
		tri.MipEnable = st.Mipmap
		tri.FilterEnable = !st.PointSample
	}

	tri.BlendEnable = st.Blend
	if st.Blend {
		src, ok := blendFactorNames[st.BlendSrc]
		if !ok {
			return tri, fmt.Errorf("unknown blend_src %q", st.BlendSrc)
		}
		dst, ok := blendFactorNames[st.BlendDst]
		if !ok {
			return tri, fmt.Errorf("unknown blend_dst %q", st.BlendDst)
		}
		tri.BlendSrc, tri.BlendDst = src, dst
		if st.BlendOp == "sub" {
			tri.BlendOp = raster.BlendOpSub
		}
	}

	tri.FogEnable = st.Fog
	if st.Fog {
		tri.FogColor = [3]uint8{uint8(st.FogColor[0]), uint8(st.FogColor[1]), uint8(st.FogColor[2])}
		for i := range tri.FogTable {
			tri.FogTable[i] = uint8(i * 255 / (len(tri.FogTable) - 1))
		}
	}

	return tri, nil
}
