package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GlaireDaggers/Athena-GPU/blockcache"
	"github.com/GlaireDaggers/Athena-GPU/raster"
)

// sceneVertex is one triangle corner as written in a scene file: screen
// pixel position, RGBA color and homogeneous texture/depth coordinates.
type sceneVertex struct {
	X, Y int32      `yaml:"pos"`
	RGBA [4]float64 `yaml:"color"`
	S, T float64    `yaml:"st"`
	W    float64    `yaml:"w"`
	Z    float64    `yaml:"z"`
}

// sceneTriangle mirrors the tri_stb payload (§6.1) in a human-editable
// form; attribute plane equations are derived from the three vertices at
// load time rather than authored directly.
type sceneTriangle struct {
	V [3]sceneVertex `yaml:"v"`

	Texture      string `yaml:"texture,omitempty"`
	ClampS       bool   `yaml:"clamp_s,omitempty"`
	ClampT       bool   `yaml:"clamp_t,omitempty"`
	Mipmap       bool   `yaml:"mipmap,omitempty"`
	PointSample  bool   `yaml:"point_sample,omitempty"`
	DepthTest    bool   `yaml:"depth_test,omitempty"`
	DepthCompare string `yaml:"depth_compare,omitempty"`
	Blend        bool   `yaml:"blend,omitempty"`
	BlendSrc     string `yaml:"blend_src,omitempty"`
	BlendDst     string `yaml:"blend_dst,omitempty"`
	BlendOp      string `yaml:"blend_op,omitempty"`
	Fog          bool   `yaml:"fog,omitempty"`
	FogColor     [3]int `yaml:"fog_color,omitempty"`
}

// sceneTexture is a named texture resource referenced by sceneTriangle.Texture.
type sceneTexture struct {
	Name   string `yaml:"name"`
	Format string `yaml:"format"`
	W      uint   `yaml:"log2w"`
	H      uint   `yaml:"log2h"`
	Addr   uint32 `yaml:"addr"`
}

// scene is the top-level yaml document for the demo: a fill color, a list
// of named textures resident in the backing memory image, and the
// triangles to rasterize over them, in submission order.
type scene struct {
	ClearColor [4]int          `yaml:"clear_color"`
	ClearDepth uint32          `yaml:"clear_depth"`
	Textures   []sceneTexture  `yaml:"textures"`
	Triangles  []sceneTriangle `yaml:"triangles"`
}

func loadScene(path string) (*scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

var depthCompareNames = map[string]raster.DepthCompare{
	"never":    raster.DepthNever,
	"always":   raster.DepthAlways,
	"equal":    raster.DepthEqual,
	"notequal": raster.DepthNotEqual,
	"less":     raster.DepthLess,
	"greater":  raster.DepthGreater,
	"lequal":   raster.DepthLessEqual,
	"gequal":   raster.DepthGreaterEqual,
}

var blendFactorNames = map[string]raster.BlendFactor{
	"zero":          raster.BlendZero,
	"one":           raster.BlendOne,
	"src_color":     raster.BlendSrcColor,
	"src_alpha":     raster.BlendSrcAlpha,
	"dst_color":     raster.BlendDstColor,
	"dst_alpha":     raster.BlendDstAlpha,
	"inv_src_color": raster.BlendInvSrcColor,
	"inv_src_alpha": raster.BlendInvSrcAlpha,
	"inv_dst_color": raster.BlendInvDstColor,
	"inv_dst_alpha": raster.BlendInvDstAlpha,
}

var textureFormatNames = map[string]blockcache.Format{
	"rgba4444": blockcache.FormatRGBA4444,
	"rgba8888": blockcache.FormatRGBA8888,
	"nxtc0":    blockcache.FormatNXTC0,
	"nxtc1":    blockcache.FormatNXTC1,
}
