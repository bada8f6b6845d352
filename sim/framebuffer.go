package sim

import "github.com/GlaireDaggers/Athena-GPU/raster"

// TileBuffer is a flat, word-addressed color+depth store for one DIMxDIM
// tile, implementing raster.FrameBuffer. Grounded on SupraX.go's Memory:
// a simple flat slice standing in for real framebuffer SRAM.
type TileBuffer struct {
	color [raster.DIM * raster.DIM]uint32
	depth [raster.DIM * raster.DIM]uint32
}

// NewTileBuffer returns a tile cleared to zero color and zero depth.
func NewTileBuffer() *TileBuffer {
	return &TileBuffer{}
}

func pixelIndex(x, y int32) int {
	return int(y)*raster.DIM + int(x)
}

// ReadQuad implements raster.FrameBuffer, returning the existing contents
// of the 2x2 quad at quad coordinates (qx, qy).
func (t *TileBuffer) ReadQuad(qx, qy int32) (color [4]uint32, depth [4]uint32) {
	x, y := qx*2, qy*2
	for i, d := range [4][2]int32{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		idx := pixelIndex(x+d[0], y+d[1])
		color[i] = t.color[idx]
		depth[i] = t.depth[idx]
	}
	return color, depth
}

// Apply commits a QuadWrite produced by raster.Raster.Tick, honoring each
// corner's write-enable independently.
func (t *TileBuffer) Apply(w raster.QuadWrite) {
	x, y := w.QuadX*2, w.QuadY*2
	for i, d := range [4][2]int32{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		if !w.WriteEnable[i] {
			continue
		}
		idx := pixelIndex(x+d[0], y+d[1])
		t.color[idx] = w.ColorRGBA[i]
		t.depth[idx] = w.Depth[i]
	}
}

// At returns the color and depth currently stored at pixel (x, y).
func (t *TileBuffer) At(x, y int32) (color uint32, depth uint32) {
	idx := pixelIndex(x, y)
	return t.color[idx], t.depth[idx]
}
