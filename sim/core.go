// Package sim wires the individual pipeline stages (bus arbiter, texture
// cache, texture sampler, rasterizer) into one clocked core, mirroring
// SUPRAXCore.Cycle()'s role of driving the whole chip one tick at a time.
//
// Grounded on SupraX.go's SUPRAXCore/Cycle.
package sim

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/GlaireDaggers/Athena-GPU/memio"
	"github.com/GlaireDaggers/Athena-GPU/raster"
	"github.com/GlaireDaggers/Athena-GPU/texcache"
)

// Core is the complete rasterizer tile: one Raster driving one TexCache
// against a texture memory port, writing into a FrameBuffer.
//
// One tile (32x32 pixels) is produced by calling SubmitTriangle or
// SubmitFill, then Tick repeatedly until Busy() goes false.
type Core struct {
	Raster      *raster.Raster
	TexCache    *texcache.TexCache
	FrameBuffer raster.FrameBuffer
	TexMem      memio.Port

	Log *log.Logger

	cycles             uint64
	trianglesSubmitted uint64
	trianglesCompleted uint64
	fillsCompleted     uint64
	quadsWritten       uint64
	pixelsWritten      uint64
}

// NewCore builds a core around the given frame buffer and texture memory
// port. fb and texMem are external collaborators per §6.4/§6.3; the core
// owns everything between them.
func NewCore(fb raster.FrameBuffer, texMem memio.Port) *Core {
	return &Core{
		Raster:      raster.New(),
		TexCache:    texcache.New(),
		FrameBuffer: fb,
		TexMem:      texMem,
	}
}

// SetLogger attaches a logger to the core and every stage it owns.
func (c *Core) SetLogger(l *log.Logger) {
	c.Log = l
	c.Raster.Log = l
	c.TexCache.SetLogger(l)
}

// Busy reports whether the rasterizer is mid-triangle or mid-fill.
func (c *Core) Busy() bool {
	return c.Raster.Busy()
}

// SubmitTriangle latches a new triangle at the boundary (§6.1). Returns an
// error if the core is busy or the triangle is misconfigured.
func (c *Core) SubmitTriangle(tri raster.TriangleInput) error {
	if err := c.Raster.Begin(tri); err != nil {
		return err
	}
	c.trianglesSubmitted++
	if c.Log != nil {
		c.Log.Info("triangle submitted", "total", c.trianglesSubmitted)
	}
	return nil
}

// SubmitFill kicks off a tile clear.
func (c *Core) SubmitFill(color [4]uint8, depth uint32) error {
	return c.Raster.BeginFill(color, depth)
}

// Tick advances every stage by one clock, per §5's two-phase tick model:
// the rasterizer's own Tick call already performs combinational evaluation
// followed by edge commit internally, since single-threaded sequential Go
// execution within the call naturally preserves old-state reads before any
// field is mutated.
func (c *Core) Tick() raster.QuadWrite {
	c.cycles++
	wasBusy := c.Raster.Busy()

	write := c.Raster.Tick(c.FrameBuffer, c.TexCache, c.TexMem)

	for i := 0; i < 4; i++ {
		if write.WriteEnable[i] {
			c.pixelsWritten++
		}
	}
	if write.WriteEnable[0] || write.WriteEnable[1] || write.WriteEnable[2] || write.WriteEnable[3] {
		c.quadsWritten++
	}

	if wasBusy && !c.Raster.Busy() {
		c.trianglesCompleted++
	}

	return write
}

// Stats reports running totals since construction.
func (c *Core) Stats() Stats {
	return Stats{
		Cycles:             c.cycles,
		TrianglesSubmitted: c.trianglesSubmitted,
		TrianglesCompleted: c.trianglesCompleted,
		QuadsWritten:       c.quadsWritten,
		PixelsWritten:      c.pixelsWritten,
	}
}

// Stats is a snapshot of Core's running counters.
type Stats struct {
	Cycles             uint64
	TrianglesSubmitted uint64
	TrianglesCompleted uint64
	QuadsWritten       uint64
	PixelsWritten      uint64
}

// RunUntilIdle submits tri, then ticks the core until it returns to WAITING,
// collecting every quad write along the way. maxTicks bounds runaway loops;
// a texture memory port that never acks shows up only as this timeout, since
// memio.Port has no error return.
func RunUntilIdle(c *Core, tri raster.TriangleInput, maxTicks int) ([]raster.QuadWrite, error) {
	if err := c.SubmitTriangle(tri); err != nil {
		return nil, err
	}
	var writes []raster.QuadWrite
	for i := 0; i < maxTicks; i++ {
		w := c.Tick()
		if w.WriteEnable[0] || w.WriteEnable[1] || w.WriteEnable[2] || w.WriteEnable[3] {
			writes = append(writes, w)
		}
		if !c.Busy() {
			return writes, nil
		}
	}
	return writes, fmt.Errorf("sim: triangle did not complete within %d ticks", maxTicks)
}
