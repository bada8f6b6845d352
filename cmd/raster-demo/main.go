// Command raster-demo rasterizes a yaml-described scene through sim.Core
// and writes the resulting tile out as a WebP image. It exists to exercise
// the core end to end from the command line the way SupraX.go's CPU model
// is exercised by hand-written instruction streams, not as a production
// renderer.
package main

import (
	"fmt"
	"image"
	"os"

	"github.com/charmbracelet/log"
	"github.com/deepteams/webp"
	"github.com/spf13/pflag"

	"github.com/GlaireDaggers/Athena-GPU/memio"
	"github.com/GlaireDaggers/Athena-GPU/raster"
	"github.com/GlaireDaggers/Athena-GPU/sim"
)

func main() {
	var (
		scenePath   = pflag.StringP("scene", "s", "", "Path to a scene yaml file.")
		outPath     = pflag.StringP("out", "o", "out.webp", "Output WebP path.")
		texMemWords = pflag.Int("texmem-words", 1<<16, "Backing texture memory size, in 32-bit words.")
		texMemFile  = pflag.String("texmem-file", "", "Raw binary file to preload into texture memory (little-endian 32-bit words).")
		ramLatency  = pflag.Int("ram-latency", 0, "Ticks of latency before the texture memory port acks a request.")
		maxTicks    = pflag.Int("max-ticks", 1<<20, "Ticks to allow a single triangle or fill before giving up.")
		logLevel    = pflag.String("log-level", "info", "Log level: debug, info, warn, error.")
		help        = pflag.BoolP("help", "h", false, "Display help text.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: raster-demo --scene scene.yaml [flags]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *scenePath == "" {
		pflag.Usage()
		if *scenePath == "" {
			os.Exit(2)
		}
		return
	}

	logger := log.New(os.Stderr)
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := run(*scenePath, *outPath, *texMemWords, *texMemFile, *ramLatency, *maxTicks, logger); err != nil {
		logger.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(scenePath, outPath string, texMemWords int, texMemFile string, ramLatency, maxTicks int, logger *log.Logger) error {
	sc, err := loadScene(scenePath)
	if err != nil {
		return fmt.Errorf("loading scene: %w", err)
	}

	texMem := memio.NewRAM(texMemWords, ramLatency)
	if texMemFile != "" {
		if err := loadTexMem(texMem, texMemFile); err != nil {
			return fmt.Errorf("loading texture memory: %w", err)
		}
	}

	fb := sim.NewTileBuffer()
	core := sim.NewCore(fb, texMem)
	core.SetLogger(logger)

	clear := [4]uint8{
		uint8(sc.ClearColor[0]), uint8(sc.ClearColor[1]),
		uint8(sc.ClearColor[2]), uint8(sc.ClearColor[3]),
	}
	if err := core.SubmitFill(clear, sc.ClearDepth); err != nil {
		return fmt.Errorf("submitting clear: %w", err)
	}
	if err := driveToIdle(core, fb, maxTicks); err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	textures := make(map[string]sceneTexture, len(sc.Textures))
	for _, t := range sc.Textures {
		textures[t.Name] = t
	}

	for i, st := range sc.Triangles {
		tri, err := buildTriangleInput(st, textures)
		if err != nil {
			return fmt.Errorf("triangle %d: %w", i, err)
		}
		if err := core.SubmitTriangle(tri); err != nil {
			return fmt.Errorf("triangle %d: %w", i, err)
		}
		if err := driveToIdle(core, fb, maxTicks); err != nil {
			return fmt.Errorf("triangle %d: %w", i, err)
		}
	}

	stats := core.Stats()
	logger.Info("done", "cycles", stats.Cycles, "triangles", stats.TrianglesCompleted, "quads", stats.QuadsWritten, "pixels", stats.PixelsWritten)

	img := tileToImage(fb)
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return webp.Encode(out, img, &webp.EncoderOptions{Quality: 90, Method: 4})
}

// driveToIdle ticks core until its rasterizer returns to idle, applying each
// tick's quad write to fb as it comes back. Core.Tick only returns the write;
// the core has no write access to the concrete frame buffer itself, since
// raster.FrameBuffer only exposes the read side of the protocol (§6.4). The
// caller that owns the real sink is the one that commits writes to it.
func driveToIdle(core *sim.Core, fb *sim.TileBuffer, maxTicks int) error {
	for i := 0; i < maxTicks; i++ {
		fb.Apply(core.Tick())
		if !core.Busy() {
			return nil
		}
	}
	return fmt.Errorf("did not complete within %d ticks", maxTicks)
}

func loadTexMem(ram *memio.RAM, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
	}
	ram.Load(0, words)
	return nil
}

func tileToImage(fb *sim.TileBuffer) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, raster.DIM, raster.DIM))
	for y := int32(0); y < raster.DIM; y++ {
		for x := int32(0); x < raster.DIM; x++ {
			c, _ := fb.At(x, y)
			off := img.PixOffset(int(x), int(y))
			img.Pix[off+0] = uint8(c)
			img.Pix[off+1] = uint8(c >> 8)
			img.Pix[off+2] = uint8(c >> 16)
			img.Pix[off+3] = uint8(c >> 24)
		}
	}
	return img
}
