// Command marcherdemo opens a window and sphere-traces the demo scene
// into it, re-rendering at a fixed interval until the window closes or
// Escape is pressed.
//
// With -gpu the marching loop runs on the compute device (falling back
// to the CPU when no device is available) at 800x600 with a 90 degree
// field of view; the default CPU configuration is 600x600 at 64
// degrees.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/marcher"
	"github.com/gogpu/marcher/internal/gpu"
)

func main() {
	useGPU := flag.Bool("gpu", false, "march on the compute device")
	verbose := flag.Bool("v", false, "log renderer diagnostics to stderr")
	flag.Parse()

	if *verbose {
		marcher.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	width, height := 600, 600
	fov := 64.0
	interval := 200 * time.Millisecond
	if *useGPU {
		width, height = 800, 600
		fov = 90.0
		interval = time.Second
		if err := marcher.RegisterAccelerator(&gpu.MarchAccelerator{}); err != nil {
			log.Fatalf("register march accelerator: %v", err)
		}
		defer func() {
			if a := marcher.ActiveAccelerator(); a != nil {
				a.Close()
			}
		}()
	}

	r := marcher.NewRenderer(width, height)
	r.Camera.FOV = fov
	defer r.Close()

	g := &game{
		renderer: r,
		useGPU:   *useGPU,
		interval: interval,
		buf:      make([]uint32, width*height),
		pix:      make([]byte, width*height*4),
	}

	ebiten.SetWindowTitle("marcher - ESC to exit")
	ebiten.SetWindowSize(width, height)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatalf("run window: %v", err)
	}
}

// game adapts the renderer to ebiten's inverted frame loop: Update
// renders a fresh frame only once the pacing interval has elapsed,
// Draw blits whatever the last rendered frame was.
type game struct {
	renderer *marcher.Renderer
	useGPU   bool
	interval time.Duration

	buf      []uint32
	pix      []byte
	frameImg *ebiten.Image
	lastTime time.Time
	rendered bool
}

func (g *game) Update() error {
	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if g.rendered && time.Since(g.lastTime) < g.interval {
		return nil
	}
	g.lastTime = time.Now()

	var err error
	if g.useGPU {
		err = g.renderer.RenderFrameAccelerated(g.buf)
	} else {
		err = g.renderer.RenderFrame(g.buf)
	}
	if err != nil {
		return err
	}
	g.rendered = true

	for i, word := range g.buf {
		r, gr, b, a := marcher.UnpackColor(word)
		j := i * 4
		g.pix[j+0] = r
		g.pix[j+1] = gr
		g.pix[j+2] = b
		g.pix[j+3] = a
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	if !g.rendered {
		return
	}
	w := g.renderer.Camera.Width
	h := g.renderer.Camera.Height
	if g.frameImg == nil {
		g.frameImg = ebiten.NewImage(w, h)
	}
	g.frameImg.WritePixels(g.pix)
	screen.DrawImage(g.frameImg, nil)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.renderer.Camera.Width, g.renderer.Camera.Height
}
