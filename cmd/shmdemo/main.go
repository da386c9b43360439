// Command shmdemo renders an animation through a shared-memory backing
// store and an in-process compositor, then saves the last frame as PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/shmstore"
	"github.com/gogpu/shmstore/compositor"
	"github.com/gogpu/shmstore/decoration"
	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
	"github.com/gogpu/shmstore/shm"
)

const surfaceID shmstore.SurfaceID = 1

// demoWindow is a toplevel window with a client-side frame.
type demoWindow struct {
	gpucontext.NullWindowProvider
	frame   *decoration.Frame
	redraws int
}

func (w *demoWindow) RequestRedraw()                  { w.redraws++ }
func (w *demoWindow) Position() image.Point           { return image.Point{} }
func (w *demoWindow) Visible() bool                   { return true }
func (w *demoWindow) Decoration() shmstore.Decoration { return w.frame }
func (w *demoWindow) Surface() shmstore.SurfaceID     { return surfaceID }

func main() {
	var (
		width    = flag.Int("width", 320, "content width in logical pixels")
		height   = flag.Int("height", 240, "content height in logical pixels")
		scale    = flag.Float64("scale", 1, "device pixel ratio")
		frames   = flag.Int("frames", 60, "number of frames to render")
		capacity = flag.Int("buffers", shmstore.DefaultCapacity, "maximum number of buffers")
		policy   = flag.String("release", "replace", "compositor release policy: replace, immediate or manual")
		title    = flag.String("title", "shmdemo", "window title")
		output   = flag.String("output", "shmdemo.png", "output file")
		verbose  = flag.Bool("v", false, "enable debug logging")
	)
	flag.Parse()

	if *verbose {
		shmstore.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	rp, err := parsePolicy(*policy)
	if err != nil {
		log.Fatal(err)
	}

	alloc := shm.NewAllocator()
	comp := compositor.New(alloc, compositor.WithReleasePolicy(rp))
	defer comp.Close()
	display := shmstore.NewDisplay(alloc, comp, nil)
	defer display.Close()

	win := &demoWindow{NullWindowProvider: gpucontext.NullWindowProvider{W: *width, H: *height, SF: *scale}}
	win.frame = decoration.New(win, *title)
	store := shmstore.NewBackingStore(display, win, shmstore.WithCapacity(*capacity))
	store.Resize(image.Pt(*width, *height))

	if rp == compositor.ReleaseManually {
		stop := releaseLoop(comp)
		defer stop()
	}

	stats, err := run(store, comp, *frames)
	if err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	if err := savePNG(*output, comp.Snapshot(surfaceID)); err != nil {
		log.Fatalf("Failed to save: %v", err)
	}
	log.Printf("Rendered %d frames with %d buffers (%d pixels repainted), saved to %s\n",
		*frames, len(store.Buffers()), stats.repainted, *output)
}

type stats struct {
	repainted int
}

// run animates a square bouncing over a striped background. Each frame
// repaints only the squares' old and new positions.
func run(store *shmstore.BackingStore, comp *compositor.Compositor, frames int) (stats, error) {
	var st stats
	size := store.RequestedSize()
	const side = 32
	pos, vel := image.Pt(0, 0), image.Pt(5, 3)
	prev := image.Rectangle{}

	for i := 0; i < frames; i++ {
		square := image.Rect(pos.X, pos.Y, pos.X+side, pos.Y+side)
		var dirty region.Region
		if i == 0 {
			dirty = region.Rect(0, 0, size.X, size.Y)
		} else {
			dirty = region.New(prev, square)
		}

		img, err := store.BeginPaint(dirty)
		if err != nil {
			return st, err
		}
		dpr := img.DevicePixelRatio()
		for _, rc := range dirty.Rects() {
			paintBackground(img, region.ScaleRect(rc, dpr))
			st.repainted += rc.Dx() * rc.Dy()
		}
		img.Fill(region.ScaleRect(square, dpr), hue(i))
		if err := store.EndPaint(); err != nil {
			return st, err
		}
		if err := store.Flush(store.Window(), dirty, image.Point{}); err != nil {
			return st, err
		}
		comp.Dispatch()

		prev = square
		pos = pos.Add(vel)
		if pos.X < 0 || pos.X+side > size.X {
			vel.X = -vel.X
			pos.X += 2 * vel.X
		}
		if pos.Y < 0 || pos.Y+side > size.Y {
			vel.Y = -vel.Y
			pos.Y += 2 * vel.Y
		}
	}
	return st, nil
}

func paintBackground(img *pixel.Image, rc image.Rectangle) {
	const stripe = 16
	for y := rc.Min.Y; y < rc.Max.Y; y++ {
		c := color.RGBA{R: 0x20, G: 0x30, B: 0x50, A: 0xff}
		if (y/stripe)%2 == 1 {
			c = color.RGBA{R: 0x28, G: 0x38, B: 0x60, A: 0xff}
		}
		img.Fill(image.Rect(rc.Min.X, y, rc.Max.X, y+1), c)
	}
}

func hue(i int) color.RGBA {
	colors := []color.RGBA{
		{R: 0xf0, G: 0x50, B: 0x50, A: 0xff},
		{R: 0xf0, G: 0xc0, B: 0x40, A: 0xff},
		{R: 0x50, G: 0xd0, B: 0x70, A: 0xff},
		{R: 0x50, G: 0x90, B: 0xf0, A: 0xff},
	}
	return colors[(i/8)%len(colors)]
}

// releaseLoop plays a compositor that releases buffers on its own schedule.
func releaseLoop(comp *compositor.Compositor) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(2 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				comp.ReleaseAll()
			}
		}
	}()
	return func() { close(done) }
}

func parsePolicy(s string) (compositor.ReleasePolicy, error) {
	switch s {
	case "replace":
		return compositor.ReleaseOnReplace, nil
	case "immediate":
		return compositor.ReleaseImmediately, nil
	case "manual":
		return compositor.ReleaseManually, nil
	default:
		return 0, fmt.Errorf("unknown release policy %q", s)
	}
}

func savePNG(path string, img *image.RGBA) error {
	if img == nil {
		return errors.New("nothing was committed")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
