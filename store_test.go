package shmstore

import (
	"errors"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
)

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
)

func TestBeginPaintCreatesBuffer(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(10, 8))

	if h.store.ContentImage() != nil {
		t.Fatal("ContentImage() before first paint should be nil")
	}

	img, err := h.store.BeginPaint(region.Rect(0, 0, 10, 8))
	if err != nil {
		t.Fatalf("BeginPaint() = %v", err)
	}
	if got := img.Size(); got != image.Pt(10, 8) {
		t.Errorf("content size = %v, want (10,8)", got)
	}
	if n := len(h.store.Buffers()); n != 1 {
		t.Errorf("len(Buffers()) = %d, want 1", n)
	}
	if h.display.LiveBuffers() != 1 {
		t.Errorf("LiveBuffers() = %d, want 1", h.display.LiveBuffers())
	}
	if !h.store.Painting() {
		t.Error("Painting() = false during paint")
	}
}

func TestBeginPaintUsesWindowSize(t *testing.T) {
	w := &fakeWindow{NullWindowProvider: gpucontext.NullWindowProvider{W: 6, H: 4}, surface: 1}
	h := newHarnessWith(t, heapAlloc(), w)

	img := h.paintAndFlush(t)
	if got := img.Size(); got != image.Pt(6, 4) {
		t.Errorf("content size = %v, want window size (6,4)", got)
	}
}

func TestBeginPaintInvalidSize(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.BeginPaint(region.Rect(0, 0, 1, 1))
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("BeginPaint() without size = %v, want ErrInvalidSize", err)
	}
}

func TestFlushBeforePaint(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	err := h.store.Flush(h.window, region.Rect(0, 0, 4, 4), image.Point{})
	if !errors.Is(err, ErrNoBackBuffer) {
		t.Errorf("Flush() before paint = %v, want ErrNoBackBuffer", err)
	}
}

func TestCapacityBoundAndStall(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	h.pump.onWait = h.presenter.releaseAll

	for frame := 1; frame <= 100; frame++ {
		h.paintAndFlush(t)
		if n := len(h.store.Buffers()); n > DefaultCapacity {
			t.Fatalf("frame %d: %d buffers, want at most %d", frame, n, DefaultCapacity)
		}
		if frame == DefaultCapacity && h.pump.calls != 0 {
			t.Fatalf("frame %d: pump called %d times before the pool was full", frame, h.pump.calls)
		}
		if frame == DefaultCapacity+1 && h.pump.calls != 1 {
			t.Fatalf("frame %d: pump called %d times, want 1", frame, h.pump.calls)
		}
	}
}

func TestSingleBufferWhenReleasedEarly(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))

	var first *Buffer
	for i := 0; i < 10; i++ {
		h.paintAndFlush(t)
		h.presenter.releaseAll()
		if first == nil {
			first = h.store.BackBuffer()
		} else if h.store.BackBuffer() != first {
			t.Fatalf("paint %d used a new buffer although the old one was released", i)
		}
	}
	if n := len(h.store.Buffers()); n != 1 {
		t.Errorf("len(Buffers()) = %d, want 1", n)
	}
	if h.pump.calls != 0 {
		t.Errorf("pump called %d times, want 0", h.pump.calls)
	}
}

func TestPruneOldBuffers(t *testing.T) {
	h := newHarness(t, WithCapacity(2))
	h.store.Resize(image.Pt(4, 4))

	h.paintAndFlush(t) // frame 1: A held by the compositor
	a := h.store.BackBuffer()
	h.paintAndFlush(t) // frame 2: B created
	h.presenter.releaseAll()

	maxAge := h.store.MaxAge()
	if maxAge != 20 {
		t.Fatalf("MaxAge() = %d, want 20", maxAge)
	}
	// A ages by one every frame while B keeps being reused.
	for frame := 3; frame <= maxAge+2; frame++ {
		h.paintAndFlush(t)
		h.presenter.releaseAll()
	}
	if a.Age() != maxAge+1 {
		t.Fatalf("A.Age() = %d, want %d", a.Age(), maxAge+1)
	}
	if n := len(h.store.Buffers()); n != 2 {
		t.Fatalf("A pruned too early: %d buffers", n)
	}

	h.paintAndFlush(t)
	if n := len(h.store.Buffers()); n != 1 {
		t.Fatalf("len(Buffers()) = %d after A exceeded max age, want 1", n)
	}
	if !h.presenter.wasDestroyed(a.ID()) {
		t.Error("pruned buffer was not destroyed at the compositor")
	}
	if a.Usable() {
		t.Error("pruned buffer is still usable")
	}
}

func TestResizePrunesBusyBuffers(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	h.paintAndFlush(t)
	old := h.store.BackBuffer()

	h.store.Resize(image.Pt(6, 6))
	img, err := h.store.BeginPaint(region.Rect(0, 0, 6, 6))
	if err != nil {
		t.Fatalf("BeginPaint() = %v", err)
	}
	if got := img.Size(); got != image.Pt(6, 6) {
		t.Errorf("content size = %v, want (6,6)", got)
	}
	if !h.presenter.wasDestroyed(old.ID()) {
		t.Error("buffer with the old size was not destroyed")
	}

	// The compositor releases the destroyed buffer late.
	h.presenter.releaseAll()
	if h.display.LiveBuffers() != 1 {
		t.Errorf("LiveBuffers() = %d, want 1", h.display.LiveBuffers())
	}
}

func TestResizeSameSizeKeepsBuffers(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	h.paintAndFlush(t)
	h.presenter.releaseAll()
	back := h.store.BackBuffer()

	h.store.Resize(image.Pt(4, 4))
	h.store.Resize(image.Pt(4, 4))
	h.paintAndFlush(t)

	if h.store.BackBuffer() != back {
		t.Error("resizing to the same size replaced the back buffer")
	}
	if len(h.presenter.destroyed) != 0 {
		t.Errorf("destroyed %v, want none", h.presenter.destroyed)
	}
}

func TestDamageCopy(t *testing.T) {
	h := newHarness(t, WithCapacity(2))
	h.store.Resize(image.Pt(8, 8))

	// Frame 1 paints everything red into A; A stays busy.
	img, err := h.store.BeginPaint(region.Rect(0, 0, 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	img.Fill(img.Bounds(), red)
	mustEndAndFlush(t, h, region.Rect(0, 0, 8, 8))
	a := h.store.BackBuffer()

	// Frame 2 goes to a new buffer B, which receives A's content first.
	img, err = h.store.BeginPaint(region.Rect(0, 0, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	b := h.store.BackBuffer()
	if b == a {
		t.Fatal("busy buffer selected for painting")
	}
	if got := img.RGBAAt(5, 5); got != red {
		t.Errorf("B(5,5) = %v, want red copied from A", got)
	}
	img.Fill(image.Rect(0, 0, 2, 2), green)
	if diff := cmp.Diff([]image.Rectangle{image.Rect(0, 0, 2, 2)}, a.DirtyRegion().Rects()); diff != "" {
		t.Errorf("A dirty region mismatch (-want +got):\n%s", diff)
	}
	mustEndAndFlush(t, h, region.Rect(0, 0, 2, 2))

	// Frame 3: A is released, B is held. Only A's stale area comes from B.
	h.presenter.release(a.ID())
	img, err = h.store.BeginPaint(region.Rect(6, 6, 2, 2))
	if err != nil {
		t.Fatal(err)
	}
	if h.store.BackBuffer() != a {
		t.Fatal("released buffer A was not selected")
	}
	if got := img.RGBAAt(0, 0); got != green {
		t.Errorf("A(0,0) = %v, want green copied from B", got)
	}
	if got := img.RGBAAt(3, 3); got != red {
		t.Errorf("A(3,3) = %v, want red left untouched", got)
	}
	if got := img.RGBAAt(7, 7); got != (color.RGBA{}) {
		t.Errorf("A(7,7) = %v, want cleared painted region", got)
	}
	if !a.DirtyRegion().IsEmpty() {
		t.Errorf("back buffer dirty region = %v, want empty", a.DirtyRegion().Rects())
	}
}

func TestNoDamageCopyAcrossSizes(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	img := h.paintAndFlush(t)
	img.Fill(img.Bounds(), red)

	h.store.Resize(image.Pt(5, 4))
	img, err := h.store.BeginPaint(region.Rect(0, 0, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(2, 2); got != (color.RGBA{}) {
		t.Errorf("new buffer (2,2) = %v, want zero-filled", got)
	}
}

func TestPreClearReusedBuffer(t *testing.T) {
	tests := []struct {
		name    string
		format  pixel.Format
		cleared bool
	}{
		{"alpha", pixel.FormatARGB8888, true},
		{"opaque", pixel.FormatXRGB8888, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, WithFormat(tt.format))
			h.store.Resize(image.Pt(4, 4))
			img := h.paintAndFlush(t)
			img.Fill(img.Bounds(), blue)
			h.presenter.releaseAll()

			img, err := h.store.BeginPaint(region.Rect(0, 0, 2, 2))
			if err != nil {
				t.Fatal(err)
			}
			want := blue
			if tt.cleared {
				want = color.RGBA{}
			}
			if got := img.RGBAAt(1, 1); got != want {
				t.Errorf("painted pixel = %v, want %v", got, want)
			}
			if got := img.RGBAAt(3, 3); got != blue {
				t.Errorf("unpainted pixel = %v, want blue", got)
			}
		})
	}
}

func TestFlushDeferredWhilePainting(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	if _, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4)); err != nil {
		t.Fatal(err)
	}

	if err := h.store.Flush(h.window, region.Rect(0, 0, 1, 1), image.Point{}); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
	if err := h.store.Flush(h.window, region.Rect(2, 2, 1, 1), image.Point{}); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
	if len(h.presenter.commits) != 0 {
		t.Fatal("flush committed while painting")
	}

	if err := h.store.EndPaint(); err != nil {
		t.Fatalf("EndPaint() = %v", err)
	}
	if len(h.presenter.commits) != 1 {
		t.Fatalf("commits = %d after EndPaint, want 1", len(h.presenter.commits))
	}
	c := h.presenter.lastCommit(t)
	if got := c.damage.Area(); got != 2 {
		t.Errorf("deferred damage area = %d, want 2", got)
	}
	if !h.store.BackBuffer().Busy() {
		t.Error("committed buffer is not busy")
	}
	if h.store.FrontBuffer() != h.store.BackBuffer() {
		t.Error("front buffer is not the committed back buffer")
	}

	// Nothing pending any more.
	if err := h.store.EndPaint(); err != nil {
		t.Fatal(err)
	}
	if len(h.presenter.commits) != 1 {
		t.Error("second EndPaint committed again")
	}
}

func TestFlushCommitError(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	if _, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4)); err != nil {
		t.Fatal(err)
	}
	_ = h.store.EndPaint()

	h.presenter.commitErr = io.ErrClosedPipe
	err := h.store.Flush(h.window, region.Rect(0, 0, 4, 4), image.Point{})
	if !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("Flush() = %v, want wrapped io.ErrClosedPipe", err)
	}
	if h.store.BackBuffer().Busy() {
		t.Error("buffer marked busy after failed commit")
	}
}

func TestFlushChildWindow(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(8, 8))
	img, err := h.store.BeginPaint(region.Rect(0, 0, 8, 8))
	if err != nil {
		t.Fatal(err)
	}
	img.Fill(img.Bounds(), red)
	img.SetRGBA(2, 3, green)
	mustEndAndFlush(t, h, region.Rect(0, 0, 8, 8))
	live := h.display.LiveBuffers()

	child := &fakeWindow{
		NullWindowProvider: gpucontext.NullWindowProvider{W: 4, H: 4},
		pos:                image.Pt(2, 3),
		surface:            7,
	}
	front, back := h.store.FrontBuffer(), h.store.BackBuffer()
	if err := h.store.Flush(child, region.Rect(0, 0, 4, 4), image.Point{}); err != nil {
		t.Fatalf("Flush(child) = %v", err)
	}
	if h.store.FrontBuffer() != front || h.store.BackBuffer() != back {
		t.Error("child flush changed the store's front or back buffer")
	}

	c := h.presenter.lastCommit(t)
	if c.surface != 7 {
		t.Errorf("child committed on surface %d, want 7", c.surface)
	}
	b, ok := h.display.Lookup(c.buffer)
	if !ok {
		t.Fatal("child buffer not registered")
	}
	if got := b.Size(); got != image.Pt(4, 4) {
		t.Errorf("child buffer size = %v, want (4,4)", got)
	}
	if got := b.Image().RGBAAt(0, 0); got != green {
		t.Errorf("child (0,0) = %v, want green from parent (2,3)", got)
	}
	if h.display.LiveBuffers() != live+1 {
		t.Errorf("LiveBuffers() = %d, want %d", h.display.LiveBuffers(), live+1)
	}
	for _, have := range h.store.Buffers() {
		if have == b {
			t.Fatal("child buffer joined the store pool")
		}
	}

	h.presenter.release(c.buffer)
	if h.display.LiveBuffers() != live {
		t.Errorf("child buffer not destroyed on release: LiveBuffers() = %d", h.display.LiveBuffers())
	}
}

func TestDecorations(t *testing.T) {
	deco := &fakeDecoration{margins: Margins{Left: 2, Top: 3, Right: 2, Bottom: 2}}
	w := &fakeWindow{surface: 1, deco: deco}
	h := newHarnessWith(t, heapAlloc(), w)
	h.store.Resize(image.Pt(10, 8))

	frame, err := pixel.New(14, 13, pixel.FormatARGB8888)
	if err != nil {
		t.Fatal(err)
	}
	frame.Fill(frame.Bounds(), blue)
	deco.img = frame

	img, err := h.store.BeginPaint(region.Rect(0, 0, 10, 8))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Size(); got != image.Pt(10, 8) {
		t.Errorf("content size = %v, want (10,8)", got)
	}
	if got := h.store.EntireImage().Size(); got != image.Pt(14, 13) {
		t.Errorf("entire size = %v, want (14,13)", got)
	}
	if deco.updates != 1 || w.redraws != 1 {
		t.Errorf("updates = %d, redraws = %d after first paint, want 1, 1", deco.updates, w.redraws)
	}
	img.Fill(img.Bounds(), red)
	mustEndAndFlush(t, h, region.Rect(0, 0, 10, 8))

	entire := h.store.EntireImage()
	if got := entire.RGBAAt(0, 0); got != blue {
		t.Errorf("frame corner = %v, want blue", got)
	}
	if got := entire.RGBAAt(13, 12); got != blue {
		t.Errorf("frame corner = %v, want blue", got)
	}
	if got := entire.RGBAAt(2, 3); got != red {
		t.Errorf("content origin = %v, want red", got)
	}

	c := h.presenter.lastCommit(t)
	if !c.damage.Contains(image.Pt(2, 3)) || !c.damage.Contains(image.Pt(11, 10)) {
		t.Errorf("damage = %v, want content rect translated by margins", c.damage.Rects())
	}
	if got := c.damage.Bounds(); got != image.Rect(0, 0, 14, 13) {
		t.Errorf("damage bounds = %v, want the repainted frame included", got)
	}

	h.presenter.releaseAll()
	h.paintAndFlush(t)
	if deco.updates != 1 {
		t.Errorf("decoration updated %d times for an unchanged size", deco.updates)
	}
}

func TestFlushRepaintsDecorationOnFreeBuffer(t *testing.T) {
	deco := &fakeDecoration{margins: Margins{Left: 2, Top: 3, Right: 2, Bottom: 2}}
	w := &fakeWindow{surface: 1, deco: deco}
	h := newHarnessWith(t, heapAlloc(), w)
	h.store.Resize(image.Pt(10, 8))
	deco.img = solidFrame(t, 14, 13, blue)

	img, err := h.store.BeginPaint(region.Rect(0, 0, 10, 8))
	if err != nil {
		t.Fatal(err)
	}
	img.Fill(img.Bounds(), green)
	mustEndAndFlush(t, h, region.Rect(0, 0, 10, 8))
	held := h.store.BackBuffer()

	// Title change while the compositor still holds the buffer.
	deco.img = solidFrame(t, 14, 13, red)
	deco.Update()
	if err := h.store.Flush(w, region.Region{}, image.Point{}); err != nil {
		t.Fatalf("Flush() = %v", err)
	}

	if !held.Busy() {
		t.Fatal("held buffer released without a release event")
	}
	if got := held.Image().RGBAAt(0, 0); got != blue {
		t.Errorf("held buffer frame = %v, want blue (untouched)", got)
	}
	back := h.store.BackBuffer()
	if back == held {
		t.Fatal("frame repainted into the buffer held by the compositor")
	}
	if got := back.Image().RGBAAt(0, 0); got != red {
		t.Errorf("new frame = %v, want red", got)
	}
	if got := back.Image().RGBAAt(5, 5); got != green {
		t.Errorf("content = %v, want green copied from the held buffer", got)
	}
	c := h.presenter.lastCommit(t)
	if c.buffer != back.ID() {
		t.Errorf("committed buffer %d, want %d", c.buffer, back.ID())
	}
	if !c.damage.Contains(image.Pt(0, 0)) {
		t.Errorf("damage %v misses the repainted frame", c.damage.Rects())
	}
	if h.store.FrontBuffer() != back {
		t.Error("front buffer not promoted")
	}
}

func TestFlushDecorationStallsUntilRelease(t *testing.T) {
	deco := &fakeDecoration{margins: Margins{Top: 2}}
	w := &fakeWindow{surface: 1, deco: deco}
	h := newHarnessWith(t, heapAlloc(), w, WithCapacity(1))
	h.store.Resize(image.Pt(4, 4))
	deco.img = solidFrame(t, 4, 6, blue)
	h.paintAndFlush(t)

	deco.img = solidFrame(t, 4, 6, red)
	deco.Update()
	h.pump.onWait = h.presenter.releaseAll
	if err := h.store.Flush(w, region.Region{}, image.Point{}); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
	if h.pump.calls != 1 {
		t.Errorf("pump calls = %d, want 1", h.pump.calls)
	}
	if got := h.store.BackBuffer().Image().RGBAAt(0, 0); got != red {
		t.Errorf("frame = %v, want red after the release", got)
	}
}

func TestResizeMarksDecorationStale(t *testing.T) {
	deco := &fakeDecoration{margins: Margins{Left: 1, Top: 2, Right: 1, Bottom: 1}}
	w := &fakeWindow{surface: 1, deco: deco}
	h := newHarnessWith(t, heapAlloc(), w)

	h.store.Resize(image.Pt(6, 5))
	deco.img = solidFrame(t, 8, 8, blue)
	h.paintAndFlush(t)
	if deco.updates != 1 {
		t.Fatalf("updates = %d after first paint, want 1", deco.updates)
	}
	old := h.store.BackBuffer()

	h.store.Resize(image.Pt(8, 6))
	deco.img = solidFrame(t, 10, 9, blue)
	h.paintAndFlush(t)
	if deco.updates != 2 {
		t.Errorf("updates = %d after resize, want 2", deco.updates)
	}
	if w.redraws != 2 {
		t.Errorf("redraws = %d after resize, want 2", w.redraws)
	}
	if !h.presenter.wasDestroyed(old.ID()) {
		t.Error("buffer with the old size was not destroyed")
	}
	committed := h.store.BackBuffer()

	// The frame changes while the previous buffer is held.
	deco.Update()
	h.paintAndFlush(t)
	if h.store.BackBuffer() == committed {
		t.Fatal("expected a second buffer while the first is held")
	}
	dirty := committed.DirtyRegion()
	borders := map[string]image.Point{
		"top":    {5, 0},
		"left":   {0, 4},
		"right":  {9, 4},
		"bottom": {5, 8},
	}
	for name, p := range borders {
		if !dirty.Contains(p) {
			t.Errorf("%s border %v not dirty in the other buffer: %v", name, p, dirty.Rects())
		}
	}

	updates := deco.updates
	w.hidden = true
	h.store.Resize(image.Pt(9, 7))
	deco.img = solidFrame(t, 11, 10, blue)
	if _, err := h.store.BeginPaint(region.Rect(0, 0, 9, 7)); err != nil {
		t.Fatal(err)
	}
	if deco.updates != updates {
		t.Errorf("hidden window: updates = %d, want %d", deco.updates, updates)
	}
}

func TestDevicePixelRatio(t *testing.T) {
	w := &fakeWindow{NullWindowProvider: gpucontext.NullWindowProvider{SF: 2}, surface: 1}
	h := newHarnessWith(t, heapAlloc(), w)
	h.store.Resize(image.Pt(10, 8))

	img := h.paintAndFlush(t)
	if got := img.Size(); got != image.Pt(20, 16) {
		t.Errorf("physical size = %v, want (20,16)", got)
	}
	if got := img.DevicePixelRatio(); got != 2 {
		t.Errorf("DevicePixelRatio() = %v, want 2", got)
	}
	img.Fill(img.Bounds(), red)
	h.presenter.releaseAll()

	img, err := h.store.BeginPaint(region.Rect(0, 0, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{}) {
		t.Errorf("(1,1) = %v, want cleared by scaled region", got)
	}
	if got := img.RGBAAt(2, 2); got != red {
		t.Errorf("(2,2) = %v, want untouched", got)
	}
}

func TestReconnected(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	img, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4))
	if err != nil {
		t.Fatal(err)
	}
	img.Fill(img.Bounds(), red)
	mustEndAndFlush(t, h, region.Rect(0, 0, 4, 4))
	old := h.store.BackBuffer()

	h.display.Reconnected()

	back := h.store.BackBuffer()
	if back == nil || back == old {
		t.Fatal("back buffer was not recreated")
	}
	if got := back.Image().RGBAAt(3, 3); got != red {
		t.Errorf("recreated (3,3) = %v, want red copied from old buffer", got)
	}
	if !h.presenter.wasDestroyed(old.ID()) {
		t.Error("old buffer was not destroyed")
	}
	if h.store.FrontBuffer() != nil {
		t.Error("front buffer survived reconnect")
	}
	if n := len(h.store.Buffers()); n != 1 {
		t.Errorf("len(Buffers()) = %d, want 1", n)
	}
	if h.pump.calls != 0 {
		t.Error("reconnect waited for events")
	}
	if err := h.store.Flush(h.window, region.Rect(0, 0, 4, 4), image.Point{}); err != nil {
		t.Errorf("Flush() after reconnect = %v", err)
	}
}

func TestReconnectedWithoutSize(t *testing.T) {
	h := newHarness(t)
	h.display.Reconnected()
	if h.store.BackBuffer() != nil {
		t.Error("reconnect created a back buffer without a size")
	}
}

func TestCapacityExhausted(t *testing.T) {
	errAlloc := errors.New("out of memory")
	h := newHarnessWith(t, failingAllocator{err: errAlloc}, &fakeWindow{surface: 1})
	h.store.Resize(image.Pt(4, 4))

	_, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4))
	if !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("BeginPaint() = %v, want ErrCapacityExhausted", err)
	}
	if !errors.Is(err, errAlloc) {
		t.Errorf("BeginPaint() = %v, want the allocation error wrapped", err)
	}
	if n := len(h.store.Buffers()); n != 0 {
		t.Errorf("len(Buffers()) = %d, want unusable buffers dropped", n)
	}
	if h.pump.calls != 0 {
		t.Error("waited for events although nothing is busy")
	}
}

func TestPresenterCreateFailure(t *testing.T) {
	h := newHarness(t)
	h.presenter.createErr = errors.New("protocol error")
	h.store.Resize(image.Pt(4, 4))

	if _, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4)); !errors.Is(err, ErrCapacityExhausted) {
		t.Fatalf("BeginPaint() = %v, want ErrCapacityExhausted", err)
	}

	h.presenter.createErr = nil
	if _, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4)); err != nil {
		t.Fatalf("BeginPaint() after recovery = %v", err)
	}
}

func TestPumpError(t *testing.T) {
	h := newHarness(t, WithCapacity(1))
	h.store.Resize(image.Pt(4, 4))
	h.paintAndFlush(t)

	h.pump.err = io.ErrUnexpectedEOF
	_, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("BeginPaint() = %v, want wrapped pump error", err)
	}
	if h.store.Painting() {
		t.Error("Painting() = true after failed BeginPaint")
	}
}

func TestUnknownRelease(t *testing.T) {
	h := newHarness(t)
	h.presenter.release(999)
	if h.display.LiveBuffers() != 0 {
		t.Error("unknown release created state")
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(4, 4))
	h.paintAndFlush(t)

	if err := h.store.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := h.store.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
	if h.display.LiveBuffers() != 0 {
		t.Errorf("LiveBuffers() = %d after Close, want 0", h.display.LiveBuffers())
	}
	if _, err := h.store.BeginPaint(region.Rect(0, 0, 4, 4)); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginPaint() after Close = %v, want ErrClosed", err)
	}
	h.presenter.releaseAll()
}

func TestImageInsideMarginsCached(t *testing.T) {
	h := newHarness(t)
	h.store.Resize(image.Pt(8, 8))
	h.paintAndFlush(t)
	b := h.store.BackBuffer()

	m := Margins{Left: 1, Top: 1, Right: 1, Bottom: 1}
	first := b.ImageInsideMargins(m)
	if first != b.ImageInsideMargins(m) {
		t.Error("view not cached for equal margins")
	}
	if got := first.Size(); got != image.Pt(6, 6) {
		t.Errorf("view size = %v, want (6,6)", got)
	}
	if b.ImageInsideMargins(Margins{}) != b.Image() {
		t.Error("zero margins should return the whole image")
	}
	if got := b.ImageInsideMargins(Margins{Left: 4, Right: 4}); got != nil {
		t.Errorf("margins covering the image = %v, want nil", got.Size())
	}
}

func mustEndAndFlush(t *testing.T, h *harness, r region.Region) {
	t.Helper()
	if err := h.store.EndPaint(); err != nil {
		t.Fatalf("EndPaint() = %v", err)
	}
	if err := h.store.Flush(h.window, r, image.Point{}); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
}
