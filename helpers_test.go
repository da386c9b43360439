package shmstore

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/shmstore/pixel"
	"github.com/gogpu/shmstore/region"
	"github.com/gogpu/shmstore/shm"
)

var errNoEvents = errors.New("no events queued")

type commitRecord struct {
	surface SurfaceID
	buffer  BufferID
	damage  region.Region
}

// fakePresenter records protocol traffic and holds committed buffers until
// a test releases them.
type fakePresenter struct {
	next      BufferID
	live      map[BufferID]image.Point
	held      []BufferID
	commits   []commitRecord
	destroyed []BufferID
	release   func(BufferID)

	createErr error
	commitErr error
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{live: make(map[BufferID]image.Point)}
}

func (p *fakePresenter) CreateBuffer(h shm.Handle, width, height, stride int, format pixel.Format) (BufferID, error) {
	if p.createErr != nil {
		return 0, p.createErr
	}
	if h.Size() < stride*height {
		return 0, errors.New("pool too small")
	}
	p.next++
	p.live[p.next] = image.Pt(width, height)
	return p.next, nil
}

func (p *fakePresenter) Commit(surface SurfaceID, id BufferID, damage region.Region) error {
	if p.commitErr != nil {
		return p.commitErr
	}
	p.commits = append(p.commits, commitRecord{surface: surface, buffer: id, damage: damage.Clone()})
	p.held = append(p.held, id)
	return nil
}

func (p *fakePresenter) DestroyBuffer(id BufferID) {
	delete(p.live, id)
	p.destroyed = append(p.destroyed, id)
}

func (p *fakePresenter) SetReleaseHandler(fn func(BufferID)) { p.release = fn }

// releaseAll releases every committed buffer, including destroyed ones.
func (p *fakePresenter) releaseAll() {
	held := p.held
	p.held = nil
	for _, id := range held {
		p.release(id)
	}
}

func (p *fakePresenter) lastCommit(t *testing.T) commitRecord {
	t.Helper()
	if len(p.commits) == 0 {
		t.Fatal("no commits recorded")
	}
	return p.commits[len(p.commits)-1]
}

func (p *fakePresenter) wasDestroyed(id BufferID) bool {
	for _, have := range p.destroyed {
		if have == id {
			return true
		}
	}
	return false
}

// fakePump counts waits and runs onWait to simulate incoming events.
type fakePump struct {
	calls  int
	onWait func()
	err    error
}

func (p *fakePump) BlockUntilAnyEvent() error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	if p.onWait == nil {
		return errNoEvents
	}
	p.onWait()
	return nil
}

type fakeWindow struct {
	gpucontext.NullWindowProvider
	pos     image.Point
	hidden  bool
	deco    Decoration
	surface SurfaceID
	redraws int
}

func (w *fakeWindow) RequestRedraw()         { w.redraws++ }
func (w *fakeWindow) Position() image.Point  { return w.pos }
func (w *fakeWindow) Visible() bool          { return !w.hidden }
func (w *fakeWindow) Surface() SurfaceID     { return w.surface }
func (w *fakeWindow) Decoration() Decoration { return w.deco }

type fakeDecoration struct {
	margins Margins
	img     *pixel.Image
	dirty   bool
	updates int
}

func (d *fakeDecoration) Margins() Margins { return d.margins }
func (d *fakeDecoration) IsDirty() bool    { return d.dirty }
func (d *fakeDecoration) Update()          { d.updates++; d.dirty = true }
func (d *fakeDecoration) ContentImage() *pixel.Image {
	d.dirty = false
	return d.img
}

func solidFrame(t *testing.T, w, h int, c color.RGBA) *pixel.Image {
	t.Helper()
	img, err := pixel.New(w, h, pixel.FormatARGB8888)
	if err != nil {
		t.Fatal(err)
	}
	img.Fill(img.Bounds(), c)
	return img
}

// failingAllocator fails every allocation.
type failingAllocator struct {
	shm.HeapAllocator
	err error
}

func (a failingAllocator) Allocate(int) (shm.Handle, error) { return nil, a.err }

type harness struct {
	presenter *fakePresenter
	pump      *fakePump
	display   *Display
	window    *fakeWindow
	store     *BackingStore
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarnessWith(t, shm.HeapAllocator{}, &fakeWindow{surface: 1}, opts...)
}

func newHarnessWith(t *testing.T, alloc shm.Allocator, w *fakeWindow, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		presenter: newFakePresenter(),
		pump:      &fakePump{},
		window:    w,
	}
	h.display = NewDisplay(alloc, h.presenter, h.pump)
	h.store = NewBackingStore(h.display, w, opts...)
	t.Cleanup(h.display.Close)
	return h
}

// paintAndFlush paints and presents the whole content area.
func (h *harness) paintAndFlush(t *testing.T) *pixel.Image {
	t.Helper()
	size := h.store.RequestedSize()
	r := region.Rect(0, 0, size.X, size.Y)
	img, err := h.store.BeginPaint(r)
	if err != nil {
		t.Fatalf("BeginPaint() = %v", err)
	}
	if err := h.store.EndPaint(); err != nil {
		t.Fatalf("EndPaint() = %v", err)
	}
	if err := h.store.Flush(h.window, r, image.Point{}); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
	return img
}

func heapAlloc() shm.Allocator { return shm.HeapAllocator{} }
