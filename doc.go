// Package shmstore provides a shared-memory backing store for toplevel
// windows of a Wayland-style display.
//
// # Overview
//
// A [BackingStore] keeps a small pool of [Buffer] values, each a block of
// shared memory wrapped as a [pixel.Image] and registered with the
// compositor through a [Presenter]. Painting always targets the back
// buffer. Flushing hands the back buffer to the compositor, which marks it
// busy until the compositor releases it.
//
// # Quick Start
//
//	d := shmstore.NewDisplay(shm.NewAllocator(), presenter, pump)
//	s := shmstore.NewBackingStore(d, window)
//	s.Resize(image.Pt(640, 480))
//
//	img, err := s.BeginPaint(region.Rect(0, 0, 640, 480))
//	if err != nil {
//		return err
//	}
//	img.Fill(img.Bounds(), color.RGBA{R: 0x20, G: 0x40, B: 0x80, A: 0xff})
//	if err := s.EndPaint(); err != nil {
//		return err
//	}
//	err = s.Flush(window, region.Rect(0, 0, 640, 480), image.Point{})
//
// # Buffer Selection
//
// When a paint begins, the store prunes buffers that are too old or have
// the wrong size, then picks the free buffer with the lowest age. If every
// buffer is busy and the pool is at capacity, the store blocks on the
// [EventPump] until the compositor releases one. Content painted into the
// previous back buffer is copied over for every region the new buffer has
// not seen yet, so callers only repaint what actually changed.
//
// # Coordinates
//
// Regions passed to [BackingStore.BeginPaint] and [BackingStore.Flush] are
// in logical units relative to the content area. Buffer images carry the
// window's device pixel ratio; physical pixels are logical units times that
// ratio.
//
// # Concurrency
//
// A [Display] and its stores are owned by one goroutine, the one that
// dispatches compositor events. Logging configuration through [SetLogger]
// is safe from any goroutine.
package shmstore
