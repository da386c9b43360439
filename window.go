package shmstore

import (
	"image"

	"github.com/gogpu/gpucontext"
)

// Window is a toplevel or child window whose content a BackingStore holds.
//
// Size reports the logical size and ScaleFactor the device pixel ratio.
// RequestRedraw is called when decorations must be repainted.
type Window interface {
	gpucontext.WindowProvider

	// Position returns the window origin in logical units, relative to
	// the parent's content area for child windows.
	Position() image.Point

	// Visible reports whether the window is currently mapped.
	Visible() bool

	// Decoration returns the client-side decoration, or nil.
	Decoration() Decoration

	// Surface returns the compositor surface the window presents on.
	Surface() SurfaceID
}

// windowScale returns the window scale factor, defaulting to 1.
func windowScale(w Window) float64 {
	if f := w.ScaleFactor(); f > 0 {
		return f
	}
	return 1
}
