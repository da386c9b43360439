// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package compositor_test

import (
	"image"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/shmstore"
)

type window struct {
	gpucontext.NullWindowProvider
	surface shmstore.SurfaceID
}

func (w *window) Position() image.Point           { return image.Point{} }
func (w *window) Visible() bool                   { return true }
func (w *window) Decoration() shmstore.Decoration { return nil }
func (w *window) Surface() shmstore.SurfaceID     { return w.surface }
