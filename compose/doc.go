// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package compose uploads backing store content to GPU textures.
//
// A shared-memory backing store keeps window content in CPU memory. When
// the window is composited by a GPU renderer instead of a display server,
// Canvas moves that content into a texture:
//
//	BackingStore.ToImage() (shm) -> RGBA rows -> GPU Texture -> TextureDrawer
//
// # Usage
//
//	canvas, err := compose.New(store)
//	if err != nil {
//	    return err
//	}
//	defer canvas.Close()
//
//	// after painting and flushing the store
//	canvas.MarkDirty(damage)
//	if err := canvas.RenderTo(dc.AsTextureDrawer()); err != nil {
//	    return err
//	}
//
// Only damaged rectangles are uploaded when the texture implements
// gpucontext.TextureRegionUpdater. Otherwise the whole image is uploaded
// through gpucontext.TextureUpdater.
//
// # Thread Safety
//
// Canvas is NOT safe for concurrent use.
package compose
