package shmstore

import "github.com/gogpu/shmstore/pixel"

const (
	// DefaultCapacity is the number of buffers a store keeps by default.
	DefaultCapacity = 5

	// DefaultMaxAgeFactor multiplied by the capacity gives the age after
	// which an unused buffer is destroyed.
	DefaultMaxAgeFactor = 10
)

// Option configures a BackingStore during creation.
//
// Example:
//
//	// Triple buffering with opaque pixels
//	s := shmstore.NewBackingStore(d, w,
//	    shmstore.WithCapacity(3),
//	    shmstore.WithFormat(pixel.FormatXRGB8888))
type Option func(*options)

type options struct {
	capacity     int
	maxAgeFactor int
	format       pixel.Format
}

func defaultOptions() options {
	return options{
		capacity:     DefaultCapacity,
		maxAgeFactor: DefaultMaxAgeFactor,
		format:       pixel.FormatARGB8888,
	}
}

// maxAge is the age above which a buffer is pruned.
func (o options) maxAge() int {
	return o.maxAgeFactor * o.capacity
}

// WithCapacity sets how many buffers the store may hold at once.
// Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.capacity = n
		}
	}
}

// WithMaxAgeFactor sets the pruning threshold as a multiple of the capacity.
// Values below 1 are ignored.
func WithMaxAgeFactor(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.maxAgeFactor = n
		}
	}
}

// WithFormat sets the pixel format of new buffers. This is normally the
// screen format announced by the compositor. Invalid formats are ignored.
func WithFormat(f pixel.Format) Option {
	return func(o *options) {
		if f.IsValid() {
			o.format = f
		}
	}
}
