// Package gpu maintains the host-side mirror of guest GPU state: textures
// backed by host images, the cache that deduplicates them, and the graphics
// context that translates register-level guest state into host draw state.
package gpu

import (
	"io"
	"os"

	"github.com/artem8086/skyline/gmmu"
)

// GPU ties together the host rendering backend, the guest address space and
// the texture cache.
type GPU struct {
	backend      Backend
	addressSpace gmmu.AddressSpace
	log          io.Writer

	// Textures deduplicates and owns the host image objects created for
	// guest surfaces.
	Textures *TextureManager
}

// Option configures a GPU.
type Option func(*GPU)

// WithBackend selects the host rendering backend. The default is the
// software backend.
func WithBackend(backend Backend) Option {
	return func(g *GPU) {
		g.backend = backend
	}
}

// WithLogWriter sets the destination for warnings.
func WithLogWriter(w io.Writer) Option {
	return func(g *GPU) {
		g.log = w
	}
}

// New creates a GPU over the given guest address space.
func New(addressSpace gmmu.AddressSpace, opts ...Option) *GPU {
	g := &GPU{
		backend:      NewSoftwareBackend(),
		addressSpace: addressSpace,
		log:          os.Stderr,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.Textures = NewTextureManager(g)
	return g
}

// Backend returns the host rendering backend.
func (g *GPU) Backend() Backend {
	return g.backend
}

// AddressSpace returns the guest GPU address space.
func (g *GPU) AddressSpace() gmmu.AddressSpace {
	return g.addressSpace
}
