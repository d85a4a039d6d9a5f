package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/artem8086/skyline/gmmu"
)

// GuestTexture describes a texture residing in guest memory. It carries
// everything needed to create an equivalent host texture.
type GuestTexture struct {
	// Mappings are the host byte ranges backing the texture's data, in
	// guest address order.
	Mappings []gmmu.Mapping

	Dimensions Dimensions
	Format     *Format
	TileConfig TileConfig
	Type       TextureType

	BaseArrayLayer uint16
	LayerCount     uint16

	// LayerStride is an optional hint for the byte size of one layer; it
	// is zero when not available.
	LayerStride uint32
}

// MappingsEqual reports whether two mapping lists describe the same host
// ranges in the same order.
func MappingsEqual(a, b []gmmu.Mapping) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Backing is the closed set of host image backing states a texture can be
// in: absent, supplied externally (not owned), or allocated by the texture
// itself (owned). Access sites match the three variants exhaustively.
type Backing interface {
	isBacking()
}

type noBacking struct{}

type borrowedBacking struct {
	image Image
}

type ownedBacking struct {
	image Image
}

func (noBacking) isBacking()       {}
func (borrowedBacking) isBacking() {}
func (ownedBacking) isBacking()    {}

// NoBacking is the absent-backing variant.
func NoBacking() Backing { return noBacking{} }

// BorrowedBacking wraps an externally owned host image.
func BorrowedBacking(img Image) Backing { return borrowedBacking{image: img} }

// OwnedBacking wraps a host image owned by the texture.
func OwnedBacking(img Image) Backing { return ownedBacking{image: img} }

// Texture is a host-backed image kept in sync with an underlying guest
// texture.
//
// The per-instance lock guards the backing and contents. Every mutating
// method requires the caller to hold the lock already; the texture never
// acquires it internally. This is deliberate call-site API so that callers
// can order multi-texture locking themselves.
type Texture struct {
	gpu *GPU

	mu             sync.Mutex
	backingChanged *sync.Cond
	backing        Backing

	// cycle marks in-flight host work touching this texture. At most one
	// is outstanding; it must be waited on and cleared before the backing
	// or contents are mutated from the CPU side.
	cycle *FenceCycle

	// Guest is the guest descriptor this texture mirrors, nil for purely
	// host-side textures.
	Guest *GuestTexture

	Dimensions  Dimensions
	Format      *Format
	Layout      ImageLayout
	Tiling      ImageTiling
	MipLevels   uint32
	LayerCount  uint32
	SampleCount uint32
}

// TextureView is a projection of a texture with possibly overridden format,
// component mapping and subresource range. It holds a reference to the
// backing texture, keeping it alive.
type TextureView struct {
	Texture *Texture
	Type    TextureType
	Format  *Format
	Mapping ComponentMapping
	Range   SubresourceRange
}

func newTexture(g *GPU, backing Backing) *Texture {
	t := &Texture{
		gpu:         g,
		backing:     backing,
		Layout:      ImageLayoutUndefined,
		Tiling:      ImageTilingOptimal,
		MipLevels:   1,
		LayerCount:  1,
		SampleCount: 1,
	}
	t.backingChanged = sync.NewCond(&t.mu)
	return t
}

// NewTexture creates a texture with a freshly allocated, owned host image
// and no guest association.
func NewTexture(g *GPU, dims Dimensions, format *Format, layerCount uint32) (*Texture, error) {
	t := newTexture(g, NoBacking())
	t.Dimensions = dims
	t.Format = format
	t.Layout = ImageLayoutGeneral
	t.LayerCount = layerCount

	img, err := g.backend.CreateImage(ImageDescriptor{
		Format:      format.Host,
		Extent:      dims.Extent(),
		MipLevels:   1,
		LayerCount:  layerCount,
		SampleCount: 1,
		Tiling:      t.Tiling,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	t.backing = OwnedBacking(img)
	return t, nil
}

// NewTextureFromGuest creates a texture mirroring a guest descriptor,
// allocating an owned host image and synchronizing the guest contents into
// it.
func NewTextureFromGuest(g *GPU, guest *GuestTexture) (*Texture, error) {
	if guest.Format == nil {
		return nil, fmt.Errorf("gpu: guest texture has no format: %w", ErrUnsupportedFormat)
	}
	if !guest.Dimensions.Valid() {
		return nil, fmt.Errorf("gpu: guest texture has degenerate dimensions %+v", guest.Dimensions)
	}

	layerCount := uint32(guest.LayerCount)
	if layerCount == 0 {
		layerCount = 1
	}

	tiling := ImageTilingLinear
	if guest.TileConfig.Mode == TileModeBlock {
		tiling = ImageTilingOptimal
	}

	t := newTexture(g, NoBacking())
	t.Guest = guest
	t.Dimensions = guest.Dimensions
	t.Format = guest.Format
	t.Layout = ImageLayoutGeneral
	t.Tiling = tiling
	t.LayerCount = layerCount

	img, err := g.backend.CreateImage(ImageDescriptor{
		Format:      guest.Format.Host,
		Extent:      guest.Dimensions.Extent(),
		MipLevels:   1,
		LayerCount:  layerCount,
		SampleCount: 1,
		Tiling:      tiling,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	t.backing = OwnedBacking(img)

	t.Lock()
	defer t.Unlock()
	if err := t.SynchronizeHost(); err != nil {
		return nil, err
	}
	return t, nil
}

// WrapImage creates a texture around an externally supplied host image.
func WrapImage(g *GPU, img Image, dims Dimensions, format *Format, layout ImageLayout) *Texture {
	t := newTexture(g, BorrowedBacking(img))
	t.Dimensions = dims
	t.Format = format
	t.Layout = layout
	return t
}

// Image returns the host image handle, which is nil while the backing is
// absent.
func (t *Texture) Image() Image {
	switch backing := t.backing.(type) {
	case noBacking:
		return nil
	case borrowedBacking:
		return backing.image
	case ownedBacking:
		return backing.image
	default:
		panic(fmt.Sprintf("gpu: unknown texture backing variant %T", t.backing))
	}
}

// Lock acquires the texture's lock for the calling goroutine.
func (t *Texture) Lock() {
	t.mu.Lock()
}

// Unlock releases the texture's lock.
func (t *Texture) Unlock() {
	t.mu.Unlock()
}

// TryLock attempts to acquire the lock without blocking.
func (t *Texture) TryLock() bool {
	return t.mu.TryLock()
}

// WaitOnBacking blocks until the texture has a non-nil backing, releasing
// the lock while parked. Returns whether the lock was released. The lock
// must be held.
func (t *Texture) WaitOnBacking() bool {
	if t.Image() != nil {
		return false
	}
	for t.Image() == nil {
		t.backingChanged.Wait()
	}
	return true
}

// WaitOnFence waits for any pending fence cycle to signal and clears it,
// releasing the lock while parked. The lock must be held.
func (t *Texture) WaitOnFence() {
	for t.cycle != nil {
		cycle := t.cycle
		t.mu.Unlock()
		cycle.Wait()
		t.mu.Lock()
		if t.cycle == cycle {
			t.cycle = nil
		}
	}
}

// AttachCycle records in-flight host work touching this texture, waiting
// out any previous cycle first. The lock must be held.
func (t *Texture) AttachCycle(cycle *FenceCycle) {
	t.WaitOnFence()
	t.cycle = cycle
}

// SwapBacking installs a new backing and layout. Contents of the previous
// backing are not carried over; callers must copy beforehand if they need
// them. Wakes any WaitOnBacking waiters. The lock must be held.
func (t *Texture) SwapBacking(backing Backing, layout ImageLayout) {
	t.WaitOnFence()

	t.backing = backing
	t.Layout = layout
	if t.Image() != nil {
		t.backingChanged.Broadcast()
	}
}

// TransitionLayout moves the backing to the given layout. Does nothing if
// the backing is already in it. The lock must be held.
func (t *Texture) TransitionLayout(layout ImageLayout) error {
	t.WaitOnBacking()
	t.WaitOnFence()

	if t.Layout == layout {
		return nil
	}
	cycle, err := t.gpu.backend.TransitionLayout(t.Image(), t.Layout, layout)
	if err != nil {
		return err
	}
	t.Layout = layout
	t.cycle = cycle
	return nil
}

// SetFormat reinterprets the backing under a new format. The new format
// must share the current format's texel layout.
func (t *Texture) SetFormat(format *Format) error {
	if !t.Format.Compatible(format) {
		return fmt.Errorf("reinterpreting %v as %v: %w", t.Format.Host, format.Host, ErrIncompatibleFormat)
	}
	t.Format = format
	return nil
}

// ClearColor fills the selected subresources with a color through the host
// backend. The lock must be held.
func (t *Texture) ClearColor(color [4]float32, rng SubresourceRange) error {
	t.WaitOnBacking()
	t.WaitOnFence()

	cycle, err := t.gpu.backend.ClearColorImage(t.Image(), color, rng)
	if err != nil {
		return err
	}
	t.cycle = cycle
	return nil
}

// SynchronizeHost copies the guest texture contents into the host backing,
// undoing the guest tiling. The guest descriptor must be non-nil and the
// lock held.
func (t *Texture) SynchronizeHost() error {
	if t.Guest == nil {
		return fmt.Errorf("gpu: host synchronization requires a guest texture")
	}

	tiled, err := gmmu.ReadAll(t.gpu.addressSpace, t.Guest.Mappings)
	if err != nil {
		return err
	}
	linear, err := guestToLinear(t.Guest, tiled)
	if err != nil {
		return err
	}

	t.WaitOnBacking()
	t.WaitOnFence()

	cycle, err := t.gpu.backend.UploadImage(t.Image(), linear)
	if err != nil {
		return err
	}
	t.cycle = cycle
	return nil
}

// SynchronizeGuest copies the host backing contents back into guest
// memory, reapplying the guest tiling. The guest descriptor must be
// non-nil and the lock held.
func (t *Texture) SynchronizeGuest() error {
	if t.Guest == nil {
		return fmt.Errorf("gpu: guest synchronization requires a guest texture")
	}

	t.WaitOnBacking()
	t.WaitOnFence()

	linear, err := t.gpu.backend.DownloadImage(t.Image())
	if err != nil {
		return err
	}
	tiled, err := linearToGuest(t.Guest, linear)
	if err != nil {
		return err
	}

	for _, m := range t.Guest.Mappings {
		if uint64(len(tiled)) < m.Size {
			break
		}
		if err := t.gpu.addressSpace.WriteRange(m, tiled[:m.Size]); err != nil {
			return err
		}
		tiled = tiled[m.Size:]
	}
	return nil
}

// CopyFrom copies a subresource range from another texture's backing. The
// default (zero) range covers everything. Both textures' locks must be
// held by the caller.
func (t *Texture) CopyFrom(source *Texture, rng SubresourceRange) error {
	t.WaitOnBacking()
	t.WaitOnFence()
	source.WaitOnBacking()
	source.WaitOnFence()

	if source.Layout == ImageLayoutUndefined {
		return fmt.Errorf("gpu: cannot copy from an image with undefined layout")
	}
	if source.Dimensions != t.Dimensions {
		return fmt.Errorf("gpu: cannot copy between images of different dimensions")
	}
	if source.Format != t.Format {
		return fmt.Errorf("gpu: cannot copy between images of different formats")
	}

	cycle, err := t.gpu.backend.CopyImage(source.Image(), t.Image(), rng)
	if err != nil {
		return err
	}
	t.cycle = cycle
	source.cycle = cycle
	return nil
}
