package gpu

import (
	"github.com/gogpu/gputypes"
)

// ImageLayout is the current arrangement of an image's contents on the
// host GPU.
type ImageLayout uint8

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutGeneral
	ImageLayoutTransferSrc
	ImageLayoutTransferDst
	ImageLayoutAttachment
)

// String returns a readable name for the layout.
func (l ImageLayout) String() string {
	switch l {
	case ImageLayoutUndefined:
		return "Undefined"
	case ImageLayoutGeneral:
		return "General"
	case ImageLayoutTransferSrc:
		return "TransferSrc"
	case ImageLayoutTransferDst:
		return "TransferDst"
	case ImageLayoutAttachment:
		return "Attachment"
	default:
		return "Unknown"
	}
}

// ImageTiling is the host-side memory arrangement of an image.
type ImageTiling uint8

const (
	// ImageTilingOptimal lets the host GPU pick its preferred swizzled
	// arrangement.
	ImageTilingOptimal ImageTiling = iota

	// ImageTilingLinear stores rows consecutively so the CPU can address
	// the image directly.
	ImageTilingLinear
)

// RemainingLayers in a SubresourceRange selects every layer from the base
// onward; RemainingMipLevels does the same for mip levels.
const (
	RemainingLayers    = ^uint32(0)
	RemainingMipLevels = ^uint32(0)
)

// SubresourceRange selects a set of mip levels and array layers of an
// image.
type SubresourceRange struct {
	BaseMipLevel   uint32
	MipLevelCount  uint32
	BaseArrayLayer uint32
	LayerCount     uint32
}

// ImageDescriptor describes a host image to create.
type ImageDescriptor struct {
	Format      gputypes.TextureFormat
	Extent      gputypes.Extent3D
	MipLevels   uint32
	LayerCount  uint32
	SampleCount uint32
	Tiling      ImageTiling
	Usage       gputypes.TextureUsage
}

// Image is an opaque handle to a host-backed image object.
type Image interface {
	// Descriptor returns the descriptor the image was created with.
	Descriptor() ImageDescriptor

	// Destroy releases the host resources of the image. The image must
	// not be used afterwards.
	Destroy()
}

// Backend is the host rendering device consumed by the texture layer. Any
// operation that enqueues GPU work returns a fence cycle which signals when
// that work completes; synchronous implementations return already-signaled
// cycles.
type Backend interface {
	// CreateImage allocates a host image.
	CreateImage(desc ImageDescriptor) (Image, error)

	// TransitionLayout moves an image between layouts.
	TransitionLayout(img Image, from, to ImageLayout) (*FenceCycle, error)

	// ClearColorImage fills the selected layers of an image with a color.
	ClearColorImage(img Image, color [4]float32, rng SubresourceRange) (*FenceCycle, error)

	// CopyImage copies the selected subresources from src to dst. The two
	// images must have identical formats and extents.
	CopyImage(src, dst Image, rng SubresourceRange) (*FenceCycle, error)

	// UploadImage replaces the full contents of an image with linear
	// pixel data.
	UploadImage(img Image, data []byte) (*FenceCycle, error)

	// DownloadImage reads back the full contents of an image as linear
	// pixel data.
	DownloadImage(img Image) ([]byte, error)
}
