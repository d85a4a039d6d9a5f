package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// SoftwareBackend is a synchronous, CPU-backed Backend implementation. It
// keeps image contents in plain byte buffers and completes all work
// immediately, returning pre-signaled fence cycles. It serves headless
// operation and tests; a device-backed backend can be substituted through
// the GPU options.
type SoftwareBackend struct {
	mu sync.Mutex
}

// NewSoftwareBackend creates a software backend.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{}
}

type softwareImage struct {
	backend *SoftwareBackend
	desc    ImageDescriptor

	// levels holds one linear pixel buffer per mip level, each of
	// width>>level × height>>level × depth × layerCount texels.
	levels [][]byte

	destroyed bool
}

// bytesPerTexel returns the texel size of the host formats the software
// backend understands.
func bytesPerTexel(format gputypes.TextureFormat) (uint32, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatBGRA8UnormSrgb:
		return 4, nil
	default:
		return 0, fmt.Errorf("gpu: software backend does not support host format %v", format)
	}
}

func mipExtent(value, level uint32) uint32 {
	value >>= level
	if value == 0 {
		return 1
	}
	return value
}

func (i *softwareImage) levelSize(level uint32) uint32 {
	bpt, _ := bytesPerTexel(i.desc.Format)
	width := mipExtent(i.desc.Extent.Width, level)
	height := mipExtent(i.desc.Extent.Height, level)
	return width * height * i.desc.Extent.DepthOrArrayLayers * i.desc.LayerCount * bpt
}

func (i *softwareImage) Descriptor() ImageDescriptor {
	return i.desc
}

func (i *softwareImage) Destroy() {
	i.backend.mu.Lock()
	defer i.backend.mu.Unlock()
	i.levels = nil
	i.destroyed = true
}

// CreateImage allocates a CPU-side image buffer per mip level.
func (b *SoftwareBackend) CreateImage(desc ImageDescriptor) (Image, error) {
	if _, err := bytesPerTexel(desc.Format); err != nil {
		return nil, err
	}
	if desc.MipLevels == 0 || desc.LayerCount == 0 {
		return nil, fmt.Errorf("gpu: image descriptor needs at least one mip level and layer")
	}

	img := &softwareImage{backend: b, desc: desc}
	img.levels = make([][]byte, desc.MipLevels)
	for level := uint32(0); level < desc.MipLevels; level++ {
		img.levels[level] = make([]byte, img.levelSize(level))
	}
	return img, nil
}

func (b *SoftwareBackend) image(img Image) (*softwareImage, error) {
	soft, ok := img.(*softwareImage)
	if !ok {
		return nil, fmt.Errorf("gpu: image %T does not belong to the software backend", img)
	}
	if soft.destroyed {
		return nil, fmt.Errorf("gpu: image used after Destroy")
	}
	return soft, nil
}

// TransitionLayout is a no-op for CPU buffers; it exists so layout
// bookkeeping is exercised the same way as on a device backend.
func (b *SoftwareBackend) TransitionLayout(img Image, from, to ImageLayout) (*FenceCycle, error) {
	if _, err := b.image(img); err != nil {
		return nil, err
	}
	return SignaledFenceCycle(), nil
}

// resolveRange clamps a subresource range against an image's descriptor.
func resolveRange(desc ImageDescriptor, rng SubresourceRange) SubresourceRange {
	if rng.MipLevelCount == RemainingMipLevels || rng.MipLevelCount == 0 {
		rng.MipLevelCount = desc.MipLevels - rng.BaseMipLevel
	}
	if rng.LayerCount == RemainingLayers || rng.LayerCount == 0 {
		rng.LayerCount = desc.LayerCount - rng.BaseArrayLayer
	}
	return rng
}

// ClearColorImage fills the selected layers of every selected mip level.
func (b *SoftwareBackend) ClearColorImage(img Image, color [4]float32, rng SubresourceRange) (*FenceCycle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	soft, err := b.image(img)
	if err != nil {
		return nil, err
	}
	rng = resolveRange(soft.desc, rng)

	texel := encodeTexel(soft.desc.Format, color)
	bpt := uint32(len(texel))

	for level := rng.BaseMipLevel; level < rng.BaseMipLevel+rng.MipLevelCount; level++ {
		width := mipExtent(soft.desc.Extent.Width, level)
		height := mipExtent(soft.desc.Extent.Height, level)
		layerSize := width * height * soft.desc.Extent.DepthOrArrayLayers * bpt

		data := soft.levels[level]
		for layer := rng.BaseArrayLayer; layer < rng.BaseArrayLayer+rng.LayerCount; layer++ {
			slab := data[layer*layerSize : (layer+1)*layerSize]
			for offset := uint32(0); offset < layerSize; offset += bpt {
				copy(slab[offset:], texel)
			}
		}
	}
	return SignaledFenceCycle(), nil
}

// encodeTexel packs a normalized color into the byte order of the format.
func encodeTexel(format gputypes.TextureFormat, color [4]float32) []byte {
	quantize := func(v float32) byte {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 0xFF
		}
		return byte(v*255 + 0.5)
	}

	r, g, bl, a := quantize(color[0]), quantize(color[1]), quantize(color[2]), quantize(color[3])
	switch format {
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb:
		return []byte{bl, g, r, a}
	default:
		return []byte{r, g, bl, a}
	}
}

// CopyImage copies the selected subresources between two images of
// identical shape.
func (b *SoftwareBackend) CopyImage(src, dst Image, rng SubresourceRange) (*FenceCycle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, err := b.image(src)
	if err != nil {
		return nil, err
	}
	to, err := b.image(dst)
	if err != nil {
		return nil, err
	}
	if from.desc.Format != to.desc.Format || from.desc.Extent != to.desc.Extent {
		return nil, fmt.Errorf("gpu: cannot copy between images of different shapes")
	}
	rng = resolveRange(from.desc, rng)

	bpt, _ := bytesPerTexel(from.desc.Format)
	for level := rng.BaseMipLevel; level < rng.BaseMipLevel+rng.MipLevelCount; level++ {
		width := mipExtent(from.desc.Extent.Width, level)
		height := mipExtent(from.desc.Extent.Height, level)
		layerSize := width * height * from.desc.Extent.DepthOrArrayLayers * bpt

		for layer := rng.BaseArrayLayer; layer < rng.BaseArrayLayer+rng.LayerCount; layer++ {
			offset := layer * layerSize
			copy(to.levels[level][offset:offset+layerSize], from.levels[level][offset:offset+layerSize])
		}
	}
	return SignaledFenceCycle(), nil
}

// UploadImage replaces the level-0 contents of an image with linear pixel
// data.
func (b *SoftwareBackend) UploadImage(img Image, data []byte) (*FenceCycle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	soft, err := b.image(img)
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) > soft.levelSize(0) {
		return nil, fmt.Errorf("gpu: upload of %d bytes exceeds image size %d", len(data), soft.levelSize(0))
	}
	copy(soft.levels[0], data)
	return SignaledFenceCycle(), nil
}

// DownloadImage reads back the level-0 contents of an image.
func (b *SoftwareBackend) DownloadImage(img Image) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	soft, err := b.image(img)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(soft.levels[0]))
	copy(out, soft.levels[0])
	return out, nil
}
