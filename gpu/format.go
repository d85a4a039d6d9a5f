package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/artem8086/skyline/maxwell"
)

// ErrUnsupportedFormat is returned when a guest pixel format has no host
// translation.
var ErrUnsupportedFormat = errors.New("gpu: unsupported pixel format")

// ErrIncompatibleFormat is returned when a format reinterpretation would
// change the texel layout.
var ErrIncompatibleFormat = errors.New("gpu: formats are not texel-layout compatible")

// Dimensions is the size of a texture in texels.
type Dimensions struct {
	Width  uint32
	Height uint32
	Depth  uint32
}

// Valid reports whether no axis equates to zero.
func (d Dimensions) Valid() bool {
	return d.Width != 0 && d.Height != 0 && d.Depth != 0
}

// Extent converts the dimensions into a host extent.
func (d Dimensions) Extent() gputypes.Extent3D {
	return gputypes.Extent3D{
		Width:              d.Width,
		Height:             d.Height,
		DepthOrArrayLayers: d.Depth,
	}
}

// Format describes a guest texel format. Blocks are the atomic unit of a
// compressed format; for uncompressed formats a block is one texel.
// Formats are compared by identity, so equal formats must share the same
// *Format value.
type Format struct {
	// BytesPerBlock is used instead of bytes per pixel as the latter may
	// not be whole for compressed formats.
	BytesPerBlock uint8

	// BlockWidth and BlockHeight are the texel dimensions of one block.
	BlockWidth  uint16
	BlockHeight uint16

	// Host is the equivalent host texture format.
	Host gputypes.TextureFormat
}

// Guest texel formats with a host equivalent.
var (
	FormatRGBA8Unorm = &Format{BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Host: gputypes.TextureFormatRGBA8Unorm}
	FormatRGBA8Srgb  = &Format{BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Host: gputypes.TextureFormatRGBA8UnormSrgb}
	FormatBGRA8Unorm = &Format{BytesPerBlock: 4, BlockWidth: 1, BlockHeight: 1, Host: gputypes.TextureFormatBGRA8Unorm}
)

// Size returns the byte size of a texture of the given dimensions in this
// format.
func (f *Format) Size(d Dimensions) uint64 {
	return f.SizeOf(d.Width, d.Height, d.Depth)
}

// SizeOf returns the byte size of width × height texels over depth layers.
func (f *Format) SizeOf(width, height, depth uint32) uint64 {
	blocks := uint64(width/uint32(f.BlockWidth)) * uint64(height/uint32(f.BlockHeight))
	return blocks * uint64(f.BytesPerBlock) * uint64(depth)
}

// IsCompressed reports whether a block spans more than one texel.
func (f *Format) IsCompressed() bool {
	return f.BlockWidth != 1 || f.BlockHeight != 1
}

// Compatible reports whether the other format shares this format's texel
// layout, which permits reinterpretation of the same backing.
func (f *Format) Compatible(other *Format) bool {
	return f.BytesPerBlock == other.BytesPerBlock &&
		f.BlockWidth == other.BlockWidth &&
		f.BlockHeight == other.BlockHeight
}

// TranslateColorFormat maps a guest render-target format code to a guest
// format. A None format returns nil without error, marking a disabled
// target. Unknown codes return ErrUnsupportedFormat (wrapped).
func TranslateColorFormat(code maxwell.ColorFormat) (*Format, error) {
	switch code {
	case maxwell.ColorFormatNone:
		return nil, nil
	case maxwell.ColorFormatR8G8B8A8Unorm:
		return FormatRGBA8Unorm, nil
	case maxwell.ColorFormatR8G8B8A8Srgb:
		return FormatRGBA8Srgb, nil
	case maxwell.ColorFormatB8G8R8A8Unorm:
		return FormatBGRA8Unorm, nil
	default:
		return nil, fmt.Errorf("cannot translate render target format 0x%X: %w", uint32(code), ErrUnsupportedFormat)
	}
}

// TileMode is the arrangement of a texture's texels in guest memory.
type TileMode uint8

const (
	// TileModeLinear arranges all texels consecutively.
	TileModeLinear TileMode = iota

	// TileModePitch arranges texels linearly with rows aligned to a pitch.
	TileModePitch

	// TileModeBlock arranges texels into blocks swizzled along a Z-order
	// curve for spatial locality.
	TileModeBlock
)

// TileConfig carries the parameters of a tile mode. BlockHeight and
// BlockDepth apply to block tiling (in GOBs); Pitch applies to pitch
// tiling.
type TileConfig struct {
	Mode        TileMode
	BlockHeight uint8
	BlockDepth  uint8
	Pitch       uint32
}

// Equal compares tile configs, ignoring parameters that the mode does not
// use.
func (c TileConfig) Equal(other TileConfig) bool {
	if c.Mode != other.Mode {
		return false
	}
	switch c.Mode {
	case TileModeLinear:
		return true
	case TileModePitch:
		return c.Pitch == other.Pitch
	case TileModeBlock:
		return c.BlockHeight == other.BlockHeight && c.BlockDepth == other.BlockDepth
	default:
		return false
	}
}

// SwizzleChannel selects the source of one color channel in a view.
type SwizzleChannel uint8

const (
	SwizzleRed SwizzleChannel = iota
	SwizzleGreen
	SwizzleBlue
	SwizzleAlpha
	SwizzleZero
	SwizzleOne
)

// ComponentMapping remaps the color channels of a texture view. Note the
// zero value maps every channel to red; use IdentityMapping for
// passthrough.
type ComponentMapping struct {
	R SwizzleChannel
	G SwizzleChannel
	B SwizzleChannel
	A SwizzleChannel
}

// IdentityMapping passes every channel through unchanged.
var IdentityMapping = ComponentMapping{R: SwizzleRed, G: SwizzleGreen, B: SwizzleBlue, A: SwizzleAlpha}

// TextureType determines the access pattern of a texture.
type TextureType uint8

const (
	TextureType1D TextureType = iota
	TextureType2D
	TextureType3D
	TextureTypeCube
	TextureType1DArray
	TextureType2DArray
	TextureTypeCubeArray
)
