package gpu

import "fmt"

// Block-linear surfaces are built from 16Bx2 sectors, grouped into 64Bx8
// GOBs, which stack vertically into blocks of a configurable height. Blocks
// tile the surface left to right in rows of blocks (ROBs).
const (
	sectorWidth  = 16
	sectorHeight = 2
	gobWidth     = 64
	gobHeight    = 8
)

func alignUp(value, multiple uint32) uint32 {
	return (value + multiple - 1) / multiple * multiple
}

// blockLinearSize returns the byte size of one tiled 2D slice.
func blockLinearSize(width, height, bytesPerBlock uint32, blockHeight uint8) uint32 {
	robHeight := uint32(gobHeight) * uint32(blockHeight)
	robWidthBytes := alignUp(width*bytesPerBlock, gobWidth)
	return robWidthBytes * alignUp(height, robHeight)
}

// copyBlockLinear walks one tiled 2D slice sector by sector, copying each
// 16-byte sector between the tiled buffer and a padded linear buffer whose
// row stride is the GOB-aligned surface width. When toLinear is true the
// tiled buffer is the source, otherwise the destination.
func copyBlockLinear(width, height, bytesPerBlock uint32, blockHeight uint8, tiled, padded []byte, toLinear bool) {
	robHeight := uint32(gobHeight) * uint32(blockHeight)
	surfaceHeightRobs := alignUp(height, robHeight) / robHeight
	robWidthBytes := alignUp(width*bytesPerBlock, gobWidth)
	robWidthBlocks := robWidthBytes / gobWidth
	robBytes := robWidthBytes * robHeight
	gobYOffset := robWidthBytes * gobHeight

	fullBlockHeight := uint32(blockHeight)
	curBlockHeight := fullBlockHeight
	paddingY := uint32(0)

	tiledOffset := uint32(0)
	outputRob := uint32(0)
	y := uint32(0)

	for rob := uint32(0); rob < surfaceHeightRobs; rob++ {
		outputBlock := outputRob
		for block := uint32(0); block < robWidthBlocks; block++ {
			outputGob := outputBlock
			for gobY := uint32(0); gobY < curBlockHeight; gobY++ {
				for index := uint32(0); index < sectorWidth*sectorHeight; index++ {
					// Sectors inside a GOB follow a fixed swizzle
					// pattern over a 64x8 texel area.
					xT := ((index << 3) & 0b10000) | ((index << 1) & 0b100000)
					yT := ((index >> 1) & 0b110) | (index & 0b1)
					linearOffset := outputGob + yT*robWidthBytes + xT
					if toLinear {
						copy(padded[linearOffset:linearOffset+sectorWidth], tiled[tiledOffset:])
					} else {
						copy(tiled[tiledOffset:tiledOffset+sectorWidth], padded[linearOffset:])
					}
					tiledOffset += sectorWidth
				}
				outputGob += gobYOffset
			}
			tiledOffset += paddingY
			outputBlock += gobWidth
		}
		outputRob += robBytes
		y += robHeight

		// The final ROB may be shorter than a full block; shrink the
		// walk and skip the tiled padding of the missing GOB rows.
		if y < height {
			remaining := (height - y + gobHeight - 1) / gobHeight
			if remaining < curBlockHeight {
				curBlockHeight = remaining
				paddingY = (fullBlockHeight - curBlockHeight) * sectorWidth * sectorWidth * sectorHeight
			}
		}
	}
}

// sliceGeometry is the per-layer shape of a guest texture in format
// blocks.
type sliceGeometry struct {
	widthBlocks  uint32
	heightBlocks uint32
	rowBytes     uint32
	linearSize   uint32
}

func guestSliceGeometry(guest *GuestTexture) sliceGeometry {
	f := guest.Format
	widthBlocks := (guest.Dimensions.Width + uint32(f.BlockWidth) - 1) / uint32(f.BlockWidth)
	heightBlocks := (guest.Dimensions.Height + uint32(f.BlockHeight) - 1) / uint32(f.BlockHeight)
	rowBytes := widthBlocks * uint32(f.BytesPerBlock)
	return sliceGeometry{
		widthBlocks:  widthBlocks,
		heightBlocks: heightBlocks,
		rowBytes:     rowBytes,
		linearSize:   rowBytes * heightBlocks,
	}
}

func guestLayerCount(guest *GuestTexture) uint32 {
	if guest.LayerCount == 0 {
		return 1
	}
	return uint32(guest.LayerCount)
}

// guestTiledLayerStride returns the byte distance between consecutive
// layers in guest memory, honoring the descriptor's stride hint when
// present.
func guestTiledLayerStride(guest *GuestTexture, geom sliceGeometry) uint32 {
	if guest.LayerStride != 0 {
		return guest.LayerStride
	}
	switch guest.TileConfig.Mode {
	case TileModeBlock:
		return blockLinearSize(geom.widthBlocks, geom.heightBlocks, uint32(guest.Format.BytesPerBlock), guest.TileConfig.BlockHeight)
	case TileModePitch:
		return guest.TileConfig.Pitch * geom.heightBlocks
	default:
		return geom.linearSize
	}
}

// guestTiledSliceSize returns the byte size one layer actually occupies in
// its tiled form, independent of the layer stride hint.
func guestTiledSliceSize(guest *GuestTexture, geom sliceGeometry) uint32 {
	if guest.TileConfig.Mode == TileModeBlock {
		return blockLinearSize(geom.widthBlocks, geom.heightBlocks, uint32(guest.Format.BytesPerBlock), guest.TileConfig.BlockHeight)
	}
	return guestTiledLayerStride(guest, geom)
}

// guestToLinear converts guest-tiled texture bytes into a tightly packed
// linear buffer, layer by layer.
func guestToLinear(guest *GuestTexture, tiled []byte) ([]byte, error) {
	geom := guestSliceGeometry(guest)
	layers := guestLayerCount(guest)
	layerStride := guestTiledLayerStride(guest, geom)
	sliceSize := guestTiledSliceSize(guest, geom)
	if layerStride < sliceSize {
		layerStride = sliceSize
	}

	if need := uint64(layerStride)*uint64(layers-1) + uint64(sliceSize); uint64(len(tiled)) < need {
		return nil, fmt.Errorf("gpu: guest texture data is %d bytes, need %d", len(tiled), need)
	}

	linear := make([]byte, uint64(geom.linearSize)*uint64(layers))
	for layer := uint32(0); layer < layers; layer++ {
		src := tiled[layer*layerStride:]
		dst := linear[layer*geom.linearSize : (layer+1)*geom.linearSize]
		switch guest.TileConfig.Mode {
		case TileModeLinear:
			copy(dst, src[:geom.linearSize])
		case TileModePitch:
			pitch := guest.TileConfig.Pitch
			for row := uint32(0); row < geom.heightBlocks; row++ {
				copy(dst[row*geom.rowBytes:(row+1)*geom.rowBytes], src[row*pitch:])
			}
		case TileModeBlock:
			padded := make([]byte, blockLinearSize(geom.widthBlocks, geom.heightBlocks, uint32(guest.Format.BytesPerBlock), guest.TileConfig.BlockHeight))
			copyBlockLinear(geom.widthBlocks, geom.heightBlocks, uint32(guest.Format.BytesPerBlock), guest.TileConfig.BlockHeight, src[:len(padded)], padded, true)
			unpadRows(dst, padded, geom)
		default:
			return nil, fmt.Errorf("gpu: unknown tile mode %d", guest.TileConfig.Mode)
		}
	}
	return linear, nil
}

// linearToGuest converts a tightly packed linear buffer into guest-tiled
// bytes, layer by layer.
func linearToGuest(guest *GuestTexture, linear []byte) ([]byte, error) {
	geom := guestSliceGeometry(guest)
	layers := guestLayerCount(guest)
	layerStride := guestTiledLayerStride(guest, geom)
	sliceSize := guestTiledSliceSize(guest, geom)
	if layerStride < sliceSize {
		layerStride = sliceSize
	}

	if need := uint64(geom.linearSize) * uint64(layers); uint64(len(linear)) < need {
		return nil, fmt.Errorf("gpu: linear texture data is %d bytes, need %d", len(linear), need)
	}

	tiled := make([]byte, uint64(layerStride)*uint64(layers))
	for layer := uint32(0); layer < layers; layer++ {
		src := linear[layer*geom.linearSize : (layer+1)*geom.linearSize]
		dst := tiled[layer*layerStride:]
		switch guest.TileConfig.Mode {
		case TileModeLinear:
			copy(dst[:geom.linearSize], src)
		case TileModePitch:
			pitch := guest.TileConfig.Pitch
			for row := uint32(0); row < geom.heightBlocks; row++ {
				copy(dst[row*pitch:row*pitch+geom.rowBytes], src[row*geom.rowBytes:])
			}
		case TileModeBlock:
			padded := make([]byte, blockLinearSize(geom.widthBlocks, geom.heightBlocks, uint32(guest.Format.BytesPerBlock), guest.TileConfig.BlockHeight))
			padRows(padded, src, geom)
			copyBlockLinear(geom.widthBlocks, geom.heightBlocks, uint32(guest.Format.BytesPerBlock), guest.TileConfig.BlockHeight, dst[:len(padded)], padded, false)
		default:
			return nil, fmt.Errorf("gpu: unknown tile mode %d", guest.TileConfig.Mode)
		}
	}
	return tiled, nil
}

// unpadRows packs rows out of a GOB-aligned staging buffer into a tight
// linear buffer.
func unpadRows(dst, padded []byte, geom sliceGeometry) {
	stride := alignUp(geom.rowBytes, gobWidth)
	if stride == geom.rowBytes {
		copy(dst, padded[:geom.linearSize])
		return
	}
	for row := uint32(0); row < geom.heightBlocks; row++ {
		copy(dst[row*geom.rowBytes:(row+1)*geom.rowBytes], padded[row*stride:])
	}
}

// padRows spreads tight linear rows out into a GOB-aligned staging buffer.
func padRows(padded, src []byte, geom sliceGeometry) {
	stride := alignUp(geom.rowBytes, gobWidth)
	if stride == geom.rowBytes {
		copy(padded, src[:geom.linearSize])
		return
	}
	for row := uint32(0); row < geom.heightBlocks; row++ {
		copy(padded[row*stride:row*stride+geom.rowBytes], src[row*geom.rowBytes:])
	}
}
