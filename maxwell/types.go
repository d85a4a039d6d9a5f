// Package maxwell defines the register-word types of the Maxwell 3D method
// space. Each guest register is a 32-bit word; the types here decode the
// packed fields of the words the engine and graphics context care about.
package maxwell

// RegisterCount is the number of 32-bit registers in the Maxwell 3D method
// space. Methods at or above this index address macro control instead.
const RegisterCount = 0xE00

// RenderTargetCount is the number of color render target slots.
const RenderTargetCount = 8

// ViewportCount is the number of viewports, and the array size of any
// per-viewport state such as transforms and scissors.
const ViewportCount = 16

// ShadowRamControl selects how writes interact with the shadow register
// file. The value is itself stored through the shadow file, so the active
// policy always comes from the shadow copy of its register.
type ShadowRamControl uint32

const (
	// ShadowRamTrack records every register write into shadow RAM.
	ShadowRamTrack ShadowRamControl = 0

	// ShadowRamTrackWithFilter records register writes with a filter.
	ShadowRamTrackWithFilter ShadowRamControl = 1

	// ShadowRamPassthrough leaves writes untouched.
	ShadowRamPassthrough ShadowRamControl = 2

	// ShadowRamReplay substitutes previously recorded values for the
	// incoming ones, discarding what was written.
	ShadowRamReplay ShadowRamControl = 3
)

// Address is a guest GPU virtual address packed into two register words.
type Address struct {
	High uint32
	Low  uint32
}

// Pack combines the two halves into the 64-bit virtual address.
func (a Address) Pack() uint64 {
	return uint64(a.High)<<32 | uint64(a.Low)
}

// SyncpointAction is the register word that triggers syncpoint operations.
type SyncpointAction uint32

// ID returns the 12-bit syncpoint index.
func (a SyncpointAction) ID() uint32 { return uint32(a) & 0xFFF }

// FlushCache reports whether the action requests a cache flush first.
func (a SyncpointAction) FlushCache() bool { return a&(1<<16) != 0 }

// Increment reports whether the action increments the syncpoint.
func (a SyncpointAction) Increment() bool { return a&(1<<20) != 0 }

// ScissorBounds is one axis of a scissor rectangle: minimum in the low half
// of the word, maximum in the high half.
type ScissorBounds uint32

// Minimum returns the lower bound of the masked region.
func (b ScissorBounds) Minimum() uint32 { return uint32(b) & 0xFFFF }

// Maximum returns the upper bound of the masked region.
func (b ScissorBounds) Maximum() uint32 { return uint32(b) >> 16 }

// ColorFormat is the render-target pixel format code.
type ColorFormat uint32

// Render-target format codes from the hardware's RT_FORMAT space.
const (
	ColorFormatNone             ColorFormat = 0
	ColorFormatR32G32B32A32F    ColorFormat = 0xC0
	ColorFormatR16G16B16A16F    ColorFormat = 0xCA
	ColorFormatB8G8R8A8Unorm    ColorFormat = 0xCF
	ColorFormatR8G8B8A8Unorm    ColorFormat = 0xD5
	ColorFormatR8G8B8A8Srgb     ColorFormat = 0xD6
)

// RenderTargetTileMode is the tiling descriptor word of a render target.
type RenderTargetTileMode uint32

// BlockWidthLog2 returns the log2 width of a block in GOBs.
func (m RenderTargetTileMode) BlockWidthLog2() uint8 { return uint8(m) & 0xF }

// BlockHeightLog2 returns the log2 height of a block in GOBs.
func (m RenderTargetTileMode) BlockHeightLog2() uint8 { return uint8(m>>4) & 0xF }

// BlockDepthLog2 returns the log2 depth of a block in GOBs.
func (m RenderTargetTileMode) BlockDepthLog2() uint8 { return uint8(m>>8) & 0xF }

// IsLinear reports whether the surface is stored linearly rather than
// block-swizzled.
func (m RenderTargetTileMode) IsLinear() bool { return m&(1<<12) != 0 }

// RenderTargetArrayMode is the layer-count descriptor word of a render
// target.
type RenderTargetArrayMode uint32

// LayerCount returns the number of array layers.
func (m RenderTargetArrayMode) LayerCount() uint32 { return uint32(m) & 0xFFFF }

// Volume reports whether the target is a volumetric (3D) array.
func (m RenderTargetArrayMode) Volume() bool { return m&(1<<16) != 0 }

// RenderTargetControl selects how logical render target indices map onto
// the eight slots.
type RenderTargetControl uint32

// Count returns the number of active render targets.
func (c RenderTargetControl) Count() uint32 { return uint32(c) & 0xF }

// Map returns the slot index that the given logical render target resolves
// to.
func (c RenderTargetControl) Map(index uint32) uint32 {
	return (uint32(c) >> (4 + 3*index)) & 0x7
}

// ClearBuffers is the register word that triggers a buffer clear.
type ClearBuffers uint32

// Depth reports whether the depth aspect is cleared.
func (c ClearBuffers) Depth() bool { return c&1 != 0 }

// Stencil reports whether the stencil aspect is cleared.
func (c ClearBuffers) Stencil() bool { return c&(1<<1) != 0 }

// Red reports whether the red channel is cleared.
func (c ClearBuffers) Red() bool { return c&(1<<2) != 0 }

// Green reports whether the green channel is cleared.
func (c ClearBuffers) Green() bool { return c&(1<<3) != 0 }

// Blue reports whether the blue channel is cleared.
func (c ClearBuffers) Blue() bool { return c&(1<<4) != 0 }

// Alpha reports whether the alpha channel is cleared.
func (c ClearBuffers) Alpha() bool { return c&(1<<5) != 0 }

// RenderTargetID returns the logical render target to clear; it still has
// to be resolved through the render target control mapping.
func (c ClearBuffers) RenderTargetID() uint32 { return (uint32(c) >> 6) & 0xF }

// LayerID returns the array layer to clear.
func (c ClearBuffers) LayerID() uint32 { return (uint32(c) >> 10) & 0xFFFF }

// SemaphoreOp is the operation requested by a semaphore info write.
type SemaphoreOp uint8

const (
	SemaphoreOpRelease SemaphoreOp = 0
	SemaphoreOpAcquire SemaphoreOp = 1
	SemaphoreOpCounter SemaphoreOp = 2
	SemaphoreOpTrap    SemaphoreOp = 3
)

// SemaphoreCounterType selects which counter a Counter operation reports.
type SemaphoreCounterType uint8

// Counter types the engine recognizes. The hardware defines many more; any
// unlisted value is reported as unsupported.
const (
	SemaphoreCounterZero          SemaphoreCounterType = 0x0
	SemaphoreCounterSamplesPassed SemaphoreCounterType = 0x15
)

// SemaphoreStructureSize selects the layout of the semaphore writeback.
type SemaphoreStructureSize uint8

const (
	// SemaphoreStructureFourWords writes a 64-bit value followed by a
	// 64-bit timestamp.
	SemaphoreStructureFourWords SemaphoreStructureSize = 0

	// SemaphoreStructureOneWord writes a single 32-bit value.
	SemaphoreStructureOneWord SemaphoreStructureSize = 1
)

// SemaphoreInfo is the packed semaphore control word.
type SemaphoreInfo uint32

// Op returns the semaphore operation.
func (i SemaphoreInfo) Op() SemaphoreOp { return SemaphoreOp(i & 0x3) }

// FlushDisable reports whether the implicit flush is suppressed.
func (i SemaphoreInfo) FlushDisable() bool { return i&(1<<2) != 0 }

// ReductionEnable reports whether a reduction operation applies.
func (i SemaphoreInfo) ReductionEnable() bool { return i&(1<<3) != 0 }

// FenceEnable reports whether the semaphore carries fence semantics.
func (i SemaphoreInfo) FenceEnable() bool { return i&(1<<4) != 0 }

// CounterType returns the counter selector for Counter operations.
func (i SemaphoreInfo) CounterType() SemaphoreCounterType {
	return SemaphoreCounterType((i >> 23) & 0x1F)
}

// StructureSize returns the writeback layout selector.
func (i SemaphoreInfo) StructureSize() SemaphoreStructureSize {
	return SemaphoreStructureSize((i >> 28) & 0x1)
}
