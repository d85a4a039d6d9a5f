package engine

import (
	"math"

	"github.com/artem8086/skyline/gmmu"
	"github.com/artem8086/skyline/maxwell"
)

// Method offsets in the engine's register space, in 32-bit words.
const (
	regMacroInstructionRamPointer  = 0x45
	regMacroInstructionRamLoad     = 0x46
	regMacroStartAddressRamPointer = 0x47
	regMacroStartAddressRamLoad    = 0x48
	regShadowRamControl            = 0x49

	regSyncpointAction = 0xB2

	regRenderTargetBase  = 0x200
	renderTargetStride   = 0x10
	rtWordAddressHigh    = 0x0
	rtWordAddressLow     = 0x1
	rtWordWidth          = 0x2
	rtWordHeight         = 0x3
	rtWordFormat         = 0x4
	rtWordTileMode       = 0x5
	rtWordArrayMode      = 0x6
	rtWordLayerStride    = 0x7
	rtWordBaseLayer      = 0x8

	regViewportBase    = 0x280
	viewportStride     = 0x8
	vpWordScaleX       = 0x0
	vpWordScaleY       = 0x1
	vpWordScaleZ       = 0x2
	vpWordTranslateX   = 0x3
	vpWordTranslateY   = 0x4
	vpWordTranslateZ   = 0x5

	regClearColorBase = 0x360

	regScissorBase     = 0x380
	scissorStride      = 0x4
	scissorWordEnable  = 0x0
	scissorWordHoriz   = 0x1
	scissorWordVert    = 0x2

	regRenderTargetControl = 0x64E
	regClearBuffers        = 0x674

	regSemaphoreAddressHigh = 0x6C0
	regSemaphoreAddressLow  = 0x6C1
	regSemaphorePayload     = 0x6C2
	regSemaphoreInfo        = 0x6C3

	regFirmwareCall4   = 0x8C4
	regFirmwareScratch = 0xD00
)

// handleChanged runs the side effects of registers whose value changed.
func (m *Maxwell3D) handleChanged(method, argument uint32) error {
	switch {
	case method >= regRenderTargetBase && method < regRenderTargetBase+maxwell.RenderTargetCount*renderTargetStride:
		return m.handleRenderTarget(method, argument)

	case method >= regViewportBase && method < regViewportBase+maxwell.ViewportCount*viewportStride:
		m.handleViewport(method)
		return nil

	case method >= regClearColorBase && method < regClearColorBase+4:
		m.context.UpdateClearColorValue(int(method-regClearColorBase), argument)
		return nil

	case method >= regScissorBase && method < regScissorBase+maxwell.ViewportCount*scissorStride:
		m.handleScissor(method, argument)
		return nil

	case method == regRenderTargetControl:
		m.context.UpdateRenderTargetControl(maxwell.RenderTargetControl(argument))
		return nil
	}
	return nil
}

func (m *Maxwell3D) handleRenderTarget(method, argument uint32) error {
	slot := int((method - regRenderTargetBase) / renderTargetStride)
	switch (method - regRenderTargetBase) % renderTargetStride {
	case rtWordAddressHigh:
		m.context.SetRenderTargetAddressHigh(slot, argument)
	case rtWordAddressLow:
		m.context.SetRenderTargetAddressLow(slot, argument)
	case rtWordWidth:
		m.context.SetRenderTargetWidth(slot, argument)
	case rtWordHeight:
		m.context.SetRenderTargetHeight(slot, argument)
	case rtWordFormat:
		if err := m.context.SetRenderTargetFormat(slot, maxwell.ColorFormat(argument)); err != nil {
			m.logf("render target %d format %#x: %v", slot, argument, err)
		}
	case rtWordTileMode:
		m.context.SetRenderTargetTileMode(slot, maxwell.RenderTargetTileMode(argument))
	case rtWordArrayMode:
		return m.context.SetRenderTargetArrayMode(slot, maxwell.RenderTargetArrayMode(argument))
	case rtWordLayerStride:
		m.context.SetRenderTargetLayerStride(slot, argument)
	case rtWordBaseLayer:
		return m.context.SetRenderTargetBaseLayer(slot, argument)
	}
	return nil
}

// handleViewport recombines a viewport axis from the live scale and
// translate registers, whichever of the two was just written.
func (m *Maxwell3D) handleViewport(method uint32) {
	slot := int((method - regViewportBase) / viewportStride)
	base := regViewportBase + uint32(slot)*viewportStride

	scale := func(axis uint32) float32 {
		return math.Float32frombits(m.registers[base+axis])
	}
	translate := func(axis uint32) float32 {
		return math.Float32frombits(m.registers[base+vpWordTranslateX+axis])
	}

	switch (method - regViewportBase) % viewportStride {
	case vpWordScaleX, vpWordTranslateX:
		m.context.SetViewportX(slot, scale(0), translate(0))
	case vpWordScaleY, vpWordTranslateY:
		m.context.SetViewportY(slot, scale(1), translate(1))
	case vpWordScaleZ, vpWordTranslateZ:
		m.context.SetViewportZ(slot, scale(2), translate(2))
	}
}

func (m *Maxwell3D) handleScissor(method, argument uint32) {
	slot := int((method - regScissorBase) / scissorStride)
	base := regScissorBase + uint32(slot)*scissorStride
	switch (method - regScissorBase) % scissorStride {
	case scissorWordEnable:
		m.context.SetScissor(slot, argument != 0,
			maxwell.ScissorBounds(m.registers[base+scissorWordHoriz]),
			maxwell.ScissorBounds(m.registers[base+scissorWordVert]))
	case scissorWordHoriz:
		m.context.SetScissorHorizontal(slot, maxwell.ScissorBounds(argument))
	case scissorWordVert:
		m.context.SetScissorVertical(slot, maxwell.ScissorBounds(argument))
	}
}

// handleTrigger runs the side effects that fire on every write, redundant
// or not.
func (m *Maxwell3D) handleTrigger(method, argument uint32) error {
	switch method {
	case regMacroInstructionRamLoad:
		pointer := m.registers[regMacroInstructionRamPointer]
		if pointer >= macroCodeWords {
			return ErrMacroOverflow
		}
		m.macroCode[pointer] = argument
		m.registers[regMacroInstructionRamPointer] = pointer + 1

	case regMacroStartAddressRamLoad:
		pointer := m.registers[regMacroStartAddressRamPointer]
		if pointer >= macroEntryCount {
			return ErrMacroOverflow
		}
		m.macroPositions[pointer] = argument
		m.registers[regMacroStartAddressRamPointer] = pointer + 1

	case regShadowRamControl:
		m.shadow[regShadowRamControl] = argument

	case regSyncpointAction:
		action := maxwell.SyncpointAction(argument)
		if action.Increment() {
			m.syncpoints.Increment(action.ID())
		}

	case regClearBuffers:
		return m.context.ClearBuffers(maxwell.ClearBuffers(argument))

	case regSemaphoreInfo:
		return m.handleSemaphore(maxwell.SemaphoreInfo(argument))

	case regFirmwareCall4:
		// The one firmware call seen in the wild expects this handshake
		// value in the scratch register.
		m.registers[regFirmwareScratch] = 1
	}
	return nil
}

func (m *Maxwell3D) handleSemaphore(info maxwell.SemaphoreInfo) error {
	switch info.Op() {
	case maxwell.SemaphoreOpRelease:
		return m.writeSemaphore(info, uint64(m.registers[regSemaphorePayload]))

	case maxwell.SemaphoreOpCounter:
		if info.CounterType() == maxwell.SemaphoreCounterZero {
			return m.writeSemaphore(info, 0)
		}
		m.logf("unsupported semaphore counter type %#x", uint8(info.CounterType()))
		return nil

	default:
		m.logf("unsupported semaphore operation %d", info.Op())
		return nil
	}
}

func (m *Maxwell3D) writeSemaphore(info maxwell.SemaphoreInfo, value uint64) error {
	address := maxwell.Address{
		High: m.registers[regSemaphoreAddressHigh],
		Low:  m.registers[regSemaphoreAddressLow],
	}.Pack()

	if info.StructureSize() == maxwell.SemaphoreStructureOneWord {
		return gmmu.WriteUint32(m.addressSpace, address, uint32(value))
	}
	if err := gmmu.WriteUint64(m.addressSpace, address, value); err != nil {
		return err
	}
	return gmmu.WriteUint64(m.addressSpace, address+8, nanosecondsToTicks(m.now()))
}

// nanosecondsToTicks converts host nanoseconds to the 384 MHz tick domain
// semaphore timestamps are reported in, without overflowing the
// intermediate products.
func nanosecondsToTicks(ns uint64) uint64 {
	return ns/625*384 + ns%625*384/625
}
