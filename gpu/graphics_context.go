package gpu

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/artem8086/skyline/gmmu"
	"github.com/artem8086/skyline/maxwell"
)

// Viewport is the host form of one viewport transform, recombined from the
// hardware scale and translate coefficients.
type Viewport struct {
	X        float32
	Y        float32
	Width    float32
	Height   float32
	MinDepth float32
	MaxDepth float32
}

// Scissor is the host form of one scissor rectangle.
type Scissor struct {
	OffsetX uint32
	OffsetY uint32
	Width   uint32
	Height  uint32
}

const maxScissorExtent = 0xFFFF

func maximalScissor() Scissor {
	return Scissor{Width: maxScissorExtent, Height: maxScissorExtent}
}

// renderTarget is the guest state of one color target slot plus the cached
// host view built from it. The view is dropped whenever any of the guest
// state changes.
type renderTarget struct {
	disabled bool
	address  uint64
	guest    GuestTexture
	view     *TextureView
}

// GraphicsContext holds the 3D engine state that maps directly onto host
// rendering state: render targets, viewport transforms, scissors and the
// clear color.
type GraphicsContext struct {
	gpu *GPU
	log io.Writer

	renderTargets       [maxwell.RenderTargetCount]renderTarget
	renderTargetControl maxwell.RenderTargetControl

	viewports [maxwell.ViewportCount]Viewport
	scissors  [maxwell.ViewportCount]Scissor

	clearColor [4]uint32
}

// ContextOption configures a GraphicsContext.
type ContextOption func(*GraphicsContext)

// WithContextLogWriter directs the context's diagnostics to w.
func WithContextLogWriter(w io.Writer) ContextOption {
	return func(c *GraphicsContext) {
		c.log = w
	}
}

// NewGraphicsContext creates a graphics context in its reset state.
func NewGraphicsContext(g *GPU, opts ...ContextOption) *GraphicsContext {
	c := &GraphicsContext{
		gpu: g,
		log: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Reset restores the power-on state of the tracked registers.
func (c *GraphicsContext) Reset() {
	for i := range c.renderTargets {
		c.renderTargets[i] = renderTarget{
			guest: GuestTexture{
				Dimensions: Dimensions{Depth: 1},
				LayerCount: 1,
				Type:       TextureType2D,
			},
		}
	}
	c.renderTargetControl = 0
	for i := range c.viewports {
		c.viewports[i] = Viewport{MaxDepth: 1}
	}
	for i := range c.scissors {
		c.scissors[i] = maximalScissor()
	}
	c.clearColor = [4]uint32{}
}

func (c *GraphicsContext) logf(format string, args ...any) {
	fmt.Fprintf(c.log, "context: "+format+"\n", args...)
}

// --- Render targets ---

func (c *GraphicsContext) invalidateRenderTarget(index int) {
	rt := &c.renderTargets[index]
	rt.view = nil
	rt.guest.Mappings = nil
}

// SetRenderTargetAddressHigh sets the upper address word of a slot.
func (c *GraphicsContext) SetRenderTargetAddressHigh(index int, high uint32) {
	rt := &c.renderTargets[index]
	rt.address = rt.address&0xFFFFFFFF | uint64(high)<<32
	c.invalidateRenderTarget(index)
}

// SetRenderTargetAddressLow sets the lower address word of a slot.
func (c *GraphicsContext) SetRenderTargetAddressLow(index int, low uint32) {
	rt := &c.renderTargets[index]
	rt.address = rt.address&^uint64(0xFFFFFFFF) | uint64(low)
	c.invalidateRenderTarget(index)
}

// SetRenderTargetWidth sets a slot's width in texels.
func (c *GraphicsContext) SetRenderTargetWidth(index int, width uint32) {
	c.renderTargets[index].guest.Dimensions.Width = width
	c.invalidateRenderTarget(index)
}

// SetRenderTargetHeight sets a slot's height in texels.
func (c *GraphicsContext) SetRenderTargetHeight(index int, height uint32) {
	c.renderTargets[index].guest.Dimensions.Height = height
	c.invalidateRenderTarget(index)
}

// SetRenderTargetFormat translates and installs a slot's color format. The
// none format disables the slot; an untranslatable format disables it and
// returns the translation error.
func (c *GraphicsContext) SetRenderTargetFormat(index int, format maxwell.ColorFormat) error {
	rt := &c.renderTargets[index]
	defer c.invalidateRenderTarget(index)

	host, err := TranslateColorFormat(format)
	if err != nil {
		rt.disabled = true
		rt.guest.Format = nil
		return err
	}
	rt.guest.Format = host
	rt.disabled = host == nil
	return nil
}

// SetRenderTargetTileMode decodes a slot's tiling word.
func (c *GraphicsContext) SetRenderTargetTileMode(index int, mode maxwell.RenderTargetTileMode) {
	rt := &c.renderTargets[index]
	if mode.IsLinear() {
		rt.guest.TileConfig = TileConfig{Mode: TileModeLinear}
	} else {
		rt.guest.TileConfig = TileConfig{
			Mode:        TileModeBlock,
			BlockHeight: uint8(1) << mode.BlockHeightLog2(),
			BlockDepth:  uint8(1) << mode.BlockDepthLog2(),
		}
	}
	c.invalidateRenderTarget(index)
}

// SetRenderTargetArrayMode decodes a slot's layer count. Volumetric render
// targets are not representable on the host side; requesting one is fatal.
func (c *GraphicsContext) SetRenderTargetArrayMode(index int, mode maxwell.RenderTargetArrayMode) error {
	rt := &c.renderTargets[index]
	rt.guest.LayerCount = uint16(mode.LayerCount())
	c.invalidateRenderTarget(index)
	if mode.Volume() {
		return fmt.Errorf("gpu: render target %d requests an unsupported volumetric array mode (layer count %d)", index, mode.LayerCount())
	}
	return nil
}

// SetRenderTargetLayerStride sets a slot's layer stride from the register
// encoding, which stores the byte stride shifted right by two.
func (c *GraphicsContext) SetRenderTargetLayerStride(index int, strideShifted uint32) {
	c.renderTargets[index].guest.LayerStride = strideShifted << 2
	c.invalidateRenderTarget(index)
}

// SetRenderTargetBaseLayer sets the first layer rendered into a slot. The
// guest descriptor stores the layer in 16 bits; a larger value is fatal.
func (c *GraphicsContext) SetRenderTargetBaseLayer(index int, baseLayer uint32) error {
	c.renderTargets[index].guest.BaseArrayLayer = uint16(baseLayer)
	c.invalidateRenderTarget(index)
	if baseLayer > 0xFFFF {
		return fmt.Errorf("gpu: render target %d base layer %d exceeds the 16-bit layer range", index, baseLayer)
	}
	return nil
}

// UpdateRenderTargetControl installs the active target count and remap
// table.
func (c *GraphicsContext) UpdateRenderTargetControl(control maxwell.RenderTargetControl) {
	c.renderTargetControl = control
}

// RenderTargetControl returns the current target control word.
func (c *GraphicsContext) RenderTargetControl() maxwell.RenderTargetControl {
	return c.renderTargetControl
}

// GetRenderTarget resolves a slot to a host texture view, translating the
// guest address and going through the texture cache. Disabled slots
// resolve to nil without error. The view is cached until the slot's guest
// state changes.
func (c *GraphicsContext) GetRenderTarget(index int) (*TextureView, error) {
	rt := &c.renderTargets[index]
	if rt.disabled || rt.guest.Format == nil {
		return nil, nil
	}
	if rt.view != nil {
		return rt.view, nil
	}
	if !rt.guest.Dimensions.Valid() {
		return nil, fmt.Errorf("gpu: render target %d has degenerate dimensions %+v", index, rt.guest.Dimensions)
	}

	size := uint64(rt.guest.Format.Size(rt.guest.Dimensions))
	layerCount := uint64(rt.guest.LayerCount)
	baseLayer := uint64(rt.guest.BaseArrayLayer)
	if stride := uint64(rt.guest.LayerStride); stride != 0 && layerCount > baseLayer {
		if layered := stride * (layerCount - baseLayer); layered > size {
			size = layered
		}
	}

	mappings, err := c.gpu.addressSpace.Translate(rt.address, size)
	if err != nil {
		return nil, fmt.Errorf("translating render target %d at %#x: %w", index, rt.address, err)
	}

	guest := rt.guest
	guest.Mappings = mappings
	view, err := c.gpu.Textures.FindOrCreate(&guest)
	if err != nil {
		return nil, err
	}
	rt.guest.Mappings = mappings
	rt.view = view
	return view, nil
}

// --- Viewports ---

// SetViewportX recombines a viewport's horizontal transform. The hardware
// encodes center and half-extent; the host form wants origin and extent.
func (c *GraphicsContext) SetViewportX(index int, scale, translate float32) {
	c.viewports[index].X = scale - translate
	c.viewports[index].Width = scale * 2
}

// SetViewportY recombines a viewport's vertical transform.
func (c *GraphicsContext) SetViewportY(index int, scale, translate float32) {
	c.viewports[index].Y = scale - translate
	c.viewports[index].Height = scale * 2
}

// SetViewportZ recombines a viewport's depth transform.
func (c *GraphicsContext) SetViewportZ(index int, scale, translate float32) {
	c.viewports[index].MinDepth = translate
	c.viewports[index].MaxDepth = scale + translate
}

// Viewport returns the resolved host viewport at index.
func (c *GraphicsContext) Viewport(index int) Viewport {
	return c.viewports[index]
}

// --- Scissors ---

// SetScissor enables or disables a scissor. Enabling rebuilds the
// rectangle from the supplied bounds words; disabling substitutes the
// maximal area.
func (c *GraphicsContext) SetScissor(index int, enable bool, horizontal, vertical maxwell.ScissorBounds) {
	if !enable {
		c.scissors[index] = maximalScissor()
		return
	}
	c.SetScissorHorizontal(index, horizontal)
	c.SetScissorVertical(index, vertical)
}

// SetScissorHorizontal installs a scissor's horizontal bounds.
func (c *GraphicsContext) SetScissorHorizontal(index int, bounds maxwell.ScissorBounds) {
	min, max := bounds.Minimum(), bounds.Maximum()
	c.scissors[index].OffsetX = min
	if max > min {
		c.scissors[index].Width = max - min
	} else {
		c.scissors[index].Width = 0
	}
}

// SetScissorVertical installs a scissor's vertical bounds.
func (c *GraphicsContext) SetScissorVertical(index int, bounds maxwell.ScissorBounds) {
	min, max := bounds.Minimum(), bounds.Maximum()
	c.scissors[index].OffsetY = min
	if max > min {
		c.scissors[index].Height = max - min
	} else {
		c.scissors[index].Height = 0
	}
}

// Scissor returns the resolved host scissor at index.
func (c *GraphicsContext) Scissor(index int) Scissor {
	return c.scissors[index]
}

// --- Clears ---

// UpdateClearColorValue stores one raw component of the clear color. The
// components are float bit patterns for float targets and raw integers
// otherwise; interpretation is deferred to the clear.
func (c *GraphicsContext) UpdateClearColorValue(component int, value uint32) {
	c.clearColor[component] = value
}

// ClearColorValue returns the raw clear color components.
func (c *GraphicsContext) ClearColorValue() [4]uint32 {
	return c.clearColor
}

// ClearBuffers performs the clear the argument word requests against the
// selected render target. Only full RGBA color clears reach the backend;
// partial channel masks and depth-stencil clears are reported and skipped.
func (c *GraphicsContext) ClearBuffers(clear maxwell.ClearBuffers) error {
	if clear.Depth() || clear.Stencil() {
		c.logf("ignoring depth-stencil clear request %#x", uint32(clear))
	}
	if !clear.Red() && !clear.Green() && !clear.Blue() && !clear.Alpha() {
		return nil
	}
	if !clear.Red() || !clear.Green() || !clear.Blue() || !clear.Alpha() {
		c.logf("ignoring partial channel clear request %#x", uint32(clear))
		return nil
	}

	slot := int(c.renderTargetControl.Map(clear.RenderTargetID()))
	view, err := c.GetRenderTarget(slot)
	if err != nil {
		return err
	}
	if view == nil {
		c.logf("clear requested on disabled render target %d", slot)
		return nil
	}

	color := [4]float32{
		math.Float32frombits(c.clearColor[0]),
		math.Float32frombits(c.clearColor[1]),
		math.Float32frombits(c.clearColor[2]),
		math.Float32frombits(c.clearColor[3]),
	}
	rng := view.Range
	rng.BaseArrayLayer += clear.LayerID()
	rng.LayerCount = 1

	t := view.Texture
	t.Lock()
	defer t.Unlock()
	return t.ClearColor(color, rng)
}

// InvalidateRange drops cached render target views and textures
// overlapping a guest range, typically after an unmap.
func (c *GraphicsContext) InvalidateRange(rng gmmu.Mapping) {
	for i := range c.renderTargets {
		for _, m := range c.renderTargets[i].guest.Mappings {
			if m.Intersects(rng) {
				c.invalidateRenderTarget(i)
				break
			}
		}
	}
	c.gpu.Textures.Invalidate(rng)
}
