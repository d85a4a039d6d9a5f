package gpu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/artem8086/skyline/gpu"
	"github.com/artem8086/skyline/maxwell"
)

var _ = Describe("TranslateColorFormat", func() {
	It("should treat the none format as a disabled target", func() {
		format, err := gpu.TranslateColorFormat(maxwell.ColorFormatNone)
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(BeNil())
	})

	It("should translate the supported formats", func() {
		format, err := gpu.TranslateColorFormat(maxwell.ColorFormatR8G8B8A8Unorm)
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(BeIdenticalTo(gpu.FormatRGBA8Unorm))

		format, err = gpu.TranslateColorFormat(maxwell.ColorFormatB8G8R8A8Unorm)
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(BeIdenticalTo(gpu.FormatBGRA8Unorm))
	})

	It("should report unknown codes as unsupported", func() {
		_, err := gpu.TranslateColorFormat(maxwell.ColorFormat(0x99))
		Expect(err).To(MatchError(gpu.ErrUnsupportedFormat))
	})
})

var _ = Describe("Format", func() {
	It("should compute byte sizes", func() {
		d := gpu.Dimensions{Width: 32, Height: 16, Depth: 1}
		Expect(gpu.FormatRGBA8Unorm.Size(d)).To(Equal(uint64(32 * 16 * 4)))
	})

	It("should allow reinterpretation between same-layout formats", func() {
		Expect(gpu.FormatRGBA8Unorm.Compatible(gpu.FormatBGRA8Unorm)).To(BeTrue())
		Expect(gpu.FormatRGBA8Unorm.Compatible(gpu.FormatRGBA8Srgb)).To(BeTrue())
	})
})

var _ = Describe("TileConfig", func() {
	It("should ignore parameters the mode does not use", func() {
		a := gpu.TileConfig{Mode: gpu.TileModeLinear, Pitch: 100}
		b := gpu.TileConfig{Mode: gpu.TileModeLinear, Pitch: 200}
		Expect(a.Equal(b)).To(BeTrue())
	})

	It("should compare block parameters under block tiling", func() {
		a := gpu.TileConfig{Mode: gpu.TileModeBlock, BlockHeight: 2, BlockDepth: 1}
		b := gpu.TileConfig{Mode: gpu.TileModeBlock, BlockHeight: 4, BlockDepth: 1}
		Expect(a.Equal(b)).To(BeFalse())
		Expect(a.Equal(a)).To(BeTrue())
	})

	It("should distinguish modes", func() {
		a := gpu.TileConfig{Mode: gpu.TileModeLinear}
		b := gpu.TileConfig{Mode: gpu.TileModePitch}
		Expect(a.Equal(b)).To(BeFalse())
	})
})
