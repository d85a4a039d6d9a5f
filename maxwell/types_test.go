package maxwell_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/artem8086/skyline/maxwell"
)

func TestMaxwell(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Maxwell Suite")
}

var _ = Describe("Address", func() {
	It("should pack the two halves into one address", func() {
		a := maxwell.Address{High: 0x12, Low: 0x34567890}
		Expect(a.Pack()).To(Equal(uint64(0x1234567890)))
	})
})

var _ = Describe("SyncpointAction", func() {
	It("should decode the syncpoint index", func() {
		a := maxwell.SyncpointAction(0x123)
		Expect(a.ID()).To(Equal(uint32(0x123)))
		Expect(a.Increment()).To(BeFalse())
	})

	It("should decode the flag bits", func() {
		a := maxwell.SyncpointAction(1<<20 | 1<<16 | 0x7)
		Expect(a.ID()).To(Equal(uint32(7)))
		Expect(a.FlushCache()).To(BeTrue())
		Expect(a.Increment()).To(BeTrue())
	})
})

var _ = Describe("ScissorBounds", func() {
	It("should split the word into bounds", func() {
		b := maxwell.ScissorBounds(0x0280_0010)
		Expect(b.Minimum()).To(Equal(uint32(0x10)))
		Expect(b.Maximum()).To(Equal(uint32(0x280)))
	})
})

var _ = Describe("RenderTargetTileMode", func() {
	It("should decode block dimensions", func() {
		m := maxwell.RenderTargetTileMode(0x124)
		Expect(m.BlockWidthLog2()).To(Equal(uint8(4)))
		Expect(m.BlockHeightLog2()).To(Equal(uint8(2)))
		Expect(m.BlockDepthLog2()).To(Equal(uint8(1)))
		Expect(m.IsLinear()).To(BeFalse())
	})

	It("should detect linear surfaces", func() {
		Expect(maxwell.RenderTargetTileMode(1 << 12).IsLinear()).To(BeTrue())
	})
})

var _ = Describe("RenderTargetArrayMode", func() {
	It("should decode layers and volume", func() {
		m := maxwell.RenderTargetArrayMode(1<<16 | 6)
		Expect(m.LayerCount()).To(Equal(uint32(6)))
		Expect(m.Volume()).To(BeTrue())
	})
})

var _ = Describe("RenderTargetControl", func() {
	It("should decode the active count", func() {
		Expect(maxwell.RenderTargetControl(3).Count()).To(Equal(uint32(3)))
	})

	It("should remap target indices through the table", func() {
		// Table entries 0..7 hold 7, 6, .., 0.
		var c maxwell.RenderTargetControl
		for i := uint32(0); i < 8; i++ {
			c |= maxwell.RenderTargetControl(7-i) << (4 + 3*i)
		}

		for i := uint32(0); i < 8; i++ {
			Expect(c.Map(i)).To(Equal(7 - i))
		}
	})
})

var _ = Describe("ClearBuffers", func() {
	It("should decode the channel mask", func() {
		c := maxwell.ClearBuffers(0b111111)
		Expect(c.Depth()).To(BeTrue())
		Expect(c.Stencil()).To(BeTrue())
		Expect(c.Red()).To(BeTrue())
		Expect(c.Green()).To(BeTrue())
		Expect(c.Blue()).To(BeTrue())
		Expect(c.Alpha()).To(BeTrue())
	})

	It("should decode the target and layer", func() {
		c := maxwell.ClearBuffers(5<<6 | 3<<10)
		Expect(c.RenderTargetID()).To(Equal(uint32(5)))
		Expect(c.LayerID()).To(Equal(uint32(3)))
	})
})

var _ = Describe("SemaphoreInfo", func() {
	It("should decode a release", func() {
		i := maxwell.SemaphoreInfo(uint32(maxwell.SemaphoreStructureOneWord) << 28)
		Expect(i.Op()).To(Equal(maxwell.SemaphoreOpRelease))
		Expect(i.StructureSize()).To(Equal(maxwell.SemaphoreStructureOneWord))
	})

	It("should decode a counter report", func() {
		i := maxwell.SemaphoreInfo(uint32(maxwell.SemaphoreOpCounter) |
			uint32(maxwell.SemaphoreCounterSamplesPassed)<<23 |
			1<<2 | 1<<4)
		Expect(i.Op()).To(Equal(maxwell.SemaphoreOpCounter))
		Expect(i.CounterType()).To(Equal(maxwell.SemaphoreCounterSamplesPassed))
		Expect(i.FlushDisable()).To(BeTrue())
		Expect(i.ReductionEnable()).To(BeFalse())
		Expect(i.FenceEnable()).To(BeTrue())
	})
})
