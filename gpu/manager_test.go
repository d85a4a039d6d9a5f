package gpu_test

import (
	"github.com/gogpu/gputypes"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/artem8086/skyline/gmmu"
	"github.com/artem8086/skyline/gpu"
)

var _ = Describe("TextureManager", func() {
	var (
		mm *gmmu.MemoryManager
		g  *gpu.GPU
	)

	BeforeEach(func() {
		mm = gmmu.NewMemoryManager(64 << 20)
		g = gpu.New(mm, gpu.WithLogWriter(GinkgoWriter))
	})

	It("should fail on descriptors without mappings", func() {
		_, err := g.Textures.FindOrCreate(&gpu.GuestTexture{})
		Expect(err).To(MatchError(gmmu.ErrUnmapped))
	})

	It("should reuse a texture for an identical descriptor", func() {
		guest := linearGuestTexture(mm, 16, 16, gradient(16*16*4))

		first, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())

		lookup := *guest
		second, err := g.Textures.FindOrCreate(&lookup)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Texture).To(BeIdenticalTo(first.Texture))
		Expect(g.Textures.Len()).To(Equal(len(guest.Mappings)))
	})

	It("should evict overlapping textures with different shapes", func() {
		guest := linearGuestTexture(mm, 16, 16, gradient(16*16*4))

		first, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())

		smaller := *guest
		smaller.Dimensions = gpu.Dimensions{Width: 8, Height: 8, Depth: 1}
		smaller.Mappings = []gmmu.Mapping{{
			Address: guest.Mappings[0].Address,
			Size:    8 * 8 * 4,
		}}

		second, err := g.Textures.FindOrCreate(&smaller)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Texture).NotTo(BeIdenticalTo(first.Texture))
		Expect(g.Textures.Len()).To(Equal(1))
	})

	It("should evict textures with an incompatible texel layout", func() {
		guest := linearGuestTexture(mm, 16, 16, gradient(16*16*4))

		first, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())

		blocked := *guest
		blocked.Format = &gpu.Format{
			BytesPerBlock: 4,
			BlockWidth:    2,
			BlockHeight:   1,
			Host:          gputypes.TextureFormatRGBA8Unorm,
		}

		second, err := g.Textures.FindOrCreate(&blocked)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Texture).NotTo(BeIdenticalTo(first.Texture))
		Expect(g.Textures.Len()).To(Equal(1))
	})

	It("should not match textures with different tiling", func() {
		guest := linearGuestTexture(mm, 16, 16, gradient(16*16*4))

		first, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())

		pitched := *guest
		pitched.TileConfig = gpu.TileConfig{Mode: gpu.TileModePitch, Pitch: 16 * 4}

		second, err := g.Textures.FindOrCreate(&pitched)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Texture).NotTo(BeIdenticalTo(first.Texture))
	})

	It("should forget textures in an invalidated range", func() {
		guest := linearGuestTexture(mm, 16, 16, gradient(16*16*4))

		first, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())

		g.Textures.Invalidate(guest.Mappings[0])
		Expect(g.Textures.Len()).To(Equal(0))

		second, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Texture).NotTo(BeIdenticalTo(first.Texture))
	})

	It("should build views covering the descriptor's layers", func() {
		guest := linearGuestTexture(mm, 16, 16, gradient(16*16*4))

		view, err := g.Textures.FindOrCreate(guest)
		Expect(err).NotTo(HaveOccurred())

		Expect(view.Format).To(BeIdenticalTo(gpu.FormatRGBA8Unorm))
		Expect(view.Mapping).To(Equal(gpu.IdentityMapping))
		Expect(view.Range.LayerCount).To(Equal(uint32(1)))
	})
})
