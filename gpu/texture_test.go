package gpu_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/artem8086/skyline/gmmu"
	"github.com/artem8086/skyline/gpu"
)

const textureBase = uint64(0x100000)

// linearGuestTexture maps guest memory for a linear RGBA8 texture, fills
// it with data, and returns its descriptor.
func linearGuestTexture(mm *gmmu.MemoryManager, width, height uint32, data []byte) *gpu.GuestTexture {
	size := uint64(width) * uint64(height) * 4
	mapSize := (size + gmmu.PageSize - 1) / gmmu.PageSize * gmmu.PageSize

	Expect(mm.Map(textureBase, 0, mapSize)).To(Succeed())
	if data != nil {
		Expect(mm.WriteVirtual(textureBase, data)).To(Succeed())
	}

	mappings, err := mm.Translate(textureBase, size)
	Expect(err).NotTo(HaveOccurred())

	return &gpu.GuestTexture{
		Mappings:   mappings,
		Dimensions: gpu.Dimensions{Width: width, Height: height, Depth: 1},
		Format:     gpu.FormatRGBA8Unorm,
		TileConfig: gpu.TileConfig{Mode: gpu.TileModeLinear},
		Type:       gpu.TextureType2D,
		LayerCount: 1,
	}
}

func gradient(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	return data
}

var _ = Describe("Texture", func() {
	var (
		mm *gmmu.MemoryManager
		g  *gpu.GPU
	)

	BeforeEach(func() {
		mm = gmmu.NewMemoryManager(64 << 20)
		g = gpu.New(mm, gpu.WithLogWriter(GinkgoWriter))
	})

	Describe("NewTextureFromGuest", func() {
		It("should upload the guest contents into the host image", func() {
			data := gradient(16 * 16 * 4)
			guest := linearGuestTexture(mm, 16, 16, data)

			tex, err := gpu.NewTextureFromGuest(g, guest)
			Expect(err).NotTo(HaveOccurred())
			Expect(tex.Layout).To(Equal(gpu.ImageLayoutGeneral))
			Expect(tex.Tiling).To(Equal(gpu.ImageTilingLinear))

			host, err := g.Backend().DownloadImage(tex.Image())
			Expect(err).NotTo(HaveOccurred())
			Expect(host).To(Equal(data))
		})

		It("should reject descriptors without a format", func() {
			guest := linearGuestTexture(mm, 8, 8, nil)
			guest.Format = nil

			_, err := gpu.NewTextureFromGuest(g, guest)
			Expect(err).To(MatchError(gpu.ErrUnsupportedFormat))
		})
	})

	Describe("SynchronizeGuest", func() {
		It("should write host changes back to guest memory", func() {
			guest := linearGuestTexture(mm, 8, 8, gradient(8*8*4))
			tex, err := gpu.NewTextureFromGuest(g, guest)
			Expect(err).NotTo(HaveOccurred())

			tex.Lock()
			defer tex.Unlock()
			Expect(tex.ClearColor([4]float32{1, 0, 0, 1}, gpu.SubresourceRange{})).To(Succeed())
			Expect(tex.SynchronizeGuest()).To(Succeed())

			data, err := gmmu.ReadAll(mm, guest.Mappings)
			Expect(err).NotTo(HaveOccurred())
			Expect(data[:4]).To(Equal([]byte{0xFF, 0x00, 0x00, 0xFF}))
			Expect(data[8*8*4-4:]).To(Equal([]byte{0xFF, 0x00, 0x00, 0xFF}))
		})
	})

	Describe("CopyFrom", func() {
		var src, dst *gpu.Texture

		BeforeEach(func() {
			var err error
			src, err = gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())
			dst, err = gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should copy the source contents", func() {
			data := gradient(8 * 8 * 4)
			_, err := g.Backend().UploadImage(src.Image(), data)
			Expect(err).NotTo(HaveOccurred())

			src.Lock()
			dst.Lock()
			defer src.Unlock()
			defer dst.Unlock()
			Expect(dst.CopyFrom(src, gpu.SubresourceRange{})).To(Succeed())

			host, err := g.Backend().DownloadImage(dst.Image())
			Expect(err).NotTo(HaveOccurred())
			Expect(host).To(Equal(data))
		})

		It("should refuse mismatched dimensions", func() {
			other, err := gpu.NewTexture(g, gpu.Dimensions{Width: 4, Height: 4, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())

			other.Lock()
			dst.Lock()
			defer other.Unlock()
			defer dst.Unlock()
			Expect(dst.CopyFrom(other, gpu.SubresourceRange{})).NotTo(Succeed())
		})

		It("should refuse mismatched formats", func() {
			other, err := gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatBGRA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())

			other.Lock()
			dst.Lock()
			defer other.Unlock()
			defer dst.Unlock()
			Expect(dst.CopyFrom(other, gpu.SubresourceRange{})).NotTo(Succeed())
		})

		It("should refuse sources with undefined layout", func() {
			undefined := gpu.WrapImage(g, src.Image(), src.Dimensions, src.Format, gpu.ImageLayoutUndefined)

			undefined.Lock()
			dst.Lock()
			defer undefined.Unlock()
			defer dst.Unlock()
			Expect(dst.CopyFrom(undefined, gpu.SubresourceRange{})).NotTo(Succeed())
		})
	})

	Describe("SetFormat", func() {
		It("should allow layout-compatible reinterpretation", func() {
			tex, err := gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())

			Expect(tex.SetFormat(gpu.FormatBGRA8Unorm)).To(Succeed())
			Expect(tex.Format).To(BeIdenticalTo(gpu.FormatBGRA8Unorm))
		})
	})

	Describe("fence discipline", func() {
		It("should wait out a pending cycle before new work", func() {
			tex, err := gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())

			cycle := gpu.NewFenceCycle()
			tex.Lock()
			tex.AttachCycle(cycle)
			tex.Unlock()

			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				tex.Lock()
				defer tex.Unlock()
				tex.WaitOnFence()
				close(done)
			}()

			Consistently(done, 50*time.Millisecond).ShouldNot(BeClosed())
			cycle.Signal()
			Eventually(done).Should(BeClosed())
		})
	})

	Describe("backing discipline", func() {
		It("should park waiters until a backing arrives", func() {
			tex, err := gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())
			img := tex.Image()

			tex.Lock()
			tex.SwapBacking(gpu.NoBacking(), gpu.ImageLayoutUndefined)
			tex.Unlock()

			released := make(chan bool, 1)
			go func() {
				defer GinkgoRecover()
				tex.Lock()
				defer tex.Unlock()
				released <- tex.WaitOnBacking()
			}()

			Consistently(released, 50*time.Millisecond).ShouldNot(Receive())

			tex.Lock()
			tex.SwapBacking(gpu.OwnedBacking(img), gpu.ImageLayoutGeneral)
			tex.Unlock()

			Eventually(released).Should(Receive(BeTrue()))
		})

		It("should not release the lock when a backing is present", func() {
			tex, err := gpu.NewTexture(g, gpu.Dimensions{Width: 8, Height: 8, Depth: 1}, gpu.FormatRGBA8Unorm, 1)
			Expect(err).NotTo(HaveOccurred())

			tex.Lock()
			defer tex.Unlock()
			Expect(tex.WaitOnBacking()).To(BeFalse())
		})
	})
})
