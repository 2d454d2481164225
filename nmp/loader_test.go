package nmp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gitlab.com/akita/mem/v3/mem"
)

var _ = Describe("DeriveStackPointer", func() {
	It("should place the stack at the top of the region", func() {
		sp := DeriveStackPointer(0x100000000, 8*mem.GB, 1*mem.MB)

		Expect(sp).To(Equal(uint64(0x2FFF00000)))
	})

	It("should shrink with a larger reserved stack", func() {
		small := DeriveStackPointer(0x100000000, 2*mem.GB, 1*mem.MB)
		large := DeriveStackPointer(0x100000000, 2*mem.GB, 16*mem.MB)

		Expect(large).To(BeNumerically("<", small))
	})
})

var _ = Describe("ImageLoader", func() {
	var (
		storage *mem.Storage
		loader  ImageLoader
	)

	BeforeEach(func() {
		storage = mem.NewStorage(0x100000000 + 0x10000)
		loader = ImageLoader{
			Storage:   storage,
			StartAddr: 0x100000000,
			Limit:     256,
		}
	})

	It("should place the image at the start address", func() {
		image := []byte{0xde, 0xad, 0xbe, 0xef}

		size, err := loader.LoadBytes(image)

		Expect(err).To(BeNil())
		Expect(size).To(Equal(uint64(4)))

		stored, err := storage.Read(0x100000000, 4)
		Expect(err).To(BeNil())
		Expect(stored).To(Equal(image))
	})

	It("should reject an empty image", func() {
		_, err := loader.LoadBytes(nil)

		Expect(err).To(HaveOccurred())
	})

	It("should reject an image that overlaps the stack region", func() {
		_, err := loader.LoadBytes(make([]byte, 257))

		Expect(err).To(HaveOccurred())
	})

	It("should reject loading from an empty path", func() {
		_, err := loader.LoadFile("")

		Expect(err).To(HaveOccurred())
	})

	It("should reject loading from a missing file", func() {
		_, err := loader.LoadFile("does-not-exist.bin")

		Expect(err).To(HaveOccurred())
	})
})
