package expander

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gitlab.com/akita/mem/v3/mem"
)

var _ = Describe("AddrRange", func() {
	r := AddrRange{Base: 0x100000000, Size: 2 * mem.GB}

	It("should contain the base address", func() {
		Expect(r.Contains(0x100000000)).To(BeTrue())
	})

	It("should contain the last address of the window", func() {
		Expect(r.Contains(r.End() - 1)).To(BeTrue())
	})

	It("should not contain the end address", func() {
		Expect(r.Contains(r.End())).To(BeFalse())
	})

	It("should not contain addresses below the base", func() {
		Expect(r.Contains(0xFFFFFFFF)).To(BeFalse())
		Expect(r.Contains(0)).To(BeFalse())
	})
})
