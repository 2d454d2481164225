package nmp

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CoreKindFromString", func() {
	It("should parse the command-line names", func() {
		Expect(CoreKindFromString("atomic")).To(Equal(AtomicCore))
		Expect(CoreKindFromString("timing")).To(Equal(TimingCore))
		Expect(CoreKindFromString("pipelined")).To(Equal(PipelinedCore))
	})

	It("should parse the type names", func() {
		Expect(CoreKindFromString("AtomicCore")).To(Equal(AtomicCore))
	})

	It("should reject unknown names", func() {
		_, err := CoreKindFromString("cycle-accurate")

		Expect(err).To(HaveOccurred())
	})
})
