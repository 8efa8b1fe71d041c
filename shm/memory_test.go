package shm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshlaunch/shm"
)

var _ = Describe("InMemoryProvider", func() {
	var mem *shm.InMemoryProvider

	BeforeEach(func() {
		mem = shm.NewInMemoryProvider(64)
	})

	AfterEach(func() {
		Expect(mem.Close()).To(Succeed())
	})

	It("should read back what was written", func() {
		Expect(mem.WriteAt(8, []byte{1, 2, 3, 4, 5})).To(Succeed())

		buf := make([]byte, 5)
		Expect(mem.ReadAt(8, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{1, 2, 3, 4, 5}))
	})

	It("should refuse accesses past the end", func() {
		Expect(mem.WriteAt(60, make([]byte, 8))).
			To(MatchError(shm.ErrOutOfBounds))
		Expect(mem.ReadAt(0xFFFFFFFF, make([]byte, 2))).
			To(MatchError(shm.ErrOutOfBounds))
	})

	It("should store and load aligned words", func() {
		Expect(mem.AtomicStore32(4, 10)).To(Succeed())

		v, err := mem.AtomicLoad32(4)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal(uint32(10)))
	})

	It("should refuse misaligned words", func() {
		_, err := mem.AtomicLoad32(2)
		Expect(err).To(MatchError(shm.ErrMisaligned))
		Expect(mem.AtomicStore32(6, 1)).To(MatchError(shm.ErrMisaligned))
	})

	It("should refuse a word that hangs off the end", func() {
		_, err := mem.AtomicLoad32(64)
		Expect(err).To(MatchError(shm.ErrOutOfBounds))
	})

	It("should fail every access once closed", func() {
		Expect(mem.Close()).To(Succeed())

		Expect(mem.Size()).To(BeZero())
		Expect(mem.ReadAt(0, make([]byte, 1))).To(MatchError(shm.ErrClosed))
		Expect(mem.WriteAt(0, []byte{1})).To(MatchError(shm.ErrClosed))
		_, err := mem.AtomicLoad32(0)
		Expect(err).To(MatchError(shm.ErrClosed))
	})
})
