package ctrl_test

import (
	"encoding/binary"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/shm"
)

var _ = Describe("Block", func() {
	var (
		mem    *shm.InMemoryProvider
		driver *shmDriver
		layout ctrl.Layout
	)

	BeforeEach(func() {
		mem = shm.NewInMemoryProvider(0x8000)
		driver = &shmDriver{mem: mem}
		layout = ctrl.Layout{
			Cores:       16,
			CtrlOffset:  0x4000,
			CtrlSize:    0x100,
			ArgsEnd:     0x4000,
			MaxArgsSize: 256,
			MaxArgs:     8,
		}
	})

	It("should clear the control region on create", func() {
		garbage := make([]byte, 0x100)
		for i := range garbage {
			garbage[i] = 0xFF
		}
		Expect(mem.WriteAt(0x4000, garbage)).To(Succeed())

		block, err := ctrl.Create(driver, layout)
		Expect(err).NotTo(HaveOccurred())

		statuses, err := block.ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(statuses).To(HaveLen(16))
		for _, s := range statuses {
			Expect(s).To(Equal(ctrl.None))
		}

		off, err := block.ArgsOffset()
		Expect(err).NotTo(HaveOccurred())
		Expect(off).To(BeZero())
	})

	It("should report allocation failures as resource exhaustion", func() {
		driver.allocErr = errors.New("no memory")

		_, err := ctrl.Create(driver, layout)

		Expect(err).To(MatchError(ctrl.ErrResourceExhausted))
	})

	It("should refuse an inconsistent layout before allocating", func() {
		layout.CtrlSize = 8

		_, err := ctrl.Create(driver, layout)

		Expect(err).To(HaveOccurred())
		Expect(driver.allocs).To(BeZero())
	})

	It("should write status words at base + index * 4", func() {
		block, err := ctrl.Create(driver, layout)
		Expect(err).NotTo(HaveOccurred())

		Expect(block.SetStatus(5, ctrl.Scheduled)).To(Succeed())

		word := make([]byte, 4)
		Expect(mem.ReadAt(0x4000+5*4, word)).To(Succeed())
		Expect(binary.LittleEndian.Uint32(word)).To(Equal(uint32(1)))

		s, err := block.Status(5)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(ctrl.Scheduled))
	})

	It("should read every status word in order", func() {
		block, err := ctrl.Create(driver, layout)
		Expect(err).NotTo(HaveOccurred())

		Expect(block.SetStatus(0, ctrl.Scheduled)).To(Succeed())
		Expect(block.SetStatus(15, ctrl.Done)).To(Succeed())

		statuses, err := block.ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(statuses[0]).To(Equal(ctrl.Scheduled))
		Expect(statuses[15]).To(Equal(ctrl.Done))
		Expect(ctrl.Count(statuses)[ctrl.None]).To(Equal(14))
	})

	It("should record the argument offset after the status array", func() {
		block, err := ctrl.Create(driver, layout)
		Expect(err).NotTo(HaveOccurred())

		Expect(block.RecordArgsOffset(0x3FC0)).To(Succeed())

		word := make([]byte, 4)
		Expect(mem.ReadAt(0x4000+16*4, word)).To(Succeed())
		Expect(binary.LittleEndian.Uint32(word)).To(Equal(uint32(0x3FC0)))
	})

	It("should surface region failures as i/o failures", func() {
		block, err := ctrl.Create(driver, layout)
		Expect(err).NotTo(HaveOccurred())
		Expect(block.Free()).To(Succeed())

		_, err = block.ReadAll()

		Expect(err).To(MatchError(ctrl.ErrIoFailure))
		Expect(block.SetStatus(0, ctrl.Scheduled)).To(MatchError(ctrl.ErrIoFailure))
	})
})
