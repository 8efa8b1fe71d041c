package api

import (
	"context"
	"encoding/binary"
	"errors"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/ctrl"
)

var _ = Describe("Launch", func() {
	var (
		f          *deviceFixture
		dev        *deviceImpl
		argsRegion *MockRegion
		team       *Team
		ctx        context.Context
	)

	// A single uint32 argument makes a 40-byte block with no padding.
	const blockSize = 40
	blockOffset := uint32(ctrl.DefaultArgsEnd - blockSize)

	statusWord := func(s ctrl.Status) []byte {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, s.Encode())
		return buf
	}

	expectArgs := func() {
		header := make([]byte, 36)
		binary.LittleEndian.PutUint32(header[0:], 1)
		binary.LittleEndian.PutUint32(header[4:], 4)

		gomock.InOrder(
			f.driver.EXPECT().Alloc(blockOffset, uint32(blockSize)).Return(argsRegion, nil),
			argsRegion.EXPECT().Write(0, 0, uint32(0), header).Return(nil),
			argsRegion.EXPECT().Write(0, 0, uint32(36), args.Uint32(7)).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(64), args.Uint32(blockOffset)).Return(nil),
		)
	}

	request := func(start, size int) LaunchRequest {
		return LaunchRequest{
			Program:  Program{Path: "sum.yaml"},
			Function: "main",
			Start:    start,
			Size:     size,
			Args:     [][]byte{args.Uint32(7)},
		}
	}

	BeforeEach(func() {
		f = newDeviceFixture()
		argsRegion = NewMockRegion(f.mockCtrl)
		dev = f.build(DeviceBuilder{})
		ctx = context.Background()

		f.expectInit()
		Expect(dev.Init()).To(Succeed())

		var err error
		team, err = dev.OpenTeam(0, 16)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		f.mockCtrl.Finish()
	})

	DescribeTable("should reject ranges outside the grid without touching the fabric",
		func(start, size int) {
			err := dev.Launch(ctx, team, request(start, size))

			Expect(err).To(MatchError(ErrInvalidRange))
			Expect(IsConfigError(err)).To(BeTrue())
		},
		Entry("negative start", -1, 1),
		Entry("empty", 0, 0),
		Entry("past the last core", 15, 2),
		Entry("more than the grid", 0, 17),
	)

	It("should fail on a device that is not open", func() {
		other := f.build(DeviceBuilder{})

		err := other.Launch(ctx, team, request(0, 1))

		Expect(err).To(MatchError(ErrNotOpen))
	})

	It("should fail with a team of another device", func() {
		other := &Team{dev: f.build(DeviceBuilder{}), start: 0, count: 16}

		err := dev.Launch(ctx, other, request(0, 1))

		Expect(err).To(MatchError(ErrNotOpen))
	})

	It("should not start anything when the context is done", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		err := dev.Launch(canceled, team, request(0, 1))

		Expect(err).To(MatchError(context.Canceled))
	})

	It("should refuse oversized arguments before allocating", func() {
		req := request(0, 16)
		req.Args = [][]byte{make([]byte, ctrl.DefaultMaxArgsSize+1)}

		err := dev.Launch(ctx, team, req)

		Expect(err).To(MatchError(ErrArgumentsTooLarge))
		Expect(dev.data.args).To(BeNil())
	})

	It("should accept arguments exactly at the ceiling", func() {
		const total = 65576
		offset := uint32(ctrl.DefaultArgsEnd - total)

		payload := make([]byte, ctrl.DefaultMaxArgsSize)
		payload[0], payload[len(payload)-1] = 0xaa, 0x55

		header := make([]byte, 36)
		binary.LittleEndian.PutUint32(header[0:], 1)
		binary.LittleEndian.PutUint32(header[4:], ctrl.DefaultMaxArgsSize)

		gomock.InOrder(
			f.driver.EXPECT().Alloc(offset, uint32(total)).Return(argsRegion, nil),
			argsRegion.EXPECT().Write(0, 0, uint32(0), header).Return(nil),
			argsRegion.EXPECT().Write(0, 0, uint32(36), payload).Return(nil),
			argsRegion.EXPECT().Write(0, 0, uint32(36+ctrl.DefaultMaxArgsSize), make([]byte, 4)).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(64), args.Uint32(offset)).Return(nil),
			f.wg.EXPECT().Load("sum.yaml", 0, 0).Return(nil),
			f.wg.EXPECT().Load("sum.yaml", 0, 1).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(0), statusWord(ctrl.Scheduled)).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(4), statusWord(ctrl.Scheduled)).Return(nil),
			f.wg.EXPECT().Start(0, 0).Return(nil),
			f.wg.EXPECT().Start(0, 1).Return(nil),
		)

		req := request(0, 2)
		req.Args = [][]byte{payload}

		Expect(dev.Launch(ctx, team, req)).To(Succeed())
		Expect(dev.data.args.Offset).To(Equal(offset))
		Expect(dev.data.args.Size).To(Equal(uint32(total)))
	})

	It("should refuse too many arguments before allocating", func() {
		req := request(0, 16)
		req.Args = make([][]byte, ctrl.DefaultMaxArgs+1)

		Expect(dev.Launch(ctx, team, req)).To(MatchError(ErrTooManyArgs))
	})

	It("should load every core, then mark every core, then start every core", func() {
		expectArgs()

		// Cores 5, 6 and 7 sit at (1,1), (1,2) and (1,3).
		gomock.InOrder(
			f.wg.EXPECT().Load("sum.yaml", 1, 1).Return(nil),
			f.wg.EXPECT().Load("sum.yaml", 1, 2).Return(nil),
			f.wg.EXPECT().Load("sum.yaml", 1, 3).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(20), statusWord(ctrl.Scheduled)).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(24), statusWord(ctrl.Scheduled)).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(28), statusWord(ctrl.Scheduled)).Return(nil),
			f.wg.EXPECT().Start(1, 1).Return(nil),
			f.wg.EXPECT().Start(1, 2).Return(nil),
			f.wg.EXPECT().Start(1, 3).Return(nil),
		)

		Expect(dev.Launch(ctx, team, request(5, 3))).To(Succeed())
		Expect(dev.data.args.Offset).To(Equal(blockOffset))
		Expect(dev.data.args.Size).To(Equal(uint32(blockSize)))
	})

	It("should stop before marking when a load fails", func() {
		expectArgs()

		loadErr := errors.New("bad image")
		gomock.InOrder(
			f.wg.EXPECT().Load("sum.yaml", 0, 0).Return(nil),
			f.wg.EXPECT().Load("sum.yaml", 0, 1).Return(loadErr),
		)

		err := dev.Launch(ctx, team, request(0, 4))

		Expect(err).To(MatchError(ErrLoadFailure))
		Expect(err).To(MatchError(loadErr))
		Expect(IsTransient(err)).To(BeTrue())

		var lerr *LaunchError
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Phase).To(Equal(PhaseLoad))
		Expect(lerr.Core).To(Equal(1))
		Expect(lerr.Loaded).To(Equal([]int{0}))
		Expect(lerr.Marked).To(BeEmpty())
		Expect(lerr.Started).To(BeEmpty())
		Expect(lerr.ID).NotTo(BeEmpty())
	})

	It("should leave earlier cores running when a start fails", func() {
		expectArgs()

		startErr := errors.New("core stuck in reset")
		gomock.InOrder(
			f.wg.EXPECT().Load("sum.yaml", 0, 0).Return(nil),
			f.wg.EXPECT().Load("sum.yaml", 0, 1).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(0), statusWord(ctrl.Scheduled)).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(4), statusWord(ctrl.Scheduled)).Return(nil),
			f.wg.EXPECT().Start(0, 0).Return(nil),
			f.wg.EXPECT().Start(0, 1).Return(startErr),
		)

		err := dev.Launch(ctx, team, request(0, 2))

		Expect(err).To(MatchError(ErrStartFailure))

		var lerr *LaunchError
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Phase).To(Equal(PhaseStart))
		Expect(lerr.Row).To(Equal(0))
		Expect(lerr.Col).To(Equal(1))
		Expect(lerr.Started).To(Equal([]int{0}))
		Expect(lerr.Dirty()).To(Equal([]int{0, 1}))
	})

	It("should report a failing status write as an i/o failure", func() {
		expectArgs()

		gomock.InOrder(
			f.wg.EXPECT().Load("sum.yaml", 3, 3).Return(nil),
			f.ctrlRegion.EXPECT().Write(0, 0, uint32(60), gomock.Any()).
				Return(errors.New("bus error")),
		)

		err := dev.Launch(ctx, team, request(15, 1))

		Expect(err).To(MatchError(ErrIoFailure))

		var lerr *LaunchError
		Expect(errors.As(err, &lerr)).To(BeTrue())
		Expect(lerr.Phase).To(Equal(PhaseMark))
		Expect(lerr.Loaded).To(Equal([]int{15}))
	})

	It("should release the previous argument block on the next launch", func() {
		expectArgs()
		f.wg.EXPECT().Load(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
		f.ctrlRegion.EXPECT().Write(0, 0, uint32(0), gomock.Any()).Return(nil).Times(2)
		f.wg.EXPECT().Start(0, 0).Return(nil).Times(2)

		Expect(dev.Launch(ctx, team, request(0, 1))).To(Succeed())

		next := NewMockRegion(f.mockCtrl)
		gomock.InOrder(
			argsRegion.EXPECT().Free().Return(nil),
			f.driver.EXPECT().Alloc(blockOffset, uint32(blockSize)).Return(next, nil),
		)
		next.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil).Times(2)
		f.ctrlRegion.EXPECT().Write(0, 0, uint32(64), gomock.Any()).Return(nil)

		Expect(dev.Launch(ctx, team, request(0, 1))).To(Succeed())
		Expect(dev.data.args.Region).To(BeIdenticalTo(next))
	})

	It("should report an allocation failure as exhaustion", func() {
		f.driver.EXPECT().Alloc(gomock.Any(), gomock.Any()).Return(nil, errors.New("no room"))

		err := dev.Launch(ctx, team, request(0, 16))

		Expect(err).To(MatchError(ErrResourceExhausted))
		Expect(IsTransient(err)).To(BeTrue())
	})
})
