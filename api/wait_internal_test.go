package api

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshlaunch/ctrl"
)

var _ = Describe("Wait", func() {
	var (
		f     *deviceFixture
		block *ctrl.Block
		ctx   context.Context
	)

	open := func(b DeviceBuilder) (*deviceImpl, *Team) {
		dev := f.build(b)
		f.expectInit()
		Expect(dev.Init()).To(Succeed())
		f.backCtrlRegion()

		team, err := dev.OpenTeam(0, 16)
		Expect(err).NotTo(HaveOccurred())

		return dev, team
	}

	set := func(s ctrl.Status, cores ...int) {
		for _, i := range cores {
			Expect(block.SetStatus(i, s)).To(Succeed())
		}
	}

	BeforeEach(func() {
		f = newDeviceFixture()
		block = ctrl.Attach(f.backing, ctrl.DefaultLayout(16))
		ctx = context.Background()
	})

	AfterEach(func() {
		f.mockCtrl.Finish()
	})

	It("should fail on a device that is not open", func() {
		dev := f.build(DeviceBuilder{})

		err := dev.Wait(ctx, &Team{dev: dev, start: 0, count: 16})

		Expect(err).To(MatchError(ErrNotOpen))
	})

	It("should return at once when nothing was launched", func() {
		dev, team := open(DeviceBuilder{})

		Expect(dev.Wait(ctx, team)).To(Succeed())
		Expect(f.clk.sleeps).To(Equal(0))
	})

	It("should poll until every core is done", func() {
		dev, team := open(DeviceBuilder{})
		set(ctrl.Scheduled, 0, 1, 2, 3)

		f.clk.onSleep = func(n int) {
			switch n {
			case 1:
				set(ctrl.Running, 0, 1, 2, 3)
			case 2:
				set(ctrl.Done, 0, 1)
			case 3:
				set(ctrl.Done, 2, 3)
			}
		}

		Expect(dev.Wait(ctx, team)).To(Succeed())
		Expect(f.clk.sleeps).To(Equal(3))
		Expect(f.clk.Now().Sub(time.Unix(0, 0))).To(Equal(3 * DefaultPollInterval))
	})

	It("should sleep the configured interval", func() {
		dev, team := open(DeviceBuilder{}.WithPollInterval(5 * time.Millisecond))
		set(ctrl.Running, 7)

		f.clk.onSleep = func(int) { set(ctrl.Done, 7) }

		Expect(dev.Wait(ctx, team)).To(Succeed())
		Expect(f.clk.Now().Sub(time.Unix(0, 0))).To(Equal(5 * time.Millisecond))
	})

	It("should ignore status values it does not know", func() {
		dev, team := open(DeviceBuilder{})
		set(ctrl.Status(9), 4)
		set(ctrl.Done, 5)

		Expect(dev.Wait(ctx, team)).To(Succeed())
	})

	It("should time out when a core never leaves SCHEDULED", func() {
		dev, team := open(DeviceBuilder{}.WithWaitTimeout(10 * time.Millisecond))
		set(ctrl.Scheduled, 6)
		set(ctrl.Done, 0, 1, 2)

		err := dev.Wait(ctx, team)

		Expect(err).To(MatchError(ErrLaunchTimeout))
		Expect(IsTransient(err)).To(BeTrue())
		Expect(f.clk.sleeps).To(Equal(10))
	})

	It("should keep polling without a timeout until the context is canceled", func() {
		dev, team := open(DeviceBuilder{})
		set(ctrl.Running, 3)

		canceled, cancel := context.WithCancel(ctx)
		defer cancel()
		f.clk.onSleep = func(n int) {
			if n == 50 {
				cancel()
			}
		}

		err := dev.Wait(canceled, team)

		Expect(err).To(MatchError(ErrWaitCanceled))
		Expect(err).To(MatchError(context.Canceled))
		Expect(f.clk.sleeps).To(Equal(50))
	})

	It("should report a failing read as an i/o failure", func() {
		dev, team := open(DeviceBuilder{})
		Expect(f.backing.Free()).To(Succeed())

		Expect(dev.Wait(ctx, team)).To(MatchError(ErrIoFailure))
	})

	Context("scope", func() {
		It("should only watch the cores of the team by default", func() {
			dev, _ := open(DeviceBuilder{})
			set(ctrl.Running, 12)

			team := &Team{dev: dev, start: 0, count: 4}

			Expect(dev.Wait(ctx, team)).To(Succeed())
			Expect(f.clk.sleeps).To(Equal(0))
		})

		It("should watch every core when device scoped", func() {
			dev, _ := open(DeviceBuilder{}.WithDeviceScopedWait())
			set(ctrl.Running, 12)

			f.clk.onSleep = func(int) { set(ctrl.Done, 12) }

			team := &Team{dev: dev, start: 0, count: 4}

			Expect(dev.Wait(ctx, team)).To(Succeed())
			Expect(f.clk.sleeps).To(Equal(1))
		})
	})
})
