package core_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/meshlaunch/core"
)

var _ = Describe("Program", func() {
	It("should parse an image", func() {
		p, err := core.ParseProgram([]byte("name: argsum\ncycles: 16\naction: sum\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(Equal(core.Program{Name: "argsum", Cycles: 16, Action: core.ActionSum}))
	})

	It("should default to doing nothing", func() {
		p, err := core.ParseProgram([]byte("name: idle\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Action).To(Equal(core.ActionNone))
		Expect(p.Cycles).To(BeZero())
	})

	DescribeTable("should reject bad images",
		func(src string) {
			_, err := core.ParseProgram([]byte(src))
			Expect(err).To(MatchError(core.ErrBadProgram))
		},
		Entry("unknown action", "action: jump\n"),
		Entry("negative cycles", "cycles: -1\n"),
		Entry("unknown key", "name: x\nentry: main\n"),
		Entry("not yaml", "{{{"),
		Entry("empty", ""),
	)

	It("should load an image from a file and name it after the path", func() {
		path := filepath.Join(GinkgoT().TempDir(), "echo.yaml")
		Expect(os.WriteFile(path, []byte("action: echo\n"), 0o644)).To(Succeed())

		p, err := core.LoadProgramFile(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name).To(Equal(path))
		Expect(p.Action).To(Equal(core.ActionEcho))
	})

	It("should fail on a missing file", func() {
		_, err := core.LoadProgramFile(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
