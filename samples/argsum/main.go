package main

import (
	"context"
	_ "embed"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshlaunch/api"
	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/config"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
	"github.com/tebeka/atexit"
)

//go:embed argsum.yaml
var argsumKernel []byte

const (
	width  = 4
	height = 4
)

func argSum(dev api.Device) error {
	team, err := dev.OpenTeam(0, width*height)
	if err != nil {
		return err
	}

	ctx := context.Background()

	err = dev.Launch(ctx, team, api.LaunchRequest{
		Program:  api.Program{Path: "argsum"},
		Function: "main",
		Start:    0,
		Size:     width * height,
		Args: [][]byte{
			args.Uint32s(1, 2, 3, 4, 5, 6, 7, 8),
			args.Uint32(1000),
		},
	})
	if err != nil {
		return err
	}

	if err := dev.Wait(ctx, team); err != nil {
		return err
	}

	statuses, err := dev.Status()
	if err != nil {
		return err
	}
	fmt.Println(ctrl.Grid(statuses, width))

	buf := make([]byte, 4)
	for i := 0; i < width*height; i++ {
		row, col := fabric.CoreCoord(i, width)
		if err := dev.ReadCore(row, col, 0, buf); err != nil {
			return err
		}
		fmt.Printf("Core %s sum: %d\n", fabric.CoordName(row, col), binary.LittleEndian.Uint32(buf))
	}

	return nil
}

func main() {
	engine := sim.NewSerialEngine()

	mesh := config.DeviceBuilder{}.
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithWidth(width).
		WithHeight(height).
		WithCyclesPerPoll(16).
		WithImage("argsum", argsumKernel).
		Build("Mesh")

	host := api.DeviceBuilder{}.
		WithDriver(mesh).
		WithWaitTimeout(time.Second).
		Build("Host")

	atexit.Register(func() { _ = host.Fini() })

	if err := api.Use(host, argSum); err != nil {
		fmt.Println("argsum failed:", err)
		atexit.Exit(1)
	}

	fmt.Printf("Simulated time: %.0f ns\n", float64(engine.CurrentTime()*1e9))
	atexit.Exit(0)
}
