// Command meshrun launches a program on a simulated mesh, waits for the cores
// to finish and prints their status and results.
package main

import (
	"context"
	"embed"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/meshlaunch/api"
	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/config"
	"github.com/sarchlab/meshlaunch/ctrl"
	"github.com/sarchlab/meshlaunch/fabric"
	"github.com/sarchlab/meshlaunch/shm"
	"github.com/sarchlab/meshlaunch/util"
	"github.com/tebeka/atexit"
)

//go:embed images/*.yaml
var images embed.FS

func main() {
	opts, err := parseOptions(os.Args[1:], nil, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(2)
	}

	if err := setupLogging(opts.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	atexit.Register(stop)

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func setupLogging(logFile string) error {
	var out io.Writer = os.Stderr

	if logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		atexit.Register(func() {
			_ = f.Sync()
			_ = f.Close()
		})
		out = f
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: util.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))

	return nil
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	layout := ctrl.DefaultLayout(opts.Rows * opts.Cols)

	engine := sim.NewSerialEngine()

	builder := config.DeviceBuilder{}.
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithWidth(opts.Cols).
		WithHeight(opts.Rows).
		WithLayout(layout).
		WithCyclesPerPoll(opts.CyclesPerPoll)

	if err := registerImages(&builder); err != nil {
		return err
	}

	if opts.SharedMemory != "" {
		mem, err := shm.OpenSharedMemory(shm.SharedMemoryOptions{
			Path:   opts.SharedMemory,
			Size:   config.MemorySize(layout),
			Create: true,
		})
		if err != nil {
			return err
		}
		atexit.Register(func() { _ = mem.Close() })
		builder = builder.WithMemory(mem)
	}

	var monitor *monitoring.Monitor
	if opts.Monitor {
		monitor = monitoring.NewMonitor()
		builder = builder.WithMonitor(monitor)
	}

	mesh := builder.Build("Mesh")

	if monitor != nil {
		monitor.StartServer()
	}

	hostBuilder := api.DeviceBuilder{}.
		WithDriver(mesh).
		WithTopology(api.MeshTopology(opts.Rows, opts.Cols)).
		WithLayout(layout).
		WithPollInterval(opts.PollInterval).
		WithWaitTimeout(opts.Timeout)
	if opts.DeviceScoped {
		hostBuilder = hostBuilder.WithDeviceScopedWait()
	}
	host := hostBuilder.Build("Host")

	atexit.Register(func() {
		if err := host.Fini(); err != nil {
			slog.Error("device teardown failed", "error", err)
		}
	})

	return api.Use(host, func(dev api.Device) error {
		return launchAndReport(ctx, dev, opts, stdout)
	})
}

func launchAndReport(ctx context.Context, dev api.Device, opts options, stdout io.Writer) error {
	team, err := dev.OpenTeam(0, opts.Rows*opts.Cols)
	if err != nil {
		return err
	}

	req := api.LaunchRequest{
		Program:  api.Program{Path: opts.Program},
		Function: opts.Function,
		Start:    opts.Start,
		Size:     opts.Size,
	}
	for _, v := range opts.Args {
		req.Args = append(req.Args, args.Uint32(v))
	}

	if err := dev.Launch(ctx, team, req); err != nil {
		return err
	}

	waitErr := dev.Wait(ctx, team)

	statuses, err := dev.Status()
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ctrl.Grid(statuses, opts.Cols))

	if waitErr != nil {
		return waitErr
	}

	if opts.ResultBytes == 0 {
		return nil
	}

	buf := make([]byte, opts.ResultBytes)
	for i := opts.Start; i < opts.Start+opts.Size; i++ {
		row, col := fabric.CoreCoord(i, opts.Cols)
		if err := dev.ReadCore(row, col, 0, buf); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s % x\n", fabric.CoordName(row, col), buf)
	}

	return nil
}

func registerImages(b *config.DeviceBuilder) error {
	entries, err := images.ReadDir("images")
	if err != nil {
		return err
	}

	for _, e := range entries {
		data, err := images.ReadFile(path.Join("images", e.Name()))
		if err != nil {
			return err
		}
		*b = b.WithImage(strings.TrimSuffix(e.Name(), ".yaml"), data)
	}

	return nil
}

