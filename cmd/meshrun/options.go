package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// options holds the settings of one run. Environment variables provide the
// defaults and flags override them.
type options struct {
	Rows          int           `env:"MESHLAUNCH_ROWS" envDefault:"4"`
	Cols          int           `env:"MESHLAUNCH_COLS" envDefault:"4"`
	Program       string        `env:"MESHLAUNCH_PROGRAM"`
	Function      string        `env:"MESHLAUNCH_FUNCTION" envDefault:"main"`
	Start         int           `env:"MESHLAUNCH_START" envDefault:"0"`
	Size          int           `env:"MESHLAUNCH_SIZE" envDefault:"0"`
	Timeout       time.Duration `env:"MESHLAUNCH_TIMEOUT" envDefault:"0s"`
	PollInterval  time.Duration `env:"MESHLAUNCH_POLL_INTERVAL" envDefault:"1ms"`
	CyclesPerPoll int           `env:"MESHLAUNCH_CYCLES_PER_POLL" envDefault:"64"`
	DeviceScoped  bool          `env:"MESHLAUNCH_DEVICE_SCOPED_WAIT"`
	SharedMemory  string        `env:"MESHLAUNCH_SHM_PATH"`
	Monitor       bool          `env:"MESHLAUNCH_MONITOR"`
	LogFile       string        `env:"MESHLAUNCH_LOG_FILE"`
	ResultBytes   int           `env:"MESHLAUNCH_RESULT_BYTES" envDefault:"4"`

	// Args are the launch arguments, one 32-bit word each.
	Args []uint32
}

func parseOptions(args []string, environ map[string]string, stderr io.Writer) (options, error) {
	var o options

	envOpts := env.Options{}
	if environ != nil {
		envOpts.Environment = environ
	}
	if err := env.ParseWithOptions(&o, envOpts); err != nil {
		return options{}, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("meshrun", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: meshrun [flags] -program image [word ...]")
		fs.PrintDefaults()
	}

	fs.IntVar(&o.Rows, "rows", o.Rows, "rows of the mesh")
	fs.IntVar(&o.Cols, "cols", o.Cols, "columns of the mesh")
	fs.StringVar(&o.Program, "program", o.Program, "program image: a YAML file or one of the built-in images")
	fs.StringVar(&o.Function, "function", o.Function, "entry point name")
	fs.IntVar(&o.Start, "start", o.Start, "first core of the launch")
	fs.IntVar(&o.Size, "size", o.Size, "number of cores to launch on (0 = the rest of the grid)")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "give up waiting after this long (0 = wait forever)")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "time between two reads of the status array")
	fs.IntVar(&o.CyclesPerPoll, "cycles-per-poll", o.CyclesPerPoll, "simulated cycles per status read")
	fs.BoolVar(&o.DeviceScoped, "device-scoped-wait", o.DeviceScoped, "wait for every core of the device, not only the team")
	fs.StringVar(&o.SharedMemory, "shm", o.SharedMemory, "back shared memory with a mapped file at this path")
	fs.BoolVar(&o.Monitor, "monitor", o.Monitor, "start the akita monitoring server")
	fs.StringVar(&o.LogFile, "log-file", o.LogFile, "write JSON trace logs to this file instead of stderr")
	fs.IntVar(&o.ResultBytes, "result-bytes", o.ResultBytes, "bytes of local memory to print per core (0 = none)")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	for _, a := range fs.Args() {
		v, err := strconv.ParseUint(a, 0, 32)
		if err != nil {
			return options{}, fmt.Errorf("argument %q: %w", a, err)
		}
		o.Args = append(o.Args, uint32(v))
	}

	if err := o.validate(); err != nil {
		return options{}, err
	}

	return o, nil
}

func (o *options) validate() error {
	if o.Program == "" {
		return errors.New("-program is required")
	}

	if o.Rows <= 0 || o.Cols <= 0 {
		return fmt.Errorf("invalid mesh size %dx%d", o.Rows, o.Cols)
	}

	if o.Size == 0 {
		o.Size = o.Rows*o.Cols - o.Start
	}

	if o.ResultBytes < 0 {
		return errors.New("-result-bytes must be >= 0")
	}

	return nil
}
