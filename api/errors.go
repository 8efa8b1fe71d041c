package api

import (
	"errors"
	"fmt"

	"github.com/sarchlab/meshlaunch/args"
	"github.com/sarchlab/meshlaunch/ctrl"
)

var (
	// ErrNotOpen means the device has not been initialized, or the team does
	// not belong to it.
	ErrNotOpen = errors.New("device not open")

	// ErrInvalidRange means a core range lies outside the grid or does not
	// match a supported topology.
	ErrInvalidRange = errors.New("invalid core range")

	// ErrLoadFailure means the fabric could not load the program on a core.
	ErrLoadFailure = errors.New("program load failed")

	// ErrStartFailure means the fabric could not start a core.
	ErrStartFailure = errors.New("core start failed")

	// ErrLaunchTimeout means Wait gave up while cores were still active.
	ErrLaunchTimeout = errors.New("launch timed out")

	// ErrWaitCanceled means the context of Wait was done before the cores
	// finished.
	ErrWaitCanceled = errors.New("wait canceled")

	// ErrNotSupported means the device knows the property but cannot report
	// it.
	ErrNotSupported = errors.New("property not supported")

	// ErrInvalidProperty means the property is unknown.
	ErrInvalidProperty = errors.New("invalid property")
)

// Errors raised by the control block and the argument packer.
var (
	ErrResourceExhausted = ctrl.ErrResourceExhausted
	ErrIoFailure         = ctrl.ErrIoFailure
	ErrInvalidLayout     = ctrl.ErrInvalidLayout
	ErrArgumentsTooLarge = args.ErrArgumentsTooLarge
	ErrTooManyArgs       = args.ErrTooManyArgs
)

// IsConfigError reports whether err comes from a caller mistake that a retry
// cannot fix.
func IsConfigError(err error) bool {
	for _, target := range []error{
		ErrNotOpen,
		ErrInvalidRange,
		ErrInvalidLayout,
		ErrArgumentsTooLarge,
		ErrTooManyArgs,
		ErrInvalidProperty,
		ErrNotSupported,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err comes from the hardware or from shared
// memory, so that a caller may decide to retry.
func IsTransient(err error) bool {
	for _, target := range []error{
		ErrIoFailure,
		ErrLoadFailure,
		ErrStartFailure,
		ErrResourceExhausted,
		ErrLaunchTimeout,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Phase is a step of the launch sequence.
type Phase int

const (
	PhaseLoad Phase = iota
	PhaseMark
	PhaseStart
)

func (p Phase) String() string {
	switch p {
	case PhaseLoad:
		return "load"
	case PhaseMark:
		return "mark"
	case PhaseStart:
		return "start"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func (p Phase) sentinel() error {
	switch p {
	case PhaseLoad:
		return ErrLoadFailure
	case PhaseStart:
		return ErrStartFailure
	default:
		return ErrIoFailure
	}
}

// LaunchError reports a failure in the middle of a launch. Cores that were
// already loaded, marked or started are left as they are: the protocol does
// not know what a core held before, so it cannot roll back.
type LaunchError struct {
	ID       string
	Phase    Phase
	Core     int
	Row, Col int

	Loaded  []int
	Marked  []int
	Started []int

	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %s of core %d (%d,%d) failed: %v",
		e.ID, e.Phase, e.Core, e.Row, e.Col, e.Err)
}

// Unwrap exposes both the phase error and the fabric error.
func (e *LaunchError) Unwrap() []error {
	return []error{e.Phase.sentinel(), e.Err}
}

// Dirty returns the cores this launch touched before it failed.
func (e *LaunchError) Dirty() []int {
	seen := make(map[int]bool)
	var out []int
	for _, list := range [][]int{e.Loaded, e.Marked, e.Started} {
		for _, c := range list {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}
