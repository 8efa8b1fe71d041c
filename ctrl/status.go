// Package ctrl manages the control region shared between the host and the
// cores: one status word per core followed by the offset of the current
// argument block.
package ctrl

import "fmt"

// Status is the execution state of a core as stored in its status word. The
// wire representation is a little-endian uint32.
//
// The host only ever writes Scheduled. The cores move themselves from
// Scheduled to Running and from Running to Done.
type Status uint32

const (
	None Status = iota
	Scheduled
	Running
	Done
)

// DecodeStatus converts a raw status word into a Status. Values outside the
// known set are kept as-is; they are neither active nor done.
func DecodeStatus(raw uint32) Status {
	return Status(raw)
}

// Encode returns the raw status word.
func (s Status) Encode() uint32 {
	return uint32(s)
}

// Active reports whether the core still has to finish, i.e. it is scheduled
// or running.
func (s Status) Active() bool {
	return s == Scheduled || s == Running
}

// Known reports whether the status is one of the defined states.
func (s Status) Known() bool {
	return s <= Done
}

func (s Status) String() string {
	switch s {
	case None:
		return "NONE"
	case Scheduled:
		return "SCHEDULED"
	case Running:
		return "RUNNING"
	case Done:
		return "DONE"
	default:
		return fmt.Sprintf("UNKNOWN(%#x)", uint32(s))
	}
}
