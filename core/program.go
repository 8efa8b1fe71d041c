package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrBadProgram means a program image could not be parsed.
var ErrBadProgram = errors.New("bad program image")

// Action is what a core does with the argument block once its cycles are
// spent.
type Action string

const (
	// ActionNone finishes without touching local memory.
	ActionNone Action = "none"

	// ActionEcho copies the argument payload to local memory at offset 0.
	ActionEcho Action = "echo"

	// ActionSum adds every 32-bit word of every argument and stores the sum
	// at local offset 0.
	ActionSum Action = "sum"

	// ActionHang never finishes. The core stays RUNNING.
	ActionHang Action = "hang"

	// ActionStall never begins. The core stays SCHEDULED.
	ActionStall Action = "stall"
)

func (a Action) valid() bool {
	switch a {
	case ActionNone, ActionEcho, ActionSum, ActionHang, ActionStall:
		return true
	}
	return false
}

// Program is a program image of the simulated core.
//
//	name: argsum
//	cycles: 16
//	action: sum
type Program struct {
	Name   string `yaml:"name"`
	Cycles int    `yaml:"cycles"`
	Action Action `yaml:"action"`
}

// ParseProgram decodes a YAML program image. Unknown keys are rejected.
func ParseProgram(data []byte) (Program, error) {
	var p Program

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Program{}, fmt.Errorf("%w: %w", ErrBadProgram, err)
	}

	if p.Action == "" {
		p.Action = ActionNone
	}

	if !p.Action.valid() {
		return Program{}, fmt.Errorf("%w: unknown action %q", ErrBadProgram, p.Action)
	}

	if p.Cycles < 0 {
		return Program{}, fmt.Errorf("%w: negative cycle count %d", ErrBadProgram, p.Cycles)
	}

	return p, nil
}

// LoadProgramFile reads and parses the image at path.
func LoadProgramFile(path string) (Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Program{}, err
	}

	p, err := ParseProgram(data)
	if err != nil {
		return Program{}, fmt.Errorf("%s: %w", path, err)
	}

	if p.Name == "" {
		p.Name = path
	}

	return p, nil
}
