package functionobject

import (
	"fmt"

	"foammonitor/dictionary"
)

// ControlMode selects when a function object phase runs.
type ControlMode string

const (
	// TimeStep runs every Interval time steps.
	TimeStep ControlMode = "timeStep"
	// Never disables the phase.
	Never ControlMode = "none"
)

// Control decides from the time index whether a phase runs. It depends on
// nothing local to a partition, so every rank takes the same decision.
type Control struct {
	Mode     ControlMode
	Interval int
}

// EveryStep is the default control.
var EveryStep = Control{Mode: TimeStep, Interval: 1}

// Fires reports whether the phase runs at time index.
func (c Control) Fires(index int) bool {
	switch c.Mode {
	case TimeStep:
		interval := max(c.Interval, 1)
		return index%interval == 0
	default:
		return false
	}
}

// Controls are the host-side scheduling entries of one function object.
type Controls struct {
	Enabled bool
	Execute Control
	Write   Control
}

// ReadControls reads enabled, executeControl, executeInterval, writeControl
// and writeInterval from dict, applying defaults for absent entries.
func ReadControls(dict *dictionary.Dict) (Controls, error) {
	c := Controls{Enabled: true, Execute: EveryStep, Write: EveryStep}

	var err error
	if c.Enabled, err = dictionary.GetOrDefault(dict, "enabled", true); err != nil {
		return Controls{}, err
	}
	if c.Execute, err = readControl(dict, "execute"); err != nil {
		return Controls{}, err
	}
	if c.Write, err = readControl(dict, "write"); err != nil {
		return Controls{}, err
	}
	return c, nil
}

func readControl(dict *dictionary.Dict, prefix string) (Control, error) {
	mode, err := dictionary.GetOrDefault(dict, prefix+"Control", string(TimeStep))
	if err != nil {
		return Control{}, err
	}
	interval, err := dictionary.GetOrDefault(dict, prefix+"Interval", 1)
	if err != nil {
		return Control{}, err
	}

	switch ControlMode(mode) {
	case TimeStep, Never:
	default:
		return Control{}, fmt.Errorf("%sControl %q: must be %q or %q", prefix, mode, TimeStep, Never)
	}
	if interval < 1 {
		return Control{}, fmt.Errorf("%sInterval must be at least 1, got %d", prefix, interval)
	}
	return Control{Mode: ControlMode(mode), Interval: interval}, nil
}
