package sim

import (
	"maps"
	"sync"

	"github.com/gwillem/taskbot/pkg/robot"
)

// Pad selects one of the two controllers.
type Pad int

const (
	Operator Pad = iota
	Driver
)

func (p Pad) String() string {
	if p == Driver {
		return "driver"
	}
	return "operator"
}

// Inputs is an InputSource whose state is set from another goroutine, such
// as a keyboard handler.
type Inputs struct {
	mu   sync.Mutex
	pads [2]robot.Gamepad
}

func NewInputs() *Inputs {
	in := &Inputs{}
	for i := range in.pads {
		in.pads[i] = robot.Gamepad{
			Buttons: make(map[robot.Button]bool),
			Axes:    make(map[robot.Axis]float64),
		}
	}
	return in
}

func (in *Inputs) Press(p Pad, b robot.Button, down bool) {
	in.mu.Lock()
	in.pads[p].Buttons[b] = down
	in.mu.Unlock()
}

// Toggle flips a button and returns its new state.
func (in *Inputs) Toggle(p Pad, b robot.Button) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	v := !in.pads[p].Buttons[b]
	in.pads[p].Buttons[b] = v
	return v
}

func (in *Inputs) SetAxis(p Pad, a robot.Axis, v float64) {
	in.mu.Lock()
	in.pads[p].Axes[a] = v
	in.mu.Unlock()
}

// Reset releases every button and centers every axis.
func (in *Inputs) Reset() {
	in.mu.Lock()
	for i := range in.pads {
		clear(in.pads[i].Buttons)
		clear(in.pads[i].Axes)
	}
	in.mu.Unlock()
}

// Sample returns a copy of the current state.
func (in *Inputs) Sample() robot.Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return robot.Snapshot{
		Operator: clonePad(in.pads[Operator]),
		Driver:   clonePad(in.pads[Driver]),
	}
}

func clonePad(g robot.Gamepad) robot.Gamepad {
	return robot.Gamepad{Buttons: maps.Clone(g.Buttons), Axes: maps.Clone(g.Axes)}
}
