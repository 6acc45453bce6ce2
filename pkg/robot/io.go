package robot

import (
	"context"

	"github.com/gwillem/taskbot/pkg/task"
)

// Button names a digital gamepad input.
type Button string

const (
	ButtonA           Button = "a"
	ButtonB           Button = "b"
	ButtonX           Button = "x"
	ButtonY           Button = "y"
	ButtonLeftBumper  Button = "left_bumper"
	ButtonRightBumper Button = "right_bumper"
	ButtonBack        Button = "back"
	ButtonStart       Button = "start"
)

// Axis names an analog gamepad input. Sticks are in [-1, 1], triggers in
// [0, 1].
type Axis string

const (
	AxisLeftX        Axis = "left_x"
	AxisLeftY        Axis = "left_y"
	AxisRightX       Axis = "right_x"
	AxisRightY       Axis = "right_y"
	AxisLeftTrigger  Axis = "left_trigger"
	AxisRightTrigger Axis = "right_trigger"
)

// Gamepad is the state of one controller at sample time.
type Gamepad struct {
	Buttons map[Button]bool
	Axes    map[Axis]float64
}

func (g Gamepad) Pressed(b Button) bool { return g.Buttons[b] }

func (g Gamepad) Axis(a Axis) float64 { return g.Axes[a] }

// Snapshot is the input state for one control cycle. It is taken once per
// cycle and shared read-only by every task evaluated in that cycle.
type Snapshot struct {
	Operator Gamepad // secondary controller
	Driver   Gamepad // primary controller
}

// InputSource samples controller state. Sample must not block.
type InputSource interface {
	Sample() Snapshot
}

// Vision reports the horizontal offset in degrees of the goal target. found
// is false when no target is visible or the camera is unavailable.
type Vision interface {
	Target() (found bool, offset float64)
}

// Gyro reports the unwrapped heading in degrees. ok is false when no reading
// is available.
type Gyro interface {
	Heading() (degrees float64, ok bool)
}

// BallSensor reports whether a ball sits at the gate.
type BallSensor interface {
	BallPresent() (present, ok bool)
}

// Actuator accepts a normalized speed command every cycle.
type Actuator interface {
	Set(speed float64)
	Stop()
}

// Outputter is implemented by actuators that can report their last command.
type Outputter interface {
	Output() float64
}

// Chooser returns the name of the operator-selected autonomous routine.
type Chooser interface {
	Selected() string
}

// StaticChooser always selects the same routine.
type StaticChooser string

func (c StaticChooser) Selected() string { return string(c) }

// Hardware is the device side of the robot: it is enabled for a match,
// receives one Flush per control cycle and is closed at exit.
type Hardware interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Flush(ctx context.Context) error
	Close() error
}

// Robot bundles the collaborators the tasks act on.
type Robot struct {
	Drive   *DifferentialDrive
	Shooter Actuator
	Intake  Actuator
	Indexer Actuator
	Gate    Actuator
	Winch0  Actuator
	Winch1  Actuator

	Gyro   Gyro
	Vision Vision
	Balls  BallSensor
}

// Actuator returns the actuator driving r, or nil for the drivetrain and
// unknown resources.
func (r *Robot) Actuator(res task.Resource) Actuator {
	switch res {
	case Shooter:
		return r.Shooter
	case Intake:
		return r.Intake
	case Indexer:
		return r.Indexer
	case Gate:
		return r.Gate
	case Winch0:
		return r.Winch0
	case Winch1:
		return r.Winch1
	}
	return nil
}

// NoSensors is a Vision, Gyro and BallSensor that never has data. Tasks
// gated on it run until their timeout.
type NoSensors struct{}

func (NoSensors) Target() (bool, float64) { return false, 0 }

func (NoSensors) Heading() (float64, bool) { return 0, false }

func (NoSensors) BallPresent() (bool, bool) { return false, false }

// Clamp limits v to [-1, 1].
func Clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

// Group drives several motors with the same command.
type Group []Actuator

func (g Group) Set(speed float64) {
	for _, a := range g {
		a.Set(speed)
	}
}

func (g Group) Stop() {
	for _, a := range g {
		a.Stop()
	}
}

func (g Group) Output() float64 {
	if len(g) == 0 {
		return 0
	}
	if o, ok := g[0].(Outputter); ok {
		return o.Output()
	}
	return 0
}
