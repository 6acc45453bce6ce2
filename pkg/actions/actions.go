// Package actions builds the robot's tasks: driving, running a mechanism at a
// fixed speed, vision alignment, heading turns and the shoot sequence.
package actions

import (
	"fmt"
	"math"
	"time"

	bt "github.com/joeycumines/go-behaviortree"

	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/task"
)

// Const returns a supplier of v.
func Const(v float64) func() float64 {
	return func() float64 { return v }
}

// Drive drives the drivetrain with arcade commands read every cycle. It never
// finishes on its own.
func Drive(name string, d *robot.DifferentialDrive, forward, turn func() float64) *task.Task {
	return task.Leaf(name, task.Hooks{
		Advance:   func(task.Cycle) { d.Arcade(forward(), turn()) },
		Interrupt: func(task.Cycle) { d.Stop() },
	}, robot.Drivetrain)
}

// DriveFor drives straight at forward for dur.
func DriveFor(d *robot.DifferentialDrive, forward float64, dur time.Duration) *task.Task {
	name := fmt.Sprintf("drive %+.2f for %s", forward, dur)
	return task.WithTimeout(Drive(name, d, Const(forward), Const(0)), dur)
}

// FixedSpeed runs one mechanism at the speed read every cycle. It never
// finishes on its own and stops the actuator when interrupted.
func FixedSpeed(name string, res task.Resource, a robot.Actuator, speed func() float64) *task.Task {
	return task.Leaf(name, task.Hooks{
		Advance:   func(task.Cycle) { a.Set(speed()) },
		Interrupt: func(task.Cycle) { a.Stop() },
	}, res)
}

// Idle holds a mechanism at zero.
func Idle(res task.Resource, a robot.Actuator) *task.Task {
	return FixedSpeed("idle "+string(res), res, a, Const(0))
}

// SensoredGate runs the gate at speed. While sensored reports true it holds
// the gate at zero once a ball is seen, so a ball can be loaded up to the
// gate without feeding it to the shooter. A sensor without data never holds.
func SensoredGate(gate robot.Actuator, balls robot.BallSensor, speed func() float64, sensored func() bool) *task.Task {
	hold := bt.New(func([]bt.Node) (bt.Status, error) {
		if !sensored() {
			return bt.Failure, nil
		}
		present, ok := balls.BallPresent()
		if !ok || !present {
			return bt.Failure, nil
		}
		gate.Set(0)
		return bt.Running, nil
	})
	run := bt.New(func([]bt.Node) (bt.Status, error) {
		gate.Set(speed())
		return bt.Running, nil
	})
	return task.Behavior("sensored gate", bt.New(bt.Selector, hold, run), gate.Stop, robot.Gate)
}

// VisionHighGoal drives forward at speed while steering onto the goal target.
// It finishes once the target offset is within tolerance. Without a target
// the robot holds still; the task is bounded by VisionTimeout either way.
func VisionHighGoal(d *robot.DifferentialDrive, v robot.Vision, speed float64, k *robot.Constants) *task.Task {
	var (
		found  bool
		offset float64
	)
	align := task.Leaf("vision high goal", task.Hooks{
		Advance: func(task.Cycle) {
			found, offset = v.Target()
			if !found {
				d.Arcade(0, 0)
				return
			}
			d.Arcade(speed, k.VisionKP*offset*float64(k.VisionSign))
		},
		Done: func(task.Cycle) bool {
			return found && math.Abs(offset) <= k.VisionTolerance
		},
		Interrupt: func(task.Cycle) { d.Stop() },
	}, robot.Drivetrain)
	return task.WithTimeout(align, k.VisionTimeout)
}

// TurnToHeading turns in place until the gyro heading is within tolerance of
// target. Missing gyro or target data holds still; the task is bounded by
// TurnTimeout.
func TurnToHeading(d *robot.DifferentialDrive, g robot.Gyro, target func() (float64, bool), k *robot.Constants) *task.Task {
	var (
		valid bool
		err   float64
	)
	turn := task.Leaf("turn to heading", task.Hooks{
		Advance: func(task.Cycle) {
			heading, hok := g.Heading()
			goal, tok := target()
			valid = hok && tok
			if !valid {
				d.Arcade(0, 0)
				return
			}
			err = goal - heading
			d.Arcade(0, turnCommand(err, k))
		},
		Done: func(task.Cycle) bool {
			return valid && math.Abs(err) <= k.TurnTolerance
		},
		Interrupt: func(task.Cycle) { d.Stop() },
	}, robot.Drivetrain)
	return task.WithTimeout(turn, k.TurnTimeout)
}

func turnCommand(err float64, k *robot.Constants) float64 {
	mag := math.Min(math.Abs(err)*k.TurnKP, k.TurnMaxSpeed)
	mag = math.Max(mag, k.TurnMinSpeed)
	return math.Copysign(mag, err)
}

// HeadingCell holds a heading captured at one point of a sequence for use by a
// later task.
type HeadingCell struct {
	value float64
	set   bool
}

func (c *HeadingCell) Store(deg float64) {
	c.value, c.set = deg, true
}

// Load returns the captured heading; ok is false until something is stored.
func (c *HeadingCell) Load() (deg float64, ok bool) {
	return c.value, c.set
}

// Plus returns a target supplier delta degrees past the captured heading.
func (c *HeadingCell) Plus(delta float64) func() (float64, bool) {
	return func() (float64, bool) {
		v, ok := c.Load()
		return v + delta, ok
	}
}

// CaptureHeading stores the current heading in cell. It takes no cycles and
// requires no resource, so its place in a sequence fixes when the heading is
// read.
func CaptureHeading(g robot.Gyro, cell *HeadingCell) *task.Task {
	return task.Instant("capture heading", func(task.Cycle) {
		if h, ok := g.Heading(); ok {
			cell.Store(h)
		}
	})
}

// CompositeShoot spins the shooter and, after the spin-up delay, feeds balls
// through intake, indexer and gate. A positive d bounds the whole action;
// otherwise it runs until interrupted.
func CompositeShoot(r *robot.Robot, k *robot.Constants, d time.Duration) (*task.Task, error) {
	feed, err := task.Parallel("feed",
		FixedSpeed("feed gate", robot.Gate, r.Gate, Const(k.GateSpeed)),
		FixedSpeed("feed indexer", robot.Indexer, r.Indexer, Const(k.IndexerSpeed)),
		FixedSpeed("feed intake", robot.Intake, r.Intake, Const(k.IntakeSpeed)),
	)
	if err != nil {
		return nil, err
	}
	shoot, err := task.Parallel("composite shoot",
		FixedSpeed("spin shooter", robot.Shooter, r.Shooter, Const(k.ShooterSpeed)),
		task.Sequence("spin up then feed", task.Wait(k.ShooterSpinUp), feed),
	)
	if err != nil {
		return nil, err
	}
	if d > 0 {
		shoot = task.WithTimeout(shoot, d)
	}
	return shoot, nil
}

// WinchDeploy runs both winches at the deploy speed for WinchDeployTime.
func WinchDeploy(r *robot.Robot, k *robot.Constants) (*task.Task, error) {
	deploy, err := task.Parallel("winch deploy",
		FixedSpeed("deploy winch0", robot.Winch0, r.Winch0, Const(k.WinchDeploySpeed)),
		FixedSpeed("deploy winch1", robot.Winch1, r.Winch1, Const(k.WinchDeploySpeed)),
	)
	if err != nil {
		return nil, err
	}
	return task.WithTimeout(deploy, k.WinchDeployTime), nil
}
