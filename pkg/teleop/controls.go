package teleop

import (
	"math"

	"github.com/gwillem/taskbot/pkg/actions"
	"github.com/gwillem/taskbot/pkg/autonomous"
	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/task"
)

// The driver holds the primary controller, the operator the secondary one.
func (c *Controller) driver() robot.Gamepad   { return c.snapshot.Driver }
func (c *Controller) operator() robot.Gamepad { return c.snapshot.Operator }

func deadband(v, band float64) float64 {
	if math.Abs(v) < band {
		return 0
	}
	return v
}

// trigger returns the axis value once it reaches the winch trigger
// threshold, else zero.
func (c *Controller) trigger(g robot.Gamepad, a robot.Axis) float64 {
	if v := g.Axis(a); v >= c.k.WinchTriggerThresh {
		return v
	}
	return 0
}

func (c *Controller) registerDefaults() error {
	r, k := c.robot, c.k
	defaults := []task.ResourceSpec{
		{ID: robot.Drivetrain, Default: actions.Drive("arcade drive", r.Drive,
			func() float64 { return -deadband(c.driver().Axis(robot.AxisLeftY), k.Deadband) },
			func() float64 { return deadband(c.driver().Axis(robot.AxisRightX), k.Deadband) },
		)},
		{ID: robot.Shooter, Default: actions.FixedSpeed("manual shooter", robot.Shooter, r.Shooter, func() float64 {
			switch op := c.operator(); {
			case op.Pressed(robot.ButtonY):
				return k.ShooterSpeed
			case op.Pressed(robot.ButtonA):
				return k.ShooterReverseSpeed
			}
			return 0
		})},
		{ID: robot.Intake, Default: actions.FixedSpeed("manual intake", robot.Intake, r.Intake, func() float64 {
			op := c.operator()
			if op.Pressed(robot.ButtonRightBumper) || c.driver().Pressed(robot.ButtonX) {
				return k.IntakeSpeed
			}
			return c.trigger(op, robot.AxisRightTrigger) * -float64(k.IntakeDir)
		})},
		{ID: robot.Indexer, Default: actions.FixedSpeed("manual indexer", robot.Indexer, r.Indexer, func() float64 {
			op := c.operator()
			if op.Pressed(robot.ButtonLeftBumper) || c.driver().Pressed(robot.ButtonX) {
				return k.IndexerSpeed
			}
			return c.trigger(op, robot.AxisLeftTrigger) * -float64(k.IndexerDir)
		})},
		{ID: robot.Gate, Default: actions.SensoredGate(r.Gate, r.Balls,
			func() float64 {
				switch op := c.operator(); {
				case op.Pressed(robot.ButtonX):
					return k.GateSpeed
				case op.Pressed(robot.ButtonB):
					return -k.GateSpeed
				case op.Pressed(robot.ButtonLeftBumper):
					return k.GateLoadSpeed
				}
				return 0
			},
			func() bool { return c.operator().Pressed(robot.ButtonLeftBumper) },
		)},
		{ID: robot.Winch0, Default: actions.Idle(robot.Winch0, r.Winch0)},
		{ID: robot.Winch1, Default: actions.Idle(robot.Winch1, r.Winch1)},
	}
	for _, rs := range defaults {
		if err := c.sched.Register(rs); err != nil {
			return err
		}
	}
	return nil
}

// bind declares the controller bindings. Order matters: when two bindings
// want a resource in the same cycle the later one wins.
func (c *Controller) bind() error {
	r, k := c.robot, c.k

	pressed := func(name string, pad func() robot.Gamepad, b robot.Button) *task.Condition {
		return task.NewCondition(name, func() bool { return pad().Pressed(b) })
	}
	endgame := task.NewCondition("endgame", func() bool { return c.endgame })
	leftTrigger := task.NewCondition("driver left trigger", func() bool {
		return c.driver().Axis(robot.AxisLeftTrigger) >= k.WinchTriggerThresh
	})
	rightTrigger := task.NewCondition("driver right trigger", func() bool {
		return c.driver().Axis(robot.AxisRightTrigger) >= k.WinchTriggerThresh
	})

	// Probe every factory so a malformed composite fails at startup.
	factories := []struct {
		name string
		cond *task.Condition
		mode task.Mode
		f    task.Factory
	}{
		{"shoot", pressed("driver right bumper", c.driver, robot.ButtonRightBumper), task.OnRisingEdgeHold,
			func() (*task.Task, error) { return actions.CompositeShoot(r, k, 0) }},
		{"winch deploy", endgame.And(pressed("driver b", c.driver, robot.ButtonB)), task.OnRisingEdgeHold,
			func() (*task.Task, error) { return actions.WinchDeploy(r, k) }},
		{"winch0 manual", endgame.And(leftTrigger), task.WhileTrue,
			func() (*task.Task, error) {
				return actions.FixedSpeed("winch0 manual", robot.Winch0, r.Winch0, func() float64 {
					return float64(k.WinchDir) * c.driver().Axis(robot.AxisLeftTrigger)
				}), nil
			}},
		{"winch1 manual", endgame.And(rightTrigger), task.WhileTrue,
			func() (*task.Task, error) {
				return actions.FixedSpeed("winch1 manual", robot.Winch1, r.Winch1, func() float64 {
					return float64(k.WinchDir) * c.driver().Axis(robot.AxisRightTrigger)
				}), nil
			}},
		{"vision line-up", pressed("driver left bumper", c.driver, robot.ButtonLeftBumper), task.OnRisingEdgeHold,
			func() (*task.Task, error) { return autonomous.VisionLineUp(r, k), nil }},
		{"cancel all", pressed("operator back", c.operator, robot.ButtonBack), task.OnRisingEdgeOnce,
			func() (*task.Task, error) {
				return task.Instant("cancel all", func(task.Cycle) { c.sched.CancelAll() }), nil
			}},
	}
	for _, b := range factories {
		if _, err := b.f(); err != nil {
			return err
		}
		c.sched.Bind(b.name, b.cond, b.mode, b.f)
	}
	return nil
}
