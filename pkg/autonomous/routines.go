package autonomous

import (
	"time"

	"github.com/gwillem/taskbot/pkg/actions"
	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/task"
)

const (
	PowerPortVision = "Power Port Vision Autonomous"
	Backup2s        = "Backup 2s Autonomous"
	Forward2s       = "Forward 2s Autonomous"
	ForwardAndShoot = "Forward 4.5s and Shoot"
	NoAuto          = "No auto (DON'T PICK)"
)

// Routines registers the robot's autonomous routines with PowerPortVision as
// the default.
func Routines(r *robot.Robot, k *robot.Constants) (*Registry, error) {
	reg := NewRegistry()
	routines := []struct {
		name string
		f    task.Factory
	}{
		{PowerPortVision, func() (*task.Task, error) { return PowerPortVisionRoutine(r, k) }},
		{Backup2s, func() (*task.Task, error) { return actions.DriveFor(r.Drive, -0.3, 2*time.Second), nil }},
		{Forward2s, func() (*task.Task, error) { return actions.DriveFor(r.Drive, 0.3, 2*time.Second), nil }},
		{ForwardAndShoot, func() (*task.Task, error) { return ForwardAndShootRoutine(r, k) }},
		{NoAuto, func() (*task.Task, error) {
			return actions.Drive("no auto", r.Drive, actions.Const(0), actions.Const(0)), nil
		}},
	}
	for _, rt := range routines {
		if err := reg.Register(rt.name, rt.f); err != nil {
			return nil, err
		}
	}
	if err := reg.SetDefault(PowerPortVision); err != nil {
		return nil, err
	}
	return reg, nil
}

// PowerPortVisionRoutine rocks the robot to drop the intake, lines up on the
// goal, shoots while creeping forward, then backs off and turns around.
func PowerPortVisionRoutine(r *robot.Robot, k *robot.Constants) (*task.Task, error) {
	shoot, err := VisionShoot(r, k)
	if err != nil {
		return nil, err
	}
	var initial actions.HeadingCell
	return task.Sequence(PowerPortVision,
		actions.DriveFor(r.Drive, 0.75, 200*time.Millisecond),
		actions.DriveFor(r.Drive, -0.75, 200*time.Millisecond),
		actions.DriveFor(r.Drive, 0.3, 750*time.Millisecond),
		shoot,
		actions.CaptureHeading(r.Gyro, &initial),
		actions.DriveFor(r.Drive, -0.75, k.AutoBackupTime),
		actions.TurnToHeading(r.Drive, r.Gyro, initial.Plus(180), k),
	), nil
}

// VisionShoot aligns on the goal, then shoots for AutoShootTime while
// driving forward for half a second.
func VisionShoot(r *robot.Robot, k *robot.Constants) (*task.Task, error) {
	shoot, err := actions.CompositeShoot(r, k, k.AutoShootTime)
	if err != nil {
		return nil, err
	}
	approach, err := task.Parallel("approach and shoot",
		actions.DriveFor(r.Drive, 0.3, 500*time.Millisecond),
		shoot,
	)
	if err != nil {
		return nil, err
	}
	return task.Sequence("vision shoot",
		actions.VisionHighGoal(r.Drive, r.Vision, k.VisionSpeed, k),
		approach,
	), nil
}

// VisionLineUp aligns on the goal and drives up to it.
func VisionLineUp(r *robot.Robot, k *robot.Constants) *task.Task {
	return task.Sequence("vision line-up",
		actions.VisionHighGoal(r.Drive, r.Vision, k.VisionSpeed, k),
		actions.DriveFor(r.Drive, 0.3, 500*time.Millisecond),
	)
}

// ForwardAndShootRoutine rocks the intake down, drives up for 3.5 s, shoots
// for 5 s and backs away.
func ForwardAndShootRoutine(r *robot.Robot, k *robot.Constants) (*task.Task, error) {
	approach, err := task.Parallel("approach",
		task.Sequence("rock and drive",
			actions.DriveFor(r.Drive, 0.45, 500*time.Millisecond),
			actions.DriveFor(r.Drive, -0.45, 500*time.Millisecond),
			actions.DriveFor(r.Drive, 0, 1500*time.Millisecond),
			actions.DriveFor(r.Drive, 0.3, 3500*time.Millisecond),
		),
		actions.Idle(robot.Intake, r.Intake),
		actions.Idle(robot.Indexer, r.Indexer),
	)
	if err != nil {
		return nil, err
	}
	shoot, err := actions.CompositeShoot(r, k, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return task.Sequence(ForwardAndShoot,
		task.WithTimeout(approach, 6*time.Second),
		shoot,
		task.Instant("stop feed", func(task.Cycle) {
			r.Intake.Stop()
			r.Indexer.Stop()
		}, robot.Intake, robot.Indexer),
		actions.DriveFor(r.Drive, -0.3, 5*time.Second),
	), nil
}
