package actions

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/sim"
	"github.com/gwillem/taskbot/pkg/task"
)

var epoch = time.Date(2020, 3, 7, 9, 0, 0, 0, time.UTC)

type rig struct {
	t     *testing.T
	world *sim.World
	robot *robot.Robot
	k     *robot.Constants
	sched *task.Scheduler
	ticks int
}

func newRig(t *testing.T) *rig {
	t.Helper()
	w := sim.NewWorld()
	require.NoError(t, w.Enable(context.Background()))
	r := w.Robot()
	s := task.NewScheduler(task.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, s.Register(task.ResourceSpec{
		ID:      robot.Drivetrain,
		Default: Drive("idle drive", r.Drive, Const(0), Const(0)),
	}))
	for _, res := range robot.AllResources() {
		if res == robot.Drivetrain {
			continue
		}
		require.NoError(t, s.Register(task.ResourceSpec{ID: res, Default: Idle(res, r.Actuator(res))}))
	}
	return &rig{t: t, world: w, robot: r, k: robot.DefaultConstants(), sched: s}
}

// run ticks the scheduler and the world n times.
func (g *rig) run(n int) {
	for range n {
		g.sched.Tick(epoch.Add(time.Duration(g.ticks) * g.world.Period))
		require.NoError(g.t, g.world.Flush(context.Background()))
		g.ticks++
	}
}

// runUntilDone ticks until t stops running or limit ticks pass, and returns
// the number of ticks taken.
func (g *rig) runUntilDone(t *task.Task, limit int) int {
	for i := 1; i <= limit; i++ {
		g.run(1)
		if !g.sched.IsRunning(t) {
			return i
		}
	}
	return -1
}

func (g *rig) out(name robot.MotorName) float64 {
	return g.world.Motor(name).Output()
}

func TestCompositeShoot_SpinsUpBeforeFeeding(t *testing.T) {
	g := newRig(t)
	shoot, err := CompositeShoot(g.robot, g.k, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, task.NewRequirements(robot.Shooter, robot.Gate, robot.Indexer, robot.Intake), shoot.Requires())
	require.NoError(t, g.sched.Schedule(shoot))

	g.run(10)
	assert.Equal(t, g.k.ShooterSpeed, g.out(robot.ShooterMotor))
	assert.Zero(t, g.out(robot.GateMotor), "no feeding during spin-up")
	assert.Zero(t, g.out(robot.IndexerMotor))

	g.run(50)
	assert.Equal(t, g.k.ShooterSpeed, g.out(robot.ShooterMotor))
	assert.Equal(t, g.k.GateSpeed, g.out(robot.GateMotor))
	assert.Equal(t, g.k.IndexerSpeed, g.out(robot.IndexerMotor))
	assert.Equal(t, g.k.IntakeSpeed, g.out(robot.IntakeMotor))
	assert.Equal(t, g.k.IntakeSpeed, g.out(robot.Intake2Motor))

	g.run(45)
	assert.False(t, g.sched.IsRunning(shoot))
	assert.Equal(t, task.Finished, shoot.State())
	for _, m := range []robot.MotorName{robot.ShooterMotor, robot.GateMotor, robot.IndexerMotor, robot.IntakeMotor} {
		assert.Zero(t, g.out(m), "%s back to idle", m)
	}
}

func TestCompositeShoot_Unbounded(t *testing.T) {
	g := newRig(t)
	shoot, err := CompositeShoot(g.robot, g.k, 0)
	require.NoError(t, err)
	assert.Equal(t, task.KindParallel, shoot.Kind())
	require.NoError(t, g.sched.Schedule(shoot))

	g.run(500)
	assert.True(t, g.sched.IsRunning(shoot))
	g.sched.Cancel(shoot)
	assert.Equal(t, task.Interrupted, shoot.State())
	assert.Equal(t, 1, g.world.Motor(robot.ShooterMotor).Stops())
}

func TestSensoredGate(t *testing.T) {
	g := newRig(t)
	sensored := true
	gate := SensoredGate(g.robot.Gate, g.world, Const(0.4), func() bool { return sensored })
	require.NoError(t, g.sched.Schedule(gate))

	g.world.LoadBall()
	g.run(3)
	assert.Zero(t, g.out(robot.GateMotor), "holds the loaded ball")
	present, _ := g.world.BallPresent()
	assert.True(t, present)

	sensored = false
	g.run(1)
	assert.Equal(t, 0.4, g.out(robot.GateMotor))
	present, _ = g.world.BallPresent()
	assert.False(t, present, "gate fed the ball on")

	sensored = true
	g.run(1)
	assert.Equal(t, 0.4, g.out(robot.GateMotor), "no ball, keep loading")
	assert.True(t, g.sched.IsRunning(gate))

	g.sched.Cancel(gate)
	assert.Zero(t, g.out(robot.GateMotor))
}

func TestVisionHighGoal_Aligns(t *testing.T) {
	g := newRig(t)
	g.world.SetTarget(10)
	align := VisionHighGoal(g.robot.Drive, g.world, 0, g.k)
	require.NoError(t, g.sched.Schedule(align))

	n := g.runUntilDone(align, 200)
	require.Positive(t, n)
	assert.Less(t, n, 50, "aligned well before the timeout")
	assert.Equal(t, task.Finished, align.State())
	heading, _ := g.world.Heading()
	assert.InDelta(t, 10, heading, g.k.VisionTolerance)
}

func TestVisionHighGoal_NoTargetTimesOut(t *testing.T) {
	g := newRig(t)
	g.world.SetCameraAvailable(false)
	align := VisionHighGoal(g.robot.Drive, g.world, g.k.VisionSpeed, g.k)
	require.NoError(t, g.sched.Schedule(align))

	g.run(150)
	assert.True(t, g.sched.IsRunning(align))
	assert.Zero(t, g.robot.Drive.Output(), "holds still without a target")
	g.run(1)
	assert.False(t, g.sched.IsRunning(align))
	assert.Equal(t, task.Finished, align.State())
}

func TestTurnToHeading_FromCapturedHeading(t *testing.T) {
	g := newRig(t)
	g.world.SetHeading(30)
	var cell HeadingCell
	turn := task.Sequence("capture then turn",
		CaptureHeading(g.world, &cell),
		TurnToHeading(g.robot.Drive, g.world, cell.Plus(90), g.k),
	)
	require.NoError(t, g.sched.Schedule(turn))

	n := g.runUntilDone(turn, 200)
	require.Positive(t, n)
	assert.Less(t, n, 150)
	captured, ok := cell.Load()
	require.True(t, ok)
	assert.Equal(t, 30.0, captured)
	heading, _ := g.world.Heading()
	assert.InDelta(t, 120, heading, g.k.TurnTolerance)
	assert.Zero(t, g.robot.Drive.Turn(), "idle drive resumes")
}

func TestTurnToHeading_NoGyroTimesOut(t *testing.T) {
	g := newRig(t)
	g.world.SetGyroAvailable(false)
	var cell HeadingCell
	turn := task.Sequence("capture then turn",
		CaptureHeading(g.world, &cell),
		TurnToHeading(g.robot.Drive, g.world, cell.Plus(90), g.k),
	)
	require.NoError(t, g.sched.Schedule(turn))

	g.run(100)
	_, ok := cell.Load()
	assert.False(t, ok)
	assert.True(t, g.sched.IsRunning(turn))
	assert.Zero(t, g.robot.Drive.Turn())

	g.run(60)
	assert.False(t, g.sched.IsRunning(turn))
}

// climbingGyro reports a higher heading on every read.
type climbingGyro struct{ deg float64 }

func (g *climbingGyro) Heading() (float64, bool) {
	g.deg++
	return g.deg, true
}

func TestCaptureHeading_ReadsOneValuePerCycle(t *testing.T) {
	g := newRig(t)
	sensors := robot.NewSensorSnapshot(&climbingGyro{}, nil, nil)
	var a, b HeadingCell
	both := task.Must(task.Parallel("capture twice",
		CaptureHeading(sensors, &a),
		CaptureHeading(sensors, &b),
	))
	require.NoError(t, g.sched.Schedule(both))

	sensors.Sample()
	g.run(1)
	ha, ok := a.Load()
	require.True(t, ok)
	hb, ok := b.Load()
	require.True(t, ok)
	assert.Equal(t, ha, hb)
	assert.Equal(t, 1.0, ha)
}

func TestTurnCommand(t *testing.T) {
	k := robot.DefaultConstants()
	tests := []struct {
		err, want float64
	}{
		{90, k.TurnMaxSpeed},
		{-90, -k.TurnMaxSpeed},
		{10, 10 * k.TurnKP},
		{2, k.TurnMinSpeed},
		{-2, -k.TurnMinSpeed},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, turnCommand(tt.err, k), 1e-9, "err %v", tt.err)
	}
}

func TestHeadingCell(t *testing.T) {
	var c HeadingCell
	_, ok := c.Plus(45)()
	assert.False(t, ok)
	c.Store(-10)
	v, ok := c.Plus(45)()
	assert.True(t, ok)
	assert.Equal(t, 35.0, v)
}

func TestDriveFor(t *testing.T) {
	g := newRig(t)
	d := DriveFor(g.robot.Drive, -0.5, time.Second)
	require.NoError(t, g.sched.Schedule(d))

	g.run(50)
	assert.Equal(t, -0.5, g.robot.Drive.Output())
	assert.Equal(t, -0.5, g.out(robot.DriveLeftMotor))
	g.run(1)
	assert.False(t, g.sched.IsRunning(d))
	assert.Zero(t, g.robot.Drive.Output())
}

func TestWinchDeploy(t *testing.T) {
	g := newRig(t)
	w, err := WinchDeploy(g.robot, g.k)
	require.NoError(t, err)
	require.NoError(t, g.sched.Schedule(w))

	g.run(10)
	assert.Equal(t, g.k.WinchDeploySpeed, g.out(robot.Winch0Motor))
	assert.Equal(t, g.k.WinchDeploySpeed, g.out(robot.Winch1Motor))
	g.run(241)
	assert.False(t, g.sched.IsRunning(w))
	assert.Zero(t, g.out(robot.Winch0Motor))
}
