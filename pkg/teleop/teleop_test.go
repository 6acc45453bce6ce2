package teleop

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/taskbot/pkg/autonomous"
	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/sim"
	"github.com/gwillem/taskbot/pkg/task"
)

var epoch = time.Date(2020, 3, 7, 9, 0, 0, 0, time.UTC)

type harness struct {
	t     *testing.T
	c     *Controller
	world *sim.World
	in    *sim.Inputs
	k     *robot.Constants
	reg   *prometheus.Registry
	ticks int
	last  State
}

func newHarness(t *testing.T, k *robot.Constants, routine string) *harness {
	t.Helper()
	w := sim.NewWorld()
	in := sim.NewInputs()
	reg := prometheus.NewRegistry()
	c, err := NewController(Config{
		Robot:      w.Robot(),
		Hardware:   w,
		Inputs:     in,
		Constants:  k,
		Chooser:    robot.StaticChooser(routine),
		Registerer: reg,
	})
	require.NoError(t, err)
	return &harness{t: t, c: c, world: w, in: in, k: k, reg: reg}
}

func (h *harness) run(n int) State {
	for range n {
		h.c.step(context.Background(), epoch.Add(time.Duration(h.ticks)*h.k.Period()))
		h.ticks++
		h.last = <-h.c.States()
	}
	return h.last
}

func TestNewController_RequiresCollaborators(t *testing.T) {
	_, err := NewController(Config{})
	assert.ErrorIs(t, err, ErrMissingRobot)
}

func TestAutonomous_RunsChosenRoutineIgnoringInputs(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), autonomous.Backup2s)
	h.in.Press(sim.Driver, robot.ButtonRightBumper, true)
	h.in.SetAxis(sim.Driver, robot.AxisLeftY, -1)

	h.c.StartAutonomous()
	s := h.run(10)
	assert.Equal(t, PhaseAutonomous, s.Phase)
	assert.Equal(t, autonomous.Backup2s, s.Routine)
	assert.Equal(t, "drive -0.30 for 2s", s.Owners[robot.Drivetrain])
	assert.Equal(t, -0.3, s.Outputs[robot.Drivetrain])
	assert.Equal(t, "manual shooter", s.Owners[robot.Shooter], "driver bindings are ignored")
	assert.Zero(t, s.Outputs[robot.Shooter])

	s = h.run(100)
	assert.Equal(t, "arcade drive", s.Owners[robot.Drivetrain])
	assert.Zero(t, s.Outputs[robot.Drivetrain], "sticks read as centered")
}

func TestAutonomous_UnknownChoiceRunsDefault(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "no such routine")
	h.c.StartAutonomous()
	s := h.run(1)
	assert.Equal(t, autonomous.PowerPortVision, s.Routine)
	assert.Equal(t, autonomous.PowerPortVision, s.Owners[robot.Drivetrain])
}

func TestPhases(t *testing.T) {
	k := robot.DefaultConstants()
	k.AutoDuration = time.Second
	k.TeleopDuration = 2 * time.Second
	h := newHarness(t, k, autonomous.NoAuto)

	s := h.run(1)
	assert.Equal(t, PhaseDisabled, s.Phase)

	h.c.StartAutonomous()
	s = h.run(1)
	assert.Equal(t, PhaseAutonomous, s.Phase)
	assert.Equal(t, "no auto", s.Owners[robot.Drivetrain])
	assert.Equal(t, time.Second, s.Remaining)

	s = h.run(50)
	assert.Equal(t, PhaseTeleop, s.Phase)
	assert.Equal(t, "arcade drive", s.Owners[robot.Drivetrain], "routine cancelled on phase change")
	assert.Empty(t, s.Routine)

	s = h.run(100)
	assert.Equal(t, PhaseDisabled, s.Phase)
	assert.Equal(t, PhaseDisabled, h.c.Phase())
	assert.Zero(t, s.Remaining)
}

func TestTeleop_ShootWhileHeld(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	h.c.StartTeleop()
	h.run(1)

	h.in.Press(sim.Driver, robot.ButtonRightBumper, true)
	s := h.run(1)
	for _, res := range []task.Resource{robot.Shooter, robot.Gate, robot.Indexer, robot.Intake} {
		assert.Equal(t, "composite shoot", s.Owners[res], res)
	}
	assert.Equal(t, h.k.ShooterSpeed, s.Outputs[robot.Shooter])
	assert.Zero(t, s.Outputs[robot.Gate], "spinning up")

	s = h.run(60)
	assert.Equal(t, h.k.GateSpeed, s.Outputs[robot.Gate])

	h.in.Press(sim.Driver, robot.ButtonRightBumper, false)
	s = h.run(1)
	assert.Equal(t, "manual shooter", s.Owners[robot.Shooter])
	assert.Zero(t, s.Outputs[robot.Shooter])
	assert.Zero(t, s.Outputs[robot.Gate])
}

func TestTeleop_DefaultsFollowControllers(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	h.c.StartTeleop()

	h.in.SetAxis(sim.Driver, robot.AxisLeftY, -0.5)
	h.in.Press(sim.Operator, robot.ButtonY, true)
	h.in.SetAxis(sim.Operator, robot.AxisRightTrigger, 0.5)
	s := h.run(1)
	assert.Equal(t, 0.5, s.Outputs[robot.Drivetrain])
	assert.Equal(t, h.k.ShooterSpeed, s.Outputs[robot.Shooter])
	assert.Equal(t, -0.5, s.Outputs[robot.Intake])

	h.in.SetAxis(sim.Driver, robot.AxisLeftY, 0.05)
	h.in.Press(sim.Operator, robot.ButtonY, false)
	h.in.Press(sim.Operator, robot.ButtonA, true)
	h.in.SetAxis(sim.Operator, robot.AxisRightTrigger, 0.1)
	s = h.run(1)
	assert.Zero(t, s.Outputs[robot.Drivetrain], "inside the deadband")
	assert.Equal(t, h.k.ShooterReverseSpeed, s.Outputs[robot.Shooter])
	assert.Zero(t, s.Outputs[robot.Intake], "below the trigger threshold")

	h.in.Press(sim.Driver, robot.ButtonX, true)
	s = h.run(1)
	assert.Equal(t, h.k.IntakeSpeed, s.Outputs[robot.Intake])
	assert.Equal(t, h.k.IndexerSpeed, s.Outputs[robot.Indexer])
}

func TestTeleop_GateLoadsUntilBallSeen(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	h.c.StartTeleop()
	h.in.Press(sim.Operator, robot.ButtonLeftBumper, true)

	s := h.run(2)
	assert.Equal(t, h.k.GateLoadSpeed, s.Outputs[robot.Gate])
	assert.Equal(t, h.k.IndexerSpeed, s.Outputs[robot.Indexer])

	h.world.LoadBall()
	s = h.run(3)
	assert.Zero(t, s.Outputs[robot.Gate], "ball held at the gate")

	h.in.Press(sim.Operator, robot.ButtonLeftBumper, false)
	h.in.Press(sim.Operator, robot.ButtonX, true)
	s = h.run(1)
	assert.Equal(t, h.k.GateSpeed, s.Outputs[robot.Gate], "unsensored gate feeds the ball")
}

func endgameConstants() *robot.Constants {
	k := robot.DefaultConstants()
	k.TeleopDuration = 3 * time.Second
	k.EndgameWindow = time.Second
	return k
}

func TestTeleop_WinchDeployOnlyInEndgame(t *testing.T) {
	h := newHarness(t, endgameConstants(), "")
	h.c.StartTeleop()
	h.in.Press(sim.Driver, robot.ButtonB, true)

	s := h.run(100)
	assert.False(t, s.Endgame)
	assert.Equal(t, "idle winch0", s.Owners[robot.Winch0])

	s = h.run(1)
	assert.True(t, s.Endgame)
	assert.Equal(t, "winch deploy", s.Owners[robot.Winch0])
	assert.Equal(t, "winch deploy", s.Owners[robot.Winch1])
	assert.Equal(t, h.k.WinchDeploySpeed, s.Outputs[robot.Winch1])

	h.in.Press(sim.Driver, robot.ButtonB, false)
	s = h.run(1)
	assert.Equal(t, "idle winch1", s.Owners[robot.Winch1], "released before the deploy time")
}

func TestTeleop_LaterBindingWinsWinch(t *testing.T) {
	h := newHarness(t, endgameConstants(), "")
	h.c.StartTeleop()
	h.run(100)

	h.in.Press(sim.Driver, robot.ButtonB, true)
	h.in.SetAxis(sim.Driver, robot.AxisLeftTrigger, 0.5)
	for range 5 {
		s := h.run(1)
		assert.Equal(t, "winch0 manual", s.Owners[robot.Winch0])
		assert.Equal(t, 0.5, s.Outputs[robot.Winch0])
		assert.Equal(t, "idle winch1", s.Owners[robot.Winch1], "deploy evicted as a whole")
		assert.Zero(t, s.Outputs[robot.Winch1])
	}
}

func TestTeleop_CancelAll(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	h.c.StartTeleop()
	h.run(1)

	h.in.Press(sim.Driver, robot.ButtonRightBumper, true)
	h.in.Press(sim.Driver, robot.ButtonLeftBumper, true)
	s := h.run(1)
	assert.Equal(t, "composite shoot", s.Owners[robot.Shooter])
	assert.Equal(t, "vision line-up", s.Owners[robot.Drivetrain])

	h.in.Press(sim.Operator, robot.ButtonBack, true)
	s = h.run(1)
	assert.Equal(t, "manual shooter", s.Owners[robot.Shooter])
	assert.Equal(t, "arcade drive", s.Owners[robot.Drivetrain])

	s = h.run(10)
	assert.Equal(t, "manual shooter", s.Owners[robot.Shooter], "held buttons need a fresh press")

	h.in.Press(sim.Driver, robot.ButtonRightBumper, false)
	h.run(1)
	h.in.Press(sim.Driver, robot.ButtonRightBumper, true)
	s = h.run(1)
	assert.Equal(t, "composite shoot", s.Owners[robot.Shooter])
}

func TestDisable_CancelsExplicitTasks(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	h.c.StartTeleop()
	h.in.Press(sim.Driver, robot.ButtonRightBumper, true)
	s := h.run(5)
	assert.Equal(t, "composite shoot", s.Owners[robot.Shooter])

	h.c.Disable()
	s = h.run(1)
	assert.Equal(t, PhaseDisabled, s.Phase)
	assert.Equal(t, "manual shooter", s.Owners[robot.Shooter])
	assert.Zero(t, s.Outputs[robot.Shooter])
}

func TestController_LogsAndMetrics(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), autonomous.Forward2s)
	h.c.StartAutonomous()
	h.run(20)

	var logs []string
	for len(h.c.Logs()) > 0 {
		logs = append(logs, <-h.c.Logs())
	}
	require.NotEmpty(t, logs)
	assert.Contains(t, strings.Join(logs, "\n"), "phase changed")
	assert.Contains(t, strings.Join(logs, "\n"), "routine=\"Forward 2s Autonomous\"")

	families, err := h.reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if m.GetCounter() != nil {
				values[f.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 20.0, values["taskbot_scheduler_cycles_total"])
	assert.Equal(t, 1.0, values["taskbot_scheduler_installs_total"])
}

func TestStart_RunsUntilCancelled(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.c.Start(ctx) }()

	select {
	case s := <-h.c.States():
		assert.Equal(t, PhaseDisabled, s.Phase)
	case <-time.After(2 * time.Second):
		t.Fatal("no state from the control loop")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("control loop did not stop")
	}
	assert.Positive(t, h.world.Flushes())
}

func TestStep_SamplesSensorsOncePerCycle(t *testing.T) {
	h := newHarness(t, robot.DefaultConstants(), "")
	gyro := h.c.robot.Gyro
	_, ok := gyro.Heading()
	assert.False(t, ok, "nothing read before the first cycle")

	h.run(1)
	h.world.SetHeading(42)
	deg, ok := gyro.Heading()
	require.True(t, ok)
	assert.Zero(t, deg, "a change after sampling waits for the next cycle")

	h.run(1)
	deg, _ = gyro.Heading()
	assert.Equal(t, 42.0, deg)
}

func TestController_PeriodFollowsHz(t *testing.T) {
	w := sim.NewWorld()
	c, err := NewController(Config{Robot: w.Robot(), Hardware: w, Inputs: sim.NewInputs()})
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, c.Period(), "constants loop rate by default")

	w = sim.NewWorld()
	c, err = NewController(Config{Robot: w.Robot(), Hardware: w, Inputs: sim.NewInputs(), Hz: 100})
	require.NoError(t, err)
	assert.Equal(t, 100, c.Hz())
	assert.Equal(t, 10*time.Millisecond, c.Period())
}
