// Package teleop runs the robot's match loop: it samples the controllers once
// per cycle, ticks the task scheduler and flushes commands to the hardware,
// moving through the disabled, autonomous and teleop phases.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/gwillem/taskbot/pkg/autonomous"
	"github.com/gwillem/taskbot/pkg/robot"
	"github.com/gwillem/taskbot/pkg/task"
)

// Phase is the match phase.
type Phase int

const (
	PhaseDisabled Phase = iota
	PhaseAutonomous
	PhaseTeleop
)

func (p Phase) String() string {
	switch p {
	case PhaseAutonomous:
		return "autonomous"
	case PhaseTeleop:
		return "teleop"
	default:
		return "disabled"
	}
}

// State represents the robot after one control cycle.
type State struct {
	Phase     Phase
	Cycle     uint64
	Routine   string
	Outputs   map[task.Resource]float64
	Owners    map[task.Resource]string
	Remaining time.Duration
	Endgame   bool
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Robot     *robot.Robot
	Hardware  robot.Hardware
	Inputs    robot.InputSource
	Constants *robot.Constants // DefaultConstants if nil
	Routines  *autonomous.Registry
	Chooser   robot.Chooser
	// Registerer receives the scheduler metrics. Metrics are off if nil.
	Registerer prometheus.Registerer
	LogLevel   slog.Leveler
	Hz         int // Constants.LoopHz if zero
}

// Controller manages the match control loop.
type Controller struct {
	robot    *robot.Robot
	sensors  *robot.SensorSnapshot
	hw       robot.Hardware
	inputs   robot.InputSource
	k        *robot.Constants
	routines *autonomous.Registry
	chooser  robot.Chooser
	sched    *task.Scheduler
	log      *slog.Logger
	hz       int

	// Owned by the loop goroutine.
	snapshot   robot.Snapshot
	endgame    bool
	phaseStart time.Time
	routine    string
	flushErrs  rate.Sometimes

	mu      sync.RWMutex
	phase   Phase
	request *Phase
	running bool
	stateCh chan State
	logCh   chan string
}

var (
	ErrAlreadyRunning = errors.New("already running")
	ErrMissingRobot   = errors.New("robot, hardware and inputs are required")
)

// NewController creates a controller with the robot's defaults and bindings
// registered. The robot's sensors are switched to a snapshot the controller
// refreshes at the start of every cycle.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Robot == nil || cfg.Hardware == nil || cfg.Inputs == nil {
		return nil, ErrMissingRobot
	}
	sensors := cfg.Robot.SnapshotSensors()
	if cfg.Constants == nil {
		cfg.Constants = robot.DefaultConstants()
	}
	if cfg.Hz <= 0 {
		cfg.Hz = cfg.Constants.LoopHz
	}
	if cfg.Routines == nil {
		reg, err := autonomous.Routines(cfg.Robot, cfg.Constants)
		if err != nil {
			return nil, fmt.Errorf("register routines: %w", err)
		}
		cfg.Routines = reg
	}
	if cfg.LogLevel == nil {
		cfg.LogLevel = slog.LevelInfo
	}

	c := &Controller{
		robot:     cfg.Robot,
		sensors:   sensors,
		hw:        cfg.Hardware,
		inputs:    cfg.Inputs,
		k:         cfg.Constants,
		routines:  cfg.Routines,
		chooser:   cfg.Chooser,
		hz:        cfg.Hz,
		flushErrs: rate.Sometimes{First: 1, Interval: time.Second},
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 10),
	}
	c.log = slog.New(slog.NewTextHandler(logWriter{c}, &slog.HandlerOptions{Level: cfg.LogLevel}))

	opts := []task.Option{task.WithLogger(c.log)}
	if cfg.Registerer != nil {
		opts = append(opts, task.WithMetrics(task.NewMetrics(cfg.Registerer)))
	}
	c.sched = task.NewScheduler(opts...)
	if err := c.registerDefaults(); err != nil {
		return nil, fmt.Errorf("register defaults: %w", err)
	}
	if err := c.bind(); err != nil {
		return nil, fmt.Errorf("bind controls: %w", err)
	}
	return c, nil
}

// Close closes the hardware.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return c.hw.Close()
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Period is the control cycle length at Hz.
func (c *Controller) Period() time.Duration {
	return time.Second / time.Duration(c.hz)
}

// Routines returns the autonomous routines the chooser can pick from.
func (c *Controller) Routines() *autonomous.Registry {
	return c.routines
}

// Phase returns the current match phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// StartAutonomous requests the autonomous phase. The chooser is read when the
// phase begins on the next cycle.
func (c *Controller) StartAutonomous() { c.requestPhase(PhaseAutonomous) }

// StartTeleop requests the teleop phase.
func (c *Controller) StartTeleop() { c.requestPhase(PhaseTeleop) }

// Disable requests the disabled phase.
func (c *Controller) Disable() { c.requestPhase(PhaseDisabled) }

func (c *Controller) requestPhase(p Phase) {
	c.mu.Lock()
	c.request = &p
	c.mu.Unlock()
}

// Start begins the control loop. It returns when ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.mu.Unlock()

	c.log.Info("control loop started", "hz", c.hz, "routines", len(c.routines.Names()))

	ticker := time.NewTicker(c.Period())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case now := <-ticker.C:
			c.step(ctx, now)
		}
	}
}

func (c *Controller) step(ctx context.Context, now time.Time) {
	c.mu.Lock()
	req := c.request
	c.request = nil
	c.mu.Unlock()
	if req != nil {
		c.enter(ctx, *req, now)
	}

	phase := c.Phase()
	remaining := c.remaining(phase, now)
	switch {
	case phase == PhaseAutonomous && remaining <= 0:
		c.enter(ctx, PhaseTeleop, now)
	case phase == PhaseTeleop && remaining <= 0:
		c.enter(ctx, PhaseDisabled, now)
	}
	phase = c.Phase()
	remaining = c.remaining(phase, now)

	// Only teleop reads the controllers.
	c.snapshot = robot.Snapshot{}
	if phase == PhaseTeleop {
		c.snapshot = c.inputs.Sample()
	}
	c.sensors.Sample()
	c.endgame = phase == PhaseTeleop && remaining <= c.k.EndgameWindow

	c.sched.Tick(now)

	err := c.hw.Flush(ctx)
	if err != nil {
		c.flushErrs.Do(func() {
			c.log.Warn("flush failed", "error", err)
		})
	}
	c.sendState(c.state(phase, remaining, now, err))
}

func (c *Controller) remaining(p Phase, now time.Time) time.Duration {
	switch p {
	case PhaseAutonomous:
		return c.k.AutoDuration - now.Sub(c.phaseStart)
	case PhaseTeleop:
		return c.k.TeleopDuration - now.Sub(c.phaseStart)
	}
	return 0
}

// enter switches phase. Every explicit task is cancelled so each resource
// starts the new phase on its default.
func (c *Controller) enter(ctx context.Context, p Phase, now time.Time) {
	prev := c.Phase()
	c.sched.CancelAll()

	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
	c.phaseStart = now
	c.routine = ""

	switch {
	case p == PhaseDisabled && prev != PhaseDisabled:
		if err := c.hw.Disable(ctx); err != nil {
			c.log.Warn("disable hardware", "error", err)
		}
	case p != PhaseDisabled && prev == PhaseDisabled:
		if err := c.hw.Enable(ctx); err != nil {
			c.log.Warn("enable hardware", "error", err)
		}
	}
	c.log.Info("phase changed", "from", prev, "to", p)

	if p == PhaseAutonomous {
		c.startRoutine()
	}
}

func (c *Controller) startRoutine() {
	var selected string
	if c.chooser != nil {
		selected = c.chooser.Selected()
	}
	name := c.routines.Resolve(selected)
	if selected != "" && name != selected {
		c.log.Warn("unknown routine, using default", "selected", selected, "routine", name)
	}
	t, err := c.routines.Build(name)
	if err != nil {
		c.log.Error("build routine", "routine", name, "error", err)
		return
	}
	if err := c.sched.Schedule(t); err != nil {
		c.log.Error("schedule routine", "routine", name, "error", err)
		return
	}
	c.routine = name
	c.log.Info("autonomous routine", "routine", name)
}

func (c *Controller) state(p Phase, remaining time.Duration, now time.Time, err error) State {
	s := State{
		Phase:     p,
		Cycle:     c.sched.Cycle().Index,
		Routine:   c.routine,
		Outputs:   make(map[task.Resource]float64),
		Owners:    make(map[task.Resource]string),
		Remaining: max(remaining, 0),
		Endgame:   c.endgame,
		Timestamp: now,
		Error:     err,
	}
	for _, res := range c.sched.Resources() {
		if owner := c.sched.Owner(res); owner != nil {
			s.Owners[res] = owner.Name()
		}
		if res == robot.Drivetrain {
			s.Outputs[res] = c.robot.Drive.Output()
			continue
		}
		if o, ok := c.robot.Actuator(res).(robot.Outputter); ok {
			s.Outputs[res] = o.Output()
		}
	}
	return s
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	c.sched.CancelAll()
	if err := c.hw.Disable(context.Background()); err != nil {
		c.log.Warn("disable hardware", "error", err)
	}
	c.log.Info("control loop stopped")
}

// logWriter feeds formatted log records to the log channel.
type logWriter struct{ c *Controller }

func (w logWriter) Write(p []byte) (int, error) {
	select {
	case w.c.logCh <- strings.TrimRight(string(p), "\n"):
	default:
		// Drop if channel full
	}
	return len(p), nil
}
