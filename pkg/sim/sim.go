// Package sim provides simulated collaborators: motors that record their
// commands, a world that turns the drivetrain output into a gyro heading and
// a vision offset, and a thread-safe input source.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/gwillem/taskbot/pkg/robot"
)

// Motor records the last command it was given.
type Motor struct {
	mu    sync.Mutex
	out   float64
	stops int
}

func (m *Motor) Set(speed float64) {
	m.mu.Lock()
	m.out = robot.Clamp(speed)
	m.mu.Unlock()
}

func (m *Motor) Stop() {
	m.mu.Lock()
	m.out = 0
	m.stops++
	m.mu.Unlock()
}

func (m *Motor) Output() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.out
}

// Stops counts Stop calls.
func (m *Motor) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// World is a simulated robot on a field with one goal target. It implements
// robot.Hardware, robot.Gyro, robot.Vision and robot.BallSensor.
type World struct {
	// TurnRate is the heading change in degrees per second at full turn.
	TurnRate float64
	// FieldOfView is the camera's horizontal view in degrees.
	FieldOfView float64
	// Period is the time one Flush advances the world by.
	Period time.Duration

	mu       sync.Mutex
	heading  float64
	bearing  float64
	gyroOK   bool
	cameraOK bool
	ball     bool
	enabled  bool
	flushes  int

	motors map[robot.MotorName]*Motor
	robot  *robot.Robot
}

// NewWorld returns a world facing the target, with working sensors.
func NewWorld() *World {
	w := &World{
		TurnRate:    180,
		FieldOfView: 60,
		Period:      20 * time.Millisecond,
		gyroOK:      true,
		cameraOK:    true,
		motors:      make(map[robot.MotorName]*Motor),
	}
	for _, name := range robot.AllMotors() {
		w.motors[name] = &Motor{}
	}
	w.robot = &robot.Robot{
		Drive:   robot.NewDifferentialDrive(w.motors[robot.DriveLeftMotor], w.motors[robot.DriveRightMotor]),
		Shooter: w.motors[robot.ShooterMotor],
		Intake:  robot.Group{w.motors[robot.IntakeMotor], w.motors[robot.Intake2Motor]},
		Indexer: w.motors[robot.IndexerMotor],
		Gate:    w.motors[robot.GateMotor],
		Winch0:  w.motors[robot.Winch0Motor],
		Winch1:  w.motors[robot.Winch1Motor],
		Gyro:    w,
		Vision:  w,
		Balls:   w,
	}
	return w
}

// Robot returns the robot wired to the simulated motors and sensors.
func (w *World) Robot() *robot.Robot { return w.robot }

// Motor returns the simulated motor for name.
func (w *World) Motor(name robot.MotorName) *Motor { return w.motors[name] }

func (w *World) Enable(context.Context) error {
	w.mu.Lock()
	w.enabled = true
	w.mu.Unlock()
	return nil
}

func (w *World) Disable(context.Context) error {
	w.mu.Lock()
	w.enabled = false
	w.mu.Unlock()
	return nil
}

// Flush advances the world by one Period using the current drive commands.
// A running gate moves a waiting ball on.
func (w *World) Flush(context.Context) error {
	turn := w.robot.Drive.Turn()
	gate := w.motors[robot.GateMotor].Output()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
	if !w.enabled {
		return nil
	}
	w.heading += turn * w.TurnRate * w.Period.Seconds()
	if gate > 0 && w.ball {
		w.ball = false
	}
	return nil
}

func (w *World) Close() error { return nil }

// Flushes counts Flush calls.
func (w *World) Flushes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushes
}

func (w *World) Heading() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heading, w.gyroOK
}

// Target reports the goal offset relative to the robot's heading; positive is
// to the right.
func (w *World) Target() (bool, float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	offset := w.bearing - w.heading
	if !w.cameraOK || math.Abs(offset) > w.FieldOfView/2 {
		return false, 0
	}
	return true, offset
}

func (w *World) BallPresent() (bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ball, true
}

func (w *World) SetHeading(deg float64) {
	w.mu.Lock()
	w.heading = deg
	w.mu.Unlock()
}

// SetTarget places the goal at an absolute bearing in degrees.
func (w *World) SetTarget(bearing float64) {
	w.mu.Lock()
	w.bearing = bearing
	w.mu.Unlock()
}

func (w *World) SetGyroAvailable(ok bool) {
	w.mu.Lock()
	w.gyroOK = ok
	w.mu.Unlock()
}

func (w *World) SetCameraAvailable(ok bool) {
	w.mu.Lock()
	w.cameraOK = ok
	w.mu.Unlock()
}

// LoadBall puts a ball at the gate.
func (w *World) LoadBall() {
	w.mu.Lock()
	w.ball = true
	w.mu.Unlock()
}
