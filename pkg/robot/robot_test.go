package robot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	out   float64
	stops int
}

func (r *recorder) Set(v float64)   { r.out = v }
func (r *recorder) Stop()           { r.out = 0; r.stops++ }
func (r *recorder) Output() float64 { return r.out }

func TestArcadeMix(t *testing.T) {
	tests := []struct {
		forward, turn float64
		left, right   float64
	}{
		{0, 0, 0, 0},
		{0.5, 0, 0.5, 0.5},
		{0, 0.5, 0.5, -0.5},
		{1, 1, 1, 0},
		{-1, 0.5, -1.0 / 3, -1},
	}
	for _, tt := range tests {
		l, r := ArcadeMix(tt.forward, tt.turn)
		assert.InDelta(t, tt.left, l, 1e-9, "left for %v/%v", tt.forward, tt.turn)
		assert.InDelta(t, tt.right, r, 1e-9, "right for %v/%v", tt.forward, tt.turn)
	}
}

func TestDifferentialDrive(t *testing.T) {
	left, right := &recorder{}, &recorder{}
	d := NewDifferentialDrive(left, right)

	d.Arcade(2, 0)
	assert.Equal(t, 1.0, left.out)
	assert.Equal(t, 1.0, right.out)
	assert.Equal(t, 1.0, d.Output())

	d.Stop()
	assert.Zero(t, left.out)
	assert.Equal(t, 1, right.stops)
	assert.Zero(t, d.Output())
}

func TestGroup(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	g := Group{a, b}
	g.Set(0.4)
	assert.Equal(t, 0.4, a.out)
	assert.Equal(t, 0.4, b.out)
	assert.Equal(t, 0.4, g.Output())
	g.Stop()
	assert.Equal(t, 1, b.stops)
}

func TestLoadConstants(t *testing.T) {
	dir := t.TempDir()

	k, err := LoadConstants(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConstants(), k)
	assert.Equal(t, 20*time.Millisecond, k.Period())

	path := filepath.Join(dir, "constants.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shooter_speed: 0.75\nwinch_deploy_time: 3s\nloop_hz: 100\n"), 0o644))
	k, err = LoadConstants(path)
	require.NoError(t, err)
	assert.Equal(t, 0.75, k.ShooterSpeed)
	assert.Equal(t, 3*time.Second, k.WinchDeployTime)
	assert.Equal(t, 10*time.Millisecond, k.Period())
	assert.Equal(t, DefaultConstants().GateSpeed, k.GateSpeed, "unset fields keep defaults")

	require.NoError(t, os.WriteFile(path, []byte("shooter_speed: 1.5\n"), 0o644))
	_, err = LoadConstants(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("intake_dir: 0\n"), 0o644))
	_, err = LoadConstants(path)
	require.Error(t, err)
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskbot.json")
	cfg := &Config{Port: "/dev/ttyUSB0", Calibration: Calibration{}}
	for i, name := range AllMotors() {
		cfg.Calibration[name] = MotorCalibration{ID: i + 1, DriveMode: i % 2, MaxVelocity: 2400}
	}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.True(t, loaded.IsCalibrated())
	assert.Equal(t, 1_000_000, loaded.BaudRate)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, loaded.Calibration.MotorIDs())
	assert.Equal(t, cfg.Calibration, loaded.Calibration)

	delete(loaded.Calibration, GateMotor)
	assert.False(t, loaded.IsCalibrated())
}

func TestRobotActuator(t *testing.T) {
	gate := &recorder{}
	r := &Robot{Gate: gate}
	assert.Same(t, gate, r.Actuator(Gate))
	assert.Nil(t, r.Actuator(Drivetrain))
}

// driftingGyro reports a new heading on every read.
type driftingGyro struct{ reads int }

func (g *driftingGyro) Heading() (float64, bool) {
	g.reads++
	return float64(g.reads), true
}

func TestSensorSnapshot(t *testing.T) {
	g := &driftingGyro{}
	s := NewSensorSnapshot(g, nil, nil)

	_, ok := s.Heading()
	assert.False(t, ok, "no data before the first sample")

	s.Sample()
	first, ok := s.Heading()
	require.True(t, ok)
	second, _ := s.Heading()
	assert.Equal(t, first, second, "reads within a cycle agree")
	assert.Equal(t, 1, g.reads)

	found, _ := s.Target()
	assert.False(t, found)
	_, ok = s.BallPresent()
	assert.False(t, ok)

	s.Sample()
	next, _ := s.Heading()
	assert.Equal(t, first+1, next)
}

func TestRobotSnapshotSensors(t *testing.T) {
	g := &driftingGyro{}
	r := &Robot{Gyro: g, Vision: NoSensors{}, Balls: NoSensors{}}

	s := r.SnapshotSensors()
	assert.Same(t, s, r.Gyro)
	assert.Same(t, s, r.Vision)
	assert.Same(t, s, r.Balls)
	assert.Same(t, s, r.SnapshotSensors(), "wrapping twice keeps one snapshot")

	s.Sample()
	h, ok := r.Gyro.Heading()
	require.True(t, ok)
	assert.Equal(t, 1.0, h)
}
