package robot

// SensorSnapshot holds one reading of each sensor. Sample refreshes it once
// per control cycle, before any task runs, so every task in the cycle sees
// the same values. It implements Gyro, Vision and BallSensor and must only be
// used from the control loop goroutine.
type SensorSnapshot struct {
	gyro   Gyro
	vision Vision
	balls  BallSensor

	heading   float64
	headingOK bool
	found     bool
	offset    float64
	ball      bool
	ballOK    bool
}

// NewSensorSnapshot wraps the given sensors. Nil sensors never have data.
// Until the first Sample every reading reports no data.
func NewSensorSnapshot(g Gyro, v Vision, b BallSensor) *SensorSnapshot {
	if g == nil {
		g = NoSensors{}
	}
	if v == nil {
		v = NoSensors{}
	}
	if b == nil {
		b = NoSensors{}
	}
	return &SensorSnapshot{gyro: g, vision: v, balls: b}
}

// Sample reads every sensor once.
func (s *SensorSnapshot) Sample() {
	s.heading, s.headingOK = s.gyro.Heading()
	s.found, s.offset = s.vision.Target()
	s.ball, s.ballOK = s.balls.BallPresent()
}

func (s *SensorSnapshot) Heading() (float64, bool) { return s.heading, s.headingOK }

func (s *SensorSnapshot) Target() (bool, float64) { return s.found, s.offset }

func (s *SensorSnapshot) BallPresent() (bool, bool) { return s.ball, s.ballOK }

// SnapshotSensors routes the robot's sensor reads through a SensorSnapshot
// and returns it. Calling it again returns the same snapshot.
func (r *Robot) SnapshotSensors() *SensorSnapshot {
	if s, ok := r.Gyro.(*SensorSnapshot); ok {
		return s
	}
	s := NewSensorSnapshot(r.Gyro, r.Vision, r.Balls)
	r.Gyro, r.Vision, r.Balls = s, s, s
	return s
}
