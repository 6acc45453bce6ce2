package robot

import "math"

// DefaultMaxVelocity is the wheel-mode speed, in encoder steps per second, a
// full command asks of a servo without its own MaxVelocity.
const DefaultMaxVelocity = 3000

// stepsPerTurn is the encoder resolution of the bus servos.
const stepsPerTurn = 4096

// MotorCalibration holds calibration data for a single motor channel.
type MotorCalibration struct {
	ID          int `json:"id"`
	DriveMode   int `json:"drive_mode"`             // 1 inverts the channel
	MaxVelocity int `json:"max_velocity,omitempty"` // steps/s at full command
}

// Calibration holds calibration data for all motors, keyed by motor name.
type Calibration map[MotorName]MotorCalibration

// Velocity converts a speed command in [-1, 1] to a signed wheel-mode goal
// velocity in steps per second. Zero stops the motor.
func (c MotorCalibration) Velocity(speed float64) int {
	speed = Clamp(speed)
	if c.DriveMode == 1 {
		speed = -speed
	}
	maxV := c.MaxVelocity
	if maxV <= 0 {
		maxV = DefaultMaxVelocity
	}
	return int(math.Round(speed * float64(maxV)))
}

// MotorIDs returns the servo IDs for all motors in the calibration.
func (c Calibration) MotorIDs() []int {
	ids := make([]int, 0, len(c))
	// Use AllMotors() to ensure consistent ordering
	for _, name := range AllMotors() {
		if mc, ok := c[name]; ok {
			ids = append(ids, mc.ID)
		}
	}
	return ids
}

// Travel returns the signed distance in steps from prev to cur, taking the
// shorter way around the encoder's wrap point.
func Travel(prev, cur int) int {
	d := (cur - prev) % stepsPerTurn
	switch {
	case d > stepsPerTurn/2:
		d -= stepsPerTurn
	case d < -stepsPerTurn/2:
		d += stepsPerTurn
	}
	return d
}
