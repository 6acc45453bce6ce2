package robot

import (
	"math"
	"sync"
)

// DifferentialDrive mixes arcade commands onto a left and right side.
type DifferentialDrive struct {
	left  Actuator
	right Actuator

	mu      sync.Mutex
	forward float64
	turn    float64
}

func NewDifferentialDrive(left, right Actuator) *DifferentialDrive {
	return &DifferentialDrive{left: left, right: right}
}

// Arcade drives forward and turns at the same time. Positive turn is
// clockwise. When a side saturates both sides are scaled down together so the
// ratio between them is kept.
func (d *DifferentialDrive) Arcade(forward, turn float64) {
	forward, turn = Clamp(forward), Clamp(turn)
	left, right := ArcadeMix(forward, turn)

	d.mu.Lock()
	d.forward, d.turn = forward, turn
	d.mu.Unlock()

	d.left.Set(left)
	d.right.Set(right)
}

// Stop zeroes both sides.
func (d *DifferentialDrive) Stop() {
	d.mu.Lock()
	d.forward, d.turn = 0, 0
	d.mu.Unlock()

	d.left.Stop()
	d.right.Stop()
}

// Output returns the last forward command.
func (d *DifferentialDrive) Output() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forward
}

// Turn returns the last turn command.
func (d *DifferentialDrive) Turn() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.turn
}

// ArcadeMix converts forward and turn into left and right side speeds.
func ArcadeMix(forward, turn float64) (left, right float64) {
	left = forward + turn
	right = forward - turn
	if m := math.Max(math.Abs(left), math.Abs(right)); m > 1 {
		left /= m
		right /= m
	}
	return left, right
}
