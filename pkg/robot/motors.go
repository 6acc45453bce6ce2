// Package robot describes the robot the scheduler drives: its motors and the
// resources that group them, the collaborators the control loop reads from
// and writes to, and configuration.
package robot

// MotorName identifies a physical motor channel.
type MotorName string

// Motor channels, in servo ID order (1-9).
const (
	DriveLeftMotor  MotorName = "drive_left"
	DriveRightMotor MotorName = "drive_right"
	ShooterMotor    MotorName = "shooter"
	IntakeMotor     MotorName = "intake"
	Intake2Motor    MotorName = "intake2"
	IndexerMotor    MotorName = "indexer"
	GateMotor       MotorName = "gate"
	Winch0Motor     MotorName = "winch0"
	Winch1Motor     MotorName = "winch1"
)

// AllMotors returns all motor names in order (matching servo IDs 1-9).
func AllMotors() []MotorName {
	return []MotorName{
		DriveLeftMotor,
		DriveRightMotor,
		ShooterMotor,
		IntakeMotor,
		Intake2Motor,
		IndexerMotor,
		GateMotor,
		Winch0Motor,
		Winch1Motor,
	}
}
