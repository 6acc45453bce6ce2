package robot

import "github.com/gwillem/taskbot/pkg/task"

// Resources scheduled by the task layer. Each groups one or more motors.
const (
	Drivetrain task.Resource = "drivetrain"
	Shooter    task.Resource = "shooter"
	Intake     task.Resource = "intake"
	Indexer    task.Resource = "indexer"
	Gate       task.Resource = "gate"
	Winch0     task.Resource = "winch0"
	Winch1     task.Resource = "winch1"
)

// AllResources returns every resource in registration order.
func AllResources() []task.Resource {
	return []task.Resource{Drivetrain, Shooter, Intake, Indexer, Gate, Winch0, Winch1}
}
