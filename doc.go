// Package taskbot schedules and arbitrates the tasks of a competition robot.
//
// Behaviors are composed from small tasks into sequences and parallel groups,
// optionally bounded in time. A scheduler ticks them at a fixed rate, gives every
// hardware resource to at most one task at a time and falls back to each
// resource's default task when nothing else claims it. Operator input is
// bound to tasks through conditions, and autonomous routines are chosen from
// a registry at the start of a match.
//
// # Installation
//
//	go install github.com/gwillem/taskbot/cmd/taskbot@latest
//
// # Usage
//
// Find the servo bus and calibrate the motors:
//
//	taskbot setup
//
// Then run the robot, or try it against the built-in simulator:
//
//	taskbot run
//	taskbot run --sim
//
// List the autonomous routines and their task trees:
//
//	taskbot autos --tree
//
// # Packages
//
//   - cmd/taskbot: CLI with run, setup and autos commands
//   - pkg/task: tasks, composites, conditions, bindings and the scheduler
//   - pkg/robot: motors, resources, calibration, configuration and constants
//   - pkg/actions: reusable robot tasks (shooting, vision, turning, driving)
//   - pkg/autonomous: autonomous routines and their registry
//   - pkg/teleop: match phases, operator controls and the control loop
//   - pkg/sim: simulated hardware and keyboard gamepads
package taskbot
