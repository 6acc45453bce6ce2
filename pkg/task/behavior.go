package task

import (
	bt "github.com/joeycumines/go-behaviortree"
)

// Behavior returns a leaf that ticks a behavior tree once per cycle. The task
// finishes when the tree reports Success or Failure; a tick error counts as
// Failure. stop, if set, runs when the task is interrupted.
func Behavior(name string, node bt.Node, stop func(), requires ...Resource) *Task {
	status := bt.Running
	return Leaf(name, Hooks{
		Start: func(Cycle) { status = bt.Running },
		Advance: func(Cycle) {
			st, err := node.Tick()
			if err != nil {
				st = bt.Failure
			}
			status = st
		},
		Done: func(Cycle) bool { return status != bt.Running },
		Interrupt: func(Cycle) {
			if stop != nil {
				stop()
			}
		},
	}, requires...)
}
