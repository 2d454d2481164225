package nmp

import "gitlab.com/akita/akita/v3/sim"

// An ExecCompletionEvent marks that the core's workload has signaled exit.
// The core schedules it; the Subsystem handles it.
type ExecCompletionEvent struct {
	*sim.EventBase
	ExecID string
}

// NewExecCompletionEvent returns a newly constructed ExecCompletionEvent.
func NewExecCompletionEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
	execID string,
) *ExecCompletionEvent {
	evt := new(ExecCompletionEvent)
	evt.EventBase = sim.NewEventBase(time, handler)
	evt.ExecID = execID
	return evt
}

// An ExitCallback is invoked by the Subsystem when an execution completes.
// Callbacks run synchronously, in registration order.
type ExitCallback func(now sim.VTimeInSec)
