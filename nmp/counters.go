package nmp

import "gitlab.com/akita/akita/v3/sim"

// A CounterBank accumulates the NMP-path performance counters. Counters are
// monotonic for the lifetime of the core and are cleared only by an explicit
// Reset.
type CounterBank struct {
	reads         uint64
	writes        uint64
	accessLatency sim.VTimeInSec
	activeCycles  uint64
	executions    uint64
}

// Counters is a read-only snapshot of a CounterBank.
type Counters struct {
	Reads         uint64
	Writes        uint64
	AccessLatency sim.VTimeInSec
	ActiveCycles  uint64
	Executions    uint64
}

// RecordRead counts one completed read and its observed latency.
func (b *CounterBank) RecordRead(latency sim.VTimeInSec) {
	b.reads++
	b.accessLatency += latency
}

// RecordWrite counts one completed write and its observed latency.
func (b *CounterBank) RecordWrite(latency sim.VTimeInSec) {
	b.writes++
	b.accessLatency += latency
}

// AddActiveCycles counts cycles the core spent active.
func (b *CounterBank) AddActiveCycles(n uint64) {
	b.activeCycles += n
}

// RecordExecution counts one started execution.
func (b *CounterBank) RecordExecution() {
	b.executions++
}

// Snapshot returns the current counter values.
func (b *CounterBank) Snapshot() Counters {
	return Counters{
		Reads:         b.reads,
		Writes:        b.writes,
		AccessLatency: b.accessLatency,
		ActiveCycles:  b.activeCycles,
		Executions:    b.executions,
	}
}

// Reset clears all counters. Only an explicit external request should do
// this.
func (b *CounterBank) Reset() {
	*b = CounterBank{}
}
