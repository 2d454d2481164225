package nmp

import "fmt"

// CoreState is the lifecycle state of the near-memory compute core. The
// transitions are one-directional: Unconfigured → Loaded → Armed → Running →
// Halted. Each step requires the previous one to have completed.
type CoreState int

const (
	StateUnconfigured CoreState = iota
	StateLoaded
	StateArmed
	StateRunning
	StateHalted
)

func (s CoreState) String() string {
	switch s {
	case StateUnconfigured:
		return "Unconfigured"
	case StateLoaded:
		return "Loaded"
	case StateArmed:
		return "Armed"
	case StateRunning:
		return "Running"
	case StateHalted:
		return "Halted"
	}
	return fmt.Sprintf("CoreState(%d)", int(s))
}

// CoreKind selects the timing fidelity of the embedded compute core.
type CoreKind int

const (
	// TimingCore issues one access at a time with a per-access issue delay.
	TimingCore CoreKind = iota
	// AtomicCore issues one access at a time, back to back.
	AtomicCore
	// PipelinedCore keeps a window of accesses in flight.
	PipelinedCore

	numCoreKinds
)

func (k CoreKind) String() string {
	switch k {
	case TimingCore:
		return "TimingCore"
	case AtomicCore:
		return "AtomicCore"
	case PipelinedCore:
		return "PipelinedCore"
	}
	return fmt.Sprintf("CoreKind(%d)", int(k))
}

// CoreKindFromString parses a core kind name, as given on a command line.
func CoreKindFromString(s string) (CoreKind, error) {
	switch s {
	case "timing", "TimingCore":
		return TimingCore, nil
	case "atomic", "AtomicCore":
		return AtomicCore, nil
	case "pipelined", "PipelinedCore":
		return PipelinedCore, nil
	}
	return 0, fmt.Errorf("unknown NMP core kind %q", s)
}
