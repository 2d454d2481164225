package core

import (
	"log"

	"github.com/AlfiRam/CXL-DMSim/nmp"
	"gitlab.com/akita/akita/v3/sim"
)

// Builder can build near-memory cores.
type Builder struct {
	engine            sim.Engine
	freq              sim.Freq
	kind              nmp.CoreKind
	program           Program
	bank              *nmp.CounterBank
	completionHandler sim.Handler
	lowModule         sim.Port
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
		kind: nmp.TimingCore,
	}
}

// WithEngine sets the engine that the core uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithKind sets the execution model of the core.
func (b Builder) WithKind(kind nmp.CoreKind) Builder {
	b.kind = kind
	return b
}

// WithProgram sets the program the core runs when activated.
func (b Builder) WithProgram(p Program) Builder {
	b.program = p
	return b
}

// WithCounterBank sets the counter bank the core reports cycles to.
func (b Builder) WithCounterBank(bank *nmp.CounterBank) Builder {
	b.bank = bank
	return b
}

// WithCompletionHandler sets the handler that receives the completion
// event when the program finishes.
func (b Builder) WithCompletionHandler(h sim.Handler) Builder {
	b.completionHandler = h
	return b
}

// WithLowModule sets the port that memory requests are sent to.
func (b Builder) WithLowModule(p sim.Port) Builder {
	b.lowModule = p
	return b
}

// Build creates a core with the given name.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		kind:              b.kind,
		program:           b.program,
		bank:              b.bank,
		completionHandler: b.completionHandler,
		lowModule:         b.lowModule,
		inflight:          make(map[string]Access),
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	switch b.kind {
	case nmp.AtomicCore:
		c.window = 1
		c.issueLat = 0
	case nmp.TimingCore:
		c.window = 1
		c.issueLat = 2
	case nmp.PipelinedCore:
		c.window = 4
		c.issueLat = 1
	default:
		log.Panicf("unknown core kind %d", b.kind)
	}

	if c.bank == nil {
		c.bank = &nmp.CounterBank{}
	}

	c.ToMem = sim.NewLimitNumMsgPort(c, 4, name+".ToMem")
	c.AddPort("Mem", c.ToMem)

	return c
}
