package agents

import (
	"log"
	"reflect"

	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/mem"
)

// HostAgent stands in for host CPU traffic. It issues strided accesses over a
// memory window, keeps a bounded number of them in flight, and accumulates
// the round-trip latency of every completed access.
type HostAgent struct {
	*sim.TickingComponent

	ToMem sim.Port

	lowModule sim.Port
	base      uint64
	stride    uint64
	byteSize  uint64
	count     uint64
	// Every writeEvery-th access is a write. Zero means reads only.
	writeEvery  uint64
	maxInflight int

	issued   uint64
	inflight map[string]sim.VTimeInSec

	TotalLatency sim.VTimeInSec
	NumCompleted uint64
}

// Done reports whether every access has been issued and answered.
func (a *HostAgent) Done() bool {
	return a.issued == a.count && len(a.inflight) == 0
}

// AvgLatency returns the mean round-trip latency over completed accesses.
func (a *HostAgent) AvgLatency() sim.VTimeInSec {
	if a.NumCompleted == 0 {
		return 0
	}
	return a.TotalLatency / sim.VTimeInSec(a.NumCompleted)
}

// Tick issues new accesses and collects responses.
func (a *HostAgent) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = a.collectRsps(now) || madeProgress
	madeProgress = a.issue(now) || madeProgress

	return madeProgress
}

func (a *HostAgent) issue(now sim.VTimeInSec) bool {
	if a.issued >= a.count {
		return false
	}
	if len(a.inflight) >= a.maxInflight {
		return false
	}

	req := a.buildReq(now)
	err := a.ToMem.Send(req)
	if err != nil {
		return false
	}

	a.inflight[req.Meta().ID] = now
	a.issued++

	return true
}

func (a *HostAgent) buildReq(now sim.VTimeInSec) mem.AccessReq {
	addr := a.base + a.issued*a.stride

	if a.writeEvery > 0 && a.issued%a.writeEvery == a.writeEvery-1 {
		data := make([]byte, a.byteSize)
		for i := range data {
			data[i] = byte(a.issued)
		}
		return mem.WriteReqBuilder{}.
			WithSendTime(now).
			WithSrc(a.ToMem).
			WithDst(a.lowModule).
			WithAddress(addr).
			WithData(data).
			WithPID(1).
			Build()
	}

	return mem.ReadReqBuilder{}.
		WithSendTime(now).
		WithSrc(a.ToMem).
		WithDst(a.lowModule).
		WithAddress(addr).
		WithByteSize(a.byteSize).
		WithPID(1).
		Build()
}

func (a *HostAgent) collectRsps(now sim.VTimeInSec) bool {
	item := a.ToMem.Peek()
	if item == nil {
		return false
	}

	var rspTo string
	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		rspTo = rsp.RespondTo
	case *mem.WriteDoneRsp:
		rspTo = rsp.RespondTo
	default:
		log.Panicf("cannot handle response of type %s", reflect.TypeOf(item))
	}

	issueTime, found := a.inflight[rspTo]
	if !found {
		log.Panicf("response %s does not match any in-flight access", rspTo)
	}

	a.ToMem.Retrieve(now)
	delete(a.inflight, rspTo)
	a.TotalLatency += now - issueTime
	a.NumCompleted++

	return true
}

// HostAgentBuilder can build host agents.
type HostAgentBuilder struct {
	engine      sim.Engine
	freq        sim.Freq
	lowModule   sim.Port
	base        uint64
	stride      uint64
	byteSize    uint64
	count       uint64
	writeEvery  uint64
	maxInflight int
}

// MakeHostAgentBuilder creates a builder with default parameters.
func MakeHostAgentBuilder() HostAgentBuilder {
	return HostAgentBuilder{
		freq:        1 * sim.GHz,
		stride:      64,
		byteSize:    64,
		count:       1024,
		maxInflight: 8,
	}
}

// WithEngine sets the engine the agent uses.
func (b HostAgentBuilder) WithEngine(engine sim.Engine) HostAgentBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the agent.
func (b HostAgentBuilder) WithFreq(freq sim.Freq) HostAgentBuilder {
	b.freq = freq
	return b
}

// WithLowModule sets the port the accesses are sent to.
func (b HostAgentBuilder) WithLowModule(p sim.Port) HostAgentBuilder {
	b.lowModule = p
	return b
}

// WithBase sets the first address accessed.
func (b HostAgentBuilder) WithBase(base uint64) HostAgentBuilder {
	b.base = base
	return b
}

// WithStride sets the distance between consecutive accesses.
func (b HostAgentBuilder) WithStride(stride uint64) HostAgentBuilder {
	b.stride = stride
	return b
}

// WithByteSize sets the size of each access.
func (b HostAgentBuilder) WithByteSize(n uint64) HostAgentBuilder {
	b.byteSize = n
	return b
}

// WithCount sets the total number of accesses to issue.
func (b HostAgentBuilder) WithCount(n uint64) HostAgentBuilder {
	b.count = n
	return b
}

// WithWriteEvery makes every n-th access a write. Zero keeps the stream
// read-only.
func (b HostAgentBuilder) WithWriteEvery(n uint64) HostAgentBuilder {
	b.writeEvery = n
	return b
}

// WithMaxInflight bounds the number of outstanding accesses.
func (b HostAgentBuilder) WithMaxInflight(n int) HostAgentBuilder {
	b.maxInflight = n
	return b
}

// Build creates a host agent with the given name.
func (b HostAgentBuilder) Build(name string) *HostAgent {
	a := &HostAgent{
		lowModule:   b.lowModule,
		base:        b.base,
		stride:      b.stride,
		byteSize:    b.byteSize,
		count:       b.count,
		writeEvery:  b.writeEvery,
		maxInflight: b.maxInflight,
		inflight:    make(map[string]sim.VTimeInSec),
	}
	a.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, a)

	a.ToMem = sim.NewLimitNumMsgPort(a, 4, name+".ToMem")
	a.AddPort("Mem", a.ToMem)

	return a
}
