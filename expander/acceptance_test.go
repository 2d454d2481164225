package expander_test

import (
	"encoding/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/idealmemcontroller"
	"gitlab.com/akita/mem/v3/mem"

	"github.com/AlfiRam/CXL-DMSim/agents"
	"github.com/AlfiRam/CXL-DMSim/expander"
	"github.com/AlfiRam/CXL-DMSim/nmp"
	"github.com/AlfiRam/CXL-DMSim/nmp/core"
)

const (
	benchBase = uint64(0x100000000)
	benchSize = uint64(2 * mem.GB)
)

type hostBench struct {
	engine sim.Engine
	media  *idealmemcontroller.Comp
	dev    *expander.Comp
	host   *agents.HostAgent
}

func makeHostBench(
	numAccess uint64,
	maxInflight int,
	reqCap, rspCap int,
	protoLat sim.VTimeInSec,
) *hostBench {
	b := &hostBench{}
	b.engine = sim.NewSerialEngine()

	b.media = idealmemcontroller.New("Media", b.engine, benchBase+benchSize)
	b.media.Latency = 100

	b.dev = expander.MakeBuilder().
		WithEngine(b.engine).
		WithAddrRange(expander.AddrRange{Base: benchBase, Size: benchSize}).
		WithProtoProcLat(protoLat).
		WithReqQueueCapacity(reqCap).
		WithRspQueueCapacity(rspCap).
		WithBackend(b.media.GetPortByName("Top")).
		Build("Expander")

	b.host = agents.MakeHostAgentBuilder().
		WithEngine(b.engine).
		WithLowModule(b.dev.TopPort).
		WithBase(benchBase).
		WithStride(64).
		WithByteSize(64).
		WithCount(numAccess).
		WithMaxInflight(maxInflight).
		Build("Host")

	hostConn := sim.NewDirectConnection("HostConn", b.engine, 1*sim.GHz)
	hostConn.PlugIn(b.host.ToMem, 4)
	hostConn.PlugIn(b.dev.TopPort, 4)

	memConn := sim.NewDirectConnection("MemConn", b.engine, 1*sim.GHz)
	memConn.PlugIn(b.dev.MemPort, 4)
	memConn.PlugIn(b.media.GetPortByName("Top"), 4)

	return b
}

func (b *hostBench) run() {
	b.host.TickLater(0)
	err := b.engine.Run()
	Expect(err).To(BeNil())
}

var _ = Describe("Expander with host traffic", func() {
	It("should answer every access", func() {
		b := makeHostBench(1000, 8, 48, 48, 15e-9)

		b.run()

		Expect(b.host.Done()).To(BeTrue())
		Expect(b.host.NumCompleted).To(Equal(uint64(1000)))
	})

	It("should charge the protocol delay once per access", func() {
		b := makeHostBench(1000, 8, 48, 48, 15e-9)

		b.run()

		stats := b.dev.ControllerStats()
		Expect(stats.ReqSendSucceeded).To(Equal(uint64(1000)))
		Expect(float64(stats.ProtoDelayTotal)).
			To(BeNumerically("~", 15000e-9, 1e-12))
	})

	It("should make every access pay at least the protocol delay "+
		"and the media latency", func() {
		b := makeHostBench(100, 1, 48, 48, 15e-9)

		b.run()

		mediaLat := 100.0 / float64(1*sim.GHz)
		Expect(float64(b.host.AvgLatency())).
			To(BeNumerically(">", 15e-9+mediaLat))
	})

	It("should deliver responses that waited in the egress queue", func() {
		b := makeHostBench(64, 16, 48, 48, 15e-9)

		b.run()

		stats := b.dev.ControllerStats()
		Expect(b.host.Done()).To(BeTrue())
		Expect(stats.RspSendSucceeded).To(Equal(uint64(64)))
		Expect(float64(stats.RspQueueResidency)).To(BeNumerically(">", 0))
	})

	It("should keep the queues within their bounds under pressure", func() {
		b := makeHostBench(200, 32, 2, 2, 15e-9)

		b.run()

		stats := b.dev.ControllerStats()
		Expect(b.host.NumCompleted).To(Equal(uint64(200)))
		Expect(stats.ReqQueueMaxLen).To(BeNumerically("<=", 2))
		Expect(stats.RspQueueMaxLen).To(BeNumerically("<=", 2))
		Expect(stats.ReqQueueFullEvents + stats.RspQueueFullEvents).
			To(BeNumerically(">", 0))
	})

	It("should not build the NMP path unless asked to", func() {
		b := makeHostBench(1, 1, 48, 48, 15e-9)

		Expect(b.dev.NMP()).To(BeNil())
		Expect(b.dev.NMPTopPort).To(BeNil())
		Expect(b.dev.NMPMemPort).To(BeNil())
	})
})

// orderAgent records the order requests are issued in and the order their
// responses come back, with no window limit of its own.
type orderAgent struct {
	*sim.TickingComponent

	ToMem     sim.Port
	lowModule sim.Port

	base   uint64
	count  int
	issued int

	issueOrder    []string
	completeOrder []string
}

func newOrderAgent(
	engine sim.Engine,
	lowModule sim.Port,
	base uint64,
	count int,
) *orderAgent {
	a := &orderAgent{
		lowModule: lowModule,
		base:      base,
		count:     count,
	}
	a.TickingComponent = sim.NewTickingComponent(
		"OrderAgent", engine, 1*sim.GHz, a)
	a.ToMem = sim.NewLimitNumMsgPort(a, 4, "OrderAgent.ToMem")
	a.AddPort("Mem", a.ToMem)
	return a
}

func (a *orderAgent) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	if item := a.ToMem.Peek(); item != nil {
		a.ToMem.Retrieve(now)
		rsp := item.(*mem.DataReadyRsp)
		a.completeOrder = append(a.completeOrder, rsp.RespondTo)
		madeProgress = true
	}

	if a.issued < a.count {
		req := mem.ReadReqBuilder{}.
			WithSendTime(now).
			WithSrc(a.ToMem).
			WithDst(a.lowModule).
			WithAddress(a.base + uint64(a.issued)*64).
			WithByteSize(64).
			WithPID(1).
			Build()
		if a.ToMem.Send(req) == nil {
			a.issueOrder = append(a.issueOrder, req.Meta().ID)
			a.issued++
			madeProgress = true
		}
	}

	return madeProgress
}

var _ = Describe("Expander response ordering", func() {
	It("should deliver responses in acceptance order", func() {
		engine := sim.NewSerialEngine()

		media := idealmemcontroller.New("Media", engine, benchBase+benchSize)
		media.Latency = 20

		dev := expander.MakeBuilder().
			WithEngine(engine).
			WithAddrRange(
				expander.AddrRange{Base: benchBase, Size: benchSize}).
			WithBackend(media.GetPortByName("Top")).
			Build("Expander")

		agent := newOrderAgent(engine, dev.TopPort, benchBase, 64)

		hostConn := sim.NewDirectConnection("HostConn", engine, 1*sim.GHz)
		hostConn.PlugIn(agent.ToMem, 4)
		hostConn.PlugIn(dev.TopPort, 4)

		memConn := sim.NewDirectConnection("MemConn", engine, 1*sim.GHz)
		memConn.PlugIn(dev.MemPort, 4)
		memConn.PlugIn(media.GetPortByName("Top"), 4)

		agent.TickLater(0)
		Expect(engine.Run()).To(Succeed())

		Expect(agent.completeOrder).To(Equal(agent.issueOrder))
	})
})

type nmpBench struct {
	engine sim.Engine
	media  *idealmemcontroller.Comp
	dev    *expander.Comp
	core   *core.Comp
	hops   int
}

func makeNMPBench(hops int) *nmpBench {
	b := &nmpBench{hops: hops}
	b.engine = sim.NewSerialEngine()

	b.media = idealmemcontroller.New("Media", b.engine, benchBase+benchSize)
	b.media.Latency = 100

	b.dev = expander.MakeBuilder().
		WithEngine(b.engine).
		WithAddrRange(expander.AddrRange{Base: benchBase, Size: benchSize}).
		WithBackend(b.media.GetPortByName("Top")).
		WithNMP().
		WithNMPStartAddr(benchBase).
		Build("Expander")

	sub := b.dev.NMP()
	b.core = core.MakeBuilder().
		WithEngine(b.engine).
		WithProgram(core.NewPointerChaseProgram(hops)).
		WithCounterBank(sub.Bank()).
		WithCompletionHandler(sub).
		WithLowModule(b.dev.NMPTopPort).
		Build("Expander.NMP.Core")

	memConn := sim.NewDirectConnection("MemConn", b.engine, 1*sim.GHz)
	memConn.PlugIn(b.dev.MemPort, 4)
	memConn.PlugIn(b.dev.NMPMemPort, 4)
	memConn.PlugIn(b.media.GetPortByName("Top"), 4)

	nmpConn := sim.NewDirectConnection("NMPConn", b.engine, 1*sim.GHz)
	nmpConn.PlugIn(b.core.ToMem, 4)
	nmpConn.PlugIn(b.dev.NMPTopPort, 4)

	err := sub.AttachCore(b.core)
	Expect(err).To(BeNil())

	return b
}

func chaseChain(base uint64, n int) []byte {
	data := make([]byte, n*8)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint64(
			data[i*8:], base+uint64((i+1)%n)*8)
	}
	return data
}

func (b *nmpBench) run() {
	sub := b.dev.NMP()

	err := sub.LoadImageBytes(b.media.Storage, chaseChain(benchBase, b.hops))
	Expect(err).To(BeNil())

	err = sub.StartExecution(0, benchBase, sub.DeriveStackPointer())
	Expect(err).To(BeNil())

	err = b.engine.Run()
	Expect(err).To(BeNil())
}

var _ = Describe("Expander with an NMP workload", func() {
	It("should run the workload to completion", func() {
		b := makeNMPBench(256)

		b.run()

		sub := b.dev.NMP()
		Expect(sub.State()).To(Equal(nmp.StateHalted))
		Expect(b.core.IsRunning()).To(BeFalse())

		c := sub.Counters()
		Expect(c.Executions).To(Equal(uint64(1)))
		Expect(c.Reads).To(Equal(uint64(256)))
		Expect(c.Writes).To(Equal(uint64(0)))
		Expect(c.ActiveCycles).To(BeNumerically(">", 256))
	})

	It("should access memory faster than the host path does", func() {
		b := makeNMPBench(256)

		b.run()

		c := b.dev.NMP().Counters()
		nmpAvg := float64(c.AccessLatency) / float64(c.Reads)

		h := makeHostBench(256, 1, 48, 48, 15e-9)
		h.run()

		Expect(nmpAvg).To(BeNumerically("<", float64(h.host.AvgLatency())))
	})

	It("should inject the derived stack pointer into the core", func() {
		b := makeNMPBench(16)

		b.run()

		Expect(b.core.StackPointer()).
			To(Equal(benchBase + benchSize - 1*mem.MB))
	})
})
