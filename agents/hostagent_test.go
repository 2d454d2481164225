package agents

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/idealmemcontroller"
)

var _ = Describe("HostAgent", func() {
	var (
		engine sim.Engine
		agent  *HostAgent
	)

	makeAgent := func(count, writeEvery uint64, maxInflight int) {
		engine = sim.NewSerialEngine()

		media := idealmemcontroller.New("Media", engine, 1<<20)
		media.Latency = 10

		agent = MakeHostAgentBuilder().
			WithEngine(engine).
			WithLowModule(media.GetPortByName("Top")).
			WithBase(0x1000).
			WithStride(64).
			WithByteSize(64).
			WithCount(count).
			WithWriteEvery(writeEvery).
			WithMaxInflight(maxInflight).
			Build("Host")

		conn := sim.NewDirectConnection("Conn", engine, 1*sim.GHz)
		conn.PlugIn(agent.ToMem, 4)
		conn.PlugIn(media.GetPortByName("Top"), 4)
	}

	run := func() {
		agent.TickLater(0)
		Expect(engine.Run()).To(Succeed())
	}

	It("should complete every access", func() {
		makeAgent(100, 0, 8)

		run()

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.NumCompleted).To(Equal(uint64(100)))
	})

	It("should accumulate positive latency", func() {
		makeAgent(10, 0, 1)

		run()

		Expect(float64(agent.AvgLatency())).To(BeNumerically(">", 0))
	})

	It("should complete mixed read and write streams", func() {
		makeAgent(20, 4, 4)

		run()

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.NumCompleted).To(Equal(uint64(20)))
	})

	It("should report zero latency before any completion", func() {
		makeAgent(1, 0, 1)

		Expect(float64(agent.AvgLatency())).To(BeNumerically("==", 0))
	})
})
