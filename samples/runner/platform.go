package runner

import (
	"encoding/binary"

	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/idealmemcontroller"
	"gitlab.com/akita/mem/v3/mem"

	"github.com/AlfiRam/CXL-DMSim/agents"
	"github.com/AlfiRam/CXL-DMSim/expander"
	"github.com/AlfiRam/CXL-DMSim/nmp"
	"github.com/AlfiRam/CXL-DMSim/nmp/core"
)

// Platform is the simulated system: a host traffic agent, a memory expander
// device, the backend media behind it, and optionally the embedded NMP core.
type Platform struct {
	Engine sim.Engine
	Host   *agents.HostAgent
	Device *expander.Comp
	Media  *idealmemcontroller.Comp
	Core   *core.Comp
}

type platformBuilder struct {
	engine sim.Engine
	freq   sim.Freq

	memBase      uint64
	memSize      uint64
	mediaLatency int
	protoProcLat sim.VTimeInSec
	reqQueueCap  int
	rspQueueCap  int

	numAccess   uint64
	stride      uint64
	writeEvery  uint64
	maxInflight int

	enableNMP  bool
	binaryPath string
	coreKind   nmp.CoreKind
	chaseHops  int
}

func makePlatformBuilder() platformBuilder {
	return platformBuilder{
		freq:         1 * sim.GHz,
		memBase:      0x100000000,
		memSize:      2 * mem.GB,
		mediaLatency: 100,
		protoProcLat: 15e-9,
		reqQueueCap:  48,
		rspQueueCap:  48,
		numAccess:    1024,
		stride:       64,
		maxInflight:  8,
		coreKind:     nmp.TimingCore,
		chaseHops:    1024,
	}
}

func (b platformBuilder) withEngine(e sim.Engine) platformBuilder {
	b.engine = e
	return b
}

func (b platformBuilder) withMediaLatency(cycles int) platformBuilder {
	b.mediaLatency = cycles
	return b
}

func (b platformBuilder) withProtoProcLat(lat sim.VTimeInSec) platformBuilder {
	b.protoProcLat = lat
	return b
}

func (b platformBuilder) withTraffic(
	numAccess, stride, writeEvery uint64,
	maxInflight int,
) platformBuilder {
	b.numAccess = numAccess
	b.stride = stride
	b.writeEvery = writeEvery
	b.maxInflight = maxInflight
	return b
}

func (b platformBuilder) withNMP(
	binaryPath string,
	kind nmp.CoreKind,
	chaseHops int,
) platformBuilder {
	b.enableNMP = true
	b.binaryPath = binaryPath
	b.coreKind = kind
	b.chaseHops = chaseHops
	return b
}

func (b platformBuilder) build() *Platform {
	p := &Platform{Engine: b.engine}

	p.Media = idealmemcontroller.New(
		"Media", b.engine, b.memBase+b.memSize)
	p.Media.Latency = b.mediaLatency

	devBuilder := expander.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithAddrRange(expander.AddrRange{Base: b.memBase, Size: b.memSize}).
		WithProtoProcLat(b.protoProcLat).
		WithReqQueueCapacity(b.reqQueueCap).
		WithRspQueueCapacity(b.rspQueueCap).
		WithBackend(p.Media.GetPortByName("Top"))
	if b.enableNMP {
		devBuilder = devBuilder.
			WithNMP().
			WithNMPBinaryPath(b.binaryPath).
			WithNMPStartAddr(b.memBase).
			WithNMPCoreKind(b.coreKind)
	}
	p.Device = devBuilder.Build("Expander")

	p.Host = agents.MakeHostAgentBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithLowModule(p.Device.TopPort).
		WithBase(b.memBase).
		WithStride(b.stride).
		WithByteSize(64).
		WithCount(b.numAccess).
		WithWriteEvery(b.writeEvery).
		WithMaxInflight(b.maxInflight).
		Build("Host")

	hostConn := sim.NewDirectConnection("HostConn", b.engine, b.freq)
	hostConn.PlugIn(p.Host.ToMem, 4)
	hostConn.PlugIn(p.Device.TopPort, 4)

	memConn := sim.NewDirectConnection("MemConn", b.engine, b.freq)
	memConn.PlugIn(p.Device.MemPort, 4)
	memConn.PlugIn(p.Media.GetPortByName("Top"), 4)

	if b.enableNMP {
		memConn.PlugIn(p.Device.NMPMemPort, 4)
		b.attachCore(p)
	}

	return p
}

func (b platformBuilder) attachCore(p *Platform) {
	sub := p.Device.NMP()

	p.Core = core.MakeBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithKind(b.coreKind).
		WithProgram(core.NewPointerChaseProgram(b.chaseHops)).
		WithCounterBank(sub.Bank()).
		WithCompletionHandler(sub).
		WithLowModule(p.Device.NMPTopPort).
		Build("Expander.NMP.Core")

	nmpConn := sim.NewDirectConnection("NMPConn", b.engine, b.freq)
	nmpConn.PlugIn(p.Core.ToMem, 4)
	nmpConn.PlugIn(p.Device.NMPTopPort, 4)

	err := sub.AttachCore(p.Core)
	if err != nil {
		panic(err)
	}
}

// prepareNMPImage places the NMP program image on the backend media. When no
// binary is given a pointer-chase chain matching the core's program is
// generated in place.
func (p *Platform) prepareNMPImage(chaseHops int) error {
	sub := p.Device.NMP()

	if sub.BinaryPath() != "" {
		return sub.LoadImage(p.Media.Storage)
	}

	base := p.Device.AddrRange().Base
	return sub.LoadImageBytes(
		p.Media.Storage, ChaseImage(base, chaseHops))
}

// ChaseImage builds a pointer-chase chain of n 8-byte entries starting at
// base. Entry i holds the address of entry i+1, and the last entry points
// back at the first, so a walk of any length stays inside the image.
func ChaseImage(base uint64, n int) []byte {
	data := make([]byte, n*8)
	for i := 0; i < n; i++ {
		next := base + uint64((i+1)%n)*8
		binary.LittleEndian.PutUint64(data[i*8:], next)
	}
	return data
}
