package expander

import (
	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/mem"

	"github.com/AlfiRam/CXL-DMSim/nmp"
)

// Builder can build memory expander devices.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	addrRange    AddrRange
	protoProcLat sim.VTimeInSec
	reqQueueCap  int
	rspQueueCap  int
	backend      sim.Port
	identity     PCIIdentity

	enableNMP   bool
	binaryPath  string
	nmpStart    uint64
	nmpStackLen uint64
	coreKind    nmp.CoreKind
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:         1 * sim.GHz,
		addrRange:    AddrRange{Base: 0x100000000, Size: 2 * mem.GB},
		protoProcLat: 15e-9,
		reqQueueCap:  48,
		rspQueueCap:  48,
		identity:     DefaultPCIIdentity(),
		nmpStart:     0x100000000,
		nmpStackLen:  1 * mem.MB,
		coreKind:     nmp.TimingCore,
	}
}

// WithEngine sets the engine that the device uses.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the device.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithAddrRange sets the host physical address window the device claims.
func (b Builder) WithAddrRange(r AddrRange) Builder {
	b.addrRange = r
	return b
}

// WithProtoProcLat sets the per-request protocol processing delay.
func (b Builder) WithProtoProcLat(lat sim.VTimeInSec) Builder {
	b.protoProcLat = lat
	return b
}

// WithReqQueueCapacity sets the ingress queue depth.
func (b Builder) WithReqQueueCapacity(n int) Builder {
	b.reqQueueCap = n
	return b
}

// WithRspQueueCapacity sets the egress queue depth.
func (b Builder) WithRspQueueCapacity(n int) Builder {
	b.rspQueueCap = n
	return b
}

// WithBackend sets the port of the backend memory media that the device
// forwards accesses to.
func (b Builder) WithBackend(p sim.Port) Builder {
	b.backend = p
	return b
}

// WithPCIIdentity overrides the device's configuration-space identity.
func (b Builder) WithPCIIdentity(id PCIIdentity) Builder {
	b.identity = id
	return b
}

// WithNMP enables the near-memory processing subsystem.
func (b Builder) WithNMP() Builder {
	b.enableNMP = true
	return b
}

// WithNMPBinaryPath sets the file the NMP image is loaded from.
func (b Builder) WithNMPBinaryPath(path string) Builder {
	b.binaryPath = path
	return b
}

// WithNMPStartAddr sets the address the NMP image is placed at and the core
// starts fetching from.
func (b Builder) WithNMPStartAddr(addr uint64) Builder {
	b.nmpStart = addr
	return b
}

// WithNMPStackSize sets the stack carved from the top of the device range.
func (b Builder) WithNMPStackSize(size uint64) Builder {
	b.nmpStackLen = size
	return b
}

// WithNMPCoreKind sets the execution model of the embedded core.
func (b Builder) WithNMPCoreKind(kind nmp.CoreKind) Builder {
	b.coreKind = kind
	return b
}

// Build creates a memory expander device with the given name.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		Identity:     b.identity,
		backend:      b.backend,
		addrRange:    b.addrRange,
		protoProcLat: b.protoProcLat,
		reqQueue:     NewTransmitQueue(b.reqQueueCap),
		rspQueue:     NewTransmitQueue(b.rspQueueCap),
		acceptOrder:  make(map[string][]string),
		transactions: make(map[string]*transaction),
		fwdToOrig:    make(map[string]string),
		delivering:   make(map[string]*transaction),
	}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.TopPort = sim.NewLimitNumMsgPort(c, 4, name+".TopPort")
	c.AddPort("Top", c.TopPort)
	c.MemPort = sim.NewLimitNumMsgPort(c, 4, name+".MemPort")
	c.AddPort("Mem", c.MemPort)

	if b.enableNMP {
		c.NMPTopPort = sim.NewLimitNumMsgPort(c, 4, name+".NMPTopPort")
		c.AddPort("NMPTop", c.NMPTopPort)
		c.NMPMemPort = sim.NewLimitNumMsgPort(c, 4, name+".NMPMemPort")
		c.AddPort("NMPMem", c.NMPMemPort)

		c.nmpInflight = make(map[string]*nmpTransaction)
		c.nmpSub = nmp.MakeSubsystemBuilder().
			WithEngine(b.engine).
			WithBinaryPath(b.binaryPath).
			WithStartAddr(b.nmpStart).
			WithBase(b.addrRange.Base).
			WithRegionSize(b.addrRange.Size).
			WithStackSize(b.nmpStackLen).
			WithCoreKind(b.coreKind).
			Build(name + ".NMP")
	}

	return c
}
