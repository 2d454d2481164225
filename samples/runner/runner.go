package runner

import (
	"flag"
	"fmt"
	"log"

	"github.com/fatih/color"
	"github.com/tebeka/atexit"
	"gitlab.com/akita/akita/v3/monitoring"
	"gitlab.com/akita/akita/v3/sim"

	"github.com/AlfiRam/CXL-DMSim/nmp"
)

var numAccessFlag = flag.Uint64("num-access", 1024,
	"The number of memory accesses the host issues.")
var strideFlag = flag.Uint64("stride", 64,
	"The distance in bytes between consecutive host accesses.")
var writeEveryFlag = flag.Uint64("write-every", 0,
	"Make every n-th host access a write. 0 keeps the stream read-only.")
var maxInflightFlag = flag.Int("max-inflight", 8,
	"The number of host accesses kept in flight.")
var mediaLatencyFlag = flag.Int("media-latency", 100,
	"The access latency of the backend media, in cycles.")
var protoProcLatFlag = flag.Float64("proto-proc-lat", 15e-9,
	"The protocol processing delay per request, in seconds.")
var nmpFlag = flag.Bool("nmp", false,
	"Enable the near-memory processing subsystem.")
var nmpBinaryFlag = flag.String("nmp-binary", "",
	"The image to load for the NMP core. "+
		"Empty generates a pointer-chase chain in device memory.")
var nmpCoreFlag = flag.String("nmp-core", "timing",
	"The execution model of the NMP core: atomic, timing, or pipelined.")
var nmpHopsFlag = flag.Int("nmp-hops", 1024,
	"The number of hops of the generated pointer chase.")
var monitorFlag = flag.Bool("monitor", false,
	"Start the monitoring server.")

// Runner configures and drives one simulation.
type Runner struct {
	engine   sim.Engine
	platform *Platform
	monitor  *monitoring.Monitor

	enableNMP bool
	coreKind  nmp.CoreKind
	chaseHops int
}

// ParseFlag applies the command-line flags to the runner.
func (r *Runner) ParseFlag() *Runner {
	r.enableNMP = *nmpFlag
	r.chaseHops = *nmpHopsFlag

	kind, err := nmp.CoreKindFromString(*nmpCoreFlag)
	if err != nil {
		log.Panic(err)
	}
	r.coreKind = kind

	return r
}

// Init builds the platform.
func (r *Runner) Init() *Runner {
	r.engine = sim.NewSerialEngine()

	b := makePlatformBuilder().
		withEngine(r.engine).
		withMediaLatency(*mediaLatencyFlag).
		withProtoProcLat(sim.VTimeInSec(*protoProcLatFlag)).
		withTraffic(*numAccessFlag, *strideFlag, *writeEveryFlag,
			*maxInflightFlag)
	if r.enableNMP {
		b = b.withNMP(*nmpBinaryFlag, r.coreKind, r.chaseHops)
	}
	r.platform = b.build()

	if *monitorFlag {
		r.monitor = monitoring.NewMonitor()
		r.monitor.RegisterEngine(r.engine)
		r.monitor.RegisterComponent(r.platform.Host)
		r.monitor.RegisterComponent(r.platform.Device)
		r.monitor.RegisterComponent(r.platform.Media)
		if r.platform.Core != nil {
			r.monitor.RegisterComponent(r.platform.Core)
		}
		r.monitor.StartServer()
	}

	atexit.Register(r.report)

	return r
}

// Platform exposes the simulated system, mainly so that samples can adjust
// it before Run.
func (r *Runner) Platform() *Platform {
	return r.platform
}

// Run drives the simulation to completion and reports the results.
func (r *Runner) Run() {
	if r.enableNMP {
		r.startNMP()
	}

	r.platform.Host.TickLater(0)

	err := r.engine.Run()
	if err != nil {
		log.Panic(err)
	}

	atexit.Exit(0)
}

func (r *Runner) startNMP() {
	sub := r.platform.Device.NMP()

	err := r.platform.prepareNMPImage(r.chaseHops)
	if err != nil {
		log.Panic(err)
	}

	err = sub.StartExecution(0, sub.StartAddr(), sub.DeriveStackPointer())
	if err != nil {
		log.Panic(err)
	}
}

func (r *Runner) report() {
	host := r.platform.Host
	stats := r.platform.Device.ControllerStats()

	heading := color.New(color.FgGreen, color.Bold)
	heading.Println("Host traffic:")
	fmt.Printf("\taccesses completed:  %d\n", host.NumCompleted)
	fmt.Printf("\tavg latency:         %.2f ns\n", host.AvgLatency()*1e9)

	heading.Println("Expander controller:")
	id := r.platform.Device.Identity
	fmt.Printf("\tdevice:              %04x:%04x class 0x%02x\n",
		id.VendorID, id.DeviceID, id.ClassCode)
	fmt.Printf("\treq queue peak/full: %d / %d\n",
		stats.ReqQueueMaxLen, stats.ReqQueueFullEvents)
	fmt.Printf("\trsp queue peak/full: %d / %d\n",
		stats.RspQueueMaxLen, stats.RspQueueFullEvents)
	fmt.Printf("\tprotocol delay:      %.2f ns\n", stats.ProtoDelayTotal*1e9)

	if r.platform.Device.NMP() == nil {
		return
	}

	c := r.platform.Device.NMP().Counters()
	heading.Println("NMP:")
	fmt.Printf("\tstate:               %s\n", r.platform.Device.NMP().State())
	fmt.Printf("\texecutions:          %d\n", c.Executions)
	fmt.Printf("\tmem reads/writes:    %d / %d\n", c.Reads, c.Writes)
	if c.Reads+c.Writes > 0 {
		avg := c.AccessLatency /
			sim.VTimeInSec(c.Reads+c.Writes)
		fmt.Printf("\tavg access latency:  %.2f ns\n", avg*1e9)
	}
	fmt.Printf("\tactive cycles:       %d\n", c.ActiveCycles)
}
