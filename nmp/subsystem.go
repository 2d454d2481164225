package nmp

import (
	"fmt"
	"log"
	"reflect"

	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/mem/v3/mem"
)

// A Core is the embedded compute unit that the Subsystem arms and observes.
// The Subsystem does not own the core's execution; it only injects the entry
// state and activates it.
type Core interface {
	sim.Named
	SetEntry(pc, sp uint64)
	Activate(now sim.VTimeInSec)
}

// A Subsystem owns the near-memory-processing extension of the expander: the
// core lifecycle state machine, the image loader, the counter bank, and the
// exit callbacks. All state transitions go through the Subsystem; no other
// component mutates the core state.
type Subsystem struct {
	name   string
	engine sim.Engine

	state CoreState
	core  Core
	bank  CounterBank

	binaryPath string
	startAddr  uint64
	base       uint64
	regionSize uint64
	stackSize  uint64
	coreKind   CoreKind
	imageSize  uint64

	exitCallbacks []ExitCallback
}

// Name returns the name of the subsystem.
func (s *Subsystem) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Subsystem) State() CoreState {
	return s.state
}

// CoreKind returns the configured timing fidelity of the embedded core.
func (s *Subsystem) CoreKind() CoreKind {
	return s.coreKind
}

// StartAddr returns where execution starts and the image is placed.
func (s *Subsystem) StartAddr() uint64 {
	return s.startAddr
}

// ImageSize returns the size of the loaded image, zero before loading.
func (s *Subsystem) ImageSize() uint64 {
	return s.imageSize
}

// BinaryPath returns the configured binary path, empty when the image is
// provided in memory instead.
func (s *Subsystem) BinaryPath() string {
	return s.binaryPath
}

// Counters is the read accessor the external statistics collaborator uses.
func (s *Subsystem) Counters() Counters {
	return s.bank.Snapshot()
}

// Bank exposes the mutable counter bank to the device's NMP port path and to
// the core. External reporting should use Counters instead.
func (s *Subsystem) Bank() *CounterBank {
	return &s.bank
}

// ResetCounters clears the counter bank on an explicit external request.
func (s *Subsystem) ResetCounters() {
	s.bank.Reset()
}

// RegisterExitCallback registers a callback invoked when an execution
// completes. Callbacks run in registration order.
func (s *Subsystem) RegisterExitCallback(cb ExitCallback) {
	s.exitCallbacks = append(s.exitCallbacks, cb)
}

// AttachCore registers the compute-core instance the subsystem will drive.
func (s *Subsystem) AttachCore(core Core) error {
	if s.state != StateUnconfigured {
		return fmt.Errorf("cannot attach a core in state %s", s.state)
	}

	if core == nil {
		return fmt.Errorf("cannot attach a nil core")
	}

	s.core = core

	return nil
}

// LoadImage reads the configured binary and places it at the start address,
// completing the Unconfigured → Loaded transition.
func (s *Subsystem) LoadImage(storage *mem.Storage) error {
	return s.load(func(l ImageLoader) (uint64, error) {
		return l.LoadFile(s.binaryPath)
	}, storage)
}

// LoadImageBytes is LoadImage for an image that is already in memory.
func (s *Subsystem) LoadImageBytes(storage *mem.Storage, data []byte) error {
	return s.load(func(l ImageLoader) (uint64, error) {
		return l.LoadBytes(data)
	}, storage)
}

func (s *Subsystem) load(
	doLoad func(ImageLoader) (uint64, error),
	storage *mem.Storage,
) error {
	if s.state != StateUnconfigured {
		return fmt.Errorf("cannot load an image in state %s", s.state)
	}

	if s.core == nil {
		return fmt.Errorf("cannot load an image before a core is attached")
	}

	loader := ImageLoader{
		Storage:   storage,
		StartAddr: s.startAddr,
		Limit:     s.regionSize - s.stackSize,
	}

	size, err := doLoad(loader)
	if err != nil {
		return err
	}

	s.imageSize = size
	s.state = StateLoaded

	return nil
}

// Arm injects the start instruction pointer and the stack pointer into the
// core, completing the Loaded → Armed transition.
func (s *Subsystem) Arm(pc, sp uint64) error {
	if s.state != StateLoaded {
		return fmt.Errorf("cannot arm the core in state %s", s.state)
	}

	s.core.SetEntry(pc, sp)
	s.state = StateArmed

	return nil
}

// Start activates the core, completing the Armed → Running transition.
func (s *Subsystem) Start(now sim.VTimeInSec) error {
	if s.state != StateArmed {
		return fmt.Errorf("cannot start the core in state %s", s.state)
	}

	s.bank.RecordExecution()
	s.core.Activate(now)
	s.state = StateRunning

	return nil
}

// StartExecution arms the core and starts it in one call.
func (s *Subsystem) StartExecution(
	now sim.VTimeInSec,
	pc, sp uint64,
) error {
	err := s.Arm(pc, sp)
	if err != nil {
		return err
	}

	return s.Start(now)
}

// DeriveStackPointer computes the stack pointer for this subsystem's
// configured region.
func (s *Subsystem) DeriveStackPointer() uint64 {
	return DeriveStackPointer(s.base, s.regionSize, s.stackSize)
}

// Handle processes the events scheduled on the subsystem.
func (s *Subsystem) Handle(evt sim.Event) error {
	switch evt := evt.(type) {
	case *ExecCompletionEvent:
		s.handleExecCompletion(evt)
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(evt))
	}
	return nil
}

func (s *Subsystem) handleExecCompletion(evt *ExecCompletionEvent) {
	if s.state != StateRunning {
		log.Panicf("workload exit signaled in state %s", s.state)
	}

	s.state = StateHalted

	for _, cb := range s.exitCallbacks {
		cb(evt.Time())
	}
}

// A SubsystemBuilder builds NMP subsystems.
type SubsystemBuilder struct {
	engine     sim.Engine
	binaryPath string
	startAddr  uint64
	base       uint64
	regionSize uint64
	stackSize  uint64
	coreKind   CoreKind
}

// MakeSubsystemBuilder returns a builder with default configuration.
func MakeSubsystemBuilder() SubsystemBuilder {
	return SubsystemBuilder{
		startAddr:  0x100000000,
		base:       0x100000000,
		regionSize: 2 * mem.GB,
		stackSize:  1 * mem.MB,
		coreKind:   TimingCore,
	}
}

// WithEngine sets the event engine.
func (b SubsystemBuilder) WithEngine(engine sim.Engine) SubsystemBuilder {
	b.engine = engine
	return b
}

// WithBinaryPath sets the path of the binary image to run on the core.
func (b SubsystemBuilder) WithBinaryPath(path string) SubsystemBuilder {
	b.binaryPath = path
	return b
}

// WithStartAddr sets the address execution starts from and the image is
// placed at.
func (b SubsystemBuilder) WithStartAddr(addr uint64) SubsystemBuilder {
	b.startAddr = addr
	return b
}

// WithBase sets the base of the device's claimed address window.
func (b SubsystemBuilder) WithBase(base uint64) SubsystemBuilder {
	b.base = base
	return b
}

// WithRegionSize sets the size of the device's local memory region.
func (b SubsystemBuilder) WithRegionSize(size uint64) SubsystemBuilder {
	b.regionSize = size
	return b
}

// WithStackSize sets the size of the stack region reserved at the top of the
// device's local memory.
func (b SubsystemBuilder) WithStackSize(size uint64) SubsystemBuilder {
	b.stackSize = size
	return b
}

// WithCoreKind selects the timing fidelity of the embedded core.
func (b SubsystemBuilder) WithCoreKind(kind CoreKind) SubsystemBuilder {
	b.coreKind = kind
	return b
}

// Build creates the subsystem. Invalid configuration fails here, before the
// simulation starts.
func (b SubsystemBuilder) Build(name string) *Subsystem {
	if b.coreKind < 0 || b.coreKind >= numCoreKinds {
		log.Panicf("unknown NMP core kind %d", int(b.coreKind))
	}

	if b.stackSize >= b.regionSize {
		log.Panicf("reserved stack of 0x%x does not fit in a region of 0x%x",
			b.stackSize, b.regionSize)
	}

	return &Subsystem{
		name:       name,
		engine:     b.engine,
		state:      StateUnconfigured,
		binaryPath: b.binaryPath,
		startAddr:  b.startAddr,
		base:       b.base,
		regionSize: b.regionSize,
		stackSize:  b.stackSize,
		coreKind:   b.coreKind,
	}
}
