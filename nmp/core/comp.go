package core

import (
	"log"
	"reflect"

	"github.com/rs/xid"
	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/akita/v3/tracing"
	"gitlab.com/akita/mem/v3/mem"

	"github.com/AlfiRam/CXL-DMSim/nmp"
)

// Comp is the compute core embedded next to the memory media. It issues
// memory operations exclusively through its own port, which the expander
// forwards to the backend without queueing or protocol processing. The core
// stays idle until the NMP subsystem injects its entry state and activates
// it.
type Comp struct {
	*sim.TickingComponent

	// ToMem is the core's memory port.
	ToMem sim.Port

	lowModule sim.Port
	kind      nmp.CoreKind
	program   Program
	bank      *nmp.CounterBank

	// completionHandler receives the ExecCompletionEvent when the workload
	// signals exit. Usually the NMP subsystem.
	completionHandler sim.Handler

	pc, sp   uint64
	entrySet bool
	running  bool

	window           int
	issueLat         int
	cyclesUntilIssue int

	execID   string
	inflight map[string]Access
	pending  *pendingAccess
}

type pendingAccess struct {
	acc Access
	req mem.AccessReq
}

// StackPointer returns the injected stack pointer.
func (c *Comp) StackPointer() uint64 {
	return c.sp
}

// SetEntry injects the start instruction pointer and the stack pointer. The
// subsystem calls this when arming the core.
func (c *Comp) SetEntry(pc, sp uint64) {
	c.pc = pc
	c.sp = sp
	c.entrySet = true
}

// Activate starts executing the program from the injected entry state.
func (c *Comp) Activate(now sim.VTimeInSec) {
	if !c.entrySet {
		log.Panicf("core %s activated before its entry state was set",
			c.Name())
	}

	c.running = true
	c.execID = xid.New().String()
	c.program.Reset(c.pc)
	c.cyclesUntilIssue = 0

	tracing.StartTask(c.execID, "", c, "nmp_exec", "nmp_exec", nil)

	c.TickLater(now)
}

// IsRunning tells whether an execution is in flight.
func (c *Comp) IsRunning() bool {
	return c.running
}

// Tick advances the core by one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	if !c.running {
		return false
	}

	c.bank.AddActiveCycles(1)

	madeProgress := false
	madeProgress = c.collectRsps(now) || madeProgress
	madeProgress = c.issue(now) || madeProgress
	madeProgress = c.completeIfDone(now) || madeProgress

	return madeProgress
}

func (c *Comp) collectRsps(now sim.VTimeInSec) bool {
	item := c.ToMem.Peek()
	if item == nil {
		return false
	}

	c.ToMem.Retrieve(now)

	var rspTo string
	var data []byte
	switch rsp := item.(type) {
	case *mem.DataReadyRsp:
		rspTo = rsp.RespondTo
		data = rsp.Data
	case *mem.WriteDoneRsp:
		rspTo = rsp.RespondTo
	default:
		log.Panicf("cannot handle response of type %s", reflect.TypeOf(item))
	}

	acc, found := c.inflight[rspTo]
	if !found {
		log.Panicf("response %s does not match any access", rspTo)
	}
	delete(c.inflight, rspTo)

	c.program.Observe(acc, data)

	return true
}

func (c *Comp) issue(now sim.VTimeInSec) bool {
	if c.cyclesUntilIssue > 0 {
		c.cyclesUntilIssue--
		return true
	}

	if len(c.inflight) >= c.window {
		return false
	}

	if c.pending == nil {
		acc, ok := c.program.Next()
		if !ok {
			return false
		}
		c.pending = &pendingAccess{
			acc: acc,
			req: c.buildReq(acc, now),
		}
	}

	c.pending.req.Meta().SendTime = now
	err := c.ToMem.Send(c.pending.req)
	if err != nil {
		return false
	}

	c.inflight[c.pending.req.Meta().ID] = c.pending.acc
	c.pending = nil
	c.cyclesUntilIssue = c.issueLat

	return true
}

func (c *Comp) buildReq(acc Access, now sim.VTimeInSec) mem.AccessReq {
	if acc.IsWrite {
		return mem.WriteReqBuilder{}.
			WithSendTime(now).
			WithSrc(c.ToMem).
			WithDst(c.lowModule).
			WithAddress(acc.Address).
			WithData(acc.Data).
			WithPID(1).
			Build()
	}

	return mem.ReadReqBuilder{}.
		WithSendTime(now).
		WithSrc(c.ToMem).
		WithDst(c.lowModule).
		WithAddress(acc.Address).
		WithByteSize(acc.ByteSize).
		WithPID(1).
		Build()
}

func (c *Comp) completeIfDone(now sim.VTimeInSec) bool {
	if !c.program.Done() || len(c.inflight) > 0 || c.pending != nil {
		return false
	}

	c.running = false

	tracing.EndTask(c.execID, c)

	if c.completionHandler != nil {
		c.Engine.Schedule(
			nmp.NewExecCompletionEvent(now, c.completionHandler, c.execID))
	}

	return true
}
