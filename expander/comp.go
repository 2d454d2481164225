package expander

import (
	"log"
	"reflect"

	"gitlab.com/akita/akita/v3/sim"
	"gitlab.com/akita/akita/v3/tracing"
	"gitlab.com/akita/mem/v3/mem"

	"github.com/AlfiRam/CXL-DMSim/nmp"
)

// A transaction tracks one admitted request from acceptance to the delivery
// of its response.
type transaction struct {
	req        mem.AccessReq // the request as received
	fwd        mem.AccessReq // the copy forwarded to the backend
	acceptTime sim.VTimeInSec
	data       []byte // read data carried by the backend response
	done       bool   // backend response has arrived
}

// A queueReadyEvent wakes the device when the packet at the head of the
// ingress queue finishes its protocol processing delay.
type queueReadyEvent struct {
	*sim.EventBase
}

func newQueueReadyEvent(
	time sim.VTimeInSec,
	handler sim.Handler,
) *queueReadyEvent {
	evt := new(queueReadyEvent)
	evt.EventBase = sim.NewEventBase(time, handler)
	return evt
}

// Comp models a CXL-attached memory expander device. The host reaches the
// backend media through a bounded request queue, a fixed protocol processing
// delay, and a bounded response queue. When NMP is enabled, an embedded
// compute core reaches the same media through a dedicated port pair that
// bypasses both the queues and the protocol delay.
type Comp struct {
	*sim.TickingComponent

	// TopPort faces the host interconnect.
	TopPort sim.Port
	// MemPort faces the backend memory media, shared host path.
	MemPort sim.Port
	// NMPTopPort is where the embedded compute core plugs in. Nil unless NMP
	// is enabled.
	NMPTopPort sim.Port
	// NMPMemPort faces the backend memory media, NMP bypass path. Nil unless
	// NMP is enabled.
	NMPMemPort sim.Port

	Identity PCIIdentity

	backend      sim.Port
	addrRange    AddrRange
	protoProcLat sim.VTimeInSec

	reqQueue        *TransmitQueue
	rspQueue        *TransmitQueue
	outstandingRsps int

	// Per-source FIFO of accepted request IDs. Responses are released to the
	// egress queue only in this order, so a source never observes reordering.
	acceptOrder map[string][]string
	srcOrder    []string

	transactions map[string]*transaction // original request ID -> transaction
	fwdToOrig    map[string]string       // forwarded request ID -> original ID
	delivering   map[string]*transaction // response RspTo -> transaction

	nmpSub      *nmp.Subsystem
	nmpInflight map[string]*nmpTransaction

	stats CtrlStats
}

type nmpTransaction struct {
	req       mem.AccessReq
	issueTime sim.VTimeInSec
}

// Handle processes the events scheduled on the device.
func (c *Comp) Handle(evt sim.Event) error {
	switch evt := evt.(type) {
	case sim.TickEvent:
		return c.TickingComponent.Handle(evt)
	case *queueReadyEvent:
		c.TickLater(evt.Time())
	default:
		log.Panicf("cannot handle event of type %s", reflect.TypeOf(evt))
	}
	return nil
}

// Tick advances the device by one cycle.
func (c *Comp) Tick(now sim.VTimeInSec) bool {
	madeProgress := false

	madeProgress = c.deliverRsps(now) || madeProgress
	madeProgress = c.releaseOrderedRsps(now) || madeProgress
	madeProgress = c.collectBackendRsps(now) || madeProgress
	madeProgress = c.forwardReqs(now) || madeProgress
	madeProgress = c.acceptHostReqs(now) || madeProgress

	if c.nmpSub != nil {
		madeProgress = c.collectNMPRsps(now) || madeProgress
		madeProgress = c.forwardNMPReqs(now) || madeProgress
	}

	return madeProgress
}

// IsInRange answers device-memory membership for the dispatcher. Routing an
// out-of-range access to this device is the dispatcher's fault.
func (c *Comp) IsInRange(addr uint64) bool {
	return c.addrRange.Contains(addr)
}

// AddrRange returns the claimed window.
func (c *Comp) AddrRange() AddrRange {
	return c.addrRange
}

// NMP returns the NMP subsystem, or nil when NMP is disabled.
func (c *Comp) NMP() *nmp.Subsystem {
	return c.nmpSub
}

// ControllerStats returns a copy of the controller counters.
func (c *Comp) ControllerStats() CtrlStats {
	return c.stats
}

// acceptHostReqs admits the next host request if the ingress queue has room
// and egress space can be reserved for its response. A request left in the
// port is the backpressure signal: the port rejects further deliveries and
// the connection makes the sender retry.
func (c *Comp) acceptHostReqs(now sim.VTimeInSec) bool {
	item := c.TopPort.Peek()
	if item == nil {
		return false
	}

	req := c.asAccessReq(item)
	if !c.addrRange.Contains(req.GetAddress()) {
		log.Panicf("access at 0x%x is outside the device range %s",
			req.GetAddress(), c.addrRange)
	}

	if c.reqQueue.Full() {
		c.stats.ReqQueueFullEvents++
		return false
	}

	if c.outstandingRsps >= c.rspQueue.Capacity() {
		c.stats.RspQueueFullEvents++
		return false
	}

	c.TopPort.Retrieve(now)
	c.outstandingRsps++

	srcName := req.Meta().Src.Name()
	if _, seen := c.acceptOrder[srcName]; !seen {
		c.srcOrder = append(c.srcOrder, srcName)
	}
	c.acceptOrder[srcName] = append(c.acceptOrder[srcName], req.Meta().ID)
	c.transactions[req.Meta().ID] = &transaction{
		req:        req,
		acceptTime: now,
	}

	readyAt := now + c.protoProcLat
	c.reqQueue.Push(req, now, readyAt)
	c.stats.sampleReqQueueLen(c.reqQueue.Len())
	c.Engine.Schedule(newQueueReadyEvent(readyAt, c))

	tracing.TraceReqReceive(req, c)

	return true
}

// forwardReqs moves the head of the ingress queue to the backend once its
// protocol processing delay has elapsed.
func (c *Comp) forwardReqs(now sim.VTimeInSec) bool {
	entry := c.reqQueue.Peek()
	if entry == nil || entry.ReadyAt > now {
		return false
	}

	orig := entry.Msg.(mem.AccessReq)
	fwd := c.cloneReqForBackend(orig, c.MemPort, now)

	err := c.MemPort.Send(fwd)
	if err != nil {
		c.stats.ReqSendFailed++
		return false
	}

	c.reqQueue.Pop()
	c.stats.ReqSendSucceeded++
	c.stats.ProtoDelayTotal += c.protoProcLat
	c.stats.ReqQueueResidency += now - entry.EnqueueTime

	trans := c.transactions[orig.Meta().ID]
	trans.fwd = fwd
	c.fwdToOrig[fwd.Meta().ID] = orig.Meta().ID

	tracing.TraceReqInitiate(fwd, c, tracing.MsgIDAtReceiver(orig, c))

	return true
}

// collectBackendRsps takes one backend response and marks its transaction
// complete. Release to the egress queue happens separately, in acceptance
// order.
func (c *Comp) collectBackendRsps(now sim.VTimeInSec) bool {
	item := c.MemPort.Peek()
	if item == nil {
		return false
	}

	c.MemPort.Retrieve(now)

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

	origID, found := c.fwdToOrig[rspTo]
	if !found {
		log.Panicf("response %s does not match any in-flight request", rspTo)
	}
	delete(c.fwdToOrig, rspTo)

	trans := c.transactions[origID]
	trans.data = data
	trans.done = true

	tracing.TraceReqFinalize(trans.fwd, c)

	return true
}

// releaseOrderedRsps moves completed transactions into the egress queue, per
// source port, in the order their requests were accepted. Egress space is
// guaranteed by the reservation taken at acceptance.
func (c *Comp) releaseOrderedRsps(now sim.VTimeInSec) bool {
	madeProgress := false

	for _, srcName := range c.srcOrder {
		order := c.acceptOrder[srcName]
		for len(order) > 0 {
			trans := c.transactions[order[0]]
			if !trans.done {
				break
			}

			rsp := c.buildRspFor(trans, c.TopPort, now)
			c.rspQueue.Push(rsp, now, now)
			c.stats.sampleRspQueueLen(c.rspQueue.Len())
			c.delivering[order[0]] = trans

			order = order[1:]
			madeProgress = true
		}
		c.acceptOrder[srcName] = order
	}

	return madeProgress
}

// deliverRsps sends the head of the egress queue back to the requester.
func (c *Comp) deliverRsps(now sim.VTimeInSec) bool {
	entry := c.rspQueue.Peek()
	if entry == nil || entry.ReadyAt > now {
		return false
	}

	entry.Msg.Meta().SendTime = now
	err := c.TopPort.Send(entry.Msg)
	if err != nil {
		c.stats.RspSendFailed++
		return false
	}

	c.rspQueue.Pop()
	c.outstandingRsps--
	c.stats.RspSendSucceeded++
	c.stats.RspQueueResidency += now - entry.EnqueueTime

	var rspTo string
	switch rsp := entry.Msg.(type) {
	case *mem.DataReadyRsp:
		rspTo = rsp.RespondTo
	case *mem.WriteDoneRsp:
		rspTo = rsp.RespondTo
	default:
		log.Panicf("cannot deliver response of type %s",
			reflect.TypeOf(entry.Msg))
	}

	trans := c.delivering[rspTo]
	delete(c.delivering, rspTo)
	delete(c.transactions, rspTo)

	tracing.TraceReqComplete(trans.req, c)

	return true
}

// forwardNMPReqs passes a core request straight to the backend. No queueing,
// no protocol delay.
func (c *Comp) forwardNMPReqs(now sim.VTimeInSec) bool {
	item := c.NMPTopPort.Peek()
	if item == nil {
		return false
	}

	req := c.asAccessReq(item)
	fwd := c.cloneReqForBackend(req, c.NMPMemPort, now)

	err := c.NMPMemPort.Send(fwd)
	if err != nil {
		return false
	}

	c.NMPTopPort.Retrieve(now)
	c.nmpInflight[fwd.Meta().ID] = &nmpTransaction{
		req:       req,
		issueTime: req.Meta().SendTime,
	}

	return true
}

// collectNMPRsps returns a backend response to the core and samples the NMP
// counters.
func (c *Comp) collectNMPRsps(now sim.VTimeInSec) bool {
	item := c.NMPMemPort.Peek()
	if item == nil {
		return false
	}

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

	trans, found := c.nmpInflight[rspTo]
	if !found {
		log.Panicf("NMP response %s does not match any in-flight request",
			rspTo)
	}

	coreRsp := c.buildRspFor(
		&transaction{req: trans.req, data: data}, c.NMPTopPort, now)
	err := c.NMPTopPort.Send(coreRsp)
	if err != nil {
		return false
	}

	c.NMPMemPort.Retrieve(now)
	delete(c.nmpInflight, rspTo)

	bank := c.nmpSub.Bank()
	latency := now - trans.issueTime
	switch trans.req.(type) {
	case *mem.ReadReq:
		bank.RecordRead(latency)
	case *mem.WriteReq:
		bank.RecordWrite(latency)
	}

	return true
}

func (c *Comp) asAccessReq(item sim.Msg) mem.AccessReq {
	switch req := item.(type) {
	case *mem.ReadReq:
		return req
	case *mem.WriteReq:
		return req
	default:
		log.Panicf("cannot handle request of type %s", reflect.TypeOf(item))
	}
	return nil
}

func (c *Comp) cloneReqForBackend(
	req mem.AccessReq,
	src sim.Port,
	now sim.VTimeInSec,
) mem.AccessReq {
	switch req := req.(type) {
	case *mem.ReadReq:
		return mem.ReadReqBuilder{}.
			WithSendTime(now).
			WithSrc(src).
			WithDst(c.backend).
			WithAddress(req.Address).
			WithByteSize(req.AccessByteSize).
			WithPID(req.PID).
			Build()
	case *mem.WriteReq:
		return mem.WriteReqBuilder{}.
			WithSendTime(now).
			WithSrc(src).
			WithDst(c.backend).
			WithAddress(req.Address).
			WithData(req.Data).
			WithDirtyMask(req.DirtyMask).
			WithPID(req.PID).
			Build()
	default:
		log.Panicf("cannot forward request of type %s", reflect.TypeOf(req))
	}
	return nil
}

func (c *Comp) buildRspFor(
	trans *transaction,
	from sim.Port,
	now sim.VTimeInSec,
) sim.Msg {
	switch req := trans.req.(type) {
	case *mem.ReadReq:
		return mem.DataReadyRspBuilder{}.
			WithSendTime(now).
			WithSrc(from).
			WithDst(req.Src).
			WithRspTo(req.ID).
			WithData(trans.data).
			Build()
	case *mem.WriteReq:
		return mem.WriteDoneRspBuilder{}.
			WithSendTime(now).
			WithSrc(from).
			WithDst(req.Src).
			WithRspTo(req.ID).
			Build()
	default:
		log.Panicf("cannot respond to request of type %s",
			reflect.TypeOf(trans.req))
	}
	return nil
}
