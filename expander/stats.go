package expander

import (
	"github.com/pkg/math"
	"gitlab.com/akita/akita/v3/sim"
)

// CtrlStats counts controller-path events. The host-path access latency
// itself is derived externally from aggregate simulated time; these counters
// cover queue pressure and the protocol tax, which the outside cannot see.
type CtrlStats struct {
	ReqQueueFullEvents uint64
	RspQueueFullEvents uint64
	ReqSendSucceeded   uint64
	ReqSendFailed      uint64
	RspSendSucceeded   uint64
	RspSendFailed      uint64

	ReqQueueMaxLen int
	RspQueueMaxLen int

	// ProtoDelayTotal accumulates exactly the configured protocol processing
	// latency once per forwarded request, so the protocol-attributable share
	// of end-to-end latency can be read out and subtracted directly.
	ProtoDelayTotal sim.VTimeInSec

	// Time spent by packets inside the two queues, accumulated at dequeue.
	ReqQueueResidency sim.VTimeInSec
	RspQueueResidency sim.VTimeInSec
}

func (s *CtrlStats) sampleReqQueueLen(l int) {
	s.ReqQueueMaxLen = math.Max(s.ReqQueueMaxLen, l)
}

func (s *CtrlStats) sampleRspQueueLen(l int) {
	s.RspQueueMaxLen = math.Max(s.RspQueueMaxLen, l)
}
