package expander

import (
	"container/list"

	"gitlab.com/akita/akita/v3/sim"
)

// A DeferredPacket is a packet sitting in a transmit queue, together with the
// time it entered the queue and the earliest time it may leave.
type DeferredPacket struct {
	Msg         sim.Msg
	EnqueueTime sim.VTimeInSec
	ReadyAt     sim.VTimeInSec
}

// A TransmitQueue is a bounded FIFO of in-flight packets. Pushing into a full
// queue is rejected, never dropped. Packets leave in insertion order, but no
// earlier than their ready time.
type TransmitQueue struct {
	l        *list.List
	capacity int
}

// NewTransmitQueue creates a queue that holds at most capacity packets.
func NewTransmitQueue(capacity int) *TransmitQueue {
	return &TransmitQueue{
		l:        list.New(),
		capacity: capacity,
	}
}

// Push inserts a packet at the tail. It returns false if the queue is full.
func (q *TransmitQueue) Push(
	msg sim.Msg,
	enqueueTime, readyAt sim.VTimeInSec,
) bool {
	if q.Full() {
		return false
	}

	q.l.PushBack(&DeferredPacket{
		Msg:         msg,
		EnqueueTime: enqueueTime,
		ReadyAt:     readyAt,
	})

	return true
}

// Peek returns the packet at the head without removing it, or nil if the
// queue is empty.
func (q *TransmitQueue) Peek() *DeferredPacket {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*DeferredPacket)
}

// Pop removes and returns the packet at the head, or nil if the queue is
// empty.
func (q *TransmitQueue) Pop() *DeferredPacket {
	front := q.l.Front()
	if front == nil {
		return nil
	}
	return q.l.Remove(front).(*DeferredPacket)
}

// Len returns the number of packets currently queued.
func (q *TransmitQueue) Len() int {
	return q.l.Len()
}

// Capacity returns the configured bound.
func (q *TransmitQueue) Capacity() int {
	return q.capacity
}

// Full tells whether another Push would be rejected.
func (q *TransmitQueue) Full() bool {
	return q.l.Len() >= q.capacity
}
