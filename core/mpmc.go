package core

import (
	"runtime"
	"sync/atomic"
)

// mpmcSlot is one ring-buffer cell of an mpmcQueue: a sequence counter
// plus the stored Frame pointer. The sequence protocol (Vyukov's bounded
// MPMC ring buffer) lets producers and consumers race on disjoint slots
// without a lock: a slot is writable once its sequence equals the
// producer's position, and readable once it equals position+1.
type mpmcSlot struct {
	sequence atomic.Uint64
	frame    *Frame
}

// mpmcQueue is the bounded, lock-free, multi-producer multi-consumer ring
// buffer backing each priority band's ingress queue, used both for
// cross-scheduler migration and for the per-band dispatch queues a
// ThreadPool's workers contend on. Grounded on
// other_examples/utkarsh5026-poolme's mpmcQueue: same slot/sequence/CAS
// design, trimmed to the fibre domain's needs — non-blocking
// TryPush/TryPop only, since migration and dispatch are both best-effort
// retry-on-full protocols here, never blocking ones.
type mpmcQueue struct {
	slots []mpmcSlot
	mask  uint64

	enqueuePos atomic.Uint64
	dequeuePos atomic.Uint64
}

// nextPow2 rounds n up to the next power of two, minimum 2.
func nextPow2(n int) int {
	if n < 2 {
		return 2
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// newMPMCQueue builds a queue with at least capacity slots (rounded up to
// a power of two).
func newMPMCQueue(capacity int) *mpmcQueue {
	cap := nextPow2(capacity)
	q := &mpmcQueue{
		slots: make([]mpmcSlot, cap),
		mask:  uint64(cap - 1),
	}
	for i := range q.slots {
		q.slots[i].sequence.Store(uint64(i))
	}
	return q
}

func (q *mpmcQueue) Cap() int { return len(q.slots) }

// TryPush attempts to enqueue f without blocking. Returns false if the
// queue is full; f is untouched on failure, so the caller retains
// ownership and may retry. On success the queue owns the pointer until a
// consumer TryPops it.
func (q *mpmcQueue) TryPush(f *Frame) bool {
	pos := q.enqueuePos.Load()
	for {
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if q.enqueuePos.CompareAndSwap(pos, pos+1) {
				slot.frame = f
				slot.sequence.Store(pos + 1)
				return true
			}
		case diff < 0:
			return false
		default:
			runtime.Gosched()
		}
		pos = q.enqueuePos.Load()
	}
}

// TryPop attempts to dequeue a Frame without blocking. Returns (nil,
// false) if the queue is empty.
func (q *mpmcQueue) TryPop() (*Frame, bool) {
	pos := q.dequeuePos.Load()
	for {
		slot := &q.slots[pos&q.mask]
		seq := slot.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if q.dequeuePos.CompareAndSwap(pos, pos+1) {
				f := slot.frame
				slot.frame = nil
				slot.sequence.Store(pos + q.mask + 1)
				return f, true
			}
		case diff < 0:
			return nil, false
		default:
			runtime.Gosched()
		}
		pos = q.dequeuePos.Load()
	}
}

// Len returns a point-in-time estimate of queued items; exact only when
// no producer/consumer races it.
func (q *mpmcQueue) Len() int {
	enq := q.enqueuePos.Load()
	deq := q.dequeuePos.Load()
	if enq < deq {
		return 0
	}
	return int(enq - deq)
}
