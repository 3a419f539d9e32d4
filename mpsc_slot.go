// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// MPSCSlot is a CAS-based multi-producer single-consumer bounded queue
// backed by a single ring.
//
// Each slot carries its own sequence atomic instead of relying on a
// shared threshold: producers contend for a slot via CAS on tail, then
// publish by advancing that slot's sequence, so a producer that loses
// the race simply retries rather than blocking others. At position p on
// revolution k, a slot's sequence cycles through p+k·C (writable),
// p+k·C+1 (filled, readable), and p+(k+1)·C (consumed, writable again)
// — monotonic growth of the per-slot sequence prevents ABA on the tail
// CAS because a given revolution's tail value is never reused.
//
// Memory: n slots (16+ bytes per slot, depending on T).
type MPSCSlot[T any] struct {
	_        pad
	head     atomix.Uint64 // Consumer reads from here
	_        pad
	tail     atomix.Uint64 // Producers CAS here
	_        pad
	buffer   []slotStateSlot[T]
	mask     uint64
	capacity uint64
}

type slotStateSlot[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort // Pad to cache line
}

// NewMPSCSlot creates a new slot-state MPSC queue.
// Capacity rounds up to the next power of 2.
func NewMPSCSlot[T any](capacity int) *MPSCSlot[T] {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &MPSCSlot[T]{
		buffer:   make([]slotStateSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Enqueue adds an element to the queue (multiple producers safe).
// Returns ErrWouldBlock if the queue is full.
func (q *MPSCSlot[T]) Enqueue(elem *T) error {
	return q.EnqueueWithWriter(func(slot *T) { *slot = *elem })
}

// EnqueueWithWriter is the closure form of Enqueue: the writer is
// invoked only after the calling goroutine has won the CAS race for the
// reserved slot, so it runs at most once per successful call.
func (q *MPSCSlot[T]) EnqueueWithWriter(w Writer[T]) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadAcquire()

		if tail >= head+q.capacity {
			return ErrWouldBlock
		}

		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()

		if seq == tail {
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				w(&slot.data)
				slot.seq.StoreRelease(tail + 1)
				return nil
			}
		} else if seq < tail {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Dequeue removes and returns an element (single consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *MPSCSlot[T]) Dequeue() (T, error) {
	var elem T
	err := q.DequeueWithReader(func(slot *T) {
		elem = *slot
		var zero T
		*slot = zero
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return elem, nil
}

// DequeueWithReader is the closure form of Dequeue.
func (q *MPSCSlot[T]) DequeueWithReader(r Reader[T]) error {
	head := q.head.LoadRelaxed()
	slot := &q.buffer[head&q.mask]
	seq := slot.seq.LoadAcquire()

	if seq != head+1 {
		return ErrWouldBlock
	}

	r(&slot.data)
	slot.seq.StoreRelease(head + q.capacity)
	q.head.StoreRelease(head + 1)
	return nil
}

// Empty reports whether the queue is empty. Approximate under
// concurrency.
func (q *MPSCSlot[T]) Empty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Size returns the number of elements currently queued. Approximate
// under concurrency.
func (q *MPSCSlot[T]) Size() int {
	tail, head := q.tail.LoadAcquire(), q.head.LoadAcquire()
	if tail < head {
		return 0
	}
	return int(tail - head)
}

// Cap returns the queue's physical capacity. Unlike SPSC, MPSCSlot does
// not sacrifice a slot to disambiguate full from empty — fullness is
// detected via the per-slot sequence rather than identical head/tail —
// so usable capacity equals Cap().
func (q *MPSCSlot[T]) Cap() int {
	return int(q.capacity)
}
