// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// SeqMPSC is a multi-producer single-consumer queue indexed by a
// caller-supplied (or internally drawn) monotonic sequence number.
//
// Unlike SPSC and MPSCSlot, SeqMPSC does not return ErrWouldBlock from
// Push/Pop: slot idx = seq mod C carries a phase counter, and both
// sides spin-yield on phase match rather than failing fast. A producer
// publishing seq spins until the slot from seq's prior revolution has
// been popped; the consumer spins until the slot for its next expected
// seq has been published. The consumer therefore observes an exact,
// gap-free, monotonically increasing sequence of values — if a producer
// never publishes a seq the consumer is waiting on, Pop blocks on that
// slot indefinitely. Callers needing a bound must layer a timeout or
// skip policy on top; this queue only provides the ordering primitive.
//
// Misuse note: an in-flight sequence range wider than capacity is a
// contract violation and produces undefined results.
type SeqMPSC[T any] struct {
	_        pad
	nextSeq  atomix.Uint64 // internal counter for auto-sequenced Push
	pushed   atomix.Uint64 // sequences published so far, by Push or PushAt
	_        pad
	expected uint64 // consumer-private: next seq to pop
	_        pad
	buffer   []seqSlot[T]
	mask     uint64
	capacity uint64
}

type seqSlot[T any] struct {
	seq  atomix.Uint64
	data T
	_    padShort
}

// NewSeqMPSC creates a new Seq-MPSC queue. Capacity rounds up to the
// next power of 2.
func NewSeqMPSC[T any](capacity int) *SeqMPSC[T] {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	q := &SeqMPSC[T]{
		buffer:   make([]seqSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}

	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}

	return q
}

// Push draws the next sequence number from an internal counter and
// publishes elem at that sequence, spin-yielding until the slot is
// writable. Returns the assigned sequence number.
func (q *SeqMPSC[T]) Push(elem *T) uint64 {
	seq := q.nextSeq.AddAcqRel(1) - 1
	q.PushAt(seq, elem)
	return seq
}

// PushWithWriter is the closure form of Push: it draws the next
// sequence number from the internal counter and invokes w with a
// pointer into the reserved slot instead of copying a value in.
// Returns the assigned sequence number.
func (q *SeqMPSC[T]) PushWithWriter(w Writer[T]) uint64 {
	seq := q.nextSeq.AddAcqRel(1) - 1
	q.PushAtWithWriter(seq, w)
	return seq
}

// PushAt publishes elem at a caller-supplied sequence number,
// spin-yielding until the slot for seq becomes writable (i.e. the
// consumer has finished the prior revolution's occupant).
func (q *SeqMPSC[T]) PushAt(seq uint64, elem *T) {
	q.PushAtWithWriter(seq, func(slot *T) { *slot = *elem })
}

// PushAtWithWriter is the closure form of PushAt.
func (q *SeqMPSC[T]) PushAtWithWriter(seq uint64, w Writer[T]) {
	slot := &q.buffer[seq&q.mask]
	sw := spin.Wait{}
	for slot.seq.LoadAcquire() != seq {
		sw.Once()
	}
	w(&slot.data)
	q.pushed.AddAcqRel(1)
	slot.seq.StoreRelease(seq + 1)
}

// Pop spin-yields until the next expected sequence's slot is readable,
// then returns its value. Pop must be called from a single goroutine.
func (q *SeqMPSC[T]) Pop() T {
	var out T
	q.PopWithReader(func(slot *T) { out = *slot })
	return out
}

// PopWithReader is the closure form of Pop.
func (q *SeqMPSC[T]) PopWithReader(r Reader[T]) {
	e := q.expected
	slot := &q.buffer[e&q.mask]
	sw := spin.Wait{}
	for slot.seq.LoadAcquire() != e+1 {
		sw.Once()
	}
	r(&slot.data)
	slot.seq.StoreRelease(e + q.capacity)
	q.expected = e + 1
}

// Cap returns the queue's physical capacity. No slot is sacrificed:
// the widest in-flight sequence span the queue tolerates is Cap().
func (q *SeqMPSC[T]) Cap() int {
	return int(q.capacity)
}

// Empty reports whether every pushed sequence has been popped.
// Call only from the consumer goroutine: expected is consumer-private
// and unsynchronized, so calling this concurrently with Pop races.
func (q *SeqMPSC[T]) Empty() bool {
	return q.expected == q.pushed.LoadAcquire()
}

// Size returns the number of pushed-but-not-yet-popped sequences.
// Call only from the consumer goroutine, for the same reason as Empty.
func (q *SeqMPSC[T]) Size() int {
	return int(q.pushed.LoadAcquire() - q.expected)
}
