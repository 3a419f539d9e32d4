// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// ReorderSource is anything a Reorderer can drain: an unordered queue
// whose Dequeue returns ErrWouldBlock when momentarily empty. MPSCSlot,
// ShardedMPSC, and SPSC all satisfy it.
type ReorderSource[T any] interface {
	Dequeue() (T, error)
}

// SeqFunc extracts the ordering key from a dequeued element. Go has no
// generic field-access equivalent to reaching into T directly, so the
// Reorderer takes this as an explicit parameter instead.
type SeqFunc[T any] func(T) uint64

// Reorderer runs a background worker that drains an unordered
// ReorderSource and republishes its elements, in strictly ascending
// sequence order, to a private SPSC output for a single external
// consumer.
//
// Out-of-order arrivals are staged in a small direct-mapped fast buffer
// keyed by seq mod F; a collision in the fast buffer overflows whichever
// of the two entries sits farther from the current watermark into a
// map. Arrivals whose sequence is already below the watermark are
// stale and are discarded, incrementing StaleDiscarded.
type Reorderer[T any] struct {
	src   ReorderSource[T]
	seqOf SeqFunc[T]

	output *SPSC[T]

	fastBuffer []reorderSlot[T]
	fastMask   uint64
	overflow   map[uint64]T

	expected uint64 // worker-private: next seq to emit

	processed      atomix.Uint64
	directHit      atomix.Uint64
	l1Cached       atomix.Uint64
	l2Cached       atomix.Uint64
	maxGap         atomix.Uint64
	staleDiscarded atomix.Uint64

	stop atomix.Bool
	wg   sync.WaitGroup
}

type reorderSlot[T any] struct {
	occupied bool
	seq      uint64
	data     T
}

// NewReorderer creates a Reorderer draining src, extracting each
// arrival's ordering key via seqOf, starting the expected sequence at
// startSeq. output is the capacity of the private ordered SPSC that
// feeds the external consumer; fastBufferSize is the size of the
// direct-mapped staging buffer (rounded up to a power of 2).
func NewReorderer[T any](src ReorderSource[T], seqOf SeqFunc[T], startSeq uint64, outputCapacity, fastBufferSize int) *Reorderer[T] {
	n := uint64(roundToPow2(fastBufferSize))
	return &Reorderer[T]{
		src:        src,
		seqOf:      seqOf,
		output:     NewSPSC[T](outputCapacity),
		fastBuffer: make([]reorderSlot[T], n),
		fastMask:   n - 1,
		overflow:   make(map[uint64]T),
		expected:   startSeq,
	}
}

// Start launches the background reorder worker. Call Close to stop it.
func (r *Reorderer[T]) Start() {
	r.wg.Add(1)
	go r.run()
}

// Close signals the worker to stop and waits for it to exit, flushing
// whatever runs are already contiguous before returning.
func (r *Reorderer[T]) Close() {
	r.stop.StoreRelease(true)
	r.wg.Wait()
}

// Dequeue removes the next in-order element for the external consumer.
// Returns ErrWouldBlock if nothing is ready yet.
func (r *Reorderer[T]) Dequeue() (T, error) {
	return r.output.Dequeue()
}

func (r *Reorderer[T]) run() {
	defer r.wg.Done()

	backoff := iox.Backoff{}
	for !r.stop.LoadAcquire() {
		v, err := r.src.Dequeue()
		if err != nil {
			backoff.Wait()
			continue
		}
		backoff.Reset()
		r.process(v)
		r.drainReady()
	}
	r.drainReady()
}

func (r *Reorderer[T]) process(v T) {
	seq := r.seqOf(v)
	r.processed.AddAcqRel(1)

	switch {
	case seq == r.expected:
		r.directHit.AddAcqRel(1)
		r.emit(v)
		r.expected++
	case seq < r.expected:
		r.staleDiscarded.AddAcqRel(1)
	default:
		if gap := seq - r.expected; gap > r.maxGap.LoadAcquire() {
			r.maxGap.StoreRelease(gap)
		}
		r.stage(seq, v)
	}
}

// stage places an out-of-order arrival into the fast buffer, spilling
// whichever of a colliding pair is farther from expected into overflow.
func (r *Reorderer[T]) stage(seq uint64, v T) {
	idx := seq & r.fastMask
	slot := &r.fastBuffer[idx]

	if !slot.occupied {
		slot.occupied, slot.seq, slot.data = true, seq, v
		r.l1Cached.AddAcqRel(1)
		return
	}
	if slot.seq == seq {
		slot.data = v
		return
	}

	if slot.seq-r.expected <= seq-r.expected {
		r.overflow[seq] = v
	} else {
		r.overflow[slot.seq] = slot.data
		slot.seq, slot.data = seq, v
	}
	r.l2Cached.AddAcqRel(1)
}

// drainReady emits every contiguous run starting at expected that is
// already staged, in order.
func (r *Reorderer[T]) drainReady() {
	for {
		idx := r.expected & r.fastMask
		slot := &r.fastBuffer[idx]

		if slot.occupied && slot.seq == r.expected {
			r.emit(slot.data)
			slot.occupied = false
			r.expected++
			continue
		}
		if v, ok := r.overflow[r.expected]; ok {
			r.emit(v)
			delete(r.overflow, r.expected)
			r.expected++
			continue
		}
		return
	}
}

// emit publishes v to the output SPSC, backing off if the consumer is
// lagging. It gives up once the worker has been asked to stop.
func (r *Reorderer[T]) emit(v T) {
	backoff := iox.Backoff{}
	for r.output.Enqueue(&v) != nil {
		if r.stop.LoadAcquire() {
			return
		}
		backoff.Wait()
	}
}

// Processed returns the total number of elements the worker has pulled
// from its source.
func (r *Reorderer[T]) Processed() uint64 { return r.processed.LoadAcquire() }

// DirectHit returns the number of arrivals that matched expected
// immediately, needing no staging.
func (r *Reorderer[T]) DirectHit() uint64 { return r.directHit.LoadAcquire() }

// L1Cached returns the number of arrivals staged into an empty fast
// buffer slot.
func (r *Reorderer[T]) L1Cached() uint64 { return r.l1Cached.LoadAcquire() }

// L2Cached returns the number of arrivals that collided with a
// different sequence in the fast buffer. Each such collision spills one
// of the pair, whichever is farther from expected, to the overflow map.
func (r *Reorderer[T]) L2Cached() uint64 { return r.l2Cached.LoadAcquire() }

// MaxGap returns the largest seq-expected distance observed.
func (r *Reorderer[T]) MaxGap() uint64 { return r.maxGap.LoadAcquire() }

// StaleDiscarded returns the number of arrivals discarded because their
// sequence was already below the watermark.
func (r *Reorderer[T]) StaleDiscarded() uint64 { return r.staleDiscarded.LoadAcquire() }
