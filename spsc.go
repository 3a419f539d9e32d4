// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import "code.hybscloud.com/atomix"

// SPSC is a single-producer single-consumer bounded queue.
//
// Based on Lamport's ring buffer with cached index optimization. The
// producer caches the consumer's dequeue index, and vice versa,
// reducing cross-core cache line traffic. One slot is always kept
// empty to disambiguate full from empty using identical head/tail:
// usable capacity is Cap()-1.
//
// Memory: O(capacity) with minimal per-slot overhead.
type SPSC[T any] struct {
	_          pad
	head       atomix.Uint64 // Consumer reads from here
	_          pad
	cachedTail uint64 // Consumer's cached view of tail
	_          pad
	tail       atomix.Uint64 // Producer writes here
	_          pad
	cachedHead uint64 // Producer's cached view of head
	_          pad
	buffer     []T
	mask       uint64
}

// NewSPSC creates a new SPSC queue.
// Capacity rounds up to the next power of 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}

	n := uint64(roundToPow2(capacity))
	return &SPSC[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Enqueue adds an element to the queue (producer only).
// Returns ErrWouldBlock if the queue is full.
func (q *SPSC[T]) Enqueue(elem *T) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= q.mask {
			return ErrWouldBlock
		}
	}

	q.buffer[tail&q.mask] = *elem
	q.tail.StoreRelease(tail + 1)
	return nil
}

// EnqueueWithWriter reserves the next slot and invokes w with a pointer
// into it, avoiding a temporary copy for large T. w must not let the
// pointer escape the call.
func (q *SPSC[T]) EnqueueWithWriter(w Writer[T]) error {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead >= q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead >= q.mask {
			return ErrWouldBlock
		}
	}

	w(&q.buffer[tail&q.mask])
	q.tail.StoreRelease(tail + 1)
	return nil
}

// EnqueueBulk copies as many leading elements of src as fit into the
// queue's free space, splitting the write across the ring's seam when
// necessary. Returns the number of elements actually written.
func (q *SPSC[T]) EnqueueBulk(src []T) int {
	tail := q.tail.LoadRelaxed()
	avail := q.mask - (tail - q.cachedHead)
	if uint64(len(src)) > avail {
		q.cachedHead = q.head.LoadAcquire()
		avail = q.mask - (tail - q.cachedHead)
	}

	n := uint64(len(src))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := tail & q.mask
	toEnd := q.mask + 1 - start
	if n <= toEnd {
		copy(q.buffer[start:start+n], src[:n])
	} else {
		copy(q.buffer[start:], src[:toEnd])
		copy(q.buffer[:n-toEnd], src[toEnd:n])
	}

	q.tail.StoreRelease(tail + n)
	return int(n)
}

// Dequeue removes and returns an element (consumer only).
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *SPSC[T]) Dequeue() (T, error) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, ErrWouldBlock
		}
	}

	elem := q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	q.head.StoreRelease(head + 1)
	return elem, nil
}

// DequeueWithReader invokes r with a pointer into the next readable
// slot instead of copying the element out. Unlike Dequeue, the slot is
// not cleared afterward; r is responsible for that if needed. r must
// not let the pointer escape the call.
func (q *SPSC[T]) DequeueWithReader(r Reader[T]) error {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			return ErrWouldBlock
		}
	}

	r(&q.buffer[head&q.mask])
	q.head.StoreRelease(head + 1)
	return nil
}

// DequeueBulk copies as many elements as are available into dst,
// splitting the read across the ring's seam when necessary. Returns
// the number of elements actually read.
func (q *SPSC[T]) DequeueBulk(dst []T) int {
	head := q.head.LoadRelaxed()
	avail := q.cachedTail - head
	if uint64(len(dst)) > avail {
		q.cachedTail = q.tail.LoadAcquire()
		avail = q.cachedTail - head
	}

	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := head & q.mask
	toEnd := q.mask + 1 - start
	if n <= toEnd {
		copy(dst[:n], q.buffer[start:start+n])
	} else {
		copy(dst[:toEnd], q.buffer[start:])
		copy(dst[toEnd:n], q.buffer[:n-toEnd])
	}

	q.head.StoreRelease(head + n)
	return int(n)
}

// Empty reports whether the queue is empty. Approximate under
// concurrency: it acquires both indices but does not prevent concurrent
// mutation.
func (q *SPSC[T]) Empty() bool {
	return q.head.LoadAcquire() == q.tail.LoadAcquire()
}

// Size returns the number of elements currently queued. Approximate
// under concurrency.
func (q *SPSC[T]) Size() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// Cap returns the queue's physical capacity. Usable capacity (the
// maximum Size can reach before Enqueue reports ErrWouldBlock) is
// Cap()-1.
func (q *SPSC[T]) Cap() int {
	return int(q.mask + 1)
}
