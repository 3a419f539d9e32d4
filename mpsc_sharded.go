// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

import "code.hybscloud.com/atomix"

// ShardedMPSC is a multi-producer single-consumer queue composed of N
// independent SPSC rings, one per shard.
//
// Each shard is a plain SPSC ring, so exactly one producer may write to
// it at a time. Producer assigns shards round-robin, sticky for the
// lifetime of the returned handle — this is the safer alternative to
// implicit thread-local shard hashing: a goroutine that calls Producer
// gets a handle pinned to one shard for as long as it holds it, and the
// number of outstanding handles can never exceed the shard count,
// because Producer panics once shards run out rather than silently
// letting two producers collide on one shard.
//
// The consumer drains shards round-robin starting from a monotone hint,
// visiting each shard at most once per Dequeue call.
type ShardedMPSC[T any] struct {
	shards     []*SPSC[T]
	nextHandle atomix.Uint64
	hint       atomix.Uint64
}

// NewShardedMPSC creates a sharded MPSC with the given number of
// shards, each an SPSC ring of the given per-shard capacity.
func NewShardedMPSC[T any](shards, perShardCapacity int) *ShardedMPSC[T] {
	if shards < 1 {
		panic("lfq: shards must be >= 1")
	}

	q := &ShardedMPSC[T]{shards: make([]*SPSC[T], shards)}
	for i := range q.shards {
		q.shards[i] = NewSPSC[T](perShardCapacity)
	}
	return q
}

// ShardedMPSCProducer is a handle pinned to one shard of a ShardedMPSC.
// Use it from a single goroutine at a time — it carries no internal
// locking, the same contract as a bare SPSC producer.
type ShardedMPSCProducer[T any] struct {
	shard *SPSC[T]
}

// Producer returns a new producer handle, round-robin assigned to one
// of the queue's shards. Panics once more handles have been requested
// than there are shards: a shard admits exactly one producer, so the
// open question of "producers > shards" is resolved here by erroring
// out at first collision rather than silently violating the shard's
// SPSC contract.
func (q *ShardedMPSC[T]) Producer() *ShardedMPSCProducer[T] {
	idx := q.nextHandle.AddAcqRel(1) - 1
	if idx >= uint64(len(q.shards)) {
		panic("lfq: sharded MPSC producer handles exhausted (more producers than shards)")
	}
	return &ShardedMPSCProducer[T]{shard: q.shards[idx]}
}

// Enqueue adds an element via this producer's pinned shard.
// Returns ErrWouldBlock if that shard is full.
func (p *ShardedMPSCProducer[T]) Enqueue(elem *T) error {
	return p.shard.Enqueue(elem)
}

// EnqueueWithWriter is the closure form of Enqueue.
func (p *ShardedMPSCProducer[T]) EnqueueWithWriter(w Writer[T]) error {
	return p.shard.EnqueueWithWriter(w)
}

// Dequeue drains shards round-robin starting from a monotone hint,
// trying each shard at most once. Returns ErrWouldBlock only if every
// shard was empty.
func (q *ShardedMPSC[T]) Dequeue() (T, error) {
	n := uint64(len(q.shards))
	start := q.hint.LoadRelaxed()

	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		if v, err := q.shards[idx].Dequeue(); err == nil {
			q.hint.StoreRelaxed(idx + 1)
			return v, nil
		}
	}

	var zero T
	return zero, ErrWouldBlock
}

// DequeueWithReader is the closure form of Dequeue: it drains shards
// round-robin the same way, invoking r on the winning shard's slot via
// that shard's own DequeueWithReader instead of copying the element out.
// Returns ErrWouldBlock only if every shard was empty.
func (q *ShardedMPSC[T]) DequeueWithReader(r Reader[T]) error {
	n := uint64(len(q.shards))
	start := q.hint.LoadRelaxed()

	for i := uint64(0); i < n; i++ {
		idx := (start + i) % n
		if err := q.shards[idx].DequeueWithReader(r); err == nil {
			q.hint.StoreRelaxed(idx + 1)
			return nil
		}
	}

	return ErrWouldBlock
}

// Shards returns the number of shards this queue was created with.
func (q *ShardedMPSC[T]) Shards() int {
	return len(q.shards)
}

// Cap returns the combined capacity across all shards.
func (q *ShardedMPSC[T]) Cap() int {
	total := 0
	for _, s := range q.shards {
		total += s.Cap()
	}
	return total
}

// Empty reports whether every shard is empty. Approximate under
// concurrency.
func (q *ShardedMPSC[T]) Empty() bool {
	for _, s := range q.shards {
		if !s.Empty() {
			return false
		}
	}
	return true
}

// Size returns the sum of every shard's size. Approximate under
// concurrency.
func (q *ShardedMPSC[T]) Size() int {
	total := 0
	for _, s := range q.shards {
		total += s.Size()
	}
	return total
}
