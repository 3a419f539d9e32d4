// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq

// Options configures queue creation and algorithm selection.
type Options struct {
	singleProducer bool
	ordered        bool
	shards         int
	capacity       int
}

// Builder creates queues with fluent configuration.
//
// Builder provides a fluent API for configuring and creating queues.
// The builder selects the algorithm from the producer constraint and
// the Ordered/Shards hints.
//
// Example:
//
//	// SPSC queue (optimal for single producer/consumer)
//	q := lfq.BuildSPSC[Event](lfq.New(1024).SingleProducer())
//
//	// Sharded MPSC across 8 shards
//	q := lfq.BuildShardedMPSC[Event](lfq.New(1024).Shards(8))
//
//	// Slot-state MPSC (default when producer count is unbounded)
//	q := lfq.BuildMPSCSlot[Event](lfq.New(4096))
//
//	// Seq-MPSC with caller/auto-supplied sequence numbers
//	q := lfq.BuildSeqMPSC[Event](lfq.New(1024).Ordered())
type Builder struct {
	opts Options
}

// New creates a queue builder with the given capacity.
//
// Capacity rounds up to the next power of 2. For ShardedMPSC, capacity
// is the per-shard capacity.
//
// Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("lfq: capacity must be >= 2")
	}
	return &Builder{opts: Options{capacity: capacity}}
}

// SingleProducer declares that only one goroutine will enqueue,
// selecting SPSC.
func (b *Builder) SingleProducer() *Builder {
	b.opts.singleProducer = true
	return b
}

// Shards selects the sharded MPSC variant with the given shard count.
func (b *Builder) Shards(n int) *Builder {
	b.opts.shards = n
	return b
}

// Ordered selects the Seq-MPSC variant.
func (b *Builder) Ordered() *Builder {
	b.opts.ordered = true
	return b
}

// Build creates a Queue[T] with automatic algorithm selection.
//
// Algorithm selection:
//
//	SingleProducer → SPSC (Lamport ring buffer)
//	neither        → MPSCSlot (the safer default when producer count
//	                 is not bounded — see §4.3's open question)
//
// Shards(n) and Ordered() have no Queue[T]-shaped equivalent: a
// ShardedMPSC producer is a handle (*ShardedMPSCProducer[T]), not the
// queue itself, so ShardedMPSC does not implement Producer[T] — use
// BuildShardedMPSC and call Producer() on the result. SeqMPSC's
// Push/Pop spin-wait instead of returning ErrWouldBlock — use
// BuildSeqMPSC directly for that variant. Build panics if the builder
// was configured with Shards(n) or Ordered(), since neither maps onto
// Queue[T].
func Build[T any](b *Builder) Queue[T] {
	switch {
	case b.opts.singleProducer:
		return NewSPSC[T](b.opts.capacity)
	case b.opts.shards > 0:
		panic("lfq: Build cannot return ShardedMPSC as Queue[T] (its producer is a handle, not the queue) — use BuildShardedMPSC and Producer()")
	case b.opts.ordered:
		panic("lfq: Build cannot return SeqMPSC as Queue[T] (Push/Pop spin-wait instead of returning ErrWouldBlock) — use BuildSeqMPSC")
	default:
		return NewMPSCSlot[T](b.opts.capacity)
	}
}

// BuildSPSC creates an SPSC queue with compile-time type safety.
// Panics if the builder was not configured with SingleProducer().
func BuildSPSC[T any](b *Builder) *SPSC[T] {
	if !b.opts.singleProducer {
		panic("lfq: BuildSPSC requires SingleProducer()")
	}
	return NewSPSC[T](b.opts.capacity)
}

// BuildShardedMPSC creates a ShardedMPSC queue with compile-time type
// safety. Panics if the builder was not configured with Shards(n).
func BuildShardedMPSC[T any](b *Builder) *ShardedMPSC[T] {
	if b.opts.shards <= 0 {
		panic("lfq: BuildShardedMPSC requires Shards(n) with n > 0")
	}
	return NewShardedMPSC[T](b.opts.shards, b.opts.capacity)
}

// BuildMPSCSlot creates a slot-state MPSC queue with compile-time type
// safety.
func BuildMPSCSlot[T any](b *Builder) *MPSCSlot[T] {
	return NewMPSCSlot[T](b.opts.capacity)
}

// BuildSeqMPSC creates a Seq-MPSC queue with compile-time type safety.
// Panics if the builder was not configured with Ordered().
func BuildSeqMPSC[T any](b *Builder) *SeqMPSC[T] {
	if !b.opts.ordered {
		panic("lfq: BuildSeqMPSC requires Ordered()")
	}
	return NewSeqMPSC[T](b.opts.capacity)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
