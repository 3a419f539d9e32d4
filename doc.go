// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfq provides bounded, lock-free, in-memory queues for
// inter-goroutine hand-off.
//
// The package offers four queue variants plus a reordering worker:
//
//   - SPSC: single-producer single-consumer ring
//   - ShardedMPSC: multi-producer single-consumer, composed of N SPSC
//     shards with sticky producer assignment and round-robin drain
//   - MPSCSlot: multi-producer single-consumer, a single ring with
//     per-slot sequence numbers for lock-free producer contention
//   - SeqMPSC: multi-producer single-consumer, ordered by a
//     caller-supplied (or auto-drawn) monotonic sequence number
//   - Reorderer: a background worker that turns an unordered MPSC
//     stream into an ordered SPSC stream
//
// None of these support multi-consumer semantics, blocking/parking,
// dynamic capacity growth, or non-trivially-copyable element types —
// see the package's design notes for why.
//
// # Quick Start
//
// Direct constructors (recommended for most cases):
//
//	q := lfq.NewSPSC[Event](1024)
//	q := lfq.NewMPSCSlot[Job](4096)
//
// Builder API picks an algorithm from a producer hint:
//
//	q := lfq.Build[Event](lfq.New(1024).SingleProducer())  // → SPSC
//	q := lfq.Build[Event](lfq.New(4096))                   // → MPSCSlot
//
// ShardedMPSC and SeqMPSC have no Queue[T]-shaped equivalent (see
// "Algorithm Selection" below) — build them with BuildShardedMPSC /
// BuildSeqMPSC instead.
//
// # Basic Usage
//
// SPSC, ShardedMPSC, and MPSCSlot share the same Enqueue/Dequeue shape:
//
//	q := lfq.NewMPSCSlot[int](1024)
//
//	value := 42
//	err := q.Enqueue(&value)
//	if lfq.IsWouldBlock(err) {
//	    // Queue is full - handle backpressure
//	}
//
//	elem, err := q.Dequeue()
//	if lfq.IsWouldBlock(err) {
//	    // Queue is empty - try again later
//	}
//
// # Common Patterns
//
// Pipeline Stage (SPSC):
//
//	q := lfq.NewSPSC[Data](1024)
//
//	go func() { // Producer
//	    backoff := iox.Backoff{}
//	    for data := range input {
//	        for q.Enqueue(&data) != nil {
//	            backoff.Wait()
//	        }
//	        backoff.Reset()
//	    }
//	}()
//
//	go func() { // Consumer
//	    backoff := iox.Backoff{}
//	    for {
//	        data, err := q.Dequeue()
//	        if err != nil {
//	            backoff.Wait()
//	            continue
//	        }
//	        backoff.Reset()
//	        process(data)
//	    }
//	}()
//
// Event Aggregation (MPSCSlot — unbounded producer count):
//
//	q := lfq.NewMPSCSlot[Event](4096)
//
//	for sensor := range slices.Values(sensors) {
//	    go func(s Sensor) {
//	        backoff := iox.Backoff{}
//	        for ev := range s.Events() {
//	            for q.Enqueue(&ev) != nil {
//	                backoff.Wait()
//	            }
//	            backoff.Reset()
//	        }
//	    }(sensor)
//	}
//
// Event Aggregation (ShardedMPSC — bounded producer count, one
// goroutine per handle, lower contention than MPSCSlot's shared CAS):
//
//	q := lfq.NewShardedMPSC[Event](len(sensors), 1024)
//
//	for sensor := range slices.Values(sensors) {
//	    go func(s Sensor) {
//	        p := q.Producer()
//	        backoff := iox.Backoff{}
//	        for ev := range s.Events() {
//	            for p.Enqueue(&ev) != nil {
//	                backoff.Wait()
//	            }
//	            backoff.Reset()
//	        }
//	    }(sensor)
//	}
//
// Strict Ordering (SeqMPSC):
//
//	q := lfq.NewSeqMPSC[Frame](1024)
//
//	go func() { // Producer, one of several
//	    frame := buildFrame()
//	    q.Push(&frame) // draws its own sequence number
//	}()
//
//	go func() { // Single consumer
//	    for {
//	        frame := q.Pop() // blocks until the next seq is ready
//	        process(frame)
//	    }
//	}()
//
// Reordering an Unordered Stream:
//
//	src := lfq.NewMPSCSlot[Packet](4096)
//	r := lfq.NewReorderer[Packet](src, func(p Packet) uint64 { return p.Seq }, 0, 1024, 256)
//	r.Start()
//	defer r.Close()
//
//	for {
//	    p, err := r.Dequeue() // in strict seq order
//	    if err != nil {
//	        continue
//	    }
//	    process(p)
//	}
//
// # Algorithm Selection
//
//	Build[T](lfq.New(c).SingleProducer())        → *SPSC[T]
//	Build[T](lfq.New(c))                         → *MPSCSlot[T]
//	BuildShardedMPSC[T](lfq.New(c).Shards(n))    → *ShardedMPSC[T]
//	BuildSeqMPSC[T](lfq.New(c).Ordered())        → *SeqMPSC[T]
//
// Build panics if given Shards(n) or Ordered(): ShardedMPSC's producer
// is a handle obtained from Producer(), not the queue itself, so
// ShardedMPSC cannot implement Producer[T]; SeqMPSC's Push/Pop
// spin-wait instead of returning ErrWouldBlock, so it cannot implement
// Queue[T] either. Both need their type-safe Build* constructor.
//
// # Error Handling
//
// SPSC, ShardedMPSC, and MPSCSlot return [ErrWouldBlock] when an
// operation cannot proceed immediately. This error is sourced from
// [code.hybscloud.com/iox] for ecosystem consistency. SeqMPSC's
// Push/Pop spin-wait instead — see its doc comment.
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.Enqueue(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if !lfq.IsWouldBlock(err) {
//	        return err // Unexpected error
//	    }
//	    backoff.Wait()
//	}
//
// # Capacity
//
// Capacity rounds up to the next power of 2:
//
//	q := lfq.NewMPSCSlot[int](1000)  // Actual capacity: 1024
//
// Minimum capacity is 2. Panics if capacity < 2.
//
// SPSC and ShardedMPSC (per shard) sacrifice one slot to disambiguate
// full from empty via identical head/tail: usable capacity is Cap()-1.
// MPSCSlot and SeqMPSC gate each slot through its own sequence counter
// instead of identical head/tail, so they sacrifice nothing: MPSCSlot's
// usable capacity, and SeqMPSC's widest tolerated in-flight sequence
// span, is Cap().
//
// Size/Empty are provided for observability but are approximate under
// concurrency — they acquire both indices without preventing concurrent
// mutation. Track exact counts in application logic when needed.
//
// # Thread Safety
//
// All queue operations are thread-safe within their access pattern
// constraints:
//
//   - SPSC: one producer goroutine, one consumer goroutine
//   - ShardedMPSC: one producer goroutine per handle, one consumer
//     goroutine
//   - MPSCSlot/SeqMPSC: multiple producer goroutines, one consumer
//     goroutine
//
// Violating these constraints causes undefined behavior including data
// corruption and races; it is a contract violation, not something this
// package detects.
//
// # Race Detection
//
// Go's race detector is not designed for lock-free algorithm
// verification. It tracks explicit synchronization primitives (mutex,
// channels, WaitGroup) but cannot observe happens-before relationships
// established through atomic memory orderings alone. MPSCSlot and
// SeqMPSC protect non-atomic slot data with acquire-release sequences
// on a per-slot atomic rather than a single shared lock; these
// algorithms are correct, but the race detector may report false
// positives because it cannot track cross-variable synchronization.
// Tests incompatible with race detection skip themselves when
// RaceEnabled is true; examples backed by a background goroutine are
// excluded via //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for spin-wait loops
// during CAS and phase contention.
package lfq
