// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/hybscloud/lfq"
)

func TestShardedMPSCBasic(t *testing.T) {
	q := lfq.NewShardedMPSC[int](4, 8)
	if got := q.Shards(); got != 4 {
		t.Fatalf("Shards() = %d, want 4", got)
	}
	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}

	p := q.Producer()
	for i := range 5 {
		v := i
		if err := p.Enqueue(&v); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	for i := range 5 {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got != i {
			t.Errorf("dequeue %d: got %d, want %d", i, got, i)
		}
	}
}

func TestShardedMPSCDequeueWithReader(t *testing.T) {
	q := lfq.NewShardedMPSC[string](2, 8)
	p := q.Producer()

	hello := "hello"
	if err := p.EnqueueWithWriter(func(slot *string) { *slot = hello }); err != nil {
		t.Fatalf("enqueue with writer: %v", err)
	}

	var got string
	if err := q.DequeueWithReader(func(slot *string) { got = *slot }); err != nil {
		t.Fatalf("dequeue with reader: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}

	if err := q.DequeueWithReader(func(slot *string) {}); !lfq.IsWouldBlock(err) {
		t.Fatalf("expected ErrWouldBlock once all shards drained, got %v", err)
	}
}

func TestShardedMPSCProducerHandlesExhausted(t *testing.T) {
	q := lfq.NewShardedMPSC[int](2, 8)
	q.Producer()
	q.Producer()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when requesting more producers than shards")
		}
	}()
	q.Producer()
}

func TestShardedMPSCRoundRobinDrain(t *testing.T) {
	q := lfq.NewShardedMPSC[int](3, 8)
	producers := make([]*lfq.ShardedMPSCProducer[int], 3)
	for i := range producers {
		producers[i] = q.Producer()
	}

	for i, p := range producers {
		for j := range 2 {
			v := i*100 + j
			if err := p.Enqueue(&v); err != nil {
				t.Fatalf("producer %d enqueue %d: %v", i, j, err)
			}
		}
	}

	seen := map[int]bool{}
	for range 6 {
		v, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if seen[v] {
			t.Fatalf("duplicate value %d", v)
		}
		seen[v] = true
	}

	if _, err := q.Dequeue(); !lfq.IsWouldBlock(err) {
		t.Fatalf("expected ErrWouldBlock once all shards drained, got %v", err)
	}
}

// TestShardedMPSCStress is the E4 scenario: bounded producer count
// (one handle per shard), each sending a disjoint range of values; the
// consumer must see the exact union with no duplicates or losses.
func TestShardedMPSCStress(t *testing.T) {
	if lfq.RaceEnabled {
		t.Skip("skip: acquire-release across separate shard rings confuses the race detector")
	}

	const (
		numProducers = 8
		itemsPerProd = 20_000
		timeout      = 10 * time.Second
	)

	q := lfq.NewShardedMPSC[int](numProducers, 128)
	expectedTotal := numProducers * itemsPerProd
	seen := make([]atomix.Int32, expectedTotal)

	var wg sync.WaitGroup
	var produced, consumed atomix.Int64
	var timedOut atomix.Bool
	deadline := time.Now().Add(timeout)

	for p := range numProducers {
		handle := q.Producer()
		wg.Add(1)
		go func(id int, h *lfq.ShardedMPSCProducer[int]) {
			defer wg.Done()
			backoff := iox.Backoff{}
			for i := range itemsPerProd {
				v := id*itemsPerProd + i
				for h.Enqueue(&v) != nil {
					if time.Now().After(deadline) {
						timedOut.Store(true)
						return
					}
					backoff.Wait()
				}
				produced.Add(1)
				backoff.Reset()
			}
		}(p, handle)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		for consumed.Load() < int64(expectedTotal) {
			if time.Now().After(deadline) {
				timedOut.Store(true)
				return
			}
			v, err := q.Dequeue()
			if err == nil {
				if v >= 0 && v < expectedTotal {
					seen[v].Add(1)
				}
				consumed.Add(1)
				backoff.Reset()
			} else {
				backoff.Wait()
			}
		}
	}()

	wg.Wait()

	if timedOut.Load() {
		t.Fatalf("timeout: produced=%d, consumed=%d/%d", produced.Load(), consumed.Load(), expectedTotal)
	}
	if got := consumed.Load(); got != int64(expectedTotal) {
		t.Fatalf("consumed %d, want %d", got, expectedTotal)
	}

	var duplicates, missing int
	for i := range expectedTotal {
		switch seen[i].Load() {
		case 1:
		case 0:
			missing++
		default:
			duplicates++
		}
	}
	if duplicates > 0 || missing > 0 {
		t.Errorf("duplicates=%d missing=%d", duplicates, missing)
	}
}
