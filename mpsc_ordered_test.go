// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfq_test

import (
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/hybscloud/lfq"
)

func TestSeqMPSCBasic(t *testing.T) {
	q := lfq.NewSeqMPSC[string](4)

	if !q.Empty() {
		t.Fatal("new queue should be empty")
	}

	a, b := "a", "b"
	q.PushAt(0, &a)
	q.PushAt(1, &b)

	if got := q.Size(); got != 2 {
		t.Fatalf("size = %d, want 2", got)
	}

	if got := q.Pop(); got != "a" {
		t.Fatalf("pop 0 = %q, want %q", got, "a")
	}
	if got := q.Pop(); got != "b" {
		t.Fatalf("pop 1 = %q, want %q", got, "b")
	}
	if !q.Empty() {
		t.Fatal("queue should be empty after draining")
	}
}

func TestSeqMPSCAutoSequencing(t *testing.T) {
	q := lfq.NewSeqMPSC[int](8)

	for i := range 5 {
		v := i
		if seq := q.Push(&v); seq != uint64(i) {
			t.Fatalf("Push auto-seq = %d, want %d", seq, i)
		}
	}

	for i := range 5 {
		if got := q.Pop(); got != i {
			t.Fatalf("pop %d = %d, want %d", i, got, i)
		}
	}
}

func TestSeqMPSCPushWithWriter(t *testing.T) {
	q := lfq.NewSeqMPSC[string](8)

	for i, want := range []string{"a", "b", "c"} {
		s := want
		if seq := q.PushWithWriter(func(slot *string) { *slot = s }); seq != uint64(i) {
			t.Fatalf("PushWithWriter auto-seq = %d, want %d", seq, i)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		if got := q.Pop(); got != want {
			t.Fatalf("pop = %q, want %q", got, want)
		}
	}
}

// TestSeqMPSCGapHandling is the E6 scenario: pushing seq=0 and seq=2
// out of order, with a pop blocked on the missing seq=1 slot until it
// arrives.
func TestSeqMPSCGapHandling(t *testing.T) {
	q := lfq.NewSeqMPSC[int](16)

	zero, two := 100, 102
	q.PushAt(0, &zero)
	q.PushAt(2, &two)

	if got := q.Pop(); got != 100 {
		t.Fatalf("pop seq 0 = %d, want 100", got)
	}

	done := make(chan int, 1)
	go func() {
		done <- q.Pop()
	}()

	select {
	case v := <-done:
		t.Fatalf("pop seq 1 returned early with %d before it was pushed", v)
	case <-time.After(50 * time.Millisecond):
	}

	one := 101
	q.PushAt(1, &one)

	select {
	case got := <-done:
		if got != 101 {
			t.Fatalf("pop seq 1 = %d, want 101", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pop seq 1 never completed after seq=1 was pushed")
	}

	if got := q.Pop(); got != 102 {
		t.Fatalf("pop seq 2 = %d, want 102", got)
	}
}

func TestSeqMPSCWriterReaderClosures(t *testing.T) {
	q := lfq.NewSeqMPSC[string](4)

	q.PushAtWithWriter(0, func(slot *string) { *slot = "hello" })

	var got string
	q.PopWithReader(func(slot *string) { got = *slot })
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

// TestSeqMPSCStrictOrder is the §8 property-8 scenario: producers push
// out of order across disjoint sequence bands, the consumer must still
// observe 0, 1, 2, ... with no gaps.
func TestSeqMPSCStrictOrder(t *testing.T) {
	if lfq.RaceEnabled {
		t.Skip("skip: per-slot phase spin-wait confuses the race detector")
	}

	const (
		numProducers = 4
		total        = 20_000
		capacity     = 256
	)

	q := lfq.NewSeqMPSC[int](capacity)

	// Every producer publishes sequence numbers seq such that
	// seq % numProducers == id, so ranges interleave but stay disjoint,
	// and pushes happen out of the final consumption order.
	var wg sync.WaitGroup
	for p := range numProducers {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for seq := id; seq < total; seq += numProducers {
				v := seq
				q.PushAt(uint64(seq), &v)
			}
		}(p)
	}

	got := make([]int, 0, total)
	done := make(chan struct{})
	go func() {
		for range total {
			got = append(got, q.Pop())
		}
		close(done)
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(15 * time.Second):
		t.Fatalf("timeout: consumer stuck after %d/%d", len(got), total)
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("order violation at position %d: got %d, want %d", i, v, i)
		}
	}
}

func TestSeqMPSCConcurrentProducersAndSequenceAssignment(t *testing.T) {
	if lfq.RaceEnabled {
		t.Skip("skip: atomix counter interleaved with slot phase spin confuses the race detector")
	}

	const numProducers = 8
	const perProducer = 500

	q := lfq.NewSeqMPSC[int](128)
	var seen atomix.Uint64
	var wg sync.WaitGroup
	for range numProducers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				v := 1
				q.Push(&v)
			}
		}()
	}

	consumerDone := make(chan struct{})
	go func() {
		for range numProducers * perProducer {
			q.Pop()
			seen.AddAcqRel(1)
		}
		close(consumerDone)
	}()

	wg.Wait()
	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		t.Fatalf("timeout: consumed %d/%d", seen.LoadAcquire(), numProducers*perProducer)
	}

	if got := seen.LoadAcquire(); got != uint64(numProducers*perProducer) {
		t.Fatalf("consumed %d, want %d", got, numProducers*perProducer)
	}
}
