// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestBinding_ScopedToDerivedContext(t *testing.T) {
	outer, _ := NewEngine(EngineOptions{Store: newCountingStore()})
	inner, _ := NewEngine(EngineOptions{Store: newCountingStore()})

	root := context.Background()
	if _, err := EngineFromContext(root); !errors.Is(err, ErrUnboundEngine) {
		t.Fatalf("expected ErrUnboundEngine on a bare context, got %v", err)
	}

	outerContext := WithEngine(root, outer)
	innerContext := WithEngine(outerContext, inner)

	if got, _ := EngineFromContext(innerContext); got != inner {
		t.Error("nested binding does not shadow the outer engine")
	}
	if got, _ := EngineFromContext(outerContext); got != outer {
		t.Error("nested binding leaked into the parent context")
	}
	if _, err := EngineFromContext(root); !errors.Is(err, ErrUnboundEngine) {
		t.Error("binding leaked into the root context")
	}
}

func TestBinding_ConcurrentIsolation(t *testing.T) {
	engines := make([]*Engine, 8)
	for index := range engines {
		engines[index], _ = NewEngine(EngineOptions{Store: newCountingStore()})
	}

	root := context.Background()
	var group sync.WaitGroup
	failures := make(chan int, len(engines))
	for index, engine := range engines {
		group.Add(1)
		go func() {
			defer group.Done()
			ctx := WithEngine(root, engine)
			for range 1000 {
				if got, err := EngineFromContext(ctx); err != nil || got != engine {
					failures <- index
					return
				}
			}
		}()
	}
	group.Wait()
	close(failures)
	for index := range failures {
		t.Errorf("goroutine %d observed another goroutine's engine", index)
	}
}

func TestBinding_ConcurrentOffloadUsesOwnStore(t *testing.T) {
	first, second := newCountingStore(), newCountingStore()
	firstEngine, _ := NewEngine(EngineOptions{Store: first})
	secondEngine, _ := NewEngine(EngineOptions{Store: second})

	var group sync.WaitGroup
	for _, engine := range []*Engine{firstEngine, secondEngine} {
		group.Add(1)
		go func() {
			defer group.Done()
			ctx := WithEngine(context.Background(), engine)
			for range 10 {
				if _, err := Offload(ctx, "value"); err != nil {
					t.Errorf("Offload: %v", err)
				}
			}
		}()
	}
	group.Wait()

	if stores, _ := first.counts(); stores != 10 {
		t.Errorf("first store received %d writes, want 10", stores)
	}
	if stores, _ := second.counts(); stores != 10 {
		t.Errorf("second store received %d writes, want 10", stores)
	}
}
