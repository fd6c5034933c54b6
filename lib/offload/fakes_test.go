// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package offload

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/workflow"
	"google.golang.org/protobuf/proto"
)

// countingStore is an in-memory store that counts calls. References
// are strings "payload-<n>".
type countingStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	stores  int
	fetches int
	failure error
}

func newCountingStore() *countingStore {
	return &countingStore{blobs: make(map[string][]byte)}
}

func (s *countingStore) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores++
	if s.failure != nil {
		return nil, s.failure
	}
	data, err := proto.Marshal(payload)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("payload-%d", len(s.blobs))
	s.blobs[key] = data
	return key, nil
}

func (s *countingStore) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.failure != nil {
		return nil, s.failure
	}
	key, ok := ref.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidReference, ref)
	}
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	payload := &commonpb.Payload{}
	if err := proto.Unmarshal(data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// clear deletes every stored payload.
func (s *countingStore) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = make(map[string][]byte)
}

func (s *countingStore) counts() (stores, fetches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores, s.fetches
}

// handleStore returns references that are not JSON values.
type handleStore struct{}

func (handleStore) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	return []byte("opaque-handle"), nil
}

func (handleStore) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	return nil, fmt.Errorf("%w: handle store cannot fetch", ErrNotFound)
}

// replayRecorder records results in memory. After startReplay it
// returns recorded results in order without running the operation,
// the way a workflow replay does.
type replayRecorder struct {
	replaying bool
	history   []recordedResult
	next      int
	runs      int
}

type recordedResult struct {
	payload *commonpb.Payload
	err     error
}

func (r *replayRecorder) Record(ctx workflow.Context, fn func(context.Context) (*commonpb.Payload, error)) (*commonpb.Payload, error) {
	if r.replaying {
		if r.next >= len(r.history) {
			panic("replay requested more results than were recorded")
		}
		entry := r.history[r.next]
		r.next++
		return entry.payload, entry.err
	}
	r.runs++
	payload, err := fn(context.Background())
	r.history = append(r.history, recordedResult{payload: payload, err: err})
	return payload, err
}

func (r *replayRecorder) startReplay() {
	r.replaying = true
	r.next = 0
}

// newTestEngines builds an activity engine and a workflow engine over
// store using the given recorder.
func newTestEngines(store Store, recorder Recorder) (*Engine, *WorkflowEngine) {
	activity, err := NewEngine(EngineOptions{Store: store})
	if err != nil {
		panic(err)
	}
	inline, err := NewEngine(EngineOptions{Store: store})
	if err != nil {
		panic(err)
	}
	workflowEngine, err := NewWorkflowEngine(WorkflowEngineOptions{
		Workflow: inline,
		Activity: activity,
		Recorder: recorder,
	})
	if err != nil {
		panic(err)
	}
	return activity, workflowEngine
}

// slowStore delays every fetch by delay unless ctx ends first.
type slowStore struct {
	*countingStore
	delay time.Duration
}

func (s slowStore) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	select {
	case <-time.After(s.delay):
		return s.countingStore.Fetch(ctx, ref)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
	}
}

// numericStore hands out object references carrying a large integer id
// and records the reference each Fetch receives.
type numericStore struct {
	*countingStore
	nextID  uint64
	keys    map[string]string
	fetched []any
}

func newNumericStore(firstID uint64) *numericStore {
	return &numericStore{countingStore: newCountingStore(), nextID: firstID, keys: make(map[string]string)}
}

func (s *numericStore) Store(ctx context.Context, payload *commonpb.Payload) (any, error) {
	key, err := s.countingStore.Store(ctx, payload)
	if err != nil {
		return nil, err
	}
	id := s.nextID
	s.nextID++
	s.keys[strconv.FormatUint(id, 10)] = key.(string)
	return map[string]any{"id": id}, nil
}

func (s *numericStore) Fetch(ctx context.Context, ref any) (*commonpb.Payload, error) {
	s.fetched = append(s.fetched, ref)
	object, ok := ref.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidReference, ref)
	}
	id, ok := object["id"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("%w: id %T", ErrInvalidReference, object["id"])
	}
	key, ok := s.keys[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return s.countingStore.Fetch(ctx, key)
}
