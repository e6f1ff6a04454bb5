// The MIT License
//
// Copyright (c) 2022 Temporal Technologies Inc.  All rights reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package internal

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBindingNotFound is returned by store reads for executions that were
// never bound.
var ErrBindingNotFound = errors.New("execution version binding not found")

// ErrBindingExists is returned when a binding is created twice for the same
// execution.
var ErrBindingExists = errors.New("execution version binding already exists")

// Store persists the records executions depend on across process restarts:
// version bindings, per-queue version observations, and replay checkpoints.
// Implementations must be safe for concurrent use. The checkpoint operations
// carry the optimistic-concurrency contract the replay checker relies on:
// CompareAndSetCheckpoint commits only when the stored value still equals
// the value the caller read, and reports whether the commit happened.
type Store interface {
	// CreateBinding durably records a new execution binding. Fails with
	// ErrBindingExists when the execution is already bound.
	CreateBinding(ctx context.Context, binding *ExecutionVersionBinding) error
	// GetBinding reads an execution's binding. Fails with ErrBindingNotFound
	// when the execution was never bound.
	GetBinding(ctx context.Context, executionID string) (*ExecutionVersionBinding, error)
	// AppendBindingEntry extends an execution's compatibility trace. The
	// existing entries, the baseline in particular, are never rewritten.
	AppendBindingEntry(ctx context.Context, executionID string, entry BindingEntry) error
	// CloseBinding marks an execution's binding terminal. The record is
	// retained for audit; routing past this point is refused.
	CloseBinding(ctx context.Context, executionID string) error

	// RecordQueueVersion durably notes that a version was observed on a task
	// queue. Idempotent per (queue, version).
	RecordQueueVersion(ctx context.Context, queue string, version WorkerVersion, firstSeen time.Time) error
	// ListQueueVersions returns every version ever observed on a queue.
	ListQueueVersions(ctx context.Context, queue string) ([]WorkerVersion, error)

	// GetCheckpoint returns the last verified event index for an execution,
	// or zero when no check has committed yet.
	GetCheckpoint(ctx context.Context, executionID string) (int64, error)
	// CompareAndSetCheckpoint advances the checkpoint from old to new. It
	// returns false, without error, when the stored checkpoint no longer
	// equals old.
	CompareAndSetCheckpoint(ctx context.Context, executionID string, old, new int64) (bool, error)

	// Close releases the store's resources.
	Close() error
}

// memoryStore is the in-process Store used by tests and embedders that do
// not need durability across restarts.
type memoryStore struct {
	mu          sync.RWMutex
	bindings    map[string]*ExecutionVersionBinding
	queues      map[string]map[string]WorkerVersion // queue -> canonical key -> version
	checkpoints map[string]int64
	closed      bool
}

// NewMemoryStore creates an in-memory Store implementation.
func NewMemoryStore() Store {
	return &memoryStore{
		bindings:    make(map[string]*ExecutionVersionBinding),
		queues:      make(map[string]map[string]WorkerVersion),
		checkpoints: make(map[string]int64),
	}
}

func (s *memoryStore) CreateBinding(_ context.Context, binding *ExecutionVersionBinding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bindings[binding.ExecutionID]; ok {
		return ErrBindingExists
	}
	s.bindings[binding.ExecutionID] = binding.clone()
	return nil
}

func (s *memoryStore) GetBinding(_ context.Context, executionID string) (*ExecutionVersionBinding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	binding, ok := s.bindings[executionID]
	if !ok {
		return nil, ErrBindingNotFound
	}
	return binding.clone(), nil
}

func (s *memoryStore) AppendBindingEntry(_ context.Context, executionID string, entry BindingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.bindings[executionID]
	if !ok {
		return ErrBindingNotFound
	}
	binding.Entries = append(binding.Entries, entry)
	return nil
}

func (s *memoryStore) CloseBinding(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	binding, ok := s.bindings[executionID]
	if !ok {
		return ErrBindingNotFound
	}
	binding.Closed = true
	return nil
}

func (s *memoryStore) RecordQueueVersion(_ context.Context, queue string, version WorkerVersion, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.queues[queue]
	if !ok {
		versions = make(map[string]WorkerVersion)
		s.queues[queue] = versions
	}
	versions[canonicalVersionKey(version)] = version
	return nil
}

func (s *memoryStore) ListQueueVersions(_ context.Context, queue string) ([]WorkerVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.queues[queue]
	result := make([]WorkerVersion, 0, len(versions))
	for _, v := range versions {
		result = append(result, v)
	}
	return result, nil
}

func (s *memoryStore) GetCheckpoint(_ context.Context, executionID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[executionID], nil
}

func (s *memoryStore) CompareAndSetCheckpoint(_ context.Context, executionID string, old, new int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkpoints[executionID] != old {
		return false, nil
	}
	s.checkpoints[executionID] = new
	return true, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
