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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreConformance exercises the Store contract shared by every
// implementation.
func runStoreConformance(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	v10 := mustParseVersion(t, "1.0")
	v11 := mustParseVersion(t, "1.1")
	v20 := mustParseVersion(t, "2.0")

	t.Run("binding lifecycle", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		_, err := s.GetBinding(ctx, "wf-1")
		assert.ErrorIs(t, err, ErrBindingNotFound)

		boundAt := time.Unix(1000, 0).UTC()
		binding := &ExecutionVersionBinding{
			ExecutionID: "wf-1",
			Entries:     []BindingEntry{{Version: v10, Class: CompatibilityMinor, BoundAt: boundAt}},
		}
		require.NoError(t, s.CreateBinding(ctx, binding))
		assert.ErrorIs(t, s.CreateBinding(ctx, binding), ErrBindingExists)

		got, err := s.GetBinding(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, "wf-1", got.ExecutionID)
		require.Len(t, got.Entries, 1)
		assert.True(t, got.BaselineVersion().Equal(v10))
		assert.False(t, got.Closed)

		require.NoError(t, s.AppendBindingEntry(ctx, "wf-1", BindingEntry{
			Version: v11, Class: CompatibilityMinor, BoundAt: boundAt.Add(time.Minute),
		}))
		got, err = s.GetBinding(ctx, "wf-1")
		require.NoError(t, err)
		require.Len(t, got.Entries, 2)
		assert.True(t, got.BaselineVersion().Equal(v10))
		assert.True(t, got.CurrentVersion().Equal(v11))

		require.NoError(t, s.CloseBinding(ctx, "wf-1"))
		got, err = s.GetBinding(ctx, "wf-1")
		require.NoError(t, err)
		assert.True(t, got.Closed)
		require.Len(t, got.Entries, 2, "closing must retain the trace for audit")

		assert.ErrorIs(t, s.AppendBindingEntry(ctx, "wf-404", BindingEntry{Version: v11}), ErrBindingNotFound)
		assert.ErrorIs(t, s.CloseBinding(ctx, "wf-404"), ErrBindingNotFound)
	})

	t.Run("returned bindings are copies", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		require.NoError(t, s.CreateBinding(ctx, &ExecutionVersionBinding{
			ExecutionID: "wf-2",
			Entries:     []BindingEntry{{Version: v10, Class: CompatibilityMinor}},
		}))
		got, err := s.GetBinding(ctx, "wf-2")
		require.NoError(t, err)
		got.Entries[0].Version = v20
		got.Closed = true

		again, err := s.GetBinding(ctx, "wf-2")
		require.NoError(t, err)
		assert.True(t, again.BaselineVersion().Equal(v10))
		assert.False(t, again.Closed)
	})

	t.Run("queue version observations", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		firstSeen := time.Unix(2000, 0).UTC()
		require.NoError(t, s.RecordQueueVersion(ctx, "orders", v10, firstSeen))
		require.NoError(t, s.RecordQueueVersion(ctx, "orders", v11, firstSeen))
		// Idempotent per (queue, version).
		require.NoError(t, s.RecordQueueVersion(ctx, "orders", v10, firstSeen.Add(time.Hour)))

		versions, err := s.ListQueueVersions(ctx, "orders")
		require.NoError(t, err)
		assert.Len(t, versions, 2)

		other, err := s.ListQueueVersions(ctx, "billing")
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("checkpoint compare and set", func(t *testing.T) {
		s := newStore(t)
		defer func() { require.NoError(t, s.Close()) }()

		checkpoint, err := s.GetCheckpoint(ctx, "wf-3")
		require.NoError(t, err)
		assert.EqualValues(t, 0, checkpoint)

		committed, err := s.CompareAndSetCheckpoint(ctx, "wf-3", 0, 3)
		require.NoError(t, err)
		assert.True(t, committed)

		checkpoint, err = s.GetCheckpoint(ctx, "wf-3")
		require.NoError(t, err)
		assert.EqualValues(t, 3, checkpoint)

		// Stale writer loses without error.
		committed, err = s.CompareAndSetCheckpoint(ctx, "wf-3", 0, 5)
		require.NoError(t, err)
		assert.False(t, committed)

		checkpoint, err = s.GetCheckpoint(ctx, "wf-3")
		require.NoError(t, err)
		assert.EqualValues(t, 3, checkpoint)

		committed, err = s.CompareAndSetCheckpoint(ctx, "wf-3", 3, 7)
		require.NoError(t, err)
		assert.True(t, committed)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreConformance(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "versioning.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "versioning.db")
	v10 := mustParseVersion(t, "1.0")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.CreateBinding(ctx, &ExecutionVersionBinding{
		ExecutionID: "wf-1",
		Entries:     []BindingEntry{{Version: v10, Class: CompatibilityMinor, BoundAt: time.Unix(1000, 0).UTC()}},
	}))
	committed, err := s.CompareAndSetCheckpoint(ctx, "wf-1", 0, 4)
	require.NoError(t, err)
	require.True(t, committed)
	require.NoError(t, s.Close())

	// State survives process restart.
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	binding, err := s.GetBinding(ctx, "wf-1")
	require.NoError(t, err)
	assert.True(t, binding.BaselineVersion().Equal(v10))

	checkpoint, err := s.GetCheckpoint(ctx, "wf-1")
	require.NoError(t, err)
	assert.EqualValues(t, 4, checkpoint)
}

func mustParseVersion(t *testing.T, raw string) WorkerVersion {
	t.Helper()
	v, err := ParseWorkerVersion(raw)
	require.NoError(t, err)
	return v
}
