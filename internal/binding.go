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

import "time"

type (
	// BindingEntry records one version an execution has been bound to,
	// together with the compatibility class under which the binding was made.
	BindingEntry struct {
		Version WorkerVersion
		Class   CompatibilityClass
		BoundAt time.Time
	}

	// ExecutionVersionBinding is the durable fact that one workflow
	// execution is pinned to a worker version. Entries[0] is the replay
	// baseline captured at the execution's first task and never changes;
	// later entries extend the compatibility trace when a compatible version
	// takes the execution over. The trace is append-only so the full audit
	// lineage survives every advance.
	ExecutionVersionBinding struct {
		ExecutionID string
		Entries     []BindingEntry
		Closed      bool
	}
)

// BaselineVersion returns the version captured at the execution's first
// task. Recorded history before any advance is only ever interpreted under
// this version.
func (b *ExecutionVersionBinding) BaselineVersion() WorkerVersion {
	return b.Entries[0].Version
}

// CurrentVersion returns the version the execution's forward progress is
// currently pinned to.
func (b *ExecutionVersionBinding) CurrentVersion() WorkerVersion {
	return b.Entries[len(b.Entries)-1].Version
}

// clone returns a deep copy so callers can hand bindings out without
// exposing store-internal state to mutation.
func (b *ExecutionVersionBinding) clone() *ExecutionVersionBinding {
	entries := make([]BindingEntry, len(b.Entries))
	copy(entries, b.Entries)
	return &ExecutionVersionBinding{
		ExecutionID: b.ExecutionID,
		Entries:     entries,
		Closed:      b.Closed,
	}
}
