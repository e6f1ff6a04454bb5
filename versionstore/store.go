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

// Package versionstore holds the durable state of the versioning core:
// execution version bindings, observed queue versions, and replay
// checkpoints. Two implementations ship here, an in-memory store for tests
// and embedding, and a SQLite store for single-host durability.
package versionstore

import (
	"go.temporal.io/versioning/internal"
)

type (
	// Store is the persistence interface the registry, checker and router
	// share. Implementations must be safe for concurrent use.
	Store = internal.Store
)

// Sentinel errors returned by Store implementations.
var (
	// ErrBindingNotFound is returned when an execution has no recorded
	// version binding.
	ErrBindingNotFound = internal.ErrBindingNotFound

	// ErrBindingExists is returned when creating a binding for an execution
	// that already has one.
	ErrBindingExists = internal.ErrBindingExists
)

// NewMemoryStore returns an in-memory Store. State is lost when the process
// exits.
func NewMemoryStore() Store {
	return internal.NewMemoryStore()
}

// NewSQLiteStore opens (creating if needed) a SQLite-backed Store at path.
// The caller owns the store and must Close it.
func NewSQLiteStore(path string) (Store, error) {
	return internal.NewSQLiteStore(path)
}
