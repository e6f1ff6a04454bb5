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

// Package versioning is a reference core for worker versioning of durable
// workflow executions. It tracks which worker versions are live on each task
// queue, pins every execution to the version that started it, and verifies
// by deterministic replay that a newer version may safely take over an
// in-flight execution before any task is routed to it.
//
// The library is organized as thin public packages over a shared internal
// implementation:
//
//   - version: worker version parsing, ordering, and change classification
//   - registry: per-task-queue bookkeeping of live worker versions
//   - replay: incremental history compatibility checking
//   - routing: version selection for new and in-flight executions
//   - versionstore: durable storage for bindings and replay checkpoints
package versioning

// LibraryVersion is a semver string that represents the version of this
// versioning library. Hosts embedding the core may report it to
// observability collaborators alongside their own build identifiers.
const LibraryVersion = "v0.1.0"
