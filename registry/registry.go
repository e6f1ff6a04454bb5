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

// Package registry tracks which worker versions are live on which task
// queues. Workers register the version they run, heartbeat while alive, and
// deregister on shutdown; the registry answers "latest live version" queries
// for routing and flags versions whose heartbeats have gone stale.
package registry

import (
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"go.temporal.io/versioning/internal"
)

type (
	// Registry is the per-process version registry.
	// Use registry.New(...) to create an instance.
	Registry = internal.Registry

	// Options configures a Registry. Store is required; everything else has
	// a working default.
	Options = internal.RegistryOptions

	// RegistrationHandle identifies one worker's registration. Deregister
	// releases it; Deregister is idempotent.
	RegistrationHandle = internal.RegistrationHandle

	// ExecutionCounter reports how many open executions are bound to a
	// version, for decommission checks. Implemented by the routing layer or
	// by the embedding host.
	ExecutionCounter = internal.ExecutionCounter

	// DecommissionReport is the result of asking whether a version can be
	// retired from a queue.
	DecommissionReport = internal.DecommissionReport

	// QueueVersionInfo describes one observed version of a task queue,
	// including liveness.
	QueueVersionInfo = internal.QueueVersionInfo

	// Observer receives the structured events the core emits for operators:
	// stale registrations, replay divergence, and decommission risk.
	Observer = internal.Observer
)

// NewNopObserver creates an Observer that discards all events.
func NewNopObserver() Observer {
	return internal.NewNopObserver()
}

// NewLoggingObserver creates the default Observer: structured zap logs plus
// tally counters for each reported condition.
func NewLoggingObserver(logger *zap.Logger, scope tally.Scope) Observer {
	return internal.NewLoggingObserver(logger, scope)
}

// New creates a Registry from options. The returned registry is idle until
// Start is called; Register and Latest work either way, but heartbeat
// bookkeeping and staleness sweeps only run while started.
func New(options Options) (*Registry, error) {
	return internal.NewRegistry(options)
}

// IsAmbiguousVersionError reports whether err is an AmbiguousVersionError.
func IsAmbiguousVersionError(err error) bool {
	return internal.IsAmbiguousVersionError(err)
}

// IsNoWorkersAvailableError reports whether err is a NoWorkersAvailableError.
func IsNoWorkersAvailableError(err error) bool {
	return internal.IsNoWorkersAvailableError(err)
}
