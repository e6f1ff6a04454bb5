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

// Package routing decides which worker version serves each task. New
// executions bind to the latest live version of their queue; tasks of
// existing executions stay pinned to the bound version unless a candidate
// proves replay compatibility first.
package routing

import (
	"time"

	"go.temporal.io/versioning/internal"
	"go.temporal.io/versioning/internal/common/backoff"
)

type (
	// Router applies the version routing policy.
	// Use routing.NewRouter(...) to create an instance.
	Router = internal.Router

	// RouterOptions configures a Router. Registry, Checker and Store are
	// required collaborators.
	RouterOptions = internal.RouterOptions

	// RouteDecision is the outcome of a routing request: dispatch on a
	// version, or refuse with the reason.
	RouteDecision = internal.RouteDecision

	// RouteStatus distinguishes dispatch from refusal.
	RouteStatus = internal.RouteStatus

	// BindingEntry is one step of an execution's version lineage.
	BindingEntry = internal.BindingEntry

	// ExecutionVersionBinding is an execution's append-only version lineage
	// from start to close.
	ExecutionVersionBinding = internal.ExecutionVersionBinding

	// RetryPolicy shapes the backoff used by RouteNewExecutionWithRetry.
	RetryPolicy = backoff.RetryPolicy
)

const (
	// RouteDispatch means the task may run on the decided version.
	RouteDispatch = internal.RouteDispatch

	// RouteRefuse means the task must not run on the candidate; the
	// decision carries the refusal reason.
	RouteRefuse = internal.RouteRefuse
)

// Sentinel errors surfaced by routing operations.
var (
	// ErrExecutionClosed is returned when routing a task of an execution
	// that has already been closed.
	ErrExecutionClosed = internal.ErrExecutionClosed

	// ErrExecutionNotBound is returned when routing a task of an execution
	// that was never routed as new.
	ErrExecutionNotBound = internal.ErrExecutionNotBound
)

// NewRouter creates a Router from options.
func NewRouter(options RouterOptions) (*Router, error) {
	return internal.NewRouter(options)
}

// NewExponentialRetryPolicy returns a retry policy for
// Router.RouteNewExecutionWithRetry starting at initialInterval and doubling
// up to the policy's maximum interval.
func NewExponentialRetryPolicy(initialInterval time.Duration) *backoff.ExponentialRetryPolicy {
	return backoff.NewExponentialRetryPolicy(initialInterval)
}

// IsVersionIncompatibleError reports whether err is a
// VersionIncompatibleError, the refusal cause produced when a candidate
// fails replay verification.
func IsVersionIncompatibleError(err error) bool {
	return internal.IsVersionIncompatibleError(err)
}

// IsNoWorkersAvailableError reports whether err is a NoWorkersAvailableError.
func IsNoWorkersAvailableError(err error) bool {
	return internal.IsNoWorkersAvailableError(err)
}
