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
	"fmt"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go.temporal.io/versioning/internal/common/backoff"
	"go.temporal.io/versioning/internal/common/metrics"
)

// RouteStatus is the outcome class of an existing-task routing decision.
type RouteStatus int32

const (
	// RouteDispatch means the task may be handed to the candidate version.
	RouteDispatch RouteStatus = iota
	// RouteRefuse means the candidate cannot safely take the task; it stays
	// with the bound (or another compatible) version.
	RouteRefuse
)

// RouteDecision is the answer of RouteExistingTask. On refusal, Reason
// carries a *VersionIncompatibleError explaining why; refusal is recoverable
// at the routing layer and invisible to the workflow author.
type RouteDecision struct {
	Status  RouteStatus
	Version WorkerVersion
	Reason  error
}

type (
	// RouterOptions configures a Router. Registry, Checker and Store are
	// required.
	RouterOptions struct {
		// Registry answers which versions are live per task queue. Required.
		Registry *Registry
		// Checker verifies replay compatibility for takeover routing.
		// Required.
		Checker *Checker
		// Store persists execution version bindings. Required, and must be
		// the same store the Checker commits checkpoints to.
		Store Store
		// Logger for internal logging. Defaults to noop.
		Logger *zap.Logger
		// MetricsScope for routing counters. Defaults to noop.
		MetricsScope tally.Scope
		// Clock is the time source for binding timestamps. Defaults to the
		// wall clock.
		Clock clock.Clock
		// Tracer for spans around routing operations. Defaults to the noop
		// tracer.
		Tracer opentracing.Tracer
	}

	// Router decides, for each unit of work, which worker version handles
	// it. Every execution moves through Unbound -> Bound -> Closed: a start
	// request binds the execution to the queue's latest live version, every
	// later task stays pinned to the bound version unless a different
	// version proves compatible by replay, and a closed execution is never
	// routed again.
	Router struct {
		registry     *Registry
		checker      *Checker
		store        Store
		logger       *zap.Logger
		metricsScope tally.Scope
		clock        clock.Clock
		tracer       opentracing.Tracer

		// Per-execution serialization of binding reads and advances. The
		// engine processes one task at a time per execution, so these locks
		// are uncontended in normal operation; they exist so a misbehaving
		// caller cannot corrupt a binding trace.
		mu    sync.Mutex
		locks map[string]*sync.Mutex
	}
)

// NewRouter creates a Router from options.
func NewRouter(options RouterOptions) (*Router, error) {
	var missing error
	if options.Registry == nil {
		missing = multierr.Append(missing, errors.New("Registry is required"))
	}
	if options.Checker == nil {
		missing = multierr.Append(missing, errors.New("Checker is required"))
	}
	if options.Store == nil {
		missing = multierr.Append(missing, errors.New("Store is required"))
	}
	if missing != nil {
		return nil, missing
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scope := options.MetricsScope
	if scope == nil {
		scope = tally.NoopScope
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}
	tracer := options.Tracer
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return &Router{
		registry:     options.Registry,
		checker:      options.Checker,
		store:        options.Store,
		logger:       logger,
		metricsScope: scope,
		clock:        clk,
		tracer:       tracer,
		locks:        make(map[string]*sync.Mutex),
	}, nil
}

// RouteNewExecution binds a not-yet-started execution to the latest live
// version of queue and returns that version. Fails with
// *NoWorkersAvailableError when the queue has no live workers; the condition
// is transient and callers retry with backoff (see
// RouteNewExecutionWithRetry).
func (r *Router) RouteNewExecution(ctx context.Context, queue, executionID string) (WorkerVersion, error) {
	span := r.startSpan(ctx, "RouteNewExecution", executionID)
	defer span.Finish()

	r.metricsScope.Counter(metrics.RouteNewCounter).Inc(1)

	latest, ok := r.registry.Latest(queue)
	if !ok {
		r.metricsScope.Counter(metrics.NoWorkersCounter).Inc(1)
		return WorkerVersion{}, NewNoWorkersAvailableError(queue)
	}

	binding := &ExecutionVersionBinding{
		ExecutionID: executionID,
		Entries: []BindingEntry{{
			Version: latest,
			Class:   CompatibilityMinor,
			BoundAt: r.clock.Now(),
		}},
	}
	if err := r.store.CreateBinding(ctx, binding); err != nil {
		return WorkerVersion{}, fmt.Errorf("failed to bind execution %q: %w", executionID, err)
	}

	r.logger.Info("Bound new execution.",
		zap.String(tagTaskQueue, queue),
		zap.String(tagExecutionID, executionID),
		zap.String(tagWorkerVersion, latest.String()))
	return latest, nil
}

// RouteNewExecutionWithRetry is RouteNewExecution with exponential backoff
// on the no-workers condition, for hosts that would rather wait for a worker
// to register than surface the transient error.
func (r *Router) RouteNewExecutionWithRetry(ctx context.Context, queue, executionID string, policy backoff.RetryPolicy) (WorkerVersion, error) {
	var version WorkerVersion
	op := func() error {
		v, err := r.RouteNewExecution(ctx, queue, executionID)
		if err != nil {
			return err
		}
		version = v
		return nil
	}
	err := backoff.Retry(ctx, op, policy, IsNoWorkersAvailableError)
	return version, err
}

// RouteExistingTask decides whether candidate may execute the next task of a
// previously started execution. Every route verifies, by replay of the
// history recorded past the execution's checkpoint, that the candidate
// reproduces the execution's decisions: even the bound version can start
// diverging late in a long-running execution, so the bound version is
// re-checked incrementally on every task rather than trusted after its
// first match. A verified candidate different from the bound version
// advances the binding; the advance appends to the binding's trace, never
// overwriting the original start-version record.
//
// A divergent bound version is refused with the *NonDeterministicError
// itself in the decision's Reason: the execution cannot make forward
// progress until remediation. A divergent takeover candidate is refused
// with *VersionIncompatibleError wrapping that cause, and the task stays
// with the bound version. Either way the binding is left untouched.
//
// The replay verification runs without holding the binding lock: the lock
// covers only the binding read before the check and the trace append after
// it, with the bound version re-validated in between.
func (r *Router) RouteExistingTask(ctx context.Context, executionID string, candidate WorkerVersion) (RouteDecision, error) {
	span := r.startSpan(ctx, "RouteExistingTask", executionID)
	defer span.Finish()

	r.metricsScope.Counter(metrics.RouteExistingCounter).Inc(1)

	lock := r.executionLock(executionID)

	lock.Lock()
	binding, err := r.store.GetBinding(ctx, executionID)
	lock.Unlock()
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return RouteDecision{}, ErrExecutionNotBound
		}
		return RouteDecision{}, fmt.Errorf("failed to read binding for execution %q: %w", executionID, err)
	}
	if binding.Closed {
		return RouteDecision{}, ErrExecutionClosed
	}

	bound := binding.CurrentVersion()

	// Every route replays the history recorded past the checkpoint, the
	// bound version's included: a version that matched yesterday can still
	// diverge on events appended since.
	verdict, err := r.checker.VerifyReplay(ctx, executionID, candidate)
	if err != nil {
		return RouteDecision{}, err
	}
	if !verdict.Compatible() {
		r.metricsScope.Counter(metrics.RouteRefusedCounter).Inc(1)
		cause := NewNonDeterministicError(executionID, verdict.EventIndex, verdict.Expected, verdict.Actual)
		if candidate.Equal(bound) {
			r.logger.Error("Bound version diverged from recorded history.",
				zap.String(tagExecutionID, executionID),
				zap.String(tagWorkerVersion, bound.String()))
			return RouteDecision{Status: RouteRefuse, Version: bound, Reason: cause}, nil
		}
		reason := NewVersionIncompatibleError(executionID, candidate, cause)
		r.logger.Warn("Refused incompatible version for execution.",
			zap.String(tagExecutionID, executionID),
			zap.String(tagCandidateVersion, candidate.String()),
			zap.String(tagWorkerVersion, bound.String()))
		return RouteDecision{Status: RouteRefuse, Version: bound, Reason: reason}, nil
	}

	if candidate.Equal(bound) {
		return RouteDecision{Status: RouteDispatch, Version: bound}, nil
	}

	lock.Lock()
	defer lock.Unlock()

	// Re-validate under the lock: another task may have advanced or closed
	// the binding while the check ran.
	binding, err = r.store.GetBinding(ctx, executionID)
	if err != nil {
		return RouteDecision{}, fmt.Errorf("failed to re-read binding for execution %q: %w", executionID, err)
	}
	if binding.Closed {
		return RouteDecision{}, ErrExecutionClosed
	}
	if binding.CurrentVersion().Equal(candidate) {
		// A concurrent advance already moved the binding here.
		return RouteDecision{Status: RouteDispatch, Version: candidate}, nil
	}

	entry := BindingEntry{
		Version: candidate,
		Class:   CompatibilityMinor,
		BoundAt: r.clock.Now(),
	}
	if err := r.store.AppendBindingEntry(ctx, executionID, entry); err != nil {
		return RouteDecision{}, fmt.Errorf("failed to advance binding for execution %q: %w", executionID, err)
	}

	r.metricsScope.Counter(metrics.RouteAdvancedCounter).Inc(1)
	r.logger.Info("Advanced execution binding to compatible version.",
		zap.String(tagExecutionID, executionID),
		zap.String(tagWorkerVersion, candidate.String()))
	return RouteDecision{Status: RouteDispatch, Version: candidate}, nil
}

// CloseExecution marks an execution's binding terminal. Closed bindings are
// retained for audit; retention itself is an external policy.
func (r *Router) CloseExecution(ctx context.Context, executionID string) error {
	lock := r.executionLock(executionID)
	lock.Lock()
	defer lock.Unlock()
	if err := r.store.CloseBinding(ctx, executionID); err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return ErrExecutionNotBound
		}
		return fmt.Errorf("failed to close execution %q: %w", executionID, err)
	}
	// A closed binding takes no further routes, so its serialization lock
	// would otherwise accumulate forever.
	r.mu.Lock()
	delete(r.locks, executionID)
	r.mu.Unlock()
	r.logger.Info("Closed execution.", zap.String(tagExecutionID, executionID))
	return nil
}

// Binding returns a copy of an execution's binding for inspection.
func (r *Router) Binding(ctx context.Context, executionID string) (*ExecutionVersionBinding, error) {
	binding, err := r.store.GetBinding(ctx, executionID)
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return nil, ErrExecutionNotBound
		}
		return nil, err
	}
	return binding, nil
}

func (r *Router) executionLock(executionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[executionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[executionID] = lock
	}
	return lock
}

func (r *Router) startSpan(ctx context.Context, operation, executionID string) opentracing.Span {
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := r.tracer.StartSpan(operation, opts...)
	span.SetTag(tagExecutionID, executionID)
	return span
}
