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

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go.temporal.io/versioning/internal/common/metrics"
)

// checkpointCommitAttempts bounds the optimistic commit loop. Concurrent
// checks for one execution are serialized upstream, so a conflict here means
// another process committed between our read and write; a handful of
// retries is enough to converge.
const checkpointCommitAttempts = 3

// VerdictStatus is the outcome class of a replay verification.
type VerdictStatus int32

const (
	// VerdictCompatible means the candidate version reproduced every
	// recorded decision up to the end of history.
	VerdictCompatible VerdictStatus = iota
	// VerdictDivergent means replay split from recorded history. EventIndex,
	// Expected and Actual on the Verdict pinpoint the divergence.
	VerdictDivergent
)

// Verdict is the result of verifying a candidate version's replay against an
// execution's recorded history. Comparison stops at the first divergence:
// once execution paths have split, every later comparison is meaningless.
type Verdict struct {
	Status VerdictStatus
	// EventIndex is the history index of the first divergence. Unset for
	// compatible verdicts.
	EventIndex int64
	// Expected describes the decision recorded in history at EventIndex.
	Expected string
	// Actual describes the decision replay produced at EventIndex.
	Actual string
}

// Compatible returns true when the verdict allows the candidate to proceed.
func (v Verdict) Compatible() bool {
	return v.Status == VerdictCompatible
}

type (
	// CheckerOptions configures a Checker. History and Traces are required;
	// everything else falls back to noop implementations.
	CheckerOptions struct {
		// History reads recorded execution histories. Required.
		History HistoryService
		// Traces derives candidate decision traces. Required.
		Traces TraceProvider
		// Store persists per-execution replay checkpoints. Required.
		Store Store
		// Logger for internal logging. Defaults to noop.
		Logger *zap.Logger
		// MetricsScope for check counters and latency. Defaults to noop.
		MetricsScope tally.Scope
		// Observer receives divergence reports. Defaults to noop.
		Observer Observer
		// Tracer for spans around verification. Defaults to the noop tracer.
		Tracer opentracing.Tracer
	}

	// Checker verifies, incrementally, that a candidate worker version's
	// deterministic trace reproduces an execution's recorded history. State
	// lives in the Store so verification survives process restarts and costs
	// O(new events since last check) per invocation regardless of total
	// history length.
	Checker struct {
		history      HistoryService
		traces       TraceProvider
		store        Store
		logger       *zap.Logger
		metricsScope tally.Scope
		observer     Observer
		tracer       opentracing.Tracer
	}
)

// NewChecker creates a Checker from options.
func NewChecker(options CheckerOptions) (*Checker, error) {
	var missing error
	if options.History == nil {
		missing = multierr.Append(missing, errors.New("History service is required"))
	}
	if options.Traces == nil {
		missing = multierr.Append(missing, errors.New("Trace provider is required"))
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
	observer := options.Observer
	if observer == nil {
		observer = NewNopObserver()
	}
	tracer := options.Tracer
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return &Checker{
		history:      options.History,
		traces:       options.Traces,
		store:        options.Store,
		logger:       logger,
		metricsScope: scope,
		observer:     observer,
		tracer:       tracer,
	}, nil
}

// VerifyReplay checks whether candidate may execute the next task of an
// existing execution. It reads the persisted checkpoint, fetches only the
// events recorded past it, replays the candidate's decisions for the same
// range, and walks both sequences in lock-step. The checkpoint commit is
// optimistic: no lock is held during the comparison, and the new checkpoint
// is committed only if no concurrent check advanced it in the interim;
// otherwise the read-verify-commit cycle is retried.
//
// Brand-new executions have no history to diverge from and must not be
// checked; routing handles that case before calling here.
func (c *Checker) VerifyReplay(ctx context.Context, executionID string, candidate WorkerVersion) (Verdict, error) {
	span, ctx := c.startSpan(ctx, "VerifyReplay", executionID, candidate)
	defer span.Finish()

	c.metricsScope.Counter(metrics.ReplayCheckCounter).Inc(1)
	sw := c.metricsScope.Timer(metrics.ReplayCheckLatency).Start()
	defer sw.Stop()

	for attempt := 0; attempt < checkpointCommitAttempts; attempt++ {
		checkpoint, err := c.store.GetCheckpoint(ctx, executionID)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to read replay checkpoint: %w", err)
		}

		events, err := c.history.ReadHistorySince(ctx, executionID, checkpoint)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to read history: %w", err)
		}
		if len(events) == 0 {
			// Nothing recorded past the checkpoint; the prefix was already
			// proven and there is nothing new to diverge on.
			return Verdict{Status: VerdictCompatible}, nil
		}

		decisions, err := c.traces.ReplayDecisions(ctx, executionID, candidate, checkpoint)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to derive replay decisions for version %s: %w", candidate, err)
		}

		verdict := matchReplayWithHistory(decisions, events)
		if verdict.Status == VerdictDivergent {
			c.observer.ReplayDiverged(executionID, candidate, verdict)
			c.logger.Error("Replay and history mismatch.",
				zap.String(tagExecutionID, executionID),
				zap.String(tagCandidateVersion, candidate.String()),
				zap.Int64(tagEventIndex, verdict.EventIndex))
			return verdict, nil
		}

		newCheckpoint := events[len(events)-1].EventID + 1
		committed, err := c.store.CompareAndSetCheckpoint(ctx, executionID, checkpoint, newCheckpoint)
		if err != nil {
			return Verdict{}, fmt.Errorf("failed to commit replay checkpoint: %w", err)
		}
		if committed {
			c.metricsScope.Counter(metrics.CheckpointCommittedCounter).Inc(1)
			return verdict, nil
		}

		// A concurrent check moved the checkpoint while we were comparing.
		c.metricsScope.Counter(metrics.CheckpointConflictCounter).Inc(1)
		c.logger.Debug("Replay checkpoint moved during verification, retrying.",
			zap.String(tagExecutionID, executionID),
			zap.Int64("ReadCheckpoint", checkpoint))
	}
	return Verdict{}, fmt.Errorf("replay checkpoint for execution %q kept moving after %d attempts", executionID, checkpointCommitAttempts)
}

func (c *Checker) startSpan(ctx context.Context, operation, executionID string, candidate WorkerVersion) (opentracing.Span, context.Context) {
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := c.tracer.StartSpan(operation, opts...)
	span.SetTag(tagExecutionID, executionID)
	span.SetTag(tagCandidateVersion, candidate.String())
	return span, opentracing.ContextWithSpan(ctx, span)
}

// matchReplayWithHistory walks the freshly produced decisions and the
// recorded history events in lock-step and stops at the first index where
// they disagree. Engine-recorded markers (version, mutable side effect) are
// skipped on both sides because they legitimately differ across versions.
func matchReplayWithHistory(replayDecisions []Decision, historyEvents []HistoryEvent) Verdict {
	di := 0
	hi := 0
	dSize := len(replayDecisions)
	hSize := len(historyEvents)
matchLoop:
	for hi < hSize || di < dSize {
		var e *HistoryEvent
		if hi < hSize {
			e = &historyEvents[hi]
			if skipDeterministicCheckForEvent(*e) {
				hi++
				continue matchLoop
			}
		}

		var d *Decision
		if di < dSize {
			d = &replayDecisions[di]
			if skipDeterministicCheckForDecision(*d) {
				di++
				continue matchLoop
			}
		}

		if d == nil {
			return Verdict{
				Status:     VerdictDivergent,
				EventIndex: e.EventID,
				Expected:   historyEventToString(*e),
				Actual:     "no replay decision",
			}
		}

		if e == nil {
			index := int64(di)
			if hSize > 0 {
				index = historyEvents[hSize-1].EventID + 1
			}
			return Verdict{
				Status:     VerdictDivergent,
				EventIndex: index,
				Expected:   "no history event",
				Actual:     decisionToString(*d),
			}
		}

		if !decisionMatchesEvent(*d, *e) {
			return Verdict{
				Status:     VerdictDivergent,
				EventIndex: e.EventID,
				Expected:   historyEventToString(*e),
				Actual:     decisionToString(*d),
			}
		}

		di++
		hi++
	}
	return Verdict{Status: VerdictCompatible}
}
