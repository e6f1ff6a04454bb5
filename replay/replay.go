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

// Package replay verifies that a candidate worker version deterministically
// reproduces an execution's recorded decision history. Verified prefixes are
// checkpointed so repeated checks only cover new events.
package replay

import (
	"go.temporal.io/versioning/internal"
)

type (
	// Checker verifies candidate versions against recorded histories.
	// Use replay.NewChecker(...) to create an instance.
	Checker = internal.Checker

	// CheckerOptions configures a Checker. History, Traces and Store are
	// required collaborators.
	CheckerOptions = internal.CheckerOptions

	// Verdict is the outcome of one replay verification: Compatible, or
	// Divergent with the first mismatching event index and both renderings.
	Verdict = internal.Verdict

	// VerdictStatus distinguishes compatible from divergent verdicts.
	VerdictStatus = internal.VerdictStatus

	// HistoryEvent is one recorded deterministic decision in an execution
	// history.
	HistoryEvent = internal.HistoryEvent

	// Decision is one decision produced by replaying candidate code.
	Decision = internal.Decision

	// DecisionType enumerates the deterministic decision kinds.
	DecisionType = internal.DecisionType

	// HistoryService reads recorded execution histories.
	HistoryService = internal.HistoryService

	// TraceProvider derives the decision trace candidate code produces when
	// replaying an execution.
	TraceProvider = internal.TraceProvider

	// TraceBuilder assembles decision traces in program order. Intended for
	// TraceProvider implementations and tests.
	TraceBuilder = internal.TraceBuilder
)

const (
	// VerdictCompatible means the candidate reproduced every checked event.
	VerdictCompatible = internal.VerdictCompatible

	// VerdictDivergent means the candidate's trace departed from recorded
	// history; the verdict carries the first divergent event index.
	VerdictDivergent = internal.VerdictDivergent

	// DecisionTypeScheduleActivity schedules an activity task.
	DecisionTypeScheduleActivity = internal.DecisionTypeScheduleActivity
	// DecisionTypeRequestCancelActivity requests cancelation of a
	// previously scheduled activity.
	DecisionTypeRequestCancelActivity = internal.DecisionTypeRequestCancelActivity
	// DecisionTypeStartTimer starts a durable timer.
	DecisionTypeStartTimer = internal.DecisionTypeStartTimer
	// DecisionTypeCancelTimer cancels a pending timer.
	DecisionTypeCancelTimer = internal.DecisionTypeCancelTimer
	// DecisionTypeStartChildWorkflow starts a child workflow execution.
	DecisionTypeStartChildWorkflow = internal.DecisionTypeStartChildWorkflow
	// DecisionTypeRecordMarker records a side-effect marker.
	DecisionTypeRecordMarker = internal.DecisionTypeRecordMarker
	// DecisionTypeCompleteExecution completes the workflow execution.
	DecisionTypeCompleteExecution = internal.DecisionTypeCompleteExecution
	// DecisionTypeFailExecution fails the workflow execution.
	DecisionTypeFailExecution = internal.DecisionTypeFailExecution
)

// NewChecker creates a Checker from options.
func NewChecker(options CheckerOptions) (*Checker, error) {
	return internal.NewChecker(options)
}

// NewTraceBuilder returns an empty trace builder.
func NewTraceBuilder() *TraceBuilder {
	return internal.NewTraceBuilder()
}

// IsNonDeterministicError reports whether err is a NonDeterministicError.
func IsNonDeterministicError(err error) bool {
	return internal.IsNonDeterministicError(err)
}
