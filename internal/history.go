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
	"fmt"
	"strings"
)

// DecisionType identifies the kind of deterministic decision a workflow
// code path produced at one point of its execution.
type DecisionType int32

const (
	// DecisionTypeScheduleActivity schedules an activity task.
	DecisionTypeScheduleActivity DecisionType = iota
	// DecisionTypeRequestCancelActivity requests cancelation of a previously
	// scheduled activity.
	DecisionTypeRequestCancelActivity
	// DecisionTypeStartTimer starts a durable timer.
	DecisionTypeStartTimer
	// DecisionTypeCancelTimer cancels a pending timer.
	DecisionTypeCancelTimer
	// DecisionTypeStartChildWorkflow starts a child workflow execution.
	DecisionTypeStartChildWorkflow
	// DecisionTypeRecordMarker records a side-effect marker.
	DecisionTypeRecordMarker
	// DecisionTypeCompleteExecution completes the workflow execution.
	DecisionTypeCompleteExecution
	// DecisionTypeFailExecution fails the workflow execution.
	DecisionTypeFailExecution
)

// String returns the decision type name.
func (d DecisionType) String() string {
	switch d {
	case DecisionTypeScheduleActivity:
		return "ScheduleActivity"
	case DecisionTypeRequestCancelActivity:
		return "RequestCancelActivity"
	case DecisionTypeStartTimer:
		return "StartTimer"
	case DecisionTypeCancelTimer:
		return "CancelTimer"
	case DecisionTypeStartChildWorkflow:
		return "StartChildWorkflow"
	case DecisionTypeRecordMarker:
		return "RecordMarker"
	case DecisionTypeCompleteExecution:
		return "CompleteExecution"
	case DecisionTypeFailExecution:
		return "FailExecution"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(d))
	}
}

// Marker names whose decisions are exempt from the deterministic match.
// Version markers and mutable side effects are recorded by the engine itself
// and legitimately differ between worker versions.
const (
	versionMarkerName           = "Version"
	mutableSideEffectMarkerName = "MutableSideEffect"
)

type (
	// HistoryEvent is one recorded deterministic decision in an execution's
	// history. EventID is the zero-based index of the event within that
	// history; the identity attributes are the subset that participates in
	// replay matching.
	HistoryEvent struct {
		EventID int64
		Type    DecisionType

		ActivityID   string
		ActivityType string
		TimerID      string
		WorkflowType string
		MarkerName   string
	}

	// Decision is one deterministic decision freshly produced by a candidate
	// version's code during replay. Its shape mirrors HistoryEvent so the
	// two sequences can be walked in lock-step.
	Decision struct {
		Type DecisionType

		ActivityID   string
		ActivityType string
		TimerID      string
		WorkflowType string
		MarkerName   string
	}

	// HistoryService is the execution-history store collaborator. The core
	// only ever reads history, never mutates it.
	HistoryService interface {
		// ReadHistorySince returns the ordered events of an execution's
		// history with EventID >= checkpointIndex. An empty slice means no
		// events have been recorded past the checkpoint.
		ReadHistorySince(ctx context.Context, executionID string, checkpointIndex int64) ([]HistoryEvent, error)
	}

	// TraceProvider derives the deterministic decision trace a candidate
	// version's code would produce for an execution, starting at the given
	// event index. How a trace is derived from workflow code is owned by the
	// execution-engine collaborator; this core only compares the result
	// against recorded history.
	TraceProvider interface {
		ReplayDecisions(ctx context.Context, executionID string, version WorkerVersion, fromIndex int64) ([]Decision, error)
	}
)

func skipDeterministicCheckForDecision(d Decision) bool {
	return d.Type == DecisionTypeRecordMarker &&
		(d.MarkerName == versionMarkerName || d.MarkerName == mutableSideEffectMarkerName)
}

func skipDeterministicCheckForEvent(e HistoryEvent) bool {
	return e.Type == DecisionTypeRecordMarker &&
		(e.MarkerName == versionMarkerName || e.MarkerName == mutableSideEffectMarkerName)
}

// lastPartOfName strips any package qualifier so a type registered under a
// fully qualified name matches one registered under its short name.
func lastPartOfName(name string) string {
	lastDotIdx := strings.LastIndex(name, ".")
	if lastDotIdx < 0 || lastDotIdx == len(name)-1 {
		return name
	}
	return name[lastDotIdx+1:]
}

// decisionMatchesEvent reports whether a replayed decision reproduces the
// recorded history event. Only identity attributes are compared; payloads
// recorded alongside events are owned by the engine and may drift between
// compatible versions.
func decisionMatchesEvent(d Decision, e HistoryEvent) bool {
	if d.Type != e.Type {
		return false
	}
	switch d.Type {
	case DecisionTypeScheduleActivity:
		return d.ActivityID == e.ActivityID &&
			lastPartOfName(d.ActivityType) == lastPartOfName(e.ActivityType)
	case DecisionTypeRequestCancelActivity:
		return d.ActivityID == e.ActivityID
	case DecisionTypeStartTimer, DecisionTypeCancelTimer:
		return d.TimerID == e.TimerID
	case DecisionTypeStartChildWorkflow:
		return lastPartOfName(d.WorkflowType) == lastPartOfName(e.WorkflowType)
	case DecisionTypeRecordMarker:
		return d.MarkerName == e.MarkerName
	case DecisionTypeCompleteExecution, DecisionTypeFailExecution:
		return true
	default:
		return false
	}
}

func historyEventToString(e HistoryEvent) string {
	return fmt.Sprintf("%s(%s)", e.Type, identityAttributes(e.Type, e.ActivityID, e.ActivityType, e.TimerID, e.WorkflowType, e.MarkerName))
}

func decisionToString(d Decision) string {
	return fmt.Sprintf("%s(%s)", d.Type, identityAttributes(d.Type, d.ActivityID, d.ActivityType, d.TimerID, d.WorkflowType, d.MarkerName))
}

func identityAttributes(t DecisionType, activityID, activityType, timerID, workflowType, markerName string) string {
	switch t {
	case DecisionTypeScheduleActivity:
		return fmt.Sprintf("ActivityID:%s, ActivityType:%s", activityID, activityType)
	case DecisionTypeRequestCancelActivity:
		return fmt.Sprintf("ActivityID:%s", activityID)
	case DecisionTypeStartTimer, DecisionTypeCancelTimer:
		return fmt.Sprintf("TimerID:%s", timerID)
	case DecisionTypeStartChildWorkflow:
		return fmt.Sprintf("WorkflowType:%s", workflowType)
	case DecisionTypeRecordMarker:
		return fmt.Sprintf("MarkerName:%s", markerName)
	default:
		return ""
	}
}
