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

// TraceBuilder assembles a decision trace in program order. It is a
// convenience for trace providers and tests; the zero value is not usable,
// use NewTraceBuilder.
type TraceBuilder struct {
	decisions []Decision
}

// NewTraceBuilder returns an empty trace builder.
func NewTraceBuilder() *TraceBuilder {
	return &TraceBuilder{}
}

// ScheduleActivity appends an activity-schedule decision.
func (b *TraceBuilder) ScheduleActivity(activityID, activityType string) *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeScheduleActivity, ActivityID: activityID, ActivityType: activityType})
}

// RequestCancelActivity appends an activity cancel request.
func (b *TraceBuilder) RequestCancelActivity(activityID string) *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeRequestCancelActivity, ActivityID: activityID})
}

// StartTimer appends a timer-start decision.
func (b *TraceBuilder) StartTimer(timerID string) *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeStartTimer, TimerID: timerID})
}

// CancelTimer appends a timer-cancel decision.
func (b *TraceBuilder) CancelTimer(timerID string) *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeCancelTimer, TimerID: timerID})
}

// StartChildWorkflow appends a child-workflow start decision.
func (b *TraceBuilder) StartChildWorkflow(workflowType string) *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeStartChildWorkflow, WorkflowType: workflowType})
}

// RecordMarker appends a marker decision.
func (b *TraceBuilder) RecordMarker(markerName string) *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeRecordMarker, MarkerName: markerName})
}

// RecordVersionMarker appends the engine's own version marker, which replay
// matching always skips.
func (b *TraceBuilder) RecordVersionMarker() *TraceBuilder {
	return b.RecordMarker(versionMarkerName)
}

// CompleteExecution appends the terminal completion decision.
func (b *TraceBuilder) CompleteExecution() *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeCompleteExecution})
}

// FailExecution appends the terminal failure decision.
func (b *TraceBuilder) FailExecution() *TraceBuilder {
	return b.add(Decision{Type: DecisionTypeFailExecution})
}

// Decisions returns the accumulated trace. The slice is a copy; the builder
// may keep being appended to afterwards.
func (b *TraceBuilder) Decisions() []Decision {
	out := make([]Decision, len(b.decisions))
	copy(out, b.decisions)
	return out
}

// History returns the accumulated trace rendered as recorded history events,
// with EventIDs assigned from firstEventID upward. Useful for seeding test
// histories that a trace built the same way will replay cleanly against.
func (b *TraceBuilder) History(firstEventID int64) []HistoryEvent {
	out := make([]HistoryEvent, len(b.decisions))
	for i, d := range b.decisions {
		out[i] = HistoryEvent{
			EventID:      firstEventID + int64(i),
			Type:         d.Type,
			ActivityID:   d.ActivityID,
			ActivityType: d.ActivityType,
			TimerID:      d.TimerID,
			WorkflowType: d.WorkflowType,
			MarkerName:   d.MarkerName,
		}
	}
	return out
}

func (b *TraceBuilder) add(d Decision) *TraceBuilder {
	b.decisions = append(b.decisions, d)
	return b
}
