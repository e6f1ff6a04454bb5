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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceBuilderBuildsMatchingSequences(t *testing.T) {
	b := NewTraceBuilder().
		RecordVersionMarker().
		ScheduleActivity("a1", "ChargeCard").
		StartTimer("t1").
		CancelTimer("t1").
		RequestCancelActivity("a1").
		StartChildWorkflow("ShipmentWorkflow").
		RecordMarker("SideEffect").
		CompleteExecution()

	decisions := b.Decisions()
	history := b.History(10)
	require.Len(t, decisions, 8)
	require.Len(t, history, 8)

	assert.EqualValues(t, 10, history[0].EventID)
	assert.EqualValues(t, 17, history[7].EventID)
	for i := range decisions {
		assert.Equal(t, decisions[i].Type, history[i].Type)
	}

	verdict := matchReplayWithHistory(decisions, history)
	assert.True(t, verdict.Compatible())
}

func TestTraceBuilderReturnsCopies(t *testing.T) {
	b := NewTraceBuilder().StartTimer("t1")
	first := b.Decisions()
	b.FailExecution()

	assert.Len(t, first, 1)
	assert.Len(t, b.Decisions(), 2)
}
