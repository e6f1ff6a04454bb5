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
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	v, err := ParseWorkerVersion("2.1")
	require.NoError(t, err)

	formatErr := NewInvalidVersionFormatError("1.2.3", "more than one '.' separator")
	assert.True(t, IsInvalidVersionFormatError(formatErr))
	assert.False(t, IsInvalidVersionFormatError(errors.New("other")))
	assert.Equal(t, "1.2.3", formatErr.Value())

	ambiguousErr := NewAmbiguousVersionError("orders", "01.2", "1.2", 1, 2)
	assert.True(t, IsAmbiguousVersionError(ambiguousErr))
	assert.Contains(t, ambiguousErr.Error(), `"orders"`)

	noWorkersErr := NewNoWorkersAvailableError("orders")
	assert.True(t, IsNoWorkersAvailableError(noWorkersErr))
	assert.Equal(t, "orders", noWorkersErr.Queue())

	nonDetErr := NewNonDeterministicError("wf-1", 2, "StartTimer(TimerID:t1)", "ScheduleActivity(ActivityID:a1, ActivityType:Refund)")
	assert.True(t, IsNonDeterministicError(nonDetErr))
	assert.EqualValues(t, 2, nonDetErr.EventIndex())
	assert.Contains(t, nonDetErr.Error(), "divergence at event 2")

	incompatibleErr := NewVersionIncompatibleError("wf-1", v, nonDetErr)
	assert.True(t, IsVersionIncompatibleError(incompatibleErr))
	assert.Equal(t, v, incompatibleErr.Candidate())

	staleErr := NewStaleRegistrationError("orders", v, time.Unix(100, 0))
	assert.Equal(t, time.Unix(100, 0), staleErr.LastHeartbeat())
	assert.Contains(t, staleErr.Error(), "stale")
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	v, err := ParseWorkerVersion("2.1")
	require.NoError(t, err)

	cause := NewNonDeterministicError("wf-1", 3, "expected", "actual")
	wrapped := NewVersionIncompatibleError("wf-1", v, cause)

	// The refusal unwraps to its determinism cause.
	assert.True(t, IsNonDeterministicError(wrapped))
	var target *NonDeterministicError
	require.True(t, errors.As(wrapped, &target))
	assert.EqualValues(t, 3, target.EventIndex())

	// Classification survives further fmt wrapping.
	outer := fmt.Errorf("routing task: %w", wrapped)
	assert.True(t, IsVersionIncompatibleError(outer))
	assert.True(t, IsNonDeterministicError(outer))
	assert.False(t, IsNoWorkersAvailableError(outer))
}
