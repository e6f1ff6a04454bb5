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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"go.temporal.io/versioning/internal/common/metrics"
)

func TestLoggingObserverEmitsCounters(t *testing.T) {
	testScope := tally.NewTestScope("", nil)
	observer := NewLoggingObserver(nil, testScope)
	v := mustParseVersion(t, "1.0")

	observer.VersionStale("orders", v, time.Unix(100, 0))
	observer.ReplayDiverged("wf-1", v, Verdict{Status: VerdictDivergent, EventIndex: 2})
	observer.DecommissionRisk("orders", v, 3)

	counters := testScope.Snapshot().Counters()
	gauges := testScope.Snapshot().Gauges()

	foundStale := false
	foundDiverged := false
	for _, c := range counters {
		switch c.Name() {
		case metrics.StaleVersionCounter:
			foundStale = true
			assert.EqualValues(t, 1, c.Value())
			assert.Equal(t, "orders", c.Tags()[metrics.TagTaskQueue])
			assert.Equal(t, "1.0", c.Tags()[metrics.TagWorkerVersion])
		case metrics.ReplayDivergenceCounter:
			foundDiverged = true
			assert.EqualValues(t, 1, c.Value())
		}
	}
	assert.True(t, foundStale, "stale counter not emitted")
	assert.True(t, foundDiverged, "divergence counter not emitted")

	foundRisk := false
	for _, g := range gauges {
		if g.Name() == metrics.DecommissionRiskGauge {
			foundRisk = true
			assert.EqualValues(t, 3, g.Value())
		}
	}
	assert.True(t, foundRisk, "decommission risk gauge not emitted")
}

func TestNopObserverIsSilent(t *testing.T) {
	observer := NewNopObserver()
	require.NotNil(t, observer)
	v := mustParseVersion(t, "1.0")
	observer.VersionStale("orders", v, time.Now())
	observer.ReplayDiverged("wf-1", v, Verdict{})
	observer.DecommissionRisk("orders", v, 0)
}
