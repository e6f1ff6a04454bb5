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
	"time"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"go.temporal.io/versioning/internal/common/metrics"
)

// Observer receives the structured events the core emits for operators:
// stale registrations, replay divergence, and decommission risk. All
// callbacks are advisory and must not block; implementations that do slow
// work should hand off to their own goroutines.
type Observer interface {
	VersionStale(queue string, version WorkerVersion, lastHeartbeat time.Time)
	ReplayDiverged(executionID string, candidate WorkerVersion, verdict Verdict)
	DecommissionRisk(queue string, version WorkerVersion, openExecutions int)
}

type nopObserver struct{}

// NewNopObserver creates an Observer that discards all events.
func NewNopObserver() Observer {
	return nopObserver{}
}

func (nopObserver) VersionStale(string, WorkerVersion, time.Time) {}
func (nopObserver) ReplayDiverged(string, WorkerVersion, Verdict) {}
func (nopObserver) DecommissionRisk(string, WorkerVersion, int)   {}

type loggingObserver struct {
	logger *zap.Logger
	scope  *metrics.TaggedScope
}

// NewLoggingObserver creates the default Observer: structured zap logs plus
// tally counters for each reported condition.
func NewLoggingObserver(logger *zap.Logger, scope tally.Scope) Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingObserver{
		logger: logger,
		scope:  metrics.NewTaggedScope(scope),
	}
}

func (o *loggingObserver) VersionStale(queue string, version WorkerVersion, lastHeartbeat time.Time) {
	o.logger.Warn("Worker version is stale.",
		zap.String(tagTaskQueue, queue),
		zap.String(tagWorkerVersion, version.String()),
		zap.Time(tagLastHeartbeat, lastHeartbeat))
	o.scope.GetTaggedScope(metrics.TagTaskQueue, queue, metrics.TagWorkerVersion, version.String()).
		Counter(metrics.StaleVersionCounter).Inc(1)
}

func (o *loggingObserver) ReplayDiverged(executionID string, candidate WorkerVersion, verdict Verdict) {
	o.logger.Error("Replay and history mismatch.",
		zap.String(tagExecutionID, executionID),
		zap.String(tagCandidateVersion, candidate.String()),
		zap.Int64(tagEventIndex, verdict.EventIndex),
		zap.String("Expected", verdict.Expected),
		zap.String("Actual", verdict.Actual))
	o.scope.GetTaggedScope(metrics.TagWorkerVersion, candidate.String()).
		Counter(metrics.ReplayDivergenceCounter).Inc(1)
}

func (o *loggingObserver) DecommissionRisk(queue string, version WorkerVersion, openExecutions int) {
	o.logger.Warn("Version still referenced by open executions.",
		zap.String(tagTaskQueue, queue),
		zap.String(tagWorkerVersion, version.String()),
		zap.Int(tagOpenExecutions, openExecutions))
	o.scope.GetTaggedScope(metrics.TagTaskQueue, queue, metrics.TagWorkerVersion, version.String()).
		Gauge(metrics.DecommissionRiskGauge).Update(float64(openExecutions))
}
