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

package metrics

// VersioningMetricsPrefix is the prefix shared by all metrics emitted by the
// versioning core.
const VersioningMetricsPrefix = "versioning-"

// Metric names.
const (
	VersionRegisterCounter   = VersioningMetricsPrefix + "version-register-total"
	VersionDeregisterCounter = VersioningMetricsPrefix + "version-deregister-total"
	VersionAmbiguousCounter  = VersioningMetricsPrefix + "version-ambiguous-total"
	HeartbeatCounter         = VersioningMetricsPrefix + "heartbeat-total"
	StaleVersionCounter      = VersioningMetricsPrefix + "stale-version-total"

	ReplayCheckCounter         = VersioningMetricsPrefix + "replay-check-total"
	ReplayCheckLatency         = VersioningMetricsPrefix + "replay-check-latency"
	ReplayDivergenceCounter    = VersioningMetricsPrefix + "replay-divergence-total"
	CheckpointConflictCounter  = VersioningMetricsPrefix + "checkpoint-conflict-total"
	CheckpointCommittedCounter = VersioningMetricsPrefix + "checkpoint-committed-total"

	RouteNewCounter       = VersioningMetricsPrefix + "route-new-total"
	RouteExistingCounter  = VersioningMetricsPrefix + "route-existing-total"
	RouteRefusedCounter   = VersioningMetricsPrefix + "route-refused-total"
	RouteAdvancedCounter  = VersioningMetricsPrefix + "route-advanced-total"
	NoWorkersCounter      = VersioningMetricsPrefix + "route-no-workers-total"
	DecommissionRiskGauge = VersioningMetricsPrefix + "decommission-open-executions"
)

// Metric tags.
const (
	TagTaskQueue     = "TaskQueue"
	TagWorkerVersion = "WorkerVersion"
)
