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
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pborman/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.temporal.io/versioning/internal/common/metrics"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultStalenessWindow   = 2 * time.Minute
	defaultStaleScanSchedule = "@every 1m"
)

type (
	// ExecutionCounter is the execution-store collaborator consulted for
	// decommission checks. Counting open executions bound to a version is
	// outside this core's ownership.
	ExecutionCounter interface {
		OpenExecutions(ctx context.Context, queue string, version WorkerVersion) (int, error)
	}

	// versionEntry tracks one version observed on one task queue. Guarded by
	// the owning taskQueueVersionSet's lock except for activeWorkers, which
	// is atomic so Latest can read it under the set's read path cheaply.
	versionEntry struct {
		version       WorkerVersion
		firstSeen     time.Time
		lastHeartbeat time.Time
		activeWorkers *atomic.Int32
	}

	// taskQueueVersionSet is the set of all versions ever observed on one
	// task queue. Each set is an independently lockable unit so unrelated
	// queues never serialize on each other.
	taskQueueVersionSet struct {
		sync.Mutex
		name     string
		versions map[string]*versionEntry // canonical "M.N" -> entry
	}

	// RegistryOptions configures a Registry. The zero value is usable for
	// tests: it yields an in-memory store, noop logging and metrics, the
	// real clock, and default heartbeat/staleness windows.
	RegistryOptions struct {
		// Store persists per-queue version observations. Defaults to the
		// in-memory store. A supplied store is not closed by Stop; only a
		// defaulted store is.
		Store Store
		// Logger for internal logging. Defaults to noop.
		Logger *zap.Logger
		// MetricsScope for registry counters. Defaults to noop.
		MetricsScope tally.Scope
		// Observer receives stale-version and decommission-risk reports.
		// Defaults to noop.
		Observer Observer
		// ExecutionCounter backs DecommissionCheck. Optional; without it
		// DecommissionCheck returns an error.
		ExecutionCounter ExecutionCounter
		// Clock is the time source. Defaults to the wall clock; tests
		// install a mock.
		Clock clock.Clock
		// HeartbeatInterval is the period of the shared auto-heartbeat loop.
		// Defaults to 30s.
		HeartbeatInterval time.Duration
		// StalenessWindow is how long a version may go without a heartbeat
		// before it is reported stale. Defaults to 2m.
		StalenessWindow time.Duration
		// StaleScanSchedule is the cron schedule of the staleness sweep.
		// Defaults to "@every 1m".
		StaleScanSchedule string
	}

	// Registry is the process-wide, per-task-queue bookkeeping of live
	// worker versions. Mutable state is locked per queue; the registry-level
	// lock covers only the queue map itself.
	Registry struct {
		mu     sync.RWMutex
		queues map[string]*taskQueueVersionSet

		store            Store
		ownsStore        bool
		logger           *zap.Logger
		metricsScope     tally.Scope
		observer         Observer
		executionCounter ExecutionCounter
		clock            clock.Clock
		stalenessWindow  time.Duration

		heartbeats *heartbeatManager
		staleScan  *staleScanner
	}

	// RegistrationHandle is returned from Register and identifies one live
	// worker's registration. Deregister through the handle is idempotent:
	// releasing twice has the same effect as once, matching
	// scoped-acquisition-with-guaranteed-release worker lifecycles.
	RegistrationHandle struct {
		// ID uniquely identifies this registration.
		ID string

		queue    string
		version  WorkerVersion
		registry *Registry
		released *atomic.Bool
	}

	// DecommissionReport is the advisory answer to "is it safe to retire
	// this version".
	DecommissionReport struct {
		SafeToDecommission bool
		OpenExecutions     int
	}

	// QueueVersionInfo describes one version of a queue's observed set.
	QueueVersionInfo struct {
		Version           WorkerVersion
		FirstSeen         time.Time
		LastHeartbeat     time.Time
		ActiveWorkerCount int
	}
)

// NewRegistry creates a Registry. Call Start to begin the auto-heartbeat
// loop and the staleness sweep, and Stop to release them.
func NewRegistry(options RegistryOptions) (*Registry, error) {
	store := options.Store
	ownsStore := false
	if store == nil {
		store = NewMemoryStore()
		ownsStore = true
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
	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}
	heartbeatInterval := options.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = defaultHeartbeatInterval
	}
	stalenessWindow := options.StalenessWindow
	if stalenessWindow <= 0 {
		stalenessWindow = defaultStalenessWindow
	}
	schedule := options.StaleScanSchedule
	if schedule == "" {
		schedule = defaultStaleScanSchedule
	}

	r := &Registry{
		queues:           make(map[string]*taskQueueVersionSet),
		store:            store,
		ownsStore:        ownsStore,
		logger:           logger,
		metricsScope:     scope,
		observer:         observer,
		executionCounter: options.ExecutionCounter,
		clock:            clk,
		stalenessWindow:  stalenessWindow,
	}
	r.heartbeats = newHeartbeatManager(r, heartbeatInterval, clk, logger)
	staleScan, err := newStaleScanner(r, schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid stale scan schedule %q: %w", schedule, err)
	}
	r.staleScan = staleScan
	return r, nil
}

// Start launches the shared heartbeat loop and the staleness sweep.
func (r *Registry) Start() {
	r.heartbeats.start()
	r.staleScan.start()
}

// Stop shuts down background loops. A store the registry created itself is
// closed; a store supplied through RegistryOptions is shared with the replay
// checker and the router, so its lifecycle stays with the caller.
func (r *Registry) Stop() error {
	r.staleScan.stop()
	r.heartbeats.stop()
	if r.ownsStore {
		return r.store.Close()
	}
	return nil
}

// Register records a live worker running version on queue. Idempotent per
// (queue, version): a second registration of the same version only bumps the
// live-worker count. A version whose (major, minor) tuple collides with a
// different Original string already on the queue is rejected with
// *AmbiguousVersionError. Parsing should have prevented two distinct
// originals from mapping to one tuple; the registry re-validates because a
// collision here would make Latest ambiguous.
func (r *Registry) Register(queue string, version WorkerVersion) (*RegistrationHandle, error) {
	if version.Original == "" {
		// Constructed directly rather than through ParseWorkerVersion.
		return nil, NewInvalidVersionFormatError("", "version must be built by ParseWorkerVersion")
	}

	set := r.getOrCreateQueueSet(queue)
	now := r.clock.Now()

	set.Lock()
	key := canonicalVersionKey(version)
	entry, ok := set.versions[key]
	if ok && entry.version.Original != version.Original {
		existing := entry.version.Original
		set.Unlock()
		r.metricsScope.Counter(metrics.VersionAmbiguousCounter).Inc(1)
		return nil, NewAmbiguousVersionError(queue, existing, version.Original, version.Major, version.Minor)
	}
	if !ok {
		entry = &versionEntry{
			version:       version,
			firstSeen:     now,
			lastHeartbeat: now,
			activeWorkers: atomic.NewInt32(0),
		}
		set.versions[key] = entry
	}
	entry.activeWorkers.Inc()
	entry.lastHeartbeat = now
	set.Unlock()

	if err := r.store.RecordQueueVersion(context.Background(), queue, version, now); err != nil {
		r.logger.Warn("Failed to persist queue version observation.",
			zap.String(tagTaskQueue, queue),
			zap.String(tagWorkerVersion, version.String()),
			zap.Error(err))
	}

	handle := &RegistrationHandle{
		ID:       uuid.New(),
		queue:    queue,
		version:  version,
		registry: r,
		released: atomic.NewBool(false),
	}
	r.heartbeats.add(handle)

	r.metricsScope.Counter(metrics.VersionRegisterCounter).Inc(1)
	r.logger.Info("Registered worker version.",
		zap.String(tagTaskQueue, queue),
		zap.String(tagWorkerVersion, version.String()),
		zap.String(tagRegistrationID, handle.ID))
	return handle, nil
}

// Heartbeat refreshes the last-seen time of the handle's version. Workers
// call this periodically; the interval is a configuration option of the
// registry's shared heartbeat loop for hosts that opt into it.
func (r *Registry) Heartbeat(handle *RegistrationHandle) {
	if handle == nil || handle.released.Load() {
		return
	}
	set := r.getQueueSet(handle.queue)
	if set == nil {
		return
	}
	now := r.clock.Now()
	set.Lock()
	if entry, ok := set.versions[canonicalVersionKey(handle.version)]; ok {
		entry.lastHeartbeat = now
	}
	set.Unlock()
	r.metricsScope.Counter(metrics.HeartbeatCounter).Inc(1)
}

// Deregister releases the handle's registration, decrementing the
// live-worker count for its version. Never errors: calling it twice, or on
// a handle whose queue entry is gone, is a no-op.
func (r *Registry) Deregister(handle *RegistrationHandle) {
	if handle == nil || !handle.released.CAS(false, true) {
		return
	}
	r.heartbeats.remove(handle)

	set := r.getQueueSet(handle.queue)
	if set == nil {
		return
	}
	set.Lock()
	if entry, ok := set.versions[canonicalVersionKey(handle.version)]; ok {
		if entry.activeWorkers.Load() > 0 {
			entry.activeWorkers.Dec()
		}
	}
	set.Unlock()

	r.metricsScope.Counter(metrics.VersionDeregisterCounter).Inc(1)
	r.logger.Info("Deregistered worker version.",
		zap.String(tagTaskQueue, handle.queue),
		zap.String(tagWorkerVersion, handle.version.String()),
		zap.String(tagRegistrationID, handle.ID))
}

// Latest returns the greatest (major, minor) version with at least one live
// worker on queue, and false when no version is live.
func (r *Registry) Latest(queue string) (WorkerVersion, bool) {
	set := r.getQueueSet(queue)
	if set == nil {
		return WorkerVersion{}, false
	}
	set.Lock()
	defer set.Unlock()

	var latest WorkerVersion
	found := false
	for _, entry := range set.versions {
		if entry.activeWorkers.Load() == 0 {
			continue
		}
		if !found || latest.Less(entry.version) {
			latest = entry.version
			found = true
		}
	}
	return latest, found
}

// Describe returns the full observed version set of a queue with liveness,
// ordered by version. Entries are never deleted automatically, so versions
// with zero live workers still appear; decommission is an explicit operator
// action.
func (r *Registry) Describe(queue string) []QueueVersionInfo {
	set := r.getQueueSet(queue)
	if set == nil {
		return nil
	}
	set.Lock()
	infos := make([]QueueVersionInfo, 0, len(set.versions))
	for _, entry := range set.versions {
		infos = append(infos, QueueVersionInfo{
			Version:           entry.version,
			FirstSeen:         entry.firstSeen,
			LastHeartbeat:     entry.lastHeartbeat,
			ActiveWorkerCount: int(entry.activeWorkers.Load()),
		})
	}
	set.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Version.Less(infos[j].Version)
	})
	return infos
}

// DecommissionCheck reports whether a version can be retired from a queue
// without stranding open executions. The answer is advisory: the registry
// never prevents deregistration, it only reports risk, emitting a
// decommission-risk event when open executions still reference the version.
func (r *Registry) DecommissionCheck(ctx context.Context, queue string, version WorkerVersion) (DecommissionReport, error) {
	if r.executionCounter == nil {
		return DecommissionReport{}, errors.New("no execution counter configured")
	}
	open, err := r.executionCounter.OpenExecutions(ctx, queue, version)
	if err != nil {
		return DecommissionReport{}, fmt.Errorf("failed to count open executions: %w", err)
	}
	if open > 0 {
		r.observer.DecommissionRisk(queue, version, open)
		return DecommissionReport{SafeToDecommission: false, OpenExecutions: open}, nil
	}
	return DecommissionReport{SafeToDecommission: true}, nil
}

// scanStale reports every version whose last heartbeat is older than the
// staleness window and still has live workers. Reporting only: nothing is
// deregistered.
func (r *Registry) scanStale() {
	cutoff := r.clock.Now().Add(-r.stalenessWindow)

	r.mu.RLock()
	sets := make([]*taskQueueVersionSet, 0, len(r.queues))
	for _, set := range r.queues {
		sets = append(sets, set)
	}
	r.mu.RUnlock()

	for _, set := range sets {
		set.Lock()
		type stale struct {
			version       WorkerVersion
			lastHeartbeat time.Time
		}
		var found []stale
		for _, entry := range set.versions {
			if entry.activeWorkers.Load() > 0 && entry.lastHeartbeat.Before(cutoff) {
				found = append(found, stale{entry.version, entry.lastHeartbeat})
			}
		}
		set.Unlock()

		for _, s := range found {
			r.observer.VersionStale(set.name, s.version, s.lastHeartbeat)
		}
	}
}

func (r *Registry) getQueueSet(queue string) *taskQueueVersionSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queues[queue]
}

func (r *Registry) getOrCreateQueueSet(queue string) *taskQueueVersionSet {
	r.mu.RLock()
	set, ok := r.queues[queue]
	r.mu.RUnlock()
	if ok {
		return set
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok = r.queues[queue]; ok {
		return set
	}
	set = &taskQueueVersionSet{
		name:     queue,
		versions: make(map[string]*versionEntry),
	}
	r.queues[queue] = set
	return set
}

// Queue returns the task queue the handle registered on.
func (h *RegistrationHandle) Queue() string {
	return h.queue
}

// Version returns the worker version the handle registered.
func (h *RegistrationHandle) Version() WorkerVersion {
	return h.version
}
