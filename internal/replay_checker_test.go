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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type (
	// fakeHistoryService serves canned histories and records the checkpoint
	// each read started from.
	fakeHistoryService struct {
		mu        sync.Mutex
		events    map[string][]HistoryEvent
		readFroms []int64
	}

	// fakeTraceProvider replays canned decision traces and records the index
	// each replay started from.
	fakeTraceProvider struct {
		mu          sync.Mutex
		decisions   map[string][]Decision
		replayFroms []int64
	}

	// conflictingStore makes the first checkpoint commit lose to a simulated
	// concurrent checker that committed the same value.
	conflictingStore struct {
		Store
		mu        sync.Mutex
		conflicts int
	}

	// recordingObserver captures observer notifications for assertions.
	recordingObserver struct {
		mu          sync.Mutex
		stale       []string
		divergences []Verdict
		risks       []int
	}

	replayCheckerSuite struct {
		suite.Suite
		history *fakeHistoryService
		traces  *fakeTraceProvider
		store   Store
		checker *Checker
	}
)

func (h *fakeHistoryService) set(executionID string, events []HistoryEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[executionID] = events
}

func (h *fakeHistoryService) ReadHistorySince(_ context.Context, executionID string, checkpointIndex int64) ([]HistoryEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readFroms = append(h.readFroms, checkpointIndex)
	var result []HistoryEvent
	for _, e := range h.events[executionID] {
		if e.EventID >= checkpointIndex {
			result = append(result, e)
		}
	}
	return result, nil
}

func (p *fakeTraceProvider) set(executionID string, decisions []Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.decisions[executionID] = decisions
}

func (p *fakeTraceProvider) ReplayDecisions(_ context.Context, executionID string, _ WorkerVersion, fromIndex int64) ([]Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replayFroms = append(p.replayFroms, fromIndex)
	all := p.decisions[executionID]
	if fromIndex >= int64(len(all)) {
		return nil, nil
	}
	return all[fromIndex:], nil
}

func (p *fakeTraceProvider) replayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.replayFroms)
}

func (s *conflictingStore) CompareAndSetCheckpoint(ctx context.Context, executionID string, old, new int64) (bool, error) {
	s.mu.Lock()
	conflict := s.conflicts > 0
	if conflict {
		s.conflicts--
	}
	s.mu.Unlock()
	if conflict {
		// The concurrent checker verified the same range and won the commit.
		if _, err := s.Store.CompareAndSetCheckpoint(ctx, executionID, old, new); err != nil {
			return false, err
		}
		return false, nil
	}
	return s.Store.CompareAndSetCheckpoint(ctx, executionID, old, new)
}

func (o *recordingObserver) VersionStale(queue string, version WorkerVersion, _ time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stale = append(o.stale, queue+"/"+version.String())
}

func (o *recordingObserver) ReplayDiverged(_ string, _ WorkerVersion, verdict Verdict) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.divergences = append(o.divergences, verdict)
}

func (o *recordingObserver) DecommissionRisk(_ string, _ WorkerVersion, openExecutions int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.risks = append(o.risks, openExecutions)
}

func TestReplayCheckerSuite(t *testing.T) {
	suite.Run(t, new(replayCheckerSuite))
}

func (s *replayCheckerSuite) SetupTest() {
	s.history = &fakeHistoryService{events: make(map[string][]HistoryEvent)}
	s.traces = &fakeTraceProvider{decisions: make(map[string][]Decision)}
	s.store = NewMemoryStore()
	checker, err := NewChecker(CheckerOptions{
		History: s.history,
		Traces:  s.traces,
		Store:   s.store,
	})
	s.Require().NoError(err)
	s.checker = checker
}

func (s *replayCheckerSuite) TestCompatibleReplay() {
	trace := NewTraceBuilder().
		ScheduleActivity("a1", "ChargeCard").
		StartTimer("t1").
		ScheduleActivity("a2", "ShipOrder")
	s.history.set("wf-1", trace.History(0))
	s.traces.set("wf-1", trace.Decisions())

	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "1.1"))
	s.Require().NoError(err)
	s.True(verdict.Compatible())

	checkpoint, err := s.store.GetCheckpoint(context.Background(), "wf-1")
	s.Require().NoError(err)
	s.EqualValues(3, checkpoint)
}

func (s *replayCheckerSuite) TestDivergenceAtThirdEvent() {
	s.history.set("wf-1", NewTraceBuilder().
		ScheduleActivity("a1", "ChargeCard").
		StartTimer("t1").
		ScheduleActivity("a2", "ShipOrder").
		History(0))
	s.traces.set("wf-1", NewTraceBuilder().
		ScheduleActivity("a1", "ChargeCard").
		StartTimer("t1").
		ScheduleActivity("a2", "CancelOrder").
		Decisions())

	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "2.0"))
	s.Require().NoError(err)
	s.Equal(VerdictDivergent, verdict.Status)
	s.EqualValues(2, verdict.EventIndex)
	s.Contains(verdict.Expected, "ShipOrder")
	s.Contains(verdict.Actual, "CancelOrder")

	// A divergent check never advances the checkpoint.
	checkpoint, err := s.store.GetCheckpoint(context.Background(), "wf-1")
	s.Require().NoError(err)
	s.EqualValues(0, checkpoint)
}

func (s *replayCheckerSuite) TestDivergenceReportedToObserver() {
	observer := &recordingObserver{}
	checker, err := NewChecker(CheckerOptions{
		History:  s.history,
		Traces:   s.traces,
		Store:    s.store,
		Observer: observer,
	})
	s.Require().NoError(err)

	s.history.set("wf-1", NewTraceBuilder().StartTimer("t1").History(0))
	s.traces.set("wf-1", NewTraceBuilder().StartTimer("t9").Decisions())

	verdict, err := checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "2.0"))
	s.Require().NoError(err)
	s.Equal(VerdictDivergent, verdict.Status)
	s.Require().Len(observer.divergences, 1)
	s.EqualValues(0, observer.divergences[0].EventIndex)
}

func (s *replayCheckerSuite) TestEngineMarkersSkipped() {
	// The candidate emits a version marker the recorded history does not
	// have, and the history carries a mutable-side-effect marker the
	// candidate does not reproduce. Neither participates in matching.
	s.history.set("wf-1", []HistoryEvent{
		{EventID: 0, Type: DecisionTypeScheduleActivity, ActivityID: "a1", ActivityType: "ChargeCard"},
		{EventID: 1, Type: DecisionTypeRecordMarker, MarkerName: mutableSideEffectMarkerName},
		{EventID: 2, Type: DecisionTypeStartTimer, TimerID: "t1"},
	})
	s.traces.set("wf-1", []Decision{
		{Type: DecisionTypeRecordMarker, MarkerName: versionMarkerName},
		{Type: DecisionTypeScheduleActivity, ActivityID: "a1", ActivityType: "ChargeCard"},
		{Type: DecisionTypeStartTimer, TimerID: "t1"},
	})

	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "1.1"))
	s.Require().NoError(err)
	s.True(verdict.Compatible())
}

func (s *replayCheckerSuite) TestActivityTypeMatchesOnShortName() {
	s.history.set("wf-1", []HistoryEvent{
		{EventID: 0, Type: DecisionTypeScheduleActivity, ActivityID: "a1", ActivityType: "billing.ChargeCard"},
	})
	s.traces.set("wf-1", []Decision{
		{Type: DecisionTypeScheduleActivity, ActivityID: "a1", ActivityType: "ChargeCard"},
	})

	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "1.1"))
	s.Require().NoError(err)
	s.True(verdict.Compatible())
}

func (s *replayCheckerSuite) TestIncrementalVerification() {
	trace := NewTraceBuilder().
		ScheduleActivity("a1", "ChargeCard").
		StartTimer("t1").
		ScheduleActivity("a2", "ShipOrder")
	s.history.set("wf-1", trace.History(0))
	s.traces.set("wf-1", trace.Decisions())

	candidate := mustParseVersion(s.T(), "1.1")
	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", candidate)
	s.Require().NoError(err)
	s.True(verdict.Compatible())

	// Two more events arrive after the checkpoint.
	extended := NewTraceBuilder().
		ScheduleActivity("a1", "ChargeCard").
		StartTimer("t1").
		ScheduleActivity("a2", "ShipOrder").
		ScheduleActivity("a3", "SendReceipt").
		CompleteExecution()
	s.history.set("wf-1", extended.History(0))
	s.traces.set("wf-1", extended.Decisions())

	verdict, err = s.checker.VerifyReplay(context.Background(), "wf-1", candidate)
	s.Require().NoError(err)
	s.True(verdict.Compatible())

	// The second check covered only the new suffix.
	s.Equal([]int64{0, 3}, s.history.readFroms)
	s.Equal([]int64{0, 3}, s.traces.replayFroms)

	checkpoint, err := s.store.GetCheckpoint(context.Background(), "wf-1")
	s.Require().NoError(err)
	s.EqualValues(5, checkpoint)
}

func (s *replayCheckerSuite) TestNoNewEventsSkipsReplay() {
	trace := NewTraceBuilder().StartTimer("t1")
	s.history.set("wf-1", trace.History(0))
	s.traces.set("wf-1", trace.Decisions())

	candidate := mustParseVersion(s.T(), "1.1")
	_, err := s.checker.VerifyReplay(context.Background(), "wf-1", candidate)
	s.Require().NoError(err)
	s.Equal(1, s.traces.replayCount())

	// Checkpoint is at the end of history; the next check replays nothing.
	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", candidate)
	s.Require().NoError(err)
	s.True(verdict.Compatible())
	s.Equal(1, s.traces.replayCount())
}

func (s *replayCheckerSuite) TestMissingDecisionDiverges() {
	s.history.set("wf-1", NewTraceBuilder().
		StartTimer("t1").
		ScheduleActivity("a1", "ChargeCard").
		History(0))
	s.traces.set("wf-1", NewTraceBuilder().
		StartTimer("t1").
		Decisions())

	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "2.0"))
	s.Require().NoError(err)
	s.Equal(VerdictDivergent, verdict.Status)
	s.EqualValues(1, verdict.EventIndex)
	s.Equal("no replay decision", verdict.Actual)
}

func (s *replayCheckerSuite) TestExtraDecisionDiverges() {
	s.history.set("wf-1", NewTraceBuilder().
		StartTimer("t1").
		History(0))
	s.traces.set("wf-1", NewTraceBuilder().
		StartTimer("t1").
		ScheduleActivity("a1", "ChargeCard").
		Decisions())

	verdict, err := s.checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "2.0"))
	s.Require().NoError(err)
	s.Equal(VerdictDivergent, verdict.Status)
	s.EqualValues(1, verdict.EventIndex)
	s.Equal("no history event", verdict.Expected)
}

func (s *replayCheckerSuite) TestCheckpointConflictRetries() {
	store := &conflictingStore{Store: s.store, conflicts: 1}
	checker, err := NewChecker(CheckerOptions{
		History: s.history,
		Traces:  s.traces,
		Store:   store,
	})
	s.Require().NoError(err)

	trace := NewTraceBuilder().StartTimer("t1").ScheduleActivity("a1", "ChargeCard")
	s.history.set("wf-1", trace.History(0))
	s.traces.set("wf-1", trace.Decisions())

	verdict, err := checker.VerifyReplay(context.Background(), "wf-1", mustParseVersion(s.T(), "1.1"))
	s.Require().NoError(err)
	s.True(verdict.Compatible())

	// First attempt lost the commit, second found nothing left to verify.
	s.Equal([]int64{0, 2}, s.history.readFroms)

	checkpoint, err := s.store.GetCheckpoint(context.Background(), "wf-1")
	s.Require().NoError(err)
	s.EqualValues(2, checkpoint)
}

func (s *replayCheckerSuite) TestRequiredOptionsValidated() {
	_, err := NewChecker(CheckerOptions{})
	s.Require().Error(err)
	s.Contains(err.Error(), "History service is required")
	s.Contains(err.Error(), "Trace provider is required")
	s.Contains(err.Error(), "Store is required")
}

func TestMatchReplayWithHistoryEmptyInputs(t *testing.T) {
	verdict := matchReplayWithHistory(nil, nil)
	assert.True(t, verdict.Compatible())

	verdict = matchReplayWithHistory([]Decision{{Type: DecisionTypeStartTimer, TimerID: "t1"}}, nil)
	require.Equal(t, VerdictDivergent, verdict.Status)
	assert.Equal(t, "no history event", verdict.Expected)
	assert.EqualValues(t, 0, verdict.EventIndex)
}
