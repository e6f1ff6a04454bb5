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
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"
)

// heartbeatManager runs one shared loop per registry that refreshes every
// attached registration on a fixed interval. Hosts may instead call
// Registry.Heartbeat themselves; the shared loop covers the common case of
// one process hosting many workers. Heartbeats abandoned at shutdown leave
// no persisted side effect.
type heartbeatManager struct {
	registry *Registry
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger

	mu      sync.Mutex
	handles map[string]*RegistrationHandle // registration ID -> handle
	started bool

	stopC    chan struct{}
	stoppedC chan struct{}
}

func newHeartbeatManager(registry *Registry, interval time.Duration, clk clock.Clock, logger *zap.Logger) *heartbeatManager {
	return &heartbeatManager{
		registry: registry,
		interval: interval,
		clock:    clk,
		logger:   logger,
		handles:  make(map[string]*RegistrationHandle),
	}
}

func (m *heartbeatManager) start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.stopC = make(chan struct{})
	m.stoppedC = make(chan struct{})
	go m.run(m.stopC, m.stoppedC)
}

func (m *heartbeatManager) stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	stopC, stoppedC := m.stopC, m.stoppedC
	m.mu.Unlock()

	close(stopC)
	<-stoppedC
}

func (m *heartbeatManager) add(handle *RegistrationHandle) {
	m.mu.Lock()
	m.handles[handle.ID] = handle
	m.mu.Unlock()
}

func (m *heartbeatManager) remove(handle *RegistrationHandle) {
	m.mu.Lock()
	delete(m.handles, handle.ID)
	m.mu.Unlock()
}

func (m *heartbeatManager) run(stopC <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	m.logger.Debug("Heartbeat loop started.", zap.Duration("Interval", m.interval))
	for {
		select {
		case <-ticker.C:
			m.beatAll()
		case <-stopC:
			m.logger.Debug("Heartbeat loop stopped.")
			return
		}
	}
}

func (m *heartbeatManager) beatAll() {
	m.mu.Lock()
	handles := make([]*RegistrationHandle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.registry.Heartbeat(h)
	}
}
