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

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHeartbeatLoopStartStopNoLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	registry, err := NewRegistry(RegistryOptions{
		HeartbeatInterval: time.Millisecond,
	})
	require.NoError(t, err)

	registry.Start()
	// Start is idempotent while running.
	registry.Start()
	require.NoError(t, registry.Stop())
}

func TestHeartbeatLoopStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	registry, err := NewRegistry(RegistryOptions{})
	require.NoError(t, err)
	require.NoError(t, registry.Stop())
}

func TestHeartbeatLoopBeatsRegistrations(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	registry, err := NewRegistry(RegistryOptions{
		Clock:             mock,
		HeartbeatInterval: time.Second,
	})
	require.NoError(t, err)

	_, err = registry.Register("orders", mustParseVersion(t, "1.0"))
	require.NoError(t, err)
	registeredAt := mock.Now()

	registry.heartbeats.start()
	defer registry.heartbeats.stop()

	mock.Add(time.Second)
	assert.Eventually(t, func() bool {
		infos := registry.Describe("orders")
		return len(infos) == 1 && infos[0].LastHeartbeat.After(registeredAt)
	}, time.Second, time.Millisecond)
}

func TestHeartbeatLoopSkipsRemovedHandles(t *testing.T) {
	defer goleak.VerifyNone(t)

	mock := clock.NewMock()
	registry, err := NewRegistry(RegistryOptions{
		Clock:             mock,
		HeartbeatInterval: time.Second,
	})
	require.NoError(t, err)

	handle, err := registry.Register("orders", mustParseVersion(t, "1.0"))
	require.NoError(t, err)
	registry.Deregister(handle)
	lastSeen := registry.Describe("orders")[0].LastHeartbeat

	registry.heartbeats.start()
	defer registry.heartbeats.stop()

	mock.Add(5 * time.Second)
	// Give the loop a chance to run; the released handle must not refresh.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, lastSeen, registry.Describe("orders")[0].LastHeartbeat)
}
