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

import "github.com/robfig/cron"

// staleScanner drives the registry's staleness sweep on a cron schedule.
// Staleness detection is the only timeout-driven policy in the core and it
// is purely observational: stale versions are reported to the observer,
// never deregistered.
type staleScanner struct {
	registry *Registry
	cron     *cron.Cron
}

func newStaleScanner(registry *Registry, schedule string) (*staleScanner, error) {
	c := cron.New()
	if err := c.AddFunc(schedule, registry.scanStale); err != nil {
		return nil, err
	}
	return &staleScanner{registry: registry, cron: c}, nil
}

func (s *staleScanner) start() {
	s.cron.Start()
}

func (s *staleScanner) stop() {
	s.cron.Stop()
}
