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
	"time"
)

/*
Error types surfaced by the versioning core:

1) *InvalidVersionFormatError:
	A worker supplied a version string that does not match the MAJOR.MINOR
	grammar. Rejected synchronously at registration, never defaulted.
2) *AmbiguousVersionError:
	Two distinct version strings collide on the same (major, minor) tuple for
	one task queue. Rejected synchronously at registration.
3) *NoWorkersAvailableError:
	A start request arrived for a task queue with no live worker versions.
	Transient; callers retry with backoff once a worker registers.
4) *NonDeterministicError:
	Replay of recorded history by a candidate version diverged from the
	recorded decisions. Fatal for that task attempt. Carries the event index
	of the first divergence and both the recorded and replayed decision.
	Never auto-retried against the same version.
5) *VersionIncompatibleError:
	A routing refusal: the candidate version cannot safely take over an
	in-flight execution. Recoverable at the routing layer; the task is
	re-offered to the bound or another compatible version.
6) *StaleRegistrationError:
	Observational only. A registered version missed its heartbeat window.
	Reported to observability collaborators, never blocks any operation.
*/

type (
	// InvalidVersionFormatError is returned when a version string does not
	// match the MAJOR.MINOR grammar.
	InvalidVersionFormatError struct {
		value  string
		reason string
	}

	// AmbiguousVersionError is returned when two distinct version strings map
	// to the same (major, minor) tuple on one task queue.
	AmbiguousVersionError struct {
		queue    string
		existing string
		proposed string
		major    uint32
		minor    uint32
	}

	// NoWorkersAvailableError is returned when a task queue has no live
	// worker versions at start-request time.
	NoWorkersAvailableError struct {
		queue string
	}

	// NonDeterministicError is returned when replay of recorded history
	// diverged from the decisions a candidate version produced.
	NonDeterministicError struct {
		executionID string
		eventIndex  int64
		expected    string
		actual      string
	}

	// VersionIncompatibleError is returned when routing refuses to hand an
	// in-flight execution to a candidate version.
	VersionIncompatibleError struct {
		executionID string
		candidate   WorkerVersion
		cause       error
	}

	// StaleRegistrationError reports a registered version whose last
	// heartbeat is older than the configured staleness window.
	StaleRegistrationError struct {
		queue         string
		version       WorkerVersion
		lastHeartbeat time.Time
	}
)

// ErrExecutionClosed is returned when routing is attempted for an execution
// that has already completed or terminated.
var ErrExecutionClosed = errors.New("execution is closed")

// ErrExecutionNotBound is returned when an existing-task route is requested
// for an execution that was never bound to a version.
var ErrExecutionNotBound = errors.New("execution has no version binding")

// NewInvalidVersionFormatError creates InvalidVersionFormatError instance.
func NewInvalidVersionFormatError(value, reason string) *InvalidVersionFormatError {
	return &InvalidVersionFormatError{value: value, reason: reason}
}

// Error from error interface.
func (e *InvalidVersionFormatError) Error() string {
	return fmt.Sprintf("invalid version format %q: %s", e.value, e.reason)
}

// Value returns the offending version string verbatim.
func (e *InvalidVersionFormatError) Value() string {
	return e.value
}

// NewAmbiguousVersionError creates AmbiguousVersionError instance.
func NewAmbiguousVersionError(queue, existing, proposed string, major, minor uint32) *AmbiguousVersionError {
	return &AmbiguousVersionError{
		queue:    queue,
		existing: existing,
		proposed: proposed,
		major:    major,
		minor:    minor,
	}
}

// Error from error interface.
func (e *AmbiguousVersionError) Error() string {
	return fmt.Sprintf("ambiguous version on task queue %q: %q and %q both map to %d.%d",
		e.queue, e.existing, e.proposed, e.major, e.minor)
}

// NewNoWorkersAvailableError creates NoWorkersAvailableError instance.
func NewNoWorkersAvailableError(queue string) *NoWorkersAvailableError {
	return &NoWorkersAvailableError{queue: queue}
}

// Error from error interface.
func (e *NoWorkersAvailableError) Error() string {
	return fmt.Sprintf("no workers available on task queue %q", e.queue)
}

// Queue returns the task queue that had no live workers.
func (e *NoWorkersAvailableError) Queue() string {
	return e.queue
}

// NewNonDeterministicError creates NonDeterministicError instance.
func NewNonDeterministicError(executionID string, eventIndex int64, expected, actual string) *NonDeterministicError {
	return &NonDeterministicError{
		executionID: executionID,
		eventIndex:  eventIndex,
		expected:    expected,
		actual:      actual,
	}
}

// Error from error interface.
func (e *NonDeterministicError) Error() string {
	return fmt.Sprintf("nondeterministic workflow execution %q: divergence at event %d, history recorded %s, replay produced %s",
		e.executionID, e.eventIndex, e.expected, e.actual)
}

// EventIndex returns the index of the first diverging event.
func (e *NonDeterministicError) EventIndex() int64 {
	return e.eventIndex
}

// Expected returns a description of the recorded decision.
func (e *NonDeterministicError) Expected() string {
	return e.expected
}

// Actual returns a description of the decision replay produced.
func (e *NonDeterministicError) Actual() string {
	return e.actual
}

// NewVersionIncompatibleError creates VersionIncompatibleError instance.
func NewVersionIncompatibleError(executionID string, candidate WorkerVersion, cause error) *VersionIncompatibleError {
	return &VersionIncompatibleError{
		executionID: executionID,
		candidate:   candidate,
		cause:       cause,
	}
}

// Error from error interface.
func (e *VersionIncompatibleError) Error() string {
	msg := fmt.Sprintf("version %s cannot take over execution %q", e.candidate, e.executionID)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, typically a *NonDeterministicError.
func (e *VersionIncompatibleError) Unwrap() error {
	return e.cause
}

// Candidate returns the refused worker version.
func (e *VersionIncompatibleError) Candidate() WorkerVersion {
	return e.candidate
}

// NewStaleRegistrationError creates StaleRegistrationError instance.
func NewStaleRegistrationError(queue string, version WorkerVersion, lastHeartbeat time.Time) *StaleRegistrationError {
	return &StaleRegistrationError{
		queue:         queue,
		version:       version,
		lastHeartbeat: lastHeartbeat,
	}
}

// Error from error interface.
func (e *StaleRegistrationError) Error() string {
	return fmt.Sprintf("version %s on task queue %q is stale, last heartbeat at %v",
		e.version, e.queue, e.lastHeartbeat)
}

// LastHeartbeat returns the time of the version's last observed heartbeat.
func (e *StaleRegistrationError) LastHeartbeat() time.Time {
	return e.lastHeartbeat
}

// IsInvalidVersionFormatError returns true when err is caused by a malformed
// version string.
func IsInvalidVersionFormatError(err error) bool {
	var target *InvalidVersionFormatError
	return errors.As(err, &target)
}

// IsAmbiguousVersionError returns true when err is caused by a (major, minor)
// collision at registration.
func IsAmbiguousVersionError(err error) bool {
	var target *AmbiguousVersionError
	return errors.As(err, &target)
}

// IsNoWorkersAvailableError returns true when err reports an empty task
// queue. Such errors are transient and safe to retry with backoff.
func IsNoWorkersAvailableError(err error) bool {
	var target *NoWorkersAvailableError
	return errors.As(err, &target)
}

// IsNonDeterministicError returns true when err is caused by replay
// divergence.
func IsNonDeterministicError(err error) bool {
	var target *NonDeterministicError
	return errors.As(err, &target)
}

// IsVersionIncompatibleError returns true when err is a routing refusal.
func IsVersionIncompatibleError(err error) bool {
	var target *VersionIncompatibleError
	return errors.As(err, &target)
}
