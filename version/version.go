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

// Package version defines worker version identifiers, the "major.minor"
// grammar they follow, and the classification of code changes into
// compatibility classes.
package version

import (
	"go.temporal.io/versioning/internal"
)

type (
	// WorkerVersion is a parsed worker version identifier. Major encodes
	// replay-breaking lineage, Minor encodes replay-safe revisions within it.
	WorkerVersion = internal.WorkerVersion

	// CompatibilityClass ranks how disruptive a code change is: Minor,
	// Major, or SuperMajor.
	CompatibilityClass = internal.CompatibilityClass

	// ChangeDescription describes a code change for classification: the
	// declared class plus the structural facts the classifier cross-checks
	// it against.
	ChangeDescription = internal.ChangeDescription

	// SignatureChange records one changed workflow entry-point parameter.
	SignatureChange = internal.SignatureChange
)

const (
	// CompatibilityMinor marks a replay-safe change. Workers may pick up
	// in-flight executions started by any version of the same major line.
	CompatibilityMinor = internal.CompatibilityMinor

	// CompatibilityMajor marks a replay-breaking change. In-flight
	// executions stay pinned to their bound lineage.
	CompatibilityMajor = internal.CompatibilityMajor

	// CompatibilitySuperMajor marks a contract-breaking change that is not
	// even start-compatible with callers of the previous version.
	CompatibilitySuperMajor = internal.CompatibilitySuperMajor
)

// Parse parses a raw "major.minor" identifier into a WorkerVersion. The raw
// string is retained verbatim so equal numeric versions with differing
// spellings can be told apart.
func Parse(raw string) (WorkerVersion, error) {
	return internal.ParseWorkerVersion(raw)
}

// MustParse is Parse that panics on malformed input. For tests and
// compile-time-constant identifiers only.
func MustParse(raw string) WorkerVersion {
	v, err := internal.ParseWorkerVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// Classify resolves a change description into its effective compatibility
// class. The effective class is the more disruptive of the declared class and
// the floor implied by the change's structural facts; a declaration below the
// structural floor is rejected as contradictory.
func Classify(change ChangeDescription) (CompatibilityClass, error) {
	return internal.ClassifyChange(change)
}

// IsInvalidFormatError reports whether err is an InvalidVersionFormatError.
func IsInvalidFormatError(err error) bool {
	return internal.IsInvalidVersionFormatError(err)
}
