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
	"fmt"
	"strconv"
	"strings"
)

// WorkerVersion identifies a deployable unit of workflow-affecting code.
// It is constructed once at worker startup from configuration and is
// immutable thereafter. Ordering is defined by (Major, Minor) only; Original
// is preserved verbatim as metadata and never participates in comparison.
type WorkerVersion struct {
	// Original is the user-supplied version string, whitespace-trimmed.
	Original string
	// Major is the first component of the MAJOR.MINOR grammar.
	Major uint32
	// Minor is the second component of the MAJOR.MINOR grammar.
	Minor uint32
}

// ParseWorkerVersion parses a user-supplied version string into a
// WorkerVersion. The grammar is deliberately a minimal two-component
// MAJOR.MINOR scheme: decimal digits only on both sides of a single dot
// separator. There are no semantic-versioning extensions; pre-release or
// build metadata suffixes are rejected. Leading and trailing whitespace is
// trimmed before parsing. A string that does not match the grammar fails
// with *InvalidVersionFormatError and is never silently defaulted.
func ParseWorkerVersion(raw string) (WorkerVersion, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return WorkerVersion{}, NewInvalidVersionFormatError(raw, "empty version string")
	}

	dot := strings.IndexByte(trimmed, '.')
	if dot < 0 {
		return WorkerVersion{}, NewInvalidVersionFormatError(raw, "missing '.' separator")
	}
	majorPart := trimmed[:dot]
	minorPart := trimmed[dot+1:]
	if strings.IndexByte(minorPart, '.') >= 0 {
		return WorkerVersion{}, NewInvalidVersionFormatError(raw, "more than one '.' separator")
	}

	major, err := parseVersionComponent(majorPart)
	if err != nil {
		return WorkerVersion{}, NewInvalidVersionFormatError(raw, fmt.Sprintf("major component: %v", err))
	}
	minor, err := parseVersionComponent(minorPart)
	if err != nil {
		return WorkerVersion{}, NewInvalidVersionFormatError(raw, fmt.Sprintf("minor component: %v", err))
	}

	return WorkerVersion{Original: trimmed, Major: major, Minor: minor}, nil
}

func parseVersionComponent(s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, fmt.Errorf("non-digit character %q", s[i])
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("value out of range")
	}
	return uint32(v), nil
}

// Compare returns -1, 0, or 1 when v is respectively less than, equal to, or
// greater than other under (Major, Minor) lexicographic order.
func (v WorkerVersion) Compare(other WorkerVersion) int {
	if v.Major != other.Major {
		if v.Major < other.Major {
			return -1
		}
		return 1
	}
	if v.Minor != other.Minor {
		if v.Minor < other.Minor {
			return -1
		}
		return 1
	}
	return 0
}

// Less returns true when v orders strictly before other.
func (v WorkerVersion) Less(other WorkerVersion) bool {
	return v.Compare(other) < 0
}

// Equal returns true when v and other share the same (Major, Minor) tuple.
// Original strings are metadata and do not participate.
func (v WorkerVersion) Equal(other WorkerVersion) bool {
	return v.Compare(other) == 0
}

// String returns the canonical MAJOR.MINOR rendering.
func (v WorkerVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// canonicalVersionKey is the map key for a version within a task queue set.
// Two Original strings that parse to the same tuple share one key, which is
// what makes the ambiguity re-validation in the registry possible.
func canonicalVersionKey(v WorkerVersion) string {
	return v.String()
}
