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

import "fmt"

// CompatibilityClass classifies one code change against a deployed worker
// version. It is a closed tag set: ordering between classes only answers
// "is this change at least as disruptive as that one", it is never used for
// arithmetic.
type CompatibilityClass int32

const (
	// CompatibilityMinor is a safe, backward-compatible change. Workers
	// carrying it may replay histories recorded by the previous version.
	CompatibilityMinor CompatibilityClass = iota
	// CompatibilityMajor is an implementation-breaking change that would
	// desynchronize replay of existing histories.
	CompatibilityMajor
	// CompatibilitySuperMajor is an interface-breaking change requiring a new
	// workflow type or task queue.
	CompatibilitySuperMajor
)

// String returns the class name used in logs and diagnostics.
func (c CompatibilityClass) String() string {
	switch c {
	case CompatibilityMinor:
		return "Minor"
	case CompatibilityMajor:
		return "Major"
	case CompatibilitySuperMajor:
		return "SuperMajor"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(c))
	}
}

// AtLeastAsDisruptiveAs reports whether c is at least as disruptive as other.
func (c CompatibilityClass) AtLeastAsDisruptiveAs(other CompatibilityClass) bool {
	return c >= other
}

type (
	// SignatureChange records an alteration to a workflow entry point between
	// two code revisions, as extracted by diff tooling.
	SignatureChange struct {
		// WorkflowType is the affected workflow type name.
		WorkflowType string
		// Parameter is the changed parameter name.
		Parameter string
		// Required is true when the parameter is required by the entry point.
		// Adding an optional parameter with a default is not
		// interface-breaking; changing a required one is.
		Required bool
	}

	// ChangeDescription is the declaration tooling makes about one change
	// set: the class its author intends, plus the structural facts extracted
	// from the diff that the declaration is checked against.
	ChangeDescription struct {
		// Declared is the class the change author intends.
		Declared CompatibilityClass
		// RenamedWorkflowTypes lists workflow types whose registered name
		// changed.
		RenamedWorkflowTypes []string
		// SignatureChanges lists entry-point parameter alterations.
		SignatureChanges []SignatureChange
		// ReplayAffecting is set by tooling that detected reordered or
		// altered command issuance in workflow code paths.
		ReplayAffecting bool
	}
)

// ClassifyChange validates a declared change class against the structural
// facts of the change and returns the effective class. Classification is
// advisory: true determinism breakage is only proven or disproven by the
// history compatibility checker at runtime. What is checkable structurally
// is internal consistency, e.g. a change declared Minor must not rename a
// workflow type or alter a required parameter signature. When the
// declaration understates the structural floor, the floor is returned along
// with a non-nil error describing the contradiction.
func ClassifyChange(change ChangeDescription) (CompatibilityClass, error) {
	floor := structuralFloor(change)
	if change.Declared.AtLeastAsDisruptiveAs(floor) {
		return change.Declared, nil
	}
	return floor, fmt.Errorf("change declared %s but structure requires at least %s: %s",
		change.Declared, floor, structuralReason(change, floor))
}

func structuralFloor(change ChangeDescription) CompatibilityClass {
	if len(change.RenamedWorkflowTypes) > 0 || hasRequiredSignatureChange(change) {
		return CompatibilitySuperMajor
	}
	if change.ReplayAffecting {
		return CompatibilityMajor
	}
	return CompatibilityMinor
}

func hasRequiredSignatureChange(change ChangeDescription) bool {
	for _, sc := range change.SignatureChanges {
		if sc.Required {
			return true
		}
	}
	return false
}

func structuralReason(change ChangeDescription, floor CompatibilityClass) string {
	if floor == CompatibilitySuperMajor {
		if len(change.RenamedWorkflowTypes) > 0 {
			return fmt.Sprintf("workflow type %q renamed", change.RenamedWorkflowTypes[0])
		}
		for _, sc := range change.SignatureChanges {
			if sc.Required {
				return fmt.Sprintf("required parameter %q of workflow type %q changed", sc.Parameter, sc.WorkflowType)
			}
		}
	}
	return "change alters deterministic command issuance"
}
