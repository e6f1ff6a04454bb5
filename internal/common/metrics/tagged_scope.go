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

import "github.com/uber-go/tally"

// TaggedScope provides a tally scope with tags attached in key/value pairs.
type TaggedScope struct {
	tally.Scope
}

// NewTaggedScope creates a new TaggedScope. A nil scope falls back to the
// noop implementation.
func NewTaggedScope(scope tally.Scope) *TaggedScope {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &TaggedScope{Scope: scope}
}

// GetTaggedScope returns a scope with the given tags attached. Input is key
// value pairs: GetTaggedScope(tag1, val1, tag2, val2).
func (ts *TaggedScope) GetTaggedScope(keyValuePairs ...string) tally.Scope {
	if ts == nil {
		return nil
	}
	if len(keyValuePairs)%2 != 0 {
		panic("GetTaggedScope key value are not in pairs")
	}
	tagsMap := map[string]string{}
	for i := 0; i < len(keyValuePairs); i += 2 {
		tagsMap[keyValuePairs[i]] = keyValuePairs[i+1]
	}
	return ts.Scope.Tagged(tagsMap)
}
