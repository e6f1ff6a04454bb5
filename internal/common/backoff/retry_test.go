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

package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySuccess(t *testing.T) {
	i := 0
	op := func() error {
		i++
		if i == 5 {
			return nil
		}
		return errors.New("operation failed")
	}

	policy := NewExponentialRetryPolicy(1 * time.Millisecond)
	policy.SetMaximumInterval(5 * time.Millisecond)
	policy.SetMaximumAttempts(10)

	err := Retry(context.Background(), op, policy, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, i)
}

func TestRetryFailed(t *testing.T) {
	i := 0
	op := func() error {
		i++
		if i == 7 {
			return nil
		}
		return errors.New("operation failed")
	}

	policy := NewExponentialRetryPolicy(1 * time.Millisecond)
	policy.SetMaximumInterval(5 * time.Millisecond)
	policy.SetMaximumAttempts(5)

	err := Retry(context.Background(), op, policy, nil)
	assert.Error(t, err)
}

func TestIsRetryableFailure(t *testing.T) {
	i := 0
	op := func() error {
		i++
		return errors.New("operation failed")
	}

	isRetryable := func(error) bool {
		return false
	}

	policy := NewExponentialRetryPolicy(1 * time.Millisecond)
	policy.SetMaximumInterval(5 * time.Millisecond)
	policy.SetMaximumAttempts(10)

	err := Retry(context.Background(), op, policy, isRetryable)
	assert.Error(t, err)
	assert.Equal(t, 1, i)
}

func TestNoRetryAfterContextDone(t *testing.T) {
	retryCounter := 0
	op := func() error {
		retryCounter++
		return errors.New("operation failed")
	}

	policy := NewExponentialRetryPolicy(10 * time.Millisecond)
	policy.SetMaximumInterval(50 * time.Millisecond)
	policy.SetMaximumAttempts(20)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := Retry(ctx, op, policy, nil)
	assert.Error(t, err)
	assert.True(t, retryCounter >= 1)
	assert.True(t, retryCounter < 20, "should stop retrying once the context is done")
}

func TestExponentialRetryPolicyStopsAtMaximumAttempts(t *testing.T) {
	policy := NewExponentialRetryPolicy(1 * time.Second)
	policy.SetMaximumAttempts(3)
	policy.SetExpirationInterval(NoInterval)

	assert.NotEqual(t, done, policy.ComputeNextDelay(0, 0))
	assert.NotEqual(t, done, policy.ComputeNextDelay(0, 2))
	assert.Equal(t, done, policy.ComputeNextDelay(0, 3))
}

func TestExponentialRetryPolicyStopsAtExpiration(t *testing.T) {
	policy := NewExponentialRetryPolicy(1 * time.Second)
	policy.SetExpirationInterval(time.Minute)

	assert.NotEqual(t, done, policy.ComputeNextDelay(30*time.Second, 1))
	assert.Equal(t, done, policy.ComputeNextDelay(2*time.Minute, 1))
}

func TestExponentialRetryPolicyCapsInterval(t *testing.T) {
	policy := NewExponentialRetryPolicy(1 * time.Second)
	policy.SetBackoffCoefficient(2)
	policy.SetMaximumInterval(4 * time.Second)
	policy.SetExpirationInterval(NoInterval)
	policy.SetMaximumAttempts(0)

	for attempt := 0; attempt < 10; attempt++ {
		delay := policy.ComputeNextDelay(0, attempt)
		require.NotEqual(t, done, delay)
		assert.LessOrEqual(t, delay, 4*time.Second)
		assert.GreaterOrEqual(t, delay, 800*time.Millisecond)
	}
}

func TestRetrierResetsElapsedTime(t *testing.T) {
	policy := NewExponentialRetryPolicy(50 * time.Millisecond)
	policy.SetMaximumAttempts(2)
	policy.SetExpirationInterval(NoInterval)

	r := NewRetrier(policy, SystemClock)
	assert.NotEqual(t, done, r.NextBackOff())
	assert.NotEqual(t, done, r.NextBackOff())
	assert.Equal(t, done, r.NextBackOff())

	r.Reset()
	assert.NotEqual(t, done, r.NextBackOff())
}
