// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retry

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

func retryBag(attempt int) *configbag.Bag {
	bag := configbag.New()
	configbag.Set(bag, DefaultClassifiers())
	configbag.Set(bag, Attempts{Count: attempt})
	return bag
}

func serverFault() Attempt {
	return responseAttempt(500, nil)
}

func TestFixedDelayRetriesUntilCap(t *testing.T) {
	s := OneSecondFixedDelay()

	for attempt := 1; attempt < 4; attempt++ {
		verdict, err := s.ShouldAttemptRetry(serverFault(), retryBag(attempt))
		require.NoError(t, err)
		assert.True(t, verdict.Attempt(), "attempt %d should be retried", attempt)
		assert.Equal(t, time.Second, verdict.Delay())
	}

	verdict, err := s.ShouldAttemptRetry(serverFault(), retryBag(4))
	require.NoError(t, err)
	assert.False(t, verdict.Attempt(), "out of attempts")
}

func TestFixedDelaySuccessStops(t *testing.T) {
	verdict, err := OneSecondFixedDelay().ShouldAttemptRetry(Attempt{}, retryBag(1))
	require.NoError(t, err)
	assert.False(t, verdict.Attempt())
}

func TestFixedDelayUnretryableStops(t *testing.T) {
	verdict, err := OneSecondFixedDelay().ShouldAttemptRetry(
		responseAttempt(400, nil), retryBag(1))
	require.NoError(t, err)
	assert.False(t, verdict.Attempt())
}

func TestFixedDelayRequiresClassifiers(t *testing.T) {
	bag := configbag.New()
	configbag.Set(bag, Attempts{Count: 1})
	_, err := OneSecondFixedDelay().ShouldAttemptRetry(serverFault(), bag)
	require.Error(t, err)
	assert.True(t, errors.IsConstruction(err))
}

func identityJitter(ceiling time.Duration) time.Duration { return ceiling }

func TestStandardBackoffDoubles(t *testing.T) {
	s := NewStandard(WithMaxAttempts(10), WithJitter(identityJitter))

	expected := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		20 * time.Second, // ceiling
		20 * time.Second,
	}
	for i, want := range expected {
		verdict, err := s.ShouldAttemptRetry(serverFault(), retryBag(i+1))
		require.NoError(t, err)
		require.True(t, verdict.Attempt())
		assert.Equal(t, want, verdict.Delay(), "attempt %d", i+1)
	}
}

func TestStandardHonorsRetryAfter(t *testing.T) {
	s := NewStandard(WithJitter(identityJitter))
	verdict, err := s.ShouldAttemptRetry(
		responseAttempt(429, map[string]string{"Retry-After": "7"}), retryBag(1))
	require.NoError(t, err)
	require.True(t, verdict.Attempt())
	assert.Equal(t, 7*time.Second, verdict.Delay())
}

func TestStandardMaxAttempts(t *testing.T) {
	s := NewStandard()
	verdict, err := s.ShouldAttemptRetry(serverFault(), retryBag(3))
	require.NoError(t, err)
	assert.False(t, verdict.Attempt())
}

func TestStandardJitterStaysUnderCeiling(t *testing.T) {
	s := NewStandard(WithMaxAttempts(5))
	for i := 0; i < 100; i++ {
		verdict, err := s.ShouldAttemptRetry(serverFault(), retryBag(2))
		require.NoError(t, err)
		require.True(t, verdict.Attempt())
		assert.LessOrEqual(t, verdict.Delay(), 2*time.Second)
		assert.GreaterOrEqual(t, verdict.Delay(), time.Duration(0))
	}
}

func TestStandardQuotaExhaustion(t *testing.T) {
	quota := NewQuota(12)
	s := NewStandard(WithQuota(quota), WithJitter(identityJitter))

	verdict, err := s.ShouldAttemptRetry(serverFault(), retryBag(1))
	require.NoError(t, err)
	assert.True(t, verdict.Attempt())
	assert.Equal(t, 7, quota.Available())

	verdict, err = s.ShouldAttemptRetry(serverFault(), retryBag(2))
	require.NoError(t, err)
	assert.True(t, verdict.Attempt())
	assert.Equal(t, 2, quota.Available())

	// Not enough tokens left for another retry even though the attempt
	// cap would allow one.
	s2 := NewStandard(WithQuota(quota), WithJitter(identityJitter), WithMaxAttempts(10))
	verdict, err = s2.ShouldAttemptRetry(serverFault(), retryBag(2))
	require.NoError(t, err)
	assert.False(t, verdict.Attempt())
}

func TestStandardTimeoutRetriesCostMore(t *testing.T) {
	quota := NewQuota(100)
	s := NewStandard(WithQuota(quota), WithJitter(identityJitter))

	_, err := s.ShouldAttemptRetry(Attempt{Err: &errors.TimeoutError{After: time.Second}}, retryBag(1))
	require.NoError(t, err)
	assert.Equal(t, 100-timeoutRetryCost, quota.Available())
}

func TestStandardRefundsOnSuccess(t *testing.T) {
	quota := NewQuota(100)
	s := NewStandard(WithQuota(quota), WithJitter(identityJitter))

	_, err := s.ShouldAttemptRetry(serverFault(), retryBag(1))
	require.NoError(t, err)
	assert.Equal(t, 95, quota.Available())

	// Success on the retried attempt pays the retry cost back.
	_, err = s.ShouldAttemptRetry(Attempt{Response: &http.Response{StatusCode: 200}}, retryBag(2))
	require.NoError(t, err)
	assert.Equal(t, 100, quota.Available())
}

func TestStandardRefundsTimeoutCostOnSuccess(t *testing.T) {
	quota := NewQuota(100)
	s := NewStandard(WithQuota(quota), WithJitter(identityJitter))

	_, err := s.ShouldAttemptRetry(Attempt{Err: &errors.TimeoutError{After: time.Second}}, retryBag(1))
	require.NoError(t, err)
	assert.Equal(t, 100-timeoutRetryCost, quota.Available())

	// The refund matches what the timed-out attempt was charged, not
	// the ordinary retry cost.
	_, err = s.ShouldAttemptRetry(Attempt{Response: &http.Response{StatusCode: 200}}, retryBag(2))
	require.NoError(t, err)
	assert.Equal(t, 100, quota.Available())
}

func TestStandardCountsThrottlingEvents(t *testing.T) {
	s := NewStandard(WithJitter(identityJitter))

	before := throttlingEventsTotal(t)
	_, err := s.ShouldAttemptRetry(responseAttempt(429, nil), retryBag(1))
	require.NoError(t, err)
	assert.Equal(t, before+1, throttlingEventsTotal(t))

	// Server faults are retried but are not throttling.
	_, err = s.ShouldAttemptRetry(serverFault(), retryBag(1))
	require.NoError(t, err)
	assert.Equal(t, before+1, throttlingEventsTotal(t))
}

func throttlingEventsTotal(t *testing.T) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "relay_throttling_events_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestStandardInitialRequestAllowed(t *testing.T) {
	verdict, err := NewStandard().ShouldAttemptInitialRequest(configbag.New())
	require.NoError(t, err)
	assert.True(t, verdict.Attempt())
	assert.Zero(t, verdict.Delay())
}

func TestQuotaNeverOverfills(t *testing.T) {
	q := NewQuota(10)
	q.Refund(50)
	assert.Equal(t, 10, q.Available())
	assert.True(t, q.Acquire(10))
	assert.False(t, q.Acquire(1))
}

func TestClassifiersMissingFromChain(t *testing.T) {
	var chain Classifiers
	_, ok := chain.Classify(Attempt{Err: fmt.Errorf("boom")})
	assert.False(t, ok)
}
