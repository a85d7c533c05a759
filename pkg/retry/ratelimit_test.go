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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tombee/relay/pkg/clock"
)

func TestTimeWindowCalculation(t *testing.T) {
	l := &AdaptiveRateLimiter{lastMaxRate: 10.0}
	l.calculateTimeWindow()
	assert.InDelta(t, 1.9574338205844317, l.timeWindow, 1e-9)
}

func TestBetaDecrease(t *testing.T) {
	assert.InDelta(t, 7.0, cubicThrottle(10.0), 1e-9)

	l := &AdaptiveRateLimiter{lastMaxRate: 10.0, lastThrottle: 1.0}
	l.calculateTimeWindow()
	assert.InDelta(t, 7.0, l.cubicSuccess(1.0), 1e-9)
}

func TestThrottlingEnabledOnFirstThrottle(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	l := NewAdaptiveRateLimiter(clk)

	assert.False(t, l.Enabled(), "limiter starts disabled")
	assert.Zero(t, l.Acquire(), "a disabled limiter never delays")

	l.Update(true)
	assert.True(t, l.Enabled())
}

func TestCalculatedRateWithSuccesses(t *testing.T) {
	l := &AdaptiveRateLimiter{
		lastThrottle: 5.0,
		lastMaxRate:  10.0,
	}

	expected := []struct {
		at   float64
		rate float64
	}{
		{5.0, 7.0},
		{6.0, 9.64893600966},
		{7.0, 10.000030849917364},
		{8.0, 10.453284520772092},
		{9.0, 13.408697022224185},
		{10.0, 21.26626835427364},
		{11.0, 36.425998516920465},
	}

	for _, step := range expected {
		l.calculateTimeWindow()
		assert.InDelta(t, step.rate, l.cubicSuccess(step.at), 1e-9)
	}
}

func TestCalculatedRateWithThrottles(t *testing.T) {
	l := &AdaptiveRateLimiter{
		lastThrottle: 5.0,
		lastMaxRate:  10.0,
	}

	steps := []struct {
		throttled bool
		at        float64
		rate      float64
	}{
		{false, 5.0, 7.0},
		{false, 6.0, 9.64893600966},
		{true, 7.0, 6.754255206761999},
		{true, 8.0, 4.727978644733399},
		{false, 9.0, 4.670125557970046},
		{false, 10.0, 4.770870456867401},
		{false, 11.0, 6.011819748005445},
		{false, 12.0, 10.792973431384178},
	}

	var rate float64
	for _, step := range steps {
		l.calculateTimeWindow()
		if step.throttled {
			rate = cubicThrottle(rate)
			l.lastThrottle = step.at
			l.lastMaxRate = rate
		} else {
			rate = l.cubicSuccess(step.at)
		}
		assert.InDelta(t, step.rate, rate, 1e-9)
	}
}

func TestClientSendingRates(t *testing.T) {
	clk := clock.NewManual(time.Unix(0, 0))
	l := NewAdaptiveRateLimiter(clk)

	steps := []struct {
		throttled    bool
		measuredRate float64
		fillRate     float64
	}{
		{false, 0.0, 0.5},
		{false, 0.0, 0.5},
		{false, 4.8, 0.5},
		{false, 4.8, 0.5},
		{false, 4.16, 0.5},
		{false, 4.16, 0.6912},
		{false, 4.16, 1.0976},
		{false, 5.632, 1.6384},
		{false, 5.632, 2.3328},
		{true, 4.3264, 3.02848},
		{false, 4.3264, 3.48663917347026},
		{false, 4.3264, 3.821874416040255},
		{false, 5.66528, 4.053385727709987},
		{false, 5.66528, 4.200373108479454},
		{false, 4.333056, 4.282036558348658},
		{true, 4.333056, 2.99742559084406},
		{false, 4.333056, 3.4522263943863463},
	}

	for i, step := range steps {
		clk.Advance(200 * time.Millisecond)
		l.Update(step.throttled)
		assert.InDelta(t, step.measuredRate, l.measuredTxRate, 1e-6, "step %d measured rate", i)
		assert.InDelta(t, step.fillRate, l.fillRate, 1e-6, "step %d fill rate", i)
	}
}

func TestAcquireDelaysWhenBucketEmpty(t *testing.T) {
	clk := clock.NewManual(time.Unix(100, 0))
	l := NewAdaptiveRateLimiter(clk)
	l.throttlingEnabled = true
	l.fillRate = 2.0
	l.maxCapacity = 1.0
	l.capacity = 1.0

	assert.Zero(t, l.Acquire(), "first token is free")

	// Empty bucket at 2 tokens/sec means the next send waits half a
	// second.
	wait := l.Acquire()
	assert.InDelta(t, 0.5, wait.Seconds(), 1e-6)
}
