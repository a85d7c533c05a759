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
	"math"
	"sync"
	"time"

	"github.com/tombee/relay/pkg/clock"
)

const (
	minFillRate   = 0.5
	minCapacity   = 1.0
	smooth        = 0.8
	// How much to scale back after a throttling response.
	beta = 0.7
	// Controls how aggressively the rate recovers afterwards.
	scaleConstant = 0.4
)

// AdaptiveRateLimiter slows the client's send rate after throttling
// responses using a cubic growth curve. It starts disabled and costs
// nothing until the first throttle is seen; from then on every send
// draws a token from a bucket whose fill rate backs off by beta on
// each throttle and recovers cubically through success.
type AdaptiveRateLimiter struct {
	mu  sync.Mutex
	clk clock.Clock

	// Token bucket. Capacity never caps below minCapacity and the fill
	// rate never drops below minFillRate.
	fillRate    float64
	maxCapacity float64
	capacity    float64
	lastRefill  float64
	hasRefilled bool

	// Smoothed measurement of how fast requests are actually going out,
	// sampled in half-second buckets.
	measuredTxRate float64
	lastTimeBucket float64
	requestCount   int

	throttlingEnabled bool
	lastMaxRate       float64
	lastThrottle      float64
	timeWindow        float64
	calculatedRate    float64
}

// NewAdaptiveRateLimiter returns a disabled limiter that reads time
// from clk.
func NewAdaptiveRateLimiter(clk clock.Clock) *AdaptiveRateLimiter {
	now := unixSeconds(clk.Now())
	return &AdaptiveRateLimiter{
		clk:            clk,
		maxCapacity:    math.MaxFloat64,
		lastTimeBucket: math.Floor(now),
		lastThrottle:   now,
	}
}

// Acquire draws one token and returns how long the caller must wait
// before sending. The wait is zero until throttling has been observed.
func (l *AdaptiveRateLimiter) Acquire() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.throttlingEnabled {
		return 0
	}

	now := unixSeconds(l.clk.Now())
	l.refill(now)
	if l.capacity >= 1 {
		l.capacity--
		return 0
	}

	wait := (1 - l.capacity) / l.fillRate
	// The token is spent at the end of the wait; skip ahead so the
	// refill during the sleep is not counted twice.
	l.capacity = 0
	l.lastRefill = now + wait
	return time.Duration(wait * float64(time.Second))
}

// Update feeds an attempt outcome into the limiter. Throttled outcomes
// cut the send rate by beta and restart the cubic recovery curve;
// successful ones walk the rate back up along it.
func (l *AdaptiveRateLimiter) Update(throttled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := unixSeconds(l.clk.Now())
	l.updateMeasuredRate(now)

	if throttled {
		rateToUse := l.measuredTxRate
		if l.throttlingEnabled {
			rateToUse = math.Min(l.measuredTxRate, l.fillRate)
		}
		l.lastMaxRate = rateToUse
		l.calculateTimeWindow()
		l.lastThrottle = now
		l.calculatedRate = cubicThrottle(rateToUse)
		l.throttlingEnabled = true
	} else {
		l.calculateTimeWindow()
		l.calculatedRate = l.cubicSuccess(now)
	}

	newRate := math.Min(l.calculatedRate, 2*l.measuredTxRate)
	l.updateFillRate(now, newRate)
}

// Enabled reports whether a throttling response has been seen.
func (l *AdaptiveRateLimiter) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.throttlingEnabled
}

func (l *AdaptiveRateLimiter) refill(now float64) {
	if l.hasRefilled {
		fill := (now - l.lastRefill) * l.fillRate
		l.capacity = math.Min(l.maxCapacity, l.capacity+fill)
	}
	l.lastRefill = now
	l.hasRefilled = true
}

func (l *AdaptiveRateLimiter) updateFillRate(now, newRate float64) {
	// Refill at the old rate before switching to the new one.
	l.refill(now)

	l.fillRate = math.Max(newRate, minFillRate)
	l.maxCapacity = math.Max(newRate, minCapacity)
	l.capacity = math.Min(l.capacity, l.maxCapacity)
}

func (l *AdaptiveRateLimiter) updateMeasuredRate(now float64) {
	bucket := math.Floor(now*2) / 2
	l.requestCount++

	if bucket > l.lastTimeBucket {
		currentRate := float64(l.requestCount) / (bucket - l.lastTimeBucket)
		l.measuredTxRate = currentRate*smooth + l.measuredTxRate*(1-smooth)
		l.requestCount = 0
		l.lastTimeBucket = bucket
	}
}

// calculateTimeWindow only changes when lastMaxRate does, so it is
// computed once per throttle rather than per call.
func (l *AdaptiveRateLimiter) calculateTimeWindow() {
	base := (l.lastMaxRate * (1 - beta)) / scaleConstant
	l.timeWindow = math.Pow(base, 1.0/3.0)
}

func (l *AdaptiveRateLimiter) cubicSuccess(now float64) float64 {
	dt := now - l.lastThrottle - l.timeWindow
	return scaleConstant*math.Pow(dt, 3) + l.lastMaxRate
}

func cubicThrottle(rateToUse float64) float64 {
	return rateToUse * beta
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
