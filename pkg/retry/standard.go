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
	stderrors "errors"
	"math/rand"
	"sync"
	"time"

	"github.com/tombee/relay/internal/metrics"
	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

// Standard is the production retry strategy: exponential backoff with
// full jitter, a client-wide retry quota, and an optional adaptive
// rate limiter that slows the send rate after throttling responses.
type Standard struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	quota          *Quota
	limiter        *AdaptiveRateLimiter
	jitter         func(ceiling time.Duration) time.Duration

	mu       sync.Mutex
	acquired int
}

// StandardOption configures a Standard strategy.
type StandardOption func(*Standard)

// WithMaxAttempts sets the total attempt cap, initial attempt included.
func WithMaxAttempts(n int) StandardOption {
	return func(s *Standard) { s.maxAttempts = n }
}

// WithInitialBackoff sets the backoff base for the first retry.
func WithInitialBackoff(d time.Duration) StandardOption {
	return func(s *Standard) { s.initialBackoff = d }
}

// WithMaxBackoff caps the backoff ceiling.
func WithMaxBackoff(d time.Duration) StandardOption {
	return func(s *Standard) { s.maxBackoff = d }
}

// WithQuota replaces the retry quota, letting several clients share one.
func WithQuota(q *Quota) StandardOption {
	return func(s *Standard) { s.quota = q }
}

// WithAdaptiveRateLimiter enables client-side rate limiting.
func WithAdaptiveRateLimiter(l *AdaptiveRateLimiter) StandardOption {
	return func(s *Standard) { s.limiter = l }
}

// WithJitter replaces the jitter function. Tests use this to make
// backoff deterministic.
func WithJitter(fn func(ceiling time.Duration) time.Duration) StandardOption {
	return func(s *Standard) { s.jitter = fn }
}

// NewStandard returns a strategy with 3 attempts, 1s initial backoff,
// a 20s ceiling, and a fresh quota of 500 tokens.
func NewStandard(opts ...StandardOption) *Standard {
	s := &Standard{
		maxAttempts:    3,
		initialBackoff: time.Second,
		maxBackoff:     20 * time.Second,
		quota:          NewQuota(defaultQuota),
		jitter:         fullJitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fullJitter picks a uniform delay in [0, ceiling].
func fullJitter(ceiling time.Duration) time.Duration {
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(ceiling) + 1))
}

func (s *Standard) ShouldAttemptInitialRequest(*configbag.Bag) (ShouldAttempt, error) {
	if s.limiter != nil {
		if wait := s.limiter.Acquire(); wait > 0 {
			return YesAfterDelay(wait), nil
		}
	}
	return Yes(), nil
}

func (s *Standard) ShouldAttemptRetry(a Attempt, bag *configbag.Bag) (ShouldAttempt, error) {
	attempts := CurrentAttempt(bag)

	if a.Ok() {
		if attempts.Count > 1 {
			s.quota.Refund(s.takeAcquired())
		} else {
			s.quota.Refund(noRetryIncrement)
		}
		if s.limiter != nil {
			s.limiter.Update(false)
		}
		return No(), nil
	}

	classifiers, ok := configbag.Get[Classifiers](bag)
	if !ok {
		return No(), errors.Constructionf("no retry classifiers configured")
	}
	reason, retryable := classifiers.Classify(a)
	throttled := retryable && reason.Kind == KindThrottling
	if throttled {
		metrics.RecordThrottle()
	}
	if s.limiter != nil {
		s.limiter.Update(throttled)
	}
	if !retryable {
		return No(), nil
	}
	if attempts.Count >= s.maxAttempts {
		return No(), nil
	}
	cost := s.attemptCost(a)
	if !s.quota.Acquire(cost) {
		return No(), nil
	}
	s.rememberAcquired(cost)

	if reason.Delay > 0 {
		return YesAfterDelay(reason.Delay), nil
	}
	delay := s.jitter(s.backoffCeiling(attempts.Count))
	if s.limiter != nil {
		if wait := s.limiter.Acquire(); wait > delay {
			delay = wait
		}
	}
	return YesAfterDelay(delay), nil
}

// rememberAcquired records the cost charged for the latest retry so a
// later success can refund exactly that amount.
func (s *Standard) rememberAcquired(cost int) {
	s.mu.Lock()
	s.acquired = cost
	s.mu.Unlock()
}

func (s *Standard) takeAcquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cost := s.acquired
	s.acquired = 0
	if cost == 0 {
		cost = retryCost
	}
	return cost
}

// attemptCost makes timeout retries twice as expensive as ordinary
// ones, since timeouts tie up a connection for their full duration.
func (s *Standard) attemptCost(a Attempt) int {
	var te *errors.TimeoutError
	if stderrors.As(a.Err, &te) {
		return timeoutRetryCost
	}
	return retryCost
}

// backoffCeiling is min(maxBackoff, initial * 2^(attempt-1)).
func (s *Standard) backoffCeiling(attempt int) time.Duration {
	d := s.initialBackoff
	for i := 1; i < attempt && d < s.maxBackoff; i++ {
		d *= 2
	}
	if d > s.maxBackoff {
		d = s.maxBackoff
	}
	return d
}
