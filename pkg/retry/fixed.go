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
	"time"

	"github.com/tombee/relay/internal/metrics"
	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

// FixedDelay retries every classified failure after the same delay.
// It is meant for tests and simple tools where predictable timing
// matters more than backoff.
type FixedDelay struct {
	delay       time.Duration
	maxAttempts int
}

// NewFixedDelay returns a fixed-delay strategy capped at 4 attempts.
func NewFixedDelay(delay time.Duration) *FixedDelay {
	return &FixedDelay{delay: delay, maxAttempts: 4}
}

// OneSecondFixedDelay is NewFixedDelay(time.Second).
func OneSecondFixedDelay() *FixedDelay {
	return NewFixedDelay(time.Second)
}

// WithMaxAttempts overrides the attempt cap.
func (s *FixedDelay) WithMaxAttempts(n int) *FixedDelay {
	s.maxAttempts = n
	return s
}

func (s *FixedDelay) ShouldAttemptInitialRequest(*configbag.Bag) (ShouldAttempt, error) {
	return Yes(), nil
}

func (s *FixedDelay) ShouldAttemptRetry(a Attempt, bag *configbag.Bag) (ShouldAttempt, error) {
	if a.Ok() {
		return No(), nil
	}

	attempts := CurrentAttempt(bag)
	if attempts.Count >= s.maxAttempts {
		return No(), nil
	}

	classifiers, ok := configbag.Get[Classifiers](bag)
	if !ok {
		return No(), errors.Constructionf("no retry classifiers configured")
	}
	reason, retryable := classifiers.Classify(a)
	if !retryable {
		return No(), nil
	}
	if reason.Kind == KindThrottling {
		metrics.RecordThrottle()
	}
	return YesAfterDelay(s.delay), nil
}
