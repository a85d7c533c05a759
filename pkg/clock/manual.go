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

package clock

import (
	"context"
	"sync"
	"time"
)

// Manual is a Clock and Sleeper that only moves when Advance is called.
// Sleep registers a waiter and returns once the clock has been advanced past
// its deadline, which keeps retry-delay tests instantaneous and exact.
//
// Manual is safe for concurrent use: the task under test sleeps while the
// test goroutine advances.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	slept   time.Duration
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	done     chan struct{}
}

// NewManual creates a Manual clock starting at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// TotalSlept reports the cumulative duration requested through Sleep,
// including sleeps satisfied immediately.
func (m *Manual) TotalSlept() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slept
}

// Advance moves the clock forward and wakes every sleeper whose deadline has
// passed.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	var remaining []*waiter
	for _, w := range m.waiters {
		if !w.deadline.After(m.now) {
			close(w.done)
		} else {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
	m.mu.Unlock()
}

// Sleep implements Sleeper. It blocks until Advance moves the clock past the
// deadline or the context is cancelled.
func (m *Manual) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	if d <= 0 {
		m.mu.Unlock()
		return ctx.Err()
	}
	m.slept += d
	w := &waiter{deadline: m.now.Add(d), done: make(chan struct{})}
	m.waiters = append(m.waiters, w)
	m.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AutoAdvancing wraps a Manual so that every Sleep immediately advances the
// clock by the requested duration instead of blocking. This mirrors how the
// orchestrator's inter-attempt delays are tested: time passes logically,
// never physically.
type AutoAdvancing struct {
	*Manual
}

// NewAutoAdvancing creates an auto-advancing manual clock.
func NewAutoAdvancing(start time.Time) *AutoAdvancing {
	return &AutoAdvancing{Manual: NewManual(start)}
}

// Sleep advances the clock by d and returns immediately.
func (a *AutoAdvancing) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	a.slept += d
	a.mu.Unlock()
	a.Advance(d)
	return nil
}
