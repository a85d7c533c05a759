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

import "sync"

const (
	defaultQuota     = 500
	retryCost        = 5
	timeoutRetryCost = 10
	noRetryIncrement = 1
)

// Quota bounds how much retrying a client does overall. Every retry
// spends tokens; successes pay a little back. When the quota runs dry,
// failures surface to the caller instead of being retried, which keeps
// a broadly unhealthy dependency from soaking up capacity.
type Quota struct {
	mu        sync.Mutex
	available int
	max       int
}

// NewQuota returns a quota holding max tokens.
func NewQuota(max int) *Quota {
	return &Quota{available: max, max: max}
}

// Acquire spends cost tokens, reporting whether enough were available.
// On false the quota is left untouched.
func (q *Quota) Acquire(cost int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.available < cost {
		return false
	}
	q.available -= cost
	return true
}

// Refund returns n tokens, capped at the quota's maximum.
func (q *Quota) Refund(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.available += n
	if q.available > q.max {
		q.available = q.max
	}
}

// Available returns the current token count.
func (q *Quota) Available() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.available
}
