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

// Package retry decides whether a failed request attempt should be tried
// again, and after how long. Strategies answer the question; classifiers
// tell them what kind of failure they are looking at.
package retry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tombee/relay/pkg/configbag"
)

// ErrorKind is a coarse bucket for a retryable failure.
type ErrorKind int

const (
	// KindTransient covers connection-level failures and other errors
	// that are expected to clear on their own.
	KindTransient ErrorKind = iota
	// KindThrottling means the server asked us to slow down.
	KindThrottling
	// KindServer covers server faults such as HTTP 5xx.
	KindServer
	// KindClient covers client faults. These are normally not retried,
	// but a classifier may decide otherwise for specific codes.
	KindClient
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindThrottling:
		return "throttling"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Attempt is what a classifier gets to look at: the error the attempt
// produced, if any, and the response, if one was received.
type Attempt struct {
	Err      error
	Response *http.Response
}

// Ok reports whether the attempt succeeded.
func (a Attempt) Ok() bool { return a.Err == nil }

// Reason is a classifier's verdict on a failed attempt. Delay, when
// nonzero, is a server-directed wait (for example from a Retry-After
// header) that takes precedence over computed backoff.
type Reason struct {
	Kind  ErrorKind
	Delay time.Duration
}

func (r Reason) String() string {
	if r.Delay > 0 {
		return fmt.Sprintf("%s (retry after %s)", r.Kind, r.Delay)
	}
	return r.Kind.String()
}

// Classifier inspects a failed attempt and decides whether it is
// retryable. Returning false means this classifier has no opinion;
// the next one in the chain gets a look.
type Classifier interface {
	Classify(a Attempt) (Reason, bool)
	Name() string
}

// Classifiers runs a chain of classifiers in order and returns the
// first verdict.
type Classifiers []Classifier

func (cs Classifiers) Classify(a Attempt) (Reason, bool) {
	for _, c := range cs {
		if reason, ok := c.Classify(a); ok {
			return reason, true
		}
	}
	return Reason{}, false
}

func (cs Classifiers) Name() string { return "classifier chain" }

// DefaultClassifiers is the chain installed by default: transport
// failures first, then timeouts, then HTTP status codes.
func DefaultClassifiers() Classifiers {
	return Classifiers{
		TransportErrorClassifier{},
		TimeoutClassifier{},
		HTTPStatusClassifier{},
	}
}

// ShouldAttempt answers "should I make a request attempt?".
type ShouldAttempt struct {
	attempt bool
	delay   time.Duration
}

// Yes permits the attempt immediately.
func Yes() ShouldAttempt { return ShouldAttempt{attempt: true} }

// No refuses the attempt.
func No() ShouldAttempt { return ShouldAttempt{} }

// YesAfterDelay permits the attempt once d has elapsed.
func YesAfterDelay(d time.Duration) ShouldAttempt {
	return ShouldAttempt{attempt: true, delay: d}
}

// Attempt reports whether the attempt may proceed.
func (s ShouldAttempt) Attempt() bool { return s.attempt }

// Delay returns how long to wait before the attempt.
func (s ShouldAttempt) Delay() time.Duration { return s.delay }

func (s ShouldAttempt) String() string {
	switch {
	case !s.attempt:
		return "no"
	case s.delay > 0:
		return fmt.Sprintf("yes, after %s", s.delay)
	default:
		return "yes"
	}
}

// Strategy decides whether request attempts happen. The initial gate
// runs once per operation before the first attempt; the retry gate runs
// after every attempt, including successful ones, so strategies can
// observe outcomes.
type Strategy interface {
	ShouldAttemptInitialRequest(bag *configbag.Bag) (ShouldAttempt, error)
	ShouldAttemptRetry(a Attempt, bag *configbag.Bag) (ShouldAttempt, error)
}

// Attempts is the attempt counter stored in the config bag. The first
// attempt is number 1.
type Attempts struct {
	Count int
}

// CurrentAttempt reads the attempt counter from the bag, defaulting to
// the first attempt when none has been recorded.
func CurrentAttempt(bag *configbag.Bag) Attempts {
	return configbag.GetOr(bag, Attempts{Count: 1})
}
