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
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/relay/pkg/clock"
	"github.com/tombee/relay/pkg/errors"
)

// HTTPStatusClassifier maps response status codes to retry reasons:
// 429 is throttling, 503 and other 5xx are server faults, 408 is
// transient. A Retry-After header becomes an explicit delay. When no
// response is available it falls back to the attempt's ServiceError,
// if there is one.
type HTTPStatusClassifier struct {
	// Clock anchors date-form Retry-After headers. Nil means system
	// time.
	Clock clock.Clock
}

func (c HTTPStatusClassifier) Name() string { return "http status" }

func (c HTTPStatusClassifier) now() time.Time {
	if c.Clock != nil {
		return c.Clock.Now()
	}
	return time.Now()
}

func (c HTTPStatusClassifier) Classify(a Attempt) (Reason, bool) {
	status := 0
	var delay time.Duration
	if a.Response != nil {
		status = a.Response.StatusCode
		delay = parseRetryAfter(a.Response.Header.Get("Retry-After"), c.now())
	} else {
		var se *errors.ServiceError
		if !stderrors.As(a.Err, &se) {
			return Reason{}, false
		}
		status = se.StatusCode
	}

	switch {
	case status == http.StatusTooManyRequests:
		return Reason{Kind: KindThrottling, Delay: delay}, true
	case status == http.StatusServiceUnavailable:
		return Reason{Kind: KindServer, Delay: delay}, true
	case status >= 500:
		return Reason{Kind: KindServer}, true
	case status == http.StatusRequestTimeout:
		return Reason{Kind: KindTransient}, true
	default:
		return Reason{}, false
	}
}

// parseRetryAfter handles both forms of the header: delay seconds and
// an HTTP date. Malformed values are ignored.
func parseRetryAfter(value string, now time.Time) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// TransportErrorClassifier retries connection-level failures. Context
// cancellation and deadline expiry are never retried; the caller gave
// up, retrying would only fail the same way.
type TransportErrorClassifier struct{}

func (TransportErrorClassifier) Name() string { return "transport error" }

func (TransportErrorClassifier) Classify(a Attempt) (Reason, bool) {
	if a.Err == nil {
		return Reason{}, false
	}
	if stderrors.Is(a.Err, context.Canceled) || stderrors.Is(a.Err, context.DeadlineExceeded) {
		return Reason{}, false
	}

	var de *errors.DispatchError
	if stderrors.As(a.Err, &de) {
		return Reason{Kind: KindTransient}, true
	}
	var ne net.Error
	if stderrors.As(a.Err, &ne) && ne.Timeout() {
		return Reason{Kind: KindTransient}, true
	}
	msg := a.Err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return Reason{Kind: KindTransient}, true
	}
	return Reason{}, false
}

// TimeoutClassifier retries attempt-level timeouts. Operation-level
// timeouts mean the whole budget is spent, so they are final.
type TimeoutClassifier struct{}

func (TimeoutClassifier) Name() string { return "timeout" }

func (TimeoutClassifier) Classify(a Attempt) (Reason, bool) {
	var te *errors.TimeoutError
	if !stderrors.As(a.Err, &te) {
		return Reason{}, false
	}
	if te.Operation {
		return Reason{}, false
	}
	return Reason{Kind: KindTransient}, true
}
