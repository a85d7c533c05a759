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

package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tombee/relay/pkg/clock"
)

// throughputWindowSize bounds the rolling sample log.
const throughputWindowSize = 16

// Throughput is a data rate: Bytes per Interval.
type Throughput struct {
	Bytes    uint64
	Interval time.Duration
}

func (t Throughput) String() string {
	return fmt.Sprintf("%d B per %s", t.Bytes, t.Interval)
}

// bytesPerSecond converts the rate for comparison.
func (t Throughput) bytesPerSecond() float64 {
	if t.Interval <= 0 {
		return 0
	}
	return float64(t.Bytes) / t.Interval.Seconds()
}

// ThroughputError is the fatal error a MinimumThroughputBody yields when the
// stream falls below the configured floor.
type ThroughputError struct {
	Expected Throughput
	Actual   Throughput
}

// Error implements the error interface.
func (e *ThroughputError) Error() string {
	return fmt.Sprintf(
		"minimum throughput was specified at %s, but throughput of %s was observed",
		e.Expected, e.Actual)
}

// ErrorType returns the error category for programmatic handling.
func (e *ThroughputError) ErrorType() string { return "throughput" }

// IsRetryable reports whether the operation should be retried.
func (e *ThroughputError) IsRetryable() bool { return true }

type sample struct {
	at    time.Time
	bytes uint64
}

type readResult struct {
	data []byte
	err  error
}

// MinimumThroughputBody wraps a response body and ensures it delivers data
// faster than a configured floor. It keeps a rolling window of (timestamp,
// bytes-read) samples; once the window spans at least the measurement
// interval, a computed rate below the floor makes the next Read return a
// ThroughputError.
//
// A background wake-up is scheduled for every Read so that a consumer
// blocked on a completely stalled stream is released when the measurement
// interval elapses, rather than waiting forever on the inner body.
type MinimumThroughputBody struct {
	mu      sync.Mutex
	inner   io.ReadCloser
	clk     clock.Clock
	sleeper clock.Sleeper
	minimum Throughput

	samples []sample
	// pending holds the channel of an in-flight inner read that outlived a
	// wake-up. The goroutine owns its own buffer, so an abandoned read
	// never scribbles on a caller's slice.
	pending chan readResult
	failed  error
	closed  chan struct{}
}

// NewMinimumThroughputBody wraps body with a throughput floor. The clock and
// sleeper are injectable for deterministic tests.
func NewMinimumThroughputBody(clk clock.Clock, sleeper clock.Sleeper, body io.ReadCloser, minimum Throughput) *MinimumThroughputBody {
	return &MinimumThroughputBody{
		inner:   body,
		clk:     clk,
		sleeper: sleeper,
		minimum: minimum,
		closed:  make(chan struct{}),
	}
}

// Read implements io.Reader. It delegates to the wrapped body, recording a
// sample per completed or woken read, and fails once the observed rate over
// the window drops below the floor.
func (b *MinimumThroughputBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if b.failed != nil {
		err := b.failed
		b.mu.Unlock()
		return 0, err
	}
	ch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if ch == nil {
		// Anchor the measurement window at the moment the consumer asked
		// for data, so a stream that never yields a byte still trips the
		// guard one interval later.
		b.record(0)
		ch = make(chan readResult, 1)
		size := len(p)
		inner := b.inner
		go func() {
			buf := make([]byte, size)
			n, err := inner.Read(buf)
			ch <- readResult{data: buf[:n], err: err}
		}()
	}

	for {
		// Schedule the wake-up before blocking so a stalled inner body
		// cannot leave us waiting past the measurement interval.
		wake := make(chan struct{})
		wakeCtx, cancelWake := context.WithCancel(context.Background())
		go func() {
			_ = b.sleeper.Sleep(wakeCtx, b.minimum.Interval)
			close(wake)
		}()

		select {
		case res := <-ch:
			cancelWake()
			b.record(uint64(len(res.data)))
			if err := b.check(); err != nil {
				b.fail(err)
				return 0, err
			}
			n := copy(p, res.data)
			return n, res.err
		case <-wake:
			cancelWake()
			b.record(0)
			if err := b.check(); err != nil {
				b.fail(err)
				// The inner read stays pending; a later Read may
				// still drain it, but this body is done.
				return 0, err
			}
			// Rate still acceptable; keep waiting on the same read.
			b.mu.Lock()
			b.pending = ch
			b.mu.Unlock()
		case <-b.closed:
			cancelWake()
			return 0, io.ErrClosedPipe
		}

		b.mu.Lock()
		ch = b.pending
		b.pending = nil
		b.mu.Unlock()
		if ch == nil {
			// Closed out from under us.
			return 0, io.ErrClosedPipe
		}
	}
}

// Close implements io.Closer.
func (b *MinimumThroughputBody) Close() error {
	b.mu.Lock()
	select {
	case <-b.closed:
	default:
		close(b.closed)
	}
	b.mu.Unlock()
	return b.inner.Close()
}

func (b *MinimumThroughputBody) record(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, sample{at: b.clk.Now(), bytes: n})
	if len(b.samples) > throughputWindowSize {
		b.samples = b.samples[1:]
	}
}

// check computes the observed throughput over the sample window. It reports
// nil when the window does not yet span the measurement interval: without
// enough data, no verdict.
func (b *MinimumThroughputBody) check() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		return nil
	}
	elapsed := b.clk.Now().Sub(b.samples[0].at)
	if elapsed < b.minimum.Interval {
		return nil
	}
	var total uint64
	for _, s := range b.samples {
		total += s.bytes
	}
	actual := Throughput{Bytes: total, Interval: elapsed}
	if actual.bytesPerSecond() < b.minimum.bytesPerSecond() {
		return &ThroughputError{Expected: b.minimum, Actual: actual}
	}
	return nil
}

func (b *MinimumThroughputBody) fail(err error) {
	b.mu.Lock()
	b.failed = err
	b.mu.Unlock()
}
