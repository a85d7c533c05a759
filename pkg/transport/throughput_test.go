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
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/relay/pkg/clock"
)

// neverBody blocks forever, simulating a completely stalled stream.
type neverBody struct {
	unblock chan struct{}
}

func (b *neverBody) Read([]byte) (int, error) {
	<-b.unblock
	return 0, io.EOF
}

func (b *neverBody) Close() error {
	close(b.unblock)
	return nil
}

func TestStalledStreamSelfWakes(t *testing.T) {
	start := time.Unix(1700000000, 0)
	m := clock.NewManual(start)
	body := NewMinimumThroughputBody(m, m, &neverBody{unblock: make(chan struct{})},
		Throughput{Bytes: 1, Interval: time.Second})

	errCh := make(chan error, 1)
	go func() {
		_, err := body.Read(make([]byte, 64))
		errCh <- err
	}()

	// No external poll happens; advancing the clock past the measurement
	// interval must release the blocked consumer on its own.
	waitForSleepers(t, m)
	m.Advance(time.Second)

	select {
	case err := <-errCh:
		var te *ThroughputError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, Throughput{Bytes: 1, Interval: time.Second}, te.Expected)
		assert.EqualValues(t, 0, te.Actual.Bytes)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer was left waiting on a stalled stream")
	}

	// The failure is sticky.
	_, err := body.Read(make([]byte, 64))
	var te *ThroughputError
	assert.ErrorAs(t, err, &te)
}

func TestFastStreamPassesThrough(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	inner := io.NopCloser(strings.NewReader("hello world"))
	body := NewMinimumThroughputBody(m, m, inner, Throughput{Bytes: 1, Interval: time.Minute})

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestSlowButAcceptableStreamKeepsWaiting(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	nb := &neverBody{unblock: make(chan struct{})}
	// Floor of zero bytes per second can never be violated.
	body := NewMinimumThroughputBody(m, m, nb, Throughput{Bytes: 0, Interval: time.Second})

	errCh := make(chan error, 1)
	go func() {
		_, err := body.Read(make([]byte, 8))
		errCh <- err
	}()

	waitForSleepers(t, m)
	m.Advance(time.Second)
	select {
	case err := <-errCh:
		t.Fatalf("read returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	nb.unblock <- struct{}{}
	assert.ErrorIs(t, <-errCh, io.EOF)
}

func TestThroughputErrorMessage(t *testing.T) {
	err := &ThroughputError{
		Expected: Throughput{Bytes: 1024, Interval: time.Second},
		Actual:   Throughput{Bytes: 10, Interval: time.Second},
	}
	assert.Equal(t,
		"minimum throughput was specified at 1024 B per 1s, but throughput of 10 B per 1s was observed",
		err.Error())
	assert.True(t, err.IsRetryable())
}

// waitForSleepers polls until the body's wake-up sleep is registered with the
// manual clock, so Advance is guaranteed to reach it.
func waitForSleepers(t *testing.T, m *clock.Manual) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.TotalSlept() > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("sleeper never registered")
}
