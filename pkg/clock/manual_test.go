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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualAdvanceWakesSleepers(t *testing.T) {
	start := time.Unix(1700000000, 0)
	m := NewManual(start)

	done := make(chan error, 1)
	go func() {
		done <- m.Sleep(context.Background(), 2*time.Second)
	}()

	// Not enough time: the sleeper must stay asleep.
	m.Advance(time.Second)
	select {
	case <-done:
		t.Fatal("sleeper woke early")
	case <-time.After(10 * time.Millisecond):
	}

	m.Advance(time.Second)
	require.NoError(t, <-done)
	assert.Equal(t, start.Add(2*time.Second), m.Now())
	assert.Equal(t, 2*time.Second, m.TotalSlept())
}

func TestManualSleepCancellation(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- m.Sleep(ctx, time.Hour)
	}()
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAutoAdvancingNeverBlocks(t *testing.T) {
	a := NewAutoAdvancing(time.Unix(0, 0))

	require.NoError(t, a.Sleep(context.Background(), time.Second))
	require.NoError(t, a.Sleep(context.Background(), 3*time.Second))

	assert.Equal(t, 4*time.Second, a.TotalSlept())
	assert.Equal(t, time.Unix(4, 0), a.Now())
}

func TestSystemSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, System{}.Sleep(ctx, time.Minute), context.Canceled)
}
