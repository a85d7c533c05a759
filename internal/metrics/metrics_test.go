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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordThrottle(t *testing.T) {
	before := testutil.ToFloat64(throttlingEvents)
	RecordThrottle()
	RecordThrottle()
	assert.Equal(t, before+2, testutil.ToFloat64(throttlingEvents))
}

func TestRecordAttempt(t *testing.T) {
	before := testutil.ToFloat64(operationAttempts.WithLabelValues("GetThing"))
	RecordAttempt("GetThing")
	assert.Equal(t, before+1, testutil.ToFloat64(operationAttempts.WithLabelValues("GetThing")))
}

func TestOperationStarted(t *testing.T) {
	done := OperationStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(operationsInFlight))
	done()
	assert.Equal(t, 0.0, testutil.ToFloat64(operationsInFlight))
}
