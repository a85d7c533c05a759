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

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyImplementsClassifier(t *testing.T) {
	cases := []struct {
		err       ErrorClassifier
		errType   string
		retryable bool
	}{
		{&ConstructionError{Cause: stderrors.New("x")}, "construction", false},
		{&DispatchError{Cause: stderrors.New("x")}, "dispatch", true},
		{&ResponseError{Cause: stderrors.New("x")}, "response", false},
		{&ServiceError{Code: "Internal", StatusCode: 500}, "service", false},
		{&ServiceError{Code: "Throttling", Retryable: true}, "service", true},
		{&TimeoutError{Operation: false, After: time.Second}, "timeout", true},
		{&TimeoutError{Operation: true, After: time.Second}, "timeout", false},
		{&InterceptorError{Hook: "ModifyBeforeSigning", Cause: stderrors.New("x")}, "interceptor", false},
	}
	for _, tc := range cases {
		t.Run(tc.errType+"/"+tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.errType, tc.err.ErrorType())
			assert.Equal(t, tc.retryable, tc.err.IsRetryable())
		})
	}
}

func TestServiceErrorMessage(t *testing.T) {
	err := &ServiceError{
		Code:       "ThrottlingException",
		StatusCode: 429,
		Message:    "slow down",
		RequestID:  "req-123",
	}
	assert.Equal(t,
		"service error ThrottlingException [HTTP 429]: slow down (request-id: req-123)",
		err.Error())
}

func TestResponseErrorCarriesRaw(t *testing.T) {
	raw := &http.Response{StatusCode: 502}
	err := &ResponseError{Cause: stderrors.New("bad xml"), Raw: raw}

	assert.Contains(t, err.Error(), "HTTP 502")

	var re *ResponseError
	require.True(t, stderrors.As(fmt.Errorf("attempt 1: %w", err), &re))
	assert.Same(t, raw, re.Raw)
}

func TestTimeoutErrorScopes(t *testing.T) {
	attempt := &TimeoutError{After: 2 * time.Second}
	op := &TimeoutError{Operation: true, After: 10 * time.Second}

	assert.Equal(t, "attempt timed out after 2s", attempt.Error())
	assert.Equal(t, "operation timed out after 10s", op.Error())
	assert.False(t, IsOperationTimeout(attempt))
	assert.True(t, IsOperationTimeout(fmt.Errorf("wrapped: %w", op)))
}

func TestUnwrapChain(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Dispatch(cause)

	assert.True(t, stderrors.Is(err, cause))

	var de *DispatchError
	require.True(t, stderrors.As(err, &de))
	assert.Same(t, cause, de.Cause)
}

func TestHelpers(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))
	assert.Nil(t, Construction(nil))
	assert.Nil(t, Dispatch(nil))

	err := Wrapf(stderrors.New("boom"), "loading %s", "thing")
	assert.EqualError(t, err, "loading thing: boom")

	assert.True(t, IsConstruction(Constructionf("no auth scheme matched auth options")))
	assert.False(t, IsConstruction(Dispatch(stderrors.New("x"))))

	assert.Equal(t, "dispatch", TypeOf(Dispatch(stderrors.New("x"))))
	assert.Equal(t, "unknown", TypeOf(stderrors.New("x")))
}
