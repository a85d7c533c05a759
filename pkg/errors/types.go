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
	"fmt"
	"net/http"
	"time"
)

// ConstructionError represents bad or incomplete configuration discovered
// before a request could be sent: a missing serializer, no matching auth
// scheme, a serialization failure. Construction errors are always terminal
// and never enter the retry loop.
type ConstructionError struct {
	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction failure: %v", e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConstructionError) Unwrap() error { return e.Cause }

// ErrorType returns the error category for programmatic handling.
func (e *ConstructionError) ErrorType() string { return "construction" }

// IsRetryable reports whether the operation should be retried.
func (e *ConstructionError) IsRetryable() bool { return false }

// DispatchError represents a transport-level failure: the request was sent
// (or sending was attempted) but no response was received. Connection
// failures, TLS errors, and connect timeouts land here. Dispatch errors are
// retry-eligible.
type DispatchError struct {
	// Cause is the underlying transport error
	Cause error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failure: %v", e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DispatchError) Unwrap() error { return e.Cause }

// ErrorType returns the error category for programmatic handling.
func (e *DispatchError) ErrorType() string { return "dispatch" }

// IsRetryable reports whether the operation should be retried.
func (e *DispatchError) IsRetryable() bool { return true }

// ResponseError represents a response that was received but could not be
// understood: deserialization failed, or a hook rejected the raw response.
// Usually terminal, since a malformed response rarely self-corrects; the
// classifier chain has the final say.
type ResponseError struct {
	// Cause is the underlying error
	Cause error

	// Raw is the response that could not be handled. May be nil if the
	// body was already consumed.
	Raw *http.Response
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("response error [HTTP %d]: %v", e.Raw.StatusCode, e.Cause)
	}
	return fmt.Sprintf("response error: %v", e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ResponseError) Unwrap() error { return e.Cause }

// ErrorType returns the error category for programmatic handling.
func (e *ResponseError) ErrorType() string { return "response" }

// IsRetryable reports whether the operation should be retried.
func (e *ResponseError) IsRetryable() bool { return false }

// ServiceError represents a successfully deserialized, modeled service-level
// error. Retry eligibility is determined entirely by the classifier chain
// based on the declared code and HTTP status.
type ServiceError struct {
	// Code is the service-declared error code (e.g. "ThrottlingException")
	Code string

	// StatusCode is the HTTP status the error arrived with
	StatusCode int

	// Message is the human-readable error message
	Message string

	// RequestID correlates this error with service-side logs
	RequestID string

	// Retryable is the service's own retry hint, when it declared one
	Retryable bool
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	msg := "service error"
	if e.Code != "" {
		msg = fmt.Sprintf("%s %s", msg, e.Code)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("%s (request-id: %s)", msg, e.RequestID)
	}
	return msg
}

// ErrorType returns the error category for programmatic handling.
func (e *ServiceError) ErrorType() string { return "service" }

// IsRetryable reports whether the operation should be retried.
func (e *ServiceError) IsRetryable() bool { return e.Retryable }

// TimeoutError represents an elapsed time budget. A per-attempt timeout is a
// retryable transient failure; the operation-level timeout is terminal
// regardless of remaining retry budget.
type TimeoutError struct {
	// Operation is true when the operation-level budget fired, false for
	// the per-attempt budget
	Operation bool

	// After is the budget that elapsed
	After time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	scope := "attempt"
	if e.Operation {
		scope = "operation"
	}
	return fmt.Sprintf("%s timed out after %s", scope, e.After)
}

// ErrorType returns the error category for programmatic handling.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable reports whether the operation should be retried.
func (e *TimeoutError) IsRetryable() bool { return !e.Operation }

// InterceptorError wraps a failure returned by an interceptor hook. The hook
// name records where in the lifecycle the failure occurred. Interceptor
// failures enter the same per-attempt classification funnel as transport and
// service errors.
type InterceptorError struct {
	// Hook is the name of the hook that failed (e.g. "ModifyBeforeSigning")
	Hook string

	// Cause is the error the hook returned
	Cause error
}

// Error implements the error interface.
func (e *InterceptorError) Error() string {
	return fmt.Sprintf("interceptor %s: %v", e.Hook, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *InterceptorError) Unwrap() error { return e.Cause }

// ErrorType returns the error category for programmatic handling.
func (e *InterceptorError) ErrorType() string { return "interceptor" }

// IsRetryable reports whether the operation should be retried.
func (e *InterceptorError) IsRetryable() bool { return false }
