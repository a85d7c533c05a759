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

// Package errors defines the failure taxonomy of the request-execution
// runtime and helpers for wrapping and classifying errors.
//
// There is exactly one failure funnel per attempt: interceptor hook
// failures, identity-resolution and signing failures, transport errors, and
// modeled service errors are all wrapped into one of the taxonomy types and
// fed through the same retry-classification path. The caller of an operation
// receives a single typed error carrying enough structure to distinguish
// "never sent" (ConstructionError), "sent but failed before a response"
// (DispatchError, TimeoutError), and "sent and the service rejected it"
// (ResponseError, ServiceError).
package errors

import (
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional
// context. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted
// context. If err is nil, returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Construction wraps err as a ConstructionError, or returns nil if err is nil.
func Construction(err error) error {
	if err == nil {
		return nil
	}
	return &ConstructionError{Cause: err}
}

// Constructionf creates a ConstructionError from a format string.
func Constructionf(format string, args ...any) error {
	return &ConstructionError{Cause: fmt.Errorf(format, args...)}
}

// Dispatch wraps err as a DispatchError, or returns nil if err is nil.
func Dispatch(err error) error {
	if err == nil {
		return nil
	}
	return &DispatchError{Cause: err}
}

// IsConstruction reports whether any error in err's tree is a
// ConstructionError.
func IsConstruction(err error) bool {
	var ce *ConstructionError
	return errors.As(err, &ce)
}

// IsOperationTimeout reports whether err carries an operation-level (as
// opposed to per-attempt) timeout anywhere in its tree.
func IsOperationTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te) && te.Operation
}

// TypeOf returns the taxonomy category of err, or "unknown" when err is not
// part of the taxonomy.
func TypeOf(err error) string {
	var ec ErrorClassifier
	if errors.As(err, &ec) {
		return ec.ErrorType()
	}
	return "unknown"
}
