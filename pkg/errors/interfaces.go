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

// ErrorClassifier defines methods for programmatic error handling. Every
// error in this package's taxonomy implements it, so retry classifiers and
// callers can branch on category without type-switching over concrete types.
type ErrorClassifier interface {
	error

	// ErrorType returns a string identifying the error category.
	// Examples: "construction", "dispatch", "response", "service", "timeout"
	ErrorType() string

	// IsRetryable returns true if the operation may be retried. For
	// service errors this is the service's own hint; the retry strategy's
	// classifier chain makes the final call.
	IsRetryable() bool
}
