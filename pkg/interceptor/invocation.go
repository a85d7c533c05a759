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

package interceptor

import (
	"github.com/google/uuid"

	"github.com/tombee/relay/pkg/configbag"
)

// InvocationIDHeader carries the client-generated id that ties together
// every attempt of one operation, letting server logs correlate
// retries.
const InvocationIDHeader = "X-Invocation-Id"

// InvocationID is the id value stored in the config bag so other hooks
// and the caller can read it back.
type InvocationID string

// InvocationIDInterceptor stamps each operation with a fresh UUID
// before the retry loop. The same id rides on every attempt of the
// operation.
type InvocationIDInterceptor struct {
	Nop

	// NewID overrides id generation, for tests. Defaults to uuid.
	NewID func() string
}

func (i InvocationIDInterceptor) ModifyBeforeRetryLoop(c *Context, bag *configbag.Bag) error {
	gen := i.NewID
	if gen == nil {
		gen = uuid.NewString
	}
	id := gen()
	configbag.Set(bag, InvocationID(id))
	c.Request().Header.Set(InvocationIDHeader, id)
	return nil
}
