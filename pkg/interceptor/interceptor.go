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
	"github.com/tombee/relay/pkg/configbag"
)

// Interceptor hooks fire in lifecycle order. Read hooks observe; Modify
// hooks may replace the request, response or result through the
// context. Embed Nop to implement only the hooks you care about.
//
// Execution-scope hooks (ReadBeforeExecution, ModifyBeforeCompletion,
// ReadAfterExecution) fire once per operation. Attempt-scope hooks fire
// once per attempt, so a retried operation sees them several times.
type Interceptor interface {
	ReadBeforeExecution(c *Context, bag *configbag.Bag) error

	ModifyBeforeSerialization(c *Context, bag *configbag.Bag) error
	ReadBeforeSerialization(c *Context, bag *configbag.Bag) error
	ReadAfterSerialization(c *Context, bag *configbag.Bag) error

	ModifyBeforeRetryLoop(c *Context, bag *configbag.Bag) error

	ReadBeforeAttempt(c *Context, bag *configbag.Bag) error
	ModifyBeforeSigning(c *Context, bag *configbag.Bag) error
	ReadBeforeSigning(c *Context, bag *configbag.Bag) error
	ReadAfterSigning(c *Context, bag *configbag.Bag) error

	ModifyBeforeTransmit(c *Context, bag *configbag.Bag) error
	ReadBeforeTransmit(c *Context, bag *configbag.Bag) error
	ReadAfterTransmit(c *Context, bag *configbag.Bag) error

	ModifyBeforeDeserialization(c *Context, bag *configbag.Bag) error
	ReadBeforeDeserialization(c *Context, bag *configbag.Bag) error
	ReadAfterDeserialization(c *Context, bag *configbag.Bag) error

	ModifyBeforeAttemptCompletion(c *Context, bag *configbag.Bag) error
	ReadAfterAttempt(c *Context, bag *configbag.Bag) error

	ModifyBeforeCompletion(c *Context, bag *configbag.Bag) error
	ReadAfterExecution(c *Context, bag *configbag.Bag) error
}

// Nop implements every hook as a no-op.
type Nop struct{}

func (Nop) ReadBeforeExecution(*Context, *configbag.Bag) error            { return nil }
func (Nop) ModifyBeforeSerialization(*Context, *configbag.Bag) error      { return nil }
func (Nop) ReadBeforeSerialization(*Context, *configbag.Bag) error        { return nil }
func (Nop) ReadAfterSerialization(*Context, *configbag.Bag) error         { return nil }
func (Nop) ModifyBeforeRetryLoop(*Context, *configbag.Bag) error          { return nil }
func (Nop) ReadBeforeAttempt(*Context, *configbag.Bag) error              { return nil }
func (Nop) ModifyBeforeSigning(*Context, *configbag.Bag) error            { return nil }
func (Nop) ReadBeforeSigning(*Context, *configbag.Bag) error              { return nil }
func (Nop) ReadAfterSigning(*Context, *configbag.Bag) error               { return nil }
func (Nop) ModifyBeforeTransmit(*Context, *configbag.Bag) error           { return nil }
func (Nop) ReadBeforeTransmit(*Context, *configbag.Bag) error             { return nil }
func (Nop) ReadAfterTransmit(*Context, *configbag.Bag) error              { return nil }
func (Nop) ModifyBeforeDeserialization(*Context, *configbag.Bag) error    { return nil }
func (Nop) ReadBeforeDeserialization(*Context, *configbag.Bag) error      { return nil }
func (Nop) ReadAfterDeserialization(*Context, *configbag.Bag) error       { return nil }
func (Nop) ModifyBeforeAttemptCompletion(*Context, *configbag.Bag) error  { return nil }
func (Nop) ReadAfterAttempt(*Context, *configbag.Bag) error               { return nil }
func (Nop) ModifyBeforeCompletion(*Context, *configbag.Bag) error         { return nil }
func (Nop) ReadAfterExecution(*Context, *configbag.Bag) error             { return nil }
