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
	"sort"

	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

// Prioritized lets an interceptor opt into explicit ordering. Lower
// values run earlier. Interceptors without a priority run at 0.
type Prioritized interface {
	InterceptPriority() int
}

type registered struct {
	interceptor Interceptor
	operation   bool
	order       int
}

// Registry holds the interceptors for an execution. Client-scope
// interceptors run before operation-scope ones at equal priority, and
// registration order breaks remaining ties.
type Registry struct {
	items []registered
	next  int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterClient adds a client-scope interceptor.
func (r *Registry) RegisterClient(i Interceptor) {
	r.items = append(r.items, registered{interceptor: i, order: r.next})
	r.next++
}

// RegisterOperation adds an operation-scope interceptor.
func (r *Registry) RegisterOperation(i Interceptor) {
	r.items = append(r.items, registered{interceptor: i, operation: true, order: r.next})
	r.next++
}

// All returns the interceptors in execution order.
func (r *Registry) All() []Interceptor {
	sorted := make([]registered, len(r.items))
	copy(sorted, r.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := priorityOf(sorted[i].interceptor), priorityOf(sorted[j].interceptor)
		if pi != pj {
			return pi < pj
		}
		if sorted[i].operation != sorted[j].operation {
			return !sorted[i].operation
		}
		return sorted[i].order < sorted[j].order
	})

	out := make([]Interceptor, len(sorted))
	for i, item := range sorted {
		out[i] = item.interceptor
	}
	return out
}

func priorityOf(i Interceptor) int {
	if p, ok := i.(Prioritized); ok {
		return p.InterceptPriority()
	}
	return 0
}

// each runs one hook across every interceptor. All interceptors get
// their turn even when an earlier one fails; the last failure wins,
// wrapped with the hook name.
func (r *Registry) each(hook string, run func(Interceptor) error) error {
	var last error
	for _, i := range r.All() {
		if err := run(i); err != nil {
			last = &errors.InterceptorError{Hook: hook, Cause: err}
		}
	}
	return last
}

func (r *Registry) ReadBeforeExecution(c *Context, bag *configbag.Bag) error {
	return r.each("ReadBeforeExecution", func(i Interceptor) error { return i.ReadBeforeExecution(c, bag) })
}

func (r *Registry) ModifyBeforeSerialization(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeSerialization", func(i Interceptor) error { return i.ModifyBeforeSerialization(c, bag) })
}

func (r *Registry) ReadBeforeSerialization(c *Context, bag *configbag.Bag) error {
	return r.each("ReadBeforeSerialization", func(i Interceptor) error { return i.ReadBeforeSerialization(c, bag) })
}

func (r *Registry) ReadAfterSerialization(c *Context, bag *configbag.Bag) error {
	return r.each("ReadAfterSerialization", func(i Interceptor) error { return i.ReadAfterSerialization(c, bag) })
}

func (r *Registry) ModifyBeforeRetryLoop(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeRetryLoop", func(i Interceptor) error { return i.ModifyBeforeRetryLoop(c, bag) })
}

func (r *Registry) ReadBeforeAttempt(c *Context, bag *configbag.Bag) error {
	return r.each("ReadBeforeAttempt", func(i Interceptor) error { return i.ReadBeforeAttempt(c, bag) })
}

func (r *Registry) ModifyBeforeSigning(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeSigning", func(i Interceptor) error { return i.ModifyBeforeSigning(c, bag) })
}

func (r *Registry) ReadBeforeSigning(c *Context, bag *configbag.Bag) error {
	return r.each("ReadBeforeSigning", func(i Interceptor) error { return i.ReadBeforeSigning(c, bag) })
}

func (r *Registry) ReadAfterSigning(c *Context, bag *configbag.Bag) error {
	return r.each("ReadAfterSigning", func(i Interceptor) error { return i.ReadAfterSigning(c, bag) })
}

func (r *Registry) ModifyBeforeTransmit(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeTransmit", func(i Interceptor) error { return i.ModifyBeforeTransmit(c, bag) })
}

func (r *Registry) ReadBeforeTransmit(c *Context, bag *configbag.Bag) error {
	return r.each("ReadBeforeTransmit", func(i Interceptor) error { return i.ReadBeforeTransmit(c, bag) })
}

func (r *Registry) ReadAfterTransmit(c *Context, bag *configbag.Bag) error {
	return r.each("ReadAfterTransmit", func(i Interceptor) error { return i.ReadAfterTransmit(c, bag) })
}

func (r *Registry) ModifyBeforeDeserialization(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeDeserialization", func(i Interceptor) error { return i.ModifyBeforeDeserialization(c, bag) })
}

func (r *Registry) ReadBeforeDeserialization(c *Context, bag *configbag.Bag) error {
	return r.each("ReadBeforeDeserialization", func(i Interceptor) error { return i.ReadBeforeDeserialization(c, bag) })
}

func (r *Registry) ReadAfterDeserialization(c *Context, bag *configbag.Bag) error {
	return r.each("ReadAfterDeserialization", func(i Interceptor) error { return i.ReadAfterDeserialization(c, bag) })
}

func (r *Registry) ModifyBeforeAttemptCompletion(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeAttemptCompletion", func(i Interceptor) error { return i.ModifyBeforeAttemptCompletion(c, bag) })
}

func (r *Registry) ReadAfterAttempt(c *Context, bag *configbag.Bag) error {
	return r.each("ReadAfterAttempt", func(i Interceptor) error { return i.ReadAfterAttempt(c, bag) })
}

func (r *Registry) ModifyBeforeCompletion(c *Context, bag *configbag.Bag) error {
	return r.each("ModifyBeforeCompletion", func(i Interceptor) error { return i.ModifyBeforeCompletion(c, bag) })
}

func (r *Registry) ReadAfterExecution(c *Context, bag *configbag.Bag) error {
	return r.each("ReadAfterExecution", func(i Interceptor) error { return i.ReadAfterExecution(c, bag) })
}
