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

// Package erasure wraps concretely-typed values so they can flow through the
// non-generic orchestrator and later be recovered with a checked downcast.
//
// The orchestrator carries arbitrary per-operation input, output, and error
// types through a single monomorphic code path. Erasing the types at the
// boundary avoids one specialized engine per operation; generated code and
// operation-specific interceptors recover the concrete types with Assume.
package erasure

import (
	"fmt"
	"reflect"
)

// Value owns exactly one erased value of some concrete type, together with
// enough metadata to support a fallible downcast back to that type and a
// useful debug rendering. The zero Value is empty and fails every downcast.
type Value struct {
	payload  any
	typeName string
}

// Erase wraps v, hiding its static type.
func Erase[T any](v T) Value {
	return Value{
		payload:  v,
		typeName: reflect.TypeOf((*T)(nil)).Elem().String(),
	}
}

// TypeName reports the name of the erased concrete type, for debugging.
func (v Value) TypeName() string { return v.typeName }

// IsZero reports whether the Value holds nothing.
func (v Value) IsZero() bool { return v.typeName == "" }

func (v Value) String() string {
	if v.IsZero() {
		return "Value(empty)"
	}
	return fmt.Sprintf("Value[%s]:%v", v.typeName, v.payload)
}

// As performs a checked downcast, returning the concrete value and true when
// the Value really holds a T.
func As[T any](v Value) (T, bool) {
	t, ok := v.payload.(T)
	return t, ok
}

// Handle pairs an erased Value with compile-time knowledge of its concrete
// type. A Handle[T] is only constructible when the wrapped value really is a
// T, so Get and Into are infallible.
type Handle[T any] struct {
	v T
}

// Assume tries to recover a Handle[T] from an erased Value. When the Value
// holds some other type, ok is false and the Value is returned untouched so
// the caller can try another type or surface it as-is.
func Assume[T any](v Value) (Handle[T], Value, bool) {
	if t, ok := v.payload.(T); ok {
		return Handle[T]{v: t}, Value{}, true
	}
	return Handle[T]{}, v, false
}

// Get returns the recovered value.
func (h Handle[T]) Get() T { return h.v }

// Erase converts the Handle back into an erased Value.
func (h Handle[T]) Erase() Value { return Erase(h.v) }
