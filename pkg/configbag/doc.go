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

// Package configbag provides a layered, type-indexed configuration and state
// store shared by every component of the request-execution runtime.
//
// A Bag is an ordered stack of named layers. Each layer maps a Go type to
// exactly one stored value (or to an appendable list for multi-valued types).
// Reads walk the stack from the most recently pushed layer down and return
// the first hit, so a value set in a newer layer shadows (never merges with)
// an older layer's value of the same type.
//
// Layers follow the call lifecycle: a client builds a base layer once,
// freezes it, and shares it across every operation invocation; the runtime
// pushes a fresh layer per invocation and a further layer per attempt, which
// is discarded when the attempt ends. Frozen layers are immutable and safe
// for concurrent reads without locking.
//
// Absence is a legitimate state: asking for a type that was never stored
// reports ok == false rather than an error.
//
// Example:
//
//	base := configbag.NewLayer("client")
//	configbag.SetIn(base, httpTimeout(30*time.Second))
//	bag := configbag.New(base.Freeze())
//
//	bag.PushLayer("operation")
//	configbag.Set(bag, httpTimeout(5*time.Second))
//
//	timeout, ok := configbag.Get[httpTimeout](bag) // 5s; the operation layer wins
package configbag
