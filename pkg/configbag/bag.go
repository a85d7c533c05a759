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

package configbag

import (
	"fmt"
	"reflect"
	"strings"
)

// Layer is one named level of a Bag. Values written to a layer shadow values
// of the same type in any layer pushed before it.
type Layer struct {
	name   string
	frozen bool
	values map[reflect.Type]any
	lists  map[reflect.Type][]any
}

// NewLayer creates a standalone mutable layer. Standalone layers are used to
// build client-level configuration that is frozen once and then shared by
// every Bag constructed from it.
func NewLayer(name string) *Layer {
	return &Layer{
		name:   name,
		values: make(map[reflect.Type]any),
		lists:  make(map[reflect.Type][]any),
	}
}

// Name returns the name the layer was created with.
func (l *Layer) Name() string { return l.name }

// Freeze seals the layer. A frozen layer's contents never change; attempting
// to write through it panics. Freezing is idempotent.
func (l *Layer) Freeze() FrozenLayer {
	l.frozen = true
	return FrozenLayer{inner: l}
}

// FrozenLayer is an immutable view of a sealed Layer. It is safe to share a
// FrozenLayer between goroutines and between Bags; the runtime never copies
// its contents (structural sharing).
type FrozenLayer struct {
	inner *Layer
}

// Name returns the name of the underlying layer.
func (f FrozenLayer) Name() string { return f.inner.name }

// Bag is an ordered stack of layers. The zero value is not usable; construct
// one with New.
//
// A Bag itself is not synchronized: it belongs to a single in-flight
// operation. Only frozen layers may be shared across operations.
type Bag struct {
	// layers[0] is the oldest layer, layers[len-1] the newest.
	layers []*Layer
}

// New creates a Bag from zero or more frozen base layers, oldest first, with
// a fresh mutable layer named "base" on top.
func New(base ...FrozenLayer) *Bag {
	b := &Bag{layers: make([]*Layer, 0, len(base)+2)}
	for _, fl := range base {
		b.layers = append(b.layers, fl.inner)
	}
	b.layers = append(b.layers, NewLayer("base"))
	return b
}

// PushLayer pushes a new mutable layer onto the top of the stack and returns
// it. Values previously readable remain readable; same-type writes into the
// new layer shadow them.
func (b *Bag) PushLayer(name string) *Layer {
	l := NewLayer(name)
	b.layers = append(b.layers, l)
	return l
}

// PushFrozen pushes an already-frozen layer onto the top of the stack.
func (b *Bag) PushFrozen(fl FrozenLayer) {
	b.layers = append(b.layers, fl.inner)
}

// PopLayer removes the top layer. It is used to discard per-attempt state
// when an attempt ends. Popping the last remaining layer panics: a Bag must
// always have at least one layer.
func (b *Bag) PopLayer() {
	if len(b.layers) <= 1 {
		panic("configbag: cannot pop the last layer")
	}
	b.layers = b.layers[:len(b.layers)-1]
}

// Depth reports the number of layers currently in the bag.
func (b *Bag) Depth() int { return len(b.layers) }

// top returns the newest mutable layer, pushing one if the top is frozen so
// that writes never touch sealed state.
func (b *Bag) top() *Layer {
	l := b.layers[len(b.layers)-1]
	if l.frozen {
		l = b.PushLayer(l.name + "+")
	}
	return l
}

func (b *Bag) String() string {
	names := make([]string, 0, len(b.layers))
	for _, l := range b.layers {
		names = append(names, l.name)
	}
	return fmt.Sprintf("Bag[%s]", strings.Join(names, " < "))
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Set stores value in the top mutable layer of the bag, replacing any value
// of the same type previously stored in that layer.
func Set[T any](b *Bag, value T) {
	SetIn(b.top(), value)
}

// SetIn stores value in a specific layer. It panics if the layer is frozen.
func SetIn[T any](l *Layer, value T) {
	if l.frozen {
		panic(fmt.Sprintf("configbag: write to frozen layer %q", l.name))
	}
	l.values[keyOf[T]()] = value
}

// Get returns the value of type T from the newest layer that stores one.
// ok is false when no layer stores a T; absence is not an error.
func Get[T any](b *Bag) (T, bool) {
	key := keyOf[T]()
	for i := len(b.layers) - 1; i >= 0; i-- {
		if v, ok := b.layers[i].values[key]; ok {
			return v.(T), true
		}
	}
	var zero T
	return zero, false
}

// GetOr returns the stored T, or def when no layer stores one.
func GetOr[T any](b *Bag, def T) T {
	if v, ok := Get[T](b); ok {
		return v
	}
	return def
}

// Append adds value to the multi-valued list for type T in the top mutable
// layer. Appending never shadows: All returns entries from every layer.
func Append[T any](b *Bag, value T) {
	AppendIn(b.top(), value)
}

// AppendIn adds value to the multi-valued list for type T in a specific
// layer. It panics if the layer is frozen.
func AppendIn[T any](l *Layer, value T) {
	if l.frozen {
		panic(fmt.Sprintf("configbag: write to frozen layer %q", l.name))
	}
	key := keyOf[T]()
	l.lists[key] = append(l.lists[key], value)
}

// All returns every appended value of type T across all layers, ordered
// oldest layer to newest, and within a layer in append order.
func All[T any](b *Bag) []T {
	key := keyOf[T]()
	var out []T
	for _, l := range b.layers {
		for _, v := range l.lists[key] {
			out = append(out, v.(T))
		}
	}
	return out
}
