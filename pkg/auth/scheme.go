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

package auth

import (
	"net/http"

	"github.com/tombee/relay/pkg/configbag"
)

// Signer applies signature material for one scheme to an outgoing request.
// Signing mutates headers or query parameters; it never mutates the bag.
type Signer interface {
	SignRequest(req *http.Request, identity Identity, bag *configbag.Bag) error
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(req *http.Request, identity Identity, bag *configbag.Bag) error

// SignRequest implements Signer.
func (f SignerFunc) SignRequest(req *http.Request, identity Identity, bag *configbag.Bag) error {
	return f(req, identity, bag)
}

// Scheme binds a SchemeID to its signer. Identity resolvers are registered
// separately in Resolvers, because the same scheme may be backed by
// different credential sources per client.
type Scheme interface {
	ID() SchemeID
	Signer() Signer
}

type scheme struct {
	id     SchemeID
	signer Signer
}

func (s scheme) ID() SchemeID   { return s.id }
func (s scheme) Signer() Signer { return s.signer }

// NewScheme creates a Scheme from an id and a signer.
func NewScheme(id SchemeID, signer Signer) Scheme {
	return scheme{id: id, signer: signer}
}

// Registry holds the schemes a client supports, keyed by id.
type Registry struct {
	schemes map[SchemeID]Scheme
}

// NewRegistry creates a Registry from the given schemes.
func NewRegistry(schemes ...Scheme) *Registry {
	r := &Registry{schemes: make(map[SchemeID]Scheme, len(schemes))}
	for _, s := range schemes {
		r.schemes[s.ID()] = s
	}
	return r
}

// Scheme looks up a scheme by id.
func (r *Registry) Scheme(id SchemeID) (Scheme, bool) {
	s, ok := r.schemes[id]
	return s, ok
}

// Resolvers maps scheme ids to the identity resolver backing each one.
type Resolvers struct {
	m map[SchemeID]IdentityResolver
}

// NewResolvers creates an empty resolver set.
func NewResolvers() Resolvers {
	return Resolvers{m: make(map[SchemeID]IdentityResolver)}
}

// With registers a resolver for a scheme and returns the set for chaining.
func (r Resolvers) With(id SchemeID, resolver IdentityResolver) Resolvers {
	r.m[id] = resolver
	return r
}

// Resolver looks up the resolver for a scheme.
func (r Resolvers) Resolver(id SchemeID) (IdentityResolver, bool) {
	if r.m == nil {
		return nil, false
	}
	res, ok := r.m[id]
	return res, ok
}
