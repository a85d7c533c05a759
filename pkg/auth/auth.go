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

// Package auth selects an authentication scheme for an outgoing request,
// resolves an identity for it, and signs the request.
//
// An operation declares a ranked list of scheme ids it is willing to use.
// The runtime walks the list in order and signs with the first scheme that
// has both a registered identity resolver and a signer; later schemes are
// never consulted once one matches. A list with no usable scheme is a
// configuration bug, surfaced as a construction error and never retried.
package auth

import (
	"context"
	"time"

	"github.com/tombee/relay/pkg/configbag"
)

// SchemeID is a stable token naming an authentication mechanism.
type SchemeID string

// Scheme ids understood out of the box.
const (
	SchemeAnonymous SchemeID = "anonymous"
	SchemeBearer    SchemeID = "http-bearer"
	SchemeBasic     SchemeID = "http-basic"
	SchemeAPIKey    SchemeID = "http-api-key"
)

// Identity is an opaque bundle of authentication material plus an optional
// expiration. An Identity with a past expiration must never be used to sign
// a request; resolvers refresh before expiry.
type Identity struct {
	material any
	expires  time.Time
}

// NewIdentity creates a never-expiring Identity around material.
func NewIdentity(material any) Identity {
	return Identity{material: material}
}

// NewExpiringIdentity creates an Identity that must not be used to sign
// after expires.
func NewExpiringIdentity(material any, expires time.Time) Identity {
	return Identity{material: material, expires: expires}
}

// Material returns the scheme-specific authentication material.
func (i Identity) Material() any { return i.material }

// Expiration returns the expiry instant; ok is false for identities that
// never expire.
func (i Identity) Expiration() (time.Time, bool) {
	return i.expires, !i.expires.IsZero()
}

// Expired reports whether the identity must not be used at the given time.
func (i Identity) Expired(now time.Time) bool {
	return !i.expires.IsZero() && !i.expires.After(now)
}

// IdentityResolver produces an Identity for one scheme. Resolution may
// perform I/O (disk profile reads, token endpoints) and therefore takes a
// context.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, bag *configbag.Bag) (Identity, error)
}

// IdentityResolverFunc adapts a function to the IdentityResolver interface.
type IdentityResolverFunc func(ctx context.Context, bag *configbag.Bag) (Identity, error)

// ResolveIdentity implements IdentityResolver.
func (f IdentityResolverFunc) ResolveIdentity(ctx context.Context, bag *configbag.Bag) (Identity, error) {
	return f(ctx, bag)
}

// Options is a ranked list of scheme ids an operation is willing to use,
// most preferred first.
type Options []SchemeID

// OptionResolver computes the ranked Options for the current operation. The
// params value is whatever the generated client stored in the bag for it.
type OptionResolver interface {
	ResolveAuthOptions(params any) (Options, error)
}

// OptionResolverParams carries the opaque input an OptionResolver needs,
// threaded through the config bag.
type OptionResolverParams struct {
	Value any
}

// StaticOptionResolver returns a fixed ranked list regardless of params.
type StaticOptionResolver struct {
	options Options
}

// NewStaticOptionResolver creates an OptionResolver that always returns the
// given list.
func NewStaticOptionResolver(options ...SchemeID) *StaticOptionResolver {
	return &StaticOptionResolver{options: options}
}

// ResolveAuthOptions implements OptionResolver.
func (r *StaticOptionResolver) ResolveAuthOptions(any) (Options, error) {
	return r.options, nil
}
