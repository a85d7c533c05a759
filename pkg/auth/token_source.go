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
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

// TokenSourceIdentityResolver adapts an oauth2.TokenSource as the identity
// resolver for the bearer scheme. The token's expiry carries through to the
// Identity, so a cached token near expiry is refreshed by the source rather
// than used to sign.
func TokenSourceIdentityResolver(source oauth2.TokenSource) IdentityResolver {
	return IdentityResolverFunc(
		func(_ context.Context, _ *configbag.Bag) (Identity, error) {
			token, err := source.Token()
			if err != nil {
				return Identity{}, errors.Wrap(err, "fetching oauth2 token")
			}
			if token.Expiry.IsZero() {
				return NewIdentity(Token{Value: token.AccessToken}), nil
			}
			return NewExpiringIdentity(Token{Value: token.AccessToken}, token.Expiry), nil
		},
	)
}

// JWTIdentityResolver resolves a static JWT as bearer material, reading the
// token's exp claim (without verifying the signature; verification is the
// service's job) so the runtime refuses to sign with an expired token.
func JWTIdentityResolver(raw string) IdentityResolver {
	return IdentityResolverFunc(
		func(_ context.Context, _ *configbag.Bag) (Identity, error) {
			claims := jwt.MapClaims{}
			parser := jwt.NewParser()
			if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
				return Identity{}, errors.Wrap(err, "parsing bearer JWT")
			}
			exp, err := claims.GetExpirationTime()
			if err != nil {
				return Identity{}, errors.Wrap(err, "reading JWT exp claim")
			}
			if exp == nil {
				return NewIdentity(Token{Value: raw}), nil
			}
			return NewExpiringIdentity(Token{Value: raw}, exp.Time), nil
		},
	)
}

// expirySkew is subtracted from identity expirations when deciding whether
// to reuse a cached identity, so a token is refreshed shortly before it
// would actually lapse.
const expirySkew = 30 * time.Second

// CachingIdentityResolver memoizes another resolver's identity until close
// to its expiration. It is internally synchronized: one resolver instance is
// shared by every concurrent operation of a client.
type CachingIdentityResolver struct {
	inner IdentityResolver
	clk   interface{ Now() time.Time }

	mu     chan struct{} // buffered-1 semaphore; also serializes refresh
	cached Identity
	valid  bool
}

// NewCachingIdentityResolver wraps inner with a near-expiry cache.
func NewCachingIdentityResolver(inner IdentityResolver, clk interface{ Now() time.Time }) *CachingIdentityResolver {
	r := &CachingIdentityResolver{inner: inner, clk: clk, mu: make(chan struct{}, 1)}
	r.mu <- struct{}{}
	return r
}

// ResolveIdentity implements IdentityResolver.
func (r *CachingIdentityResolver) ResolveIdentity(ctx context.Context, bag *configbag.Bag) (Identity, error) {
	select {
	case <-r.mu:
	case <-ctx.Done():
		return Identity{}, ctx.Err()
	}
	defer func() { r.mu <- struct{}{} }()

	now := r.clk.Now()
	if r.valid {
		if exp, ok := r.cached.Expiration(); !ok || exp.Add(-expirySkew).After(now) {
			return r.cached, nil
		}
	}

	identity, err := r.inner.ResolveIdentity(ctx, bag)
	if err != nil {
		return Identity{}, err
	}
	r.cached = identity
	r.valid = true
	return identity, nil
}
