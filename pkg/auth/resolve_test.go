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
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/relay/pkg/clock"
	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "https://api.example.com/things", nil)
	require.NoError(t, err)
	return req
}

func bagWith(options Options, registry *Registry, resolvers Resolvers) *configbag.Bag {
	bag := configbag.New()
	configbag.Set[OptionResolver](bag, NewStaticOptionResolver(options...))
	configbag.Set(bag, registry)
	configbag.Set(bag, resolvers)
	return bag
}

func TestFirstResolvableSchemeWins(t *testing.T) {
	// Both bearer and basic are resolvable; bearer is ranked first and
	// must win even though basic would also work.
	bag := bagWith(
		Options{SchemeBearer, SchemeBasic},
		NewRegistry(BearerScheme(), BasicScheme()),
		NewResolvers().
			With(SchemeBearer, StaticIdentityResolver(NewIdentity(Token{Value: "t"}))).
			With(SchemeBasic, StaticIdentityResolver(NewIdentity(Login{Username: "a", Password: "b"}))),
	)

	req := newRequest(t)
	id, err := ResolveAndSign(context.Background(), clock.System{}, req, bag)
	require.NoError(t, err)
	assert.Equal(t, SchemeBearer, id)
	assert.Equal(t, "Bearer t", req.Header.Get("Authorization"))
}

func TestSkipsSchemeWithoutResolver(t *testing.T) {
	// Bearer is ranked first but has no identity resolver registered, so
	// basic is selected.
	bag := bagWith(
		Options{SchemeBearer, SchemeBasic},
		NewRegistry(BearerScheme(), BasicScheme()),
		NewResolvers().
			With(SchemeBasic, StaticIdentityResolver(NewIdentity(Login{Username: "a", Password: "b"}))),
	)

	req := newRequest(t)
	id, err := ResolveAndSign(context.Background(), clock.System{}, req, bag)
	require.NoError(t, err)
	assert.Equal(t, SchemeBasic, id)
	// "YTpi" == "a:b" in base64
	assert.Equal(t, "Basic YTpi", req.Header.Get("Authorization"))
}

func TestNoUsableSchemeIsConstructionError(t *testing.T) {
	bag := bagWith(
		Options{SchemeBearer},
		NewRegistry(), // nothing registered
		NewResolvers(),
	)

	_, err := ResolveAndSign(context.Background(), clock.System{}, newRequest(t), bag)
	require.Error(t, err)
	assert.True(t, errors.IsConstruction(err))
	assert.Contains(t, err.Error(), "no auth scheme matched auth options")
}

func TestExpiredIdentityIsRefused(t *testing.T) {
	now := time.Unix(1700000000, 0)
	clk := clock.NewManual(now)
	bag := bagWith(
		Options{SchemeBearer},
		NewRegistry(BearerScheme()),
		NewResolvers().With(SchemeBearer, StaticIdentityResolver(
			NewExpiringIdentity(Token{Value: "stale"}, now.Add(-time.Minute)))),
	)

	req := newRequest(t)
	_, err := ResolveAndSign(context.Background(), clk, req, bag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
	assert.Empty(t, req.Header.Get("Authorization"),
		"an expired identity must never sign a request")
	assert.False(t, errors.IsConstruction(err),
		"resolution failures are attempt failures, not construction failures")
}

func TestResolverErrorIsNotConstruction(t *testing.T) {
	bag := bagWith(
		Options{SchemeBearer},
		NewRegistry(BearerScheme()),
		NewResolvers().With(SchemeBearer, IdentityResolverFunc(
			func(context.Context, *configbag.Bag) (Identity, error) {
				return Identity{}, assert.AnError
			})),
	)

	id, err := ResolveAndSign(context.Background(), clock.System{}, newRequest(t), bag)
	require.Error(t, err)
	assert.Equal(t, SchemeBearer, id)
	assert.False(t, errors.IsConstruction(err))
}

func TestAnonymousInstallSignsNothing(t *testing.T) {
	bag := configbag.New()
	InstallAnonymousAuth(bag)

	req := newRequest(t)
	id, err := ResolveAndSign(context.Background(), clock.System{}, req, bag)
	require.NoError(t, err)
	assert.Equal(t, SchemeAnonymous, id)
	assert.Empty(t, req.Header)
}

func TestAPIKeyScheme(t *testing.T) {
	bag := bagWith(
		Options{SchemeAPIKey},
		NewRegistry(APIKeyScheme("X-Api-Key")),
		NewResolvers().With(SchemeAPIKey, StaticIdentityResolver(NewIdentity(APIKey{Value: "k-123"}))),
	)

	req := newRequest(t)
	_, err := ResolveAndSign(context.Background(), clock.System{}, req, bag)
	require.NoError(t, err)
	assert.Equal(t, "k-123", req.Header.Get("X-Api-Key"))
}

func TestMissingOptionResolverIsConstruction(t *testing.T) {
	bag := configbag.New()
	_, err := ResolveAndSign(context.Background(), clock.System{}, newRequest(t), bag)
	assert.True(t, errors.IsConstruction(err))
}
