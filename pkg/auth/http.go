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
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/tombee/relay/pkg/configbag"
)

// Token is bearer-token material.
type Token struct {
	Value string
}

// Login is basic-auth material.
type Login struct {
	Username string
	Password string
}

// APIKey is api-key material, applied to the header configured on the
// scheme.
type APIKey struct {
	Value string
}

// BearerScheme signs requests with "Authorization: Bearer <token>".
func BearerScheme() Scheme {
	return NewScheme(SchemeBearer, SignerFunc(
		func(req *http.Request, identity Identity, _ *configbag.Bag) error {
			token, ok := identity.Material().(Token)
			if !ok {
				return fmt.Errorf("bearer auth requires Token material, got %T", identity.Material())
			}
			if token.Value == "" {
				return fmt.Errorf("bearer auth requires a token")
			}
			req.Header.Set("Authorization", "Bearer "+token.Value)
			return nil
		},
	))
}

// BasicScheme signs requests with HTTP Basic credentials.
func BasicScheme() Scheme {
	return NewScheme(SchemeBasic, SignerFunc(
		func(req *http.Request, identity Identity, _ *configbag.Bag) error {
			login, ok := identity.Material().(Login)
			if !ok {
				return fmt.Errorf("basic auth requires Login material, got %T", identity.Material())
			}
			if login.Username == "" {
				return fmt.Errorf("basic auth requires a username")
			}
			encoded := base64.StdEncoding.EncodeToString(
				[]byte(login.Username + ":" + login.Password))
			req.Header.Set("Authorization", "Basic "+encoded)
			return nil
		},
	))
}

// APIKeyScheme signs requests by setting the given header to the key value.
func APIKeyScheme(header string) Scheme {
	return NewScheme(SchemeAPIKey, SignerFunc(
		func(req *http.Request, identity Identity, _ *configbag.Bag) error {
			key, ok := identity.Material().(APIKey)
			if !ok {
				return fmt.Errorf("api_key auth requires APIKey material, got %T", identity.Material())
			}
			if header == "" {
				return fmt.Errorf("api_key auth requires a header name")
			}
			if key.Value == "" {
				return fmt.Errorf("api_key auth requires a value")
			}
			req.Header.Set(header, key.Value)
			return nil
		},
	))
}

// StaticIdentityResolver always resolves the same identity. Useful for
// fixed credentials and tests.
func StaticIdentityResolver(identity Identity) IdentityResolver {
	return IdentityResolverFunc(
		func(context.Context, *configbag.Bag) (Identity, error) {
			return identity, nil
		},
	)
}
