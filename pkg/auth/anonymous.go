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

	"github.com/tombee/relay/pkg/configbag"
)

// anonymousMaterial is the material of the anonymous identity.
type anonymousMaterial struct{}

// AnonymousScheme returns the no-op scheme used when a service permits
// unauthenticated calls. Its identity resolves immediately and never
// expires; its signer leaves the request untouched.
//
// Anonymous is never silently preferred over a real scheme: selecting it
// requires installing it as the only entry in the operation's auth options,
// which is what InstallAnonymousAuth does.
func AnonymousScheme() Scheme {
	return NewScheme(SchemeAnonymous, SignerFunc(
		func(*http.Request, Identity, *configbag.Bag) error { return nil },
	))
}

// AnonymousIdentityResolver resolves the anonymous identity.
func AnonymousIdentityResolver() IdentityResolver {
	return IdentityResolverFunc(
		func(context.Context, *configbag.Bag) (Identity, error) {
			return NewIdentity(anonymousMaterial{}), nil
		},
	)
}

// InstallAnonymousAuth configures the bag for unauthenticated calls: the
// anonymous scheme becomes the only auth option, with its resolver and
// registry entries in place.
func InstallAnonymousAuth(bag *configbag.Bag) {
	configbag.Set[OptionResolver](bag, NewStaticOptionResolver(SchemeAnonymous))
	configbag.Set(bag, NewRegistry(AnonymousScheme()))
	configbag.Set(bag, NewResolvers().With(SchemeAnonymous, AnonymousIdentityResolver()))
}
