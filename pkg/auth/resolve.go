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
	"fmt"
	"net/http"

	"github.com/tombee/relay/pkg/clock"
	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/errors"
)

// ResolveAndSign chooses an auth scheme for the in-flight request, resolves
// an identity, and signs.
//
// It reads four things from the bag: the OptionResolver and its params, the
// scheme Registry, and the identity Resolvers. The ranked option list is
// walked in order; the first scheme with both a registered identity resolver
// and a registered signer wins, and later schemes are never attempted even
// if they would also resolve. When nothing in the list is usable the call
// fails with a construction error, a configuration bug that is never
// retryable.
//
// Identity-resolution and signing failures, by contrast, are ordinary
// attempt failures: callers feed them into the same classification funnel
// as transport errors.
func ResolveAndSign(ctx context.Context, clk clock.Clock, req *http.Request, bag *configbag.Bag) (SchemeID, error) {
	optionResolver, ok := configbag.Get[OptionResolver](bag)
	if !ok {
		return "", errors.Constructionf("no auth option resolver configured")
	}
	registry, ok := configbag.Get[*Registry](bag)
	if !ok {
		return "", errors.Constructionf("no auth scheme registry configured")
	}
	resolvers, _ := configbag.Get[Resolvers](bag)
	params, _ := configbag.Get[OptionResolverParams](bag)

	options, err := optionResolver.ResolveAuthOptions(params.Value)
	if err != nil {
		return "", errors.Construction(errors.Wrap(err, "resolving auth options"))
	}

	for _, id := range options {
		sch, ok := registry.Scheme(id)
		if !ok {
			continue
		}
		resolver, ok := resolvers.Resolver(id)
		if !ok {
			continue
		}

		identity, err := resolver.ResolveIdentity(ctx, bag)
		if err != nil {
			return id, errors.Wrapf(err, "resolving identity for %q", id)
		}
		if identity.Expired(clk.Now()) {
			return id, fmt.Errorf("identity for %q is expired", id)
		}
		if err := sch.Signer().SignRequest(req, identity, bag); err != nil {
			return id, errors.Wrapf(err, "signing with %q", id)
		}
		return id, nil
	}

	return "", errors.Constructionf("no auth scheme matched auth options")
}
