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

// Package transport defines the narrow interface the runtime consumes from
// the wire-level HTTP layer, plus response-body guards. The runtime does not
// own connection pooling or TLS; any http.RoundTripper-backed client can sit
// behind Connector.
package transport

import (
	"context"
	"net/http"
)

// Connector sends a fully signed request and returns the raw response. A
// returned error is a dispatch failure: the request may or may not have
// reached the service, and no response was received.
type Connector interface {
	Call(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Call implements Connector.
func (f ConnectorFunc) Call(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// NewHTTPConnector wraps an *http.Client as a Connector. A nil client uses
// http.DefaultClient.
func NewHTTPConnector(client *http.Client) Connector {
	if client == nil {
		client = http.DefaultClient
	}
	return ConnectorFunc(func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return client.Do(req.WithContext(ctx))
	})
}
