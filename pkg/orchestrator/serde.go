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

package orchestrator

import (
	"net/http"

	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/erasure"
)

// Serializer turns an erased operation input into a wire request.
// Serialization failures are construction errors and never retried.
type Serializer interface {
	SerializeInput(input erasure.Value, bag *configbag.Bag) (*http.Request, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(input erasure.Value, bag *configbag.Bag) (*http.Request, error)

func (f SerializerFunc) SerializeInput(input erasure.Value, bag *configbag.Bag) (*http.Request, error) {
	return f(input, bag)
}

// Deserializer turns a wire response into an erased operation output.
// A modeled service failure is returned as an error, typically a
// *errors.ServiceError, so the retry classifiers can see it.
type Deserializer interface {
	DeserializeResponse(resp *http.Response, bag *configbag.Bag) (erasure.Value, error)
}

// DeserializerFunc adapts a function to Deserializer.
type DeserializerFunc func(resp *http.Response, bag *configbag.Bag) (erasure.Value, error)

func (f DeserializerFunc) DeserializeResponse(resp *http.Response, bag *configbag.Bag) (erasure.Value, error) {
	return f(resp, bag)
}

// CannedSerializer hands out a fixed request (or failure) regardless of
// input. It exists for tests and examples.
type CannedSerializer struct {
	Req *http.Request
	Err error
}

func (s CannedSerializer) SerializeInput(erasure.Value, *configbag.Bag) (*http.Request, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Req, nil
}

// CannedDeserializer hands out a fixed output (or failure) regardless
// of response.
type CannedDeserializer struct {
	Out erasure.Value
	Err error
}

func (d CannedDeserializer) DeserializeResponse(*http.Response, *configbag.Bag) (erasure.Value, error) {
	if d.Err != nil {
		return erasure.Value{}, d.Err
	}
	return d.Out, nil
}
