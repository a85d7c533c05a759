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

// Package interceptor lets callers observe and modify a request as it
// moves through the execution lifecycle. Hooks fire at fixed points
// between serialization, signing, transmission and deserialization.
package interceptor

import (
	"fmt"
	"net/http"

	"github.com/tombee/relay/pkg/erasure"
)

// Phase tracks where in the lifecycle an execution currently is. Phases
// only move forward; an attempt rewind is the one sanctioned exception.
type Phase int

const (
	PhaseBeforeSerialization Phase = iota
	PhaseSerialization
	PhaseBeforeTransmit
	PhaseTransmit
	PhaseBeforeDeserialization
	PhaseDeserialization
	PhaseAfterDeserialization
)

func (p Phase) String() string {
	switch p {
	case PhaseBeforeSerialization:
		return "before serialization"
	case PhaseSerialization:
		return "serialization"
	case PhaseBeforeTransmit:
		return "before transmit"
	case PhaseTransmit:
		return "transmit"
	case PhaseBeforeDeserialization:
		return "before deserialization"
	case PhaseDeserialization:
		return "deserialization"
	case PhaseAfterDeserialization:
		return "after deserialization"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Context carries the state of one operation execution: the erased
// input, the serialized request, the wire response, and the erased
// output or the error that ended the execution. Which fields are
// populated depends on the phase.
type Context struct {
	phase    Phase
	input    erasure.Value
	request  *http.Request
	response *http.Response
	output   erasure.Value
	err      error
}

// NewContext starts an execution in the before-serialization phase.
func NewContext(input erasure.Value) *Context {
	return &Context{input: input}
}

// Phase returns the current lifecycle phase.
func (c *Context) Phase() Phase { return c.phase }

// Input returns the operation input. It is only meaningful before
// serialization consumes it.
func (c *Context) Input() erasure.Value { return c.input }

// TakeInput removes and returns the input.
func (c *Context) TakeInput() erasure.Value {
	in := c.input
	c.input = erasure.Value{}
	return in
}

// Request returns the serialized request, nil before serialization.
func (c *Context) Request() *http.Request { return c.request }

// SetRequest installs the serialized request.
func (c *Context) SetRequest(req *http.Request) { c.request = req }

// Response returns the wire response, nil until transmission completes.
func (c *Context) Response() *http.Response { return c.response }

// SetResponse installs the wire response.
func (c *Context) SetResponse(resp *http.Response) { c.response = resp }

// Output returns the deserialized output.
func (c *Context) Output() erasure.Value { return c.output }

// SetOutput records a successful result and clears any earlier failure.
func (c *Context) SetOutput(out erasure.Value) {
	c.output = out
	c.err = nil
}

// Err returns the error that currently ends this execution, if any.
func (c *Context) Err() error { return c.err }

// Fail records err as the execution result. A later failure replaces an
// earlier one; the last word wins, matching hook ordering.
func (c *Context) Fail(err error) {
	c.err = err
	c.output = erasure.Value{}
}

// OutputOrError resolves the execution to its final result.
func (c *Context) OutputOrError() (erasure.Value, error) {
	if c.err != nil {
		return erasure.Value{}, c.err
	}
	return c.output, nil
}

// EnterSerialization moves into the serialization phase.
func (c *Context) EnterSerialization() { c.advance(PhaseSerialization) }

// EnterBeforeTransmit moves into the pre-transmit phase.
func (c *Context) EnterBeforeTransmit() { c.advance(PhaseBeforeTransmit) }

// EnterTransmit moves into the transmit phase.
func (c *Context) EnterTransmit() { c.advance(PhaseTransmit) }

// EnterBeforeDeserialization moves past transmission.
func (c *Context) EnterBeforeDeserialization() { c.advance(PhaseBeforeDeserialization) }

// EnterDeserialization moves into the deserialization phase.
func (c *Context) EnterDeserialization() { c.advance(PhaseDeserialization) }

// EnterAfterDeserialization moves into the final phase.
func (c *Context) EnterAfterDeserialization() { c.advance(PhaseAfterDeserialization) }

func (c *Context) advance(p Phase) {
	if p < c.phase {
		panic(fmt.Sprintf("execution phase moved backwards from %q to %q", c.phase, p))
	}
	c.phase = p
}

// ResetForRetry rewinds the context to the pre-transmit phase for
// another attempt. The caller supplies a fresh request; the previous
// attempt's response and result are discarded.
func (c *Context) ResetForRetry(req *http.Request) {
	c.phase = PhaseBeforeTransmit
	c.request = req
	c.response = nil
	c.output = erasure.Value{}
	c.err = nil
}
