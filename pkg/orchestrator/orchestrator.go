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

// Package orchestrator drives an operation through its full lifecycle:
// serialization, auth resolution and signing, transmission with
// retries, and deserialization, firing interceptor hooks at every
// step.
package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/relay/internal/log"
	"github.com/tombee/relay/internal/metrics"
	"github.com/tombee/relay/pkg/auth"
	"github.com/tombee/relay/pkg/clock"
	"github.com/tombee/relay/pkg/configbag"
	"github.com/tombee/relay/pkg/erasure"
	"github.com/tombee/relay/pkg/errors"
	"github.com/tombee/relay/pkg/interceptor"
	"github.com/tombee/relay/pkg/retry"
	"github.com/tombee/relay/pkg/transport"
)

// Config assembles the runtime components for an Orchestrator.
// Serializer, Deserializer and Connector are required; everything else
// has working defaults.
type Config struct {
	Serializer   Serializer
	Deserializer Deserializer
	Connector    transport.Connector

	// Strategy defaults to retry.NewStandard().
	Strategy retry.Strategy

	// Interceptors defaults to an empty registry.
	Interceptors *interceptor.Registry

	// Clock and Sleeper default to the system clock. When Clock also
	// implements clock.Sleeper and Sleeper is nil, Clock is used for
	// both, which is how tests keep time deterministic.
	Clock   clock.Clock
	Sleeper clock.Sleeper

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// AttemptTimeout bounds each attempt; zero means unbounded.
	AttemptTimeout time.Duration

	// OperationTimeout bounds the whole operation, retries and
	// inter-attempt delays included; zero means unbounded.
	OperationTimeout time.Duration

	// MaxRequestRate, when set, paces outgoing attempts.
	MaxRequestRate *rate.Limiter
}

// Orchestrator executes operations. It is safe for concurrent use.
type Orchestrator struct {
	serializer   Serializer
	deserializer Deserializer
	connector    transport.Connector
	strategy     retry.Strategy
	interceptors *interceptor.Registry
	clock        clock.Clock
	sleeper      clock.Sleeper
	logger       *slog.Logger
	tracer       trace.Tracer
	pacer        *rate.Limiter

	attemptTimeout   time.Duration
	operationTimeout time.Duration
}

// New validates cfg and builds an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Serializer == nil {
		return nil, errors.Constructionf("a serializer is required")
	}
	if cfg.Deserializer == nil {
		return nil, errors.Constructionf("a deserializer is required")
	}
	if cfg.Connector == nil {
		return nil, errors.Constructionf("a connector is required")
	}

	o := &Orchestrator{
		serializer:       cfg.Serializer,
		deserializer:     cfg.Deserializer,
		connector:        cfg.Connector,
		strategy:         cfg.Strategy,
		interceptors:     cfg.Interceptors,
		clock:            cfg.Clock,
		sleeper:          cfg.Sleeper,
		logger:           cfg.Logger,
		tracer:           otel.Tracer("relay.orchestrator"),
		pacer:            cfg.MaxRequestRate,
		attemptTimeout:   cfg.AttemptTimeout,
		operationTimeout: cfg.OperationTimeout,
	}
	if o.strategy == nil {
		o.strategy = retry.NewStandard()
	}
	if o.interceptors == nil {
		o.interceptors = interceptor.NewRegistry()
	}
	if o.clock == nil {
		o.clock = clock.System{}
	}
	if o.sleeper == nil {
		if s, ok := o.clock.(clock.Sleeper); ok {
			o.sleeper = s
		} else {
			o.sleeper = clock.System{}
		}
	}
	if o.logger == nil {
		o.logger = log.Discard()
	}
	return o, nil
}

// Execute runs one operation to completion. The bag carries the
// operation's layered configuration; passing nil starts from an empty
// bag. Auth options, scheme registries and retry classifiers are read
// from it, and a default classifier chain is installed when absent.
func (o *Orchestrator) Execute(ctx context.Context, operation string, input erasure.Value, bag *configbag.Bag) (erasure.Value, error) {
	if bag == nil {
		bag = configbag.New()
	}
	if _, ok := configbag.Get[retry.Classifiers](bag); !ok {
		configbag.Set(bag, retry.DefaultClassifiers())
	}

	requestID := uuid.NewString()
	logger := log.WithRequestID(log.WithOperation(o.logger, operation), requestID)

	inFlightDone := metrics.OperationStarted()
	defer inFlightDone()
	start := o.clock.Now()

	ctx, span := o.tracer.Start(ctx, operation,
		trace.WithAttributes(attribute.String("relay.request_id", requestID)))
	defer span.End()

	if o.operationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.operationTimeout)
		defer cancel()
	}

	ictx := interceptor.NewContext(input)
	if err := o.interceptors.ReadBeforeExecution(ictx, bag); err != nil {
		ictx.Fail(errors.Construction(err))
	}
	if ictx.Err() == nil {
		o.tryOp(ctx, ictx, bag, logger, operation)
	}
	o.finallyOp(ictx, bag)

	out, err := ictx.OutputOrError()
	if err != nil && o.operationTimeout > 0 && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = &errors.TimeoutError{Operation: true, After: o.operationTimeout}
	}

	elapsed := o.clock.Now().Sub(start)
	if err != nil {
		kind := errors.TypeOf(err)
		metrics.RecordFailure(operation, kind)
		metrics.ObserveDuration(operation, "failure", elapsed)
		span.SetStatus(codes.Error, kind)
		span.RecordError(err)
		logger.Error("operation failed",
			log.Error(err),
			slog.String(log.ErrorKindKey, kind),
			slog.Int64(log.DurationKey, elapsed.Milliseconds()))
		return erasure.Value{}, err
	}

	metrics.ObserveDuration(operation, "success", elapsed)
	logger.Info("operation complete",
		slog.Int64(log.DurationKey, elapsed.Milliseconds()))
	return out, nil
}

// halt records err on the context and reports whether the caller must
// stop the current scope.
func halt(ictx *interceptor.Context, err error) bool {
	if err != nil {
		ictx.Fail(err)
		return true
	}
	return false
}

func (o *Orchestrator) tryOp(ctx context.Context, ictx *interceptor.Context, bag *configbag.Bag, logger *slog.Logger, operation string) {
	if halt(ictx, o.interceptors.ReadBeforeSerialization(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ModifyBeforeSerialization(ictx, bag)) {
		return
	}

	ictx.EnterSerialization()
	req, err := o.serializer.SerializeInput(ictx.TakeInput(), bag)
	if err != nil {
		ictx.Fail(errors.Construction(err))
		return
	}
	ictx.SetRequest(req.WithContext(ctx))

	ictx.EnterBeforeTransmit()
	if halt(ictx, o.interceptors.ReadAfterSerialization(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ModifyBeforeRetryLoop(ictx, bag)) {
		return
	}

	verdict, err := o.strategy.ShouldAttemptInitialRequest(bag)
	if err != nil {
		ictx.Fail(err)
		return
	}
	if !verdict.Attempt() {
		ictx.Fail(errors.Constructionf("the retry strategy refused the initial attempt"))
		return
	}
	if d := verdict.Delay(); d > 0 {
		logger.Debug("delaying initial attempt", slog.Duration(log.RetryDelayKey, d))
		if err := o.sleeper.Sleep(ctx, d); err != nil {
			ictx.Fail(err)
			return
		}
	}

	// Interceptors may have swapped the request before the loop; the
	// loop replays retries from this template.
	template := ictx.Request()

	for attempt := 1; ; attempt++ {
		layer := bag.PushLayer(fmt.Sprintf("attempt-%d", attempt))
		configbag.SetIn(layer, retry.Attempts{Count: attempt})
		metrics.RecordAttempt(operation)

		o.tryAttempt(ctx, ictx, bag, logger, operation, attempt)
		o.finallyAttempt(ictx, bag)

		verdict, err := o.strategy.ShouldAttemptRetry(
			retry.Attempt{Err: ictx.Err(), Response: ictx.Response()}, bag)
		bag.PopLayer()
		if err != nil {
			ictx.Fail(err)
			return
		}
		if !verdict.Attempt() {
			return
		}

		metrics.RecordRetry(operation)
		logger.Info("retrying request",
			slog.Int(log.AttemptKey, attempt),
			slog.Duration(log.RetryDelayKey, verdict.Delay()),
			slog.String(log.ErrorKindKey, errors.TypeOf(ictx.Err())))

		if resp := ictx.Response(); resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if d := verdict.Delay(); d > 0 {
			if err := o.sleeper.Sleep(ctx, d); err != nil {
				ictx.Fail(err)
				return
			}
		}

		next, err := replayRequest(template)
		if err != nil {
			logger.Warn("surfacing last failure instead of retrying", log.Error(err))
			return
		}
		ictx.ResetForRetry(next)
	}
}

func (o *Orchestrator) tryAttempt(ctx context.Context, ictx *interceptor.Context, bag *configbag.Bag, logger *slog.Logger, operation string, attempt int) {
	ctx, span := o.tracer.Start(ctx, operation+" attempt",
		trace.WithAttributes(attribute.Int("relay.attempt", attempt)))
	defer span.End()

	if halt(ictx, o.interceptors.ReadBeforeAttempt(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ModifyBeforeSigning(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ReadBeforeSigning(ictx, bag)) {
		return
	}

	scheme, err := auth.ResolveAndSign(ctx, o.clock, ictx.Request(), bag)
	if err != nil {
		ictx.Fail(err)
		return
	}
	logger.Debug("request signed",
		slog.String(log.SchemeKey, string(scheme)),
		slog.Int(log.AttemptKey, attempt))

	if halt(ictx, o.interceptors.ReadAfterSigning(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ModifyBeforeTransmit(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ReadBeforeTransmit(ictx, bag)) {
		return
	}

	ictx.EnterTransmit()
	if o.pacer != nil {
		if err := o.pacer.Wait(ctx); err != nil {
			ictx.Fail(err)
			return
		}
	}

	attemptCtx := ctx
	if o.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.attemptTimeout)
		defer cancel()
	}

	resp, err := o.connector.Call(attemptCtx, ictx.Request().WithContext(attemptCtx))
	if err != nil {
		if o.attemptTimeout > 0 && stderrors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			ictx.Fail(&errors.TimeoutError{After: o.attemptTimeout})
		} else {
			ictx.Fail(errors.Dispatch(err))
		}
		return
	}
	ictx.SetResponse(resp)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	ictx.EnterBeforeDeserialization()
	if halt(ictx, o.interceptors.ReadAfterTransmit(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ModifyBeforeDeserialization(ictx, bag)) {
		return
	}
	if halt(ictx, o.interceptors.ReadBeforeDeserialization(ictx, bag)) {
		return
	}

	ictx.EnterDeserialization()
	out, err := o.deserializer.DeserializeResponse(ictx.Response(), bag)
	if err != nil {
		// A deserializer may return a modeled error from the taxonomy,
		// most often a ServiceError. Anything else means the response
		// itself could not be understood.
		var classified errors.ErrorClassifier
		if !stderrors.As(err, &classified) {
			err = &errors.ResponseError{Cause: err, Raw: ictx.Response()}
		}
		ictx.Fail(err)
		return
	}
	ictx.SetOutput(out)

	ictx.EnterAfterDeserialization()
	if halt(ictx, o.interceptors.ReadAfterDeserialization(ictx, bag)) {
		return
	}
}

// finallyAttempt always runs, even when the attempt halted early. A
// hook failure here replaces the attempt's result but does not stop
// the remaining hooks.
func (o *Orchestrator) finallyAttempt(ictx *interceptor.Context, bag *configbag.Bag) {
	if err := o.interceptors.ModifyBeforeAttemptCompletion(ictx, bag); err != nil {
		ictx.Fail(err)
	}
	if err := o.interceptors.ReadAfterAttempt(ictx, bag); err != nil {
		ictx.Fail(err)
	}
}

func (o *Orchestrator) finallyOp(ictx *interceptor.Context, bag *configbag.Bag) {
	if err := o.interceptors.ModifyBeforeCompletion(ictx, bag); err != nil {
		ictx.Fail(err)
	}
	if err := o.interceptors.ReadAfterExecution(ictx, bag); err != nil {
		ictx.Fail(err)
	}
}

// replayRequest clones the serialized request for another attempt.
// Requests with a one-shot body cannot be replayed.
func replayRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errors.Constructionf("request body is not replayable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, errors.Wrap(err, "replaying request body")
	}
	clone.Body = body
	return clone, nil
}
