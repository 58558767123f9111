// Copyright 2026 The Skillgate Authors
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

// Package gateway composes identity resolution, rate limiting, policy
// evaluation, and runtime dispatch into a single decision pipeline.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	"github.com/skillgate/skillgate/internal/audit"
	"github.com/skillgate/skillgate/internal/identity"
	"github.com/skillgate/skillgate/internal/observability/logger"
	"github.com/skillgate/skillgate/internal/observability/metrics"
	"github.com/skillgate/skillgate/internal/policy"
	"github.com/skillgate/skillgate/internal/ratelimit"
	"github.com/skillgate/skillgate/internal/runtime"
)

// State is the terminal state of one pipeline run
type State string

const (
	StateCompleted State = "completed"
	StateDenied    State = "denied"
	StateError     State = "error"
)

// genericFailure is the only failure text external callers ever see for
// runtime or internal errors; details stay in the logs.
const genericFailure = "The request was approved but could not be executed. Please try again later."

// Authorizer decides whether a role may perform an action with params
type Authorizer interface {
	Authorize(role, action string, params map[string]any) policy.Decision
}

// RuntimeClient submits an instruction to the agent runtime
type RuntimeClient interface {
	Invoke(ctx context.Context, instruction string) (string, error)
}

// Result is the caller-visible outcome of one action request
type Result struct {
	Allowed  bool
	Response string // runtime reply text, empty unless completed
	Reason   string // denial or failure explanation, empty when completed
	Role     string
	Action   string
	CallerID string
	State    State
}

// Gateway is the single enforcement point between the chat platform and the
// runtime. Safe for concurrent use; the only mutable state it touches is
// the rate limiter's synchronized window store.
type Gateway struct {
	resolver  *identity.Resolver
	limiter   *ratelimit.Limiter
	table     *policy.Table
	authz     Authorizer
	runtime   RuntimeClient
	audit     audit.Logger
	meter     *metrics.Meter
	window    time.Duration
	templates map[string]*template.Template
}

// New creates a gateway over the given pipeline stages
func New(
	resolver *identity.Resolver,
	limiter *ratelimit.Limiter,
	table *policy.Table,
	authz Authorizer,
	runtimeClient RuntimeClient,
	auditLogger audit.Logger,
	meter *metrics.Meter,
	window time.Duration,
) *Gateway {
	return &Gateway{
		resolver:  resolver,
		limiter:   limiter,
		table:     table,
		authz:     authz,
		runtime:   runtimeClient,
		audit:     auditLogger,
		meter:     meter,
		window:    window,
		templates: parseTemplates(),
	}
}

// Handle runs one action request through the pipeline:
// resolve → rate check → authorize → dispatch. Any stage may short-circuit
// to a terminal denial; later stages are then skipped. Every path, including
// a panic in a stage, resolves to a structured Result — the pipeline fails
// closed and never lets a fault escape to the transport as a permissive or
// ambiguous outcome.
func (g *Gateway) Handle(ctx context.Context, callerID, action string, params map[string]any) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "pipeline panic",
				logger.Component("gateway"),
				logger.CallerID(callerID),
				logger.Action(action),
				slog.Any("panic", r),
			)
			result = Result{
				Allowed:  false,
				Reason:   genericFailure,
				Action:   action,
				CallerID: callerID,
				State:    StateError,
			}
		}
		g.meter.RecordDecision(ctx, string(result.State), result.Role, action)
		g.meter.RecordPipelineDuration(ctx, time.Since(start).Seconds(), string(result.State))
	}()

	// Stage 1: resolve identity. Cannot fail; unknown callers get the
	// default role.
	id := g.resolver.Resolve(callerID)

	// Stage 2: rate check under the role's configured limit. Rejection
	// skips the policy check entirely: no policy information leaks to a
	// caller who is hammering the gateway, and no work is wasted.
	// An unknown role has no configured limit; the policy stage will deny
	// it anyway.
	limit := 0
	if cfg, ok := g.table.Role(id.Role); ok {
		limit = cfg.RateLimit
	}
	if !g.limiter.Allow(id.CallerID, limit) {
		reason := fmt.Sprintf("Rate limit exceeded for role '%s' (%d requests per %s). Try again in a moment.",
			id.Role, limit, g.window)
		slog.WarnContext(ctx, "rate limit exceeded",
			logger.Component("gateway"),
			logger.CallerID(id.CallerID),
			logger.Role(id.Role),
			logger.Action(action),
		)
		g.audit.Log(ctx, audit.Event{
			Type:     audit.TypeRateLimited,
			CallerID: id.CallerID,
			Role:     id.Role,
			Action:   action,
		})
		return g.denied(id, action, reason)
	}

	// Stage 3: authorize and sanitize
	decision := g.authz.Authorize(id.Role, action, params)
	if !decision.Allowed {
		slog.InfoContext(ctx, "action denied",
			logger.Component("gateway"),
			logger.CallerID(id.CallerID),
			logger.Role(id.Role),
			logger.Action(action),
			logger.Reason(decision.Reason),
		)
		g.audit.Log(ctx, audit.Event{
			Type:     audit.TypeActionDenied,
			CallerID: id.CallerID,
			Role:     id.Role,
			Action:   action,
			Reason:   decision.Reason,
		})
		return g.denied(id, action, decision.Reason)
	}

	// Stage 4: dispatch to the runtime with the sanitized params
	instruction := g.buildInstruction(action, decision.SanitizedParams)
	response, err := g.runtime.Invoke(ctx, instruction)
	if err != nil {
		slog.ErrorContext(ctx, "runtime invocation failed",
			logger.Component("gateway"),
			logger.CallerID(id.CallerID),
			logger.Role(id.Role),
			logger.Action(action),
			logger.Error(err),
			slog.Bool("unavailable", errors.Is(err, runtime.ErrUnavailable)),
		)
		g.meter.RecordRuntimeError(ctx, action)
		g.audit.Log(ctx, audit.Event{
			Type:     audit.TypeRuntimeError,
			CallerID: id.CallerID,
			Role:     id.Role,
			Action:   action,
			Reason:   err.Error(),
		})
		return Result{
			Allowed:  false,
			Reason:   genericFailure,
			Role:     id.Role,
			Action:   action,
			CallerID: id.CallerID,
			State:    StateError,
		}
	}

	slog.InfoContext(ctx, "action completed",
		logger.Component("gateway"),
		logger.CallerID(id.CallerID),
		logger.Role(id.Role),
		logger.Action(action),
		logger.ResponseLen(len(response)),
	)
	g.audit.Log(ctx, audit.Event{
		Type:     audit.TypeActionAllowed,
		CallerID: id.CallerID,
		Role:     id.Role,
		Action:   action,
	})
	return Result{
		Allowed:  true,
		Response: response,
		Role:     id.Role,
		Action:   action,
		CallerID: id.CallerID,
		State:    StateCompleted,
	}
}

func (g *Gateway) denied(id identity.Identity, action, reason string) Result {
	return Result{
		Allowed:  false,
		Reason:   reason,
		Role:     id.Role,
		Action:   action,
		CallerID: id.CallerID,
		State:    StateDenied,
	}
}
