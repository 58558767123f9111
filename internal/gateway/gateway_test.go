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

package gateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/skillgate/internal/audit"
	"github.com/skillgate/skillgate/internal/gateway"
	"github.com/skillgate/skillgate/internal/identity"
	"github.com/skillgate/skillgate/internal/policy"
	"github.com/skillgate/skillgate/internal/ratelimit"
	"github.com/skillgate/skillgate/internal/runtime"
)

const testPolicy = `
roles:
  readonly:
    allowed_actions: [search_web, get_status]
    rate_limit: 10
  operator:
    allowed_actions: ["*"]
    denied_actions: [exec_shell]
    rate_limit: 30
    parameter_constraints:
      tail_logs:
        - param: lines
          kind: clamp
          max: 100
  impatient:
    allowed_actions: [search_web]
    rate_limit: 1
`

type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Invoke(ctx context.Context, instruction string) (string, error) {
	args := m.Called(ctx, instruction)
	return args.String(0), args.Error(1)
}

// countingAuthorizer wraps the real engine and counts invocations so tests
// can prove the policy stage was skipped
type countingAuthorizer struct {
	engine *policy.Engine
	calls  int
}

func (a *countingAuthorizer) Authorize(role, action string, params map[string]any) policy.Decision {
	a.calls++
	return a.engine.Authorize(role, action, params)
}

type panickyAuthorizer struct{}

func (panickyAuthorizer) Authorize(role, action string, params map[string]any) policy.Decision {
	panic("authorizer bug")
}

// capturingAudit records events for assertions
type capturingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *capturingAudit) Log(ctx context.Context, event audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *capturingAudit) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	gw      *gateway.Gateway
	runtime *mockRuntime
	authz   *countingAuthorizer
	audit   *capturingAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	table, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)

	resolver := identity.NewResolver(map[string]string{
		"U-OPS":  "operator",
		"U-RUSH": "impatient",
	}, "readonly")
	rt := &mockRuntime{}
	authz := &countingAuthorizer{engine: policy.NewEngine(table)}
	auditLog := &capturingAudit{}

	gw := gateway.New(
		resolver,
		ratelimit.New(time.Minute),
		table,
		authz,
		rt,
		auditLog,
		nil,
		time.Minute,
	)
	return &fixture{gw: gw, runtime: rt, authz: authz, audit: auditLog}
}

func TestAllowedActionReachesRuntime(t *testing.T) {
	f := newFixture(t)
	f.runtime.On("Invoke", mock.Anything, "Search the web for: golang slog").
		Return("here are the results", nil)

	res := f.gw.Handle(context.Background(), "U-UNKNOWN", "search_web",
		map[string]any{"query": "golang slog"})

	assert.True(t, res.Allowed)
	assert.Equal(t, gateway.StateCompleted, res.State)
	assert.Equal(t, "here are the results", res.Response)
	assert.Equal(t, "readonly", res.Role) // unmapped caller got the default role
	assert.Empty(t, res.Reason)
	f.runtime.AssertExpectations(t)
	assert.Equal(t, []string{audit.TypeActionAllowed}, f.audit.types())
}

func TestDeniedActionNeverReachesRuntime(t *testing.T) {
	f := newFixture(t)

	res := f.gw.Handle(context.Background(), "U-ANON", "run_code",
		map[string]any{"code": "print(1)"})

	assert.False(t, res.Allowed)
	assert.Equal(t, gateway.StateDenied, res.State)
	assert.Contains(t, res.Reason, "not permitted")
	f.runtime.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
	assert.Equal(t, []string{audit.TypeActionDenied}, f.audit.types())
}

func TestExplicitDenyShortCircuits(t *testing.T) {
	f := newFixture(t)

	res := f.gw.Handle(context.Background(), "U-OPS", "exec_shell", nil)

	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "explicitly denied")
	f.runtime.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestClampedParamsReachRuntime(t *testing.T) {
	f := newFixture(t)

	// tail_logs has no instruction template, so the generic form carries
	// the sanitized parameter verbatim
	f.runtime.On("Invoke", mock.Anything, "Action: tail_logs\nParameters:\n  lines: 100").
		Return("log tail", nil)

	res := f.gw.Handle(context.Background(), "U-OPS", "tail_logs",
		map[string]any{"lines": float64(5000)})

	assert.True(t, res.Allowed)
	f.runtime.AssertExpectations(t)
}

func TestRateLimitSkipsPolicyCheck(t *testing.T) {
	f := newFixture(t)
	f.runtime.On("Invoke", mock.Anything, mock.Anything).Return("ok", nil)

	first := f.gw.Handle(context.Background(), "U-RUSH", "search_web",
		map[string]any{"query": "one"})
	require.True(t, first.Allowed)
	require.Equal(t, 1, f.authz.calls)

	second := f.gw.Handle(context.Background(), "U-RUSH", "search_web",
		map[string]any{"query": "two"})
	assert.False(t, second.Allowed)
	assert.Equal(t, gateway.StateDenied, second.State)
	assert.Contains(t, second.Reason, "Rate limit exceeded")

	// the rejected request never consulted the policy engine
	assert.Equal(t, 1, f.authz.calls)
	assert.Equal(t, []string{audit.TypeActionAllowed, audit.TypeRateLimited}, f.audit.types())
}

func TestRuntimeFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.runtime.On("Invoke", mock.Anything, mock.Anything).
		Return("", errors.New("connection refused to 10.0.0.7:3000"))

	res := f.gw.Handle(context.Background(), "U-OPS", "get_status", nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, gateway.StateError, res.State)
	// internal detail must not leak to the caller
	assert.NotContains(t, res.Reason, "10.0.0.7")
	assert.NotContains(t, res.Reason, "connection refused")
	assert.NotEmpty(t, res.Reason)
	assert.Equal(t, []string{audit.TypeRuntimeError}, f.audit.types())
}

func TestRuntimeUnavailableIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.runtime.On("Invoke", mock.Anything, mock.Anything).
		Return("", runtime.ErrUnavailable)

	res := f.gw.Handle(context.Background(), "U-OPS", "get_status", nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, gateway.StateError, res.State)
}

func TestPanicFailsClosed(t *testing.T) {
	table, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)

	rt := &mockRuntime{}
	gw := gateway.New(
		identity.NewResolver(nil, "readonly"),
		ratelimit.New(time.Minute),
		table,
		panickyAuthorizer{},
		rt,
		audit.NewSlogLogger(),
		nil,
		time.Minute,
	)

	res := gw.Handle(context.Background(), "U-ANY", "search_web", nil)

	assert.False(t, res.Allowed)
	assert.Equal(t, gateway.StateError, res.State)
	assert.NotContains(t, res.Reason, "authorizer bug")
	rt.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestUnknownRoleSkipsRateLimitAndIsDenied(t *testing.T) {
	table, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)

	rt := &mockRuntime{}
	auditLog := &capturingAudit{}
	// resolver default role missing from the table; startup validation
	// would normally reject this, the engine still denies it
	gw := gateway.New(
		identity.NewResolver(nil, "ghost"),
		ratelimit.New(time.Minute),
		table,
		&countingAuthorizer{engine: policy.NewEngine(table)},
		rt,
		auditLog,
		nil,
		time.Minute,
	)

	res := gw.Handle(context.Background(), "U-ANY", "search_web", nil)

	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "Unknown role")
	rt.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}
