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

package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/skillgate/internal/policy"
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
      run_code:
        - param: timeout_seconds
          kind: clamp
          max: 30
        - param: language
          kind: enum
          values: [python, bash]
      write_file:
        - param: content
          kind: max_bytes
          max: 16
        - param: path
          kind: deny_substring
          values: ["/etc/"]
  admin:
    allowed_actions: ["*"]
    rate_limit: 0
`

func testEngine(t *testing.T) *policy.Engine {
	t.Helper()
	table, err := policy.Parse([]byte(testPolicy))
	require.NoError(t, err)
	return policy.NewEngine(table)
}

func TestDenyWinsOverWildcardAllow(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("operator", "exec_shell", map[string]any{})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "explicitly denied")
	assert.Nil(t, d.SanitizedParams)
}

func TestUnknownRoleDenied(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("superuser", "search_web", nil)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "Unknown role")
}

func TestActionNotInAllowedSet(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("readonly", "run_code", map[string]any{"code": "print(1)"})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "not permitted")
	assert.Contains(t, d.Reason, "search_web")
}

func TestAllowedActionWithoutConstraintsPassesParamsThrough(t *testing.T) {
	e := testEngine(t)

	params := map[string]any{"query": "golang slog"}
	d := e.Authorize("readonly", "search_web", params)
	require.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
	assert.Equal(t, params, d.SanitizedParams)
}

func TestWildcardAllowsArbitraryActions(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("admin", "some_new_action", nil)
	assert.True(t, d.Allowed)
}

func TestNumericClamp(t *testing.T) {
	e := testEngine(t)

	// JSON numbers arrive as float64
	d := e.Authorize("operator", "run_code", map[string]any{
		"timeout_seconds": float64(120),
		"language":        "python",
	})
	require.True(t, d.Allowed)
	assert.Equal(t, float64(30), d.SanitizedParams["timeout_seconds"])
}

func TestClampNeverRaises(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("operator", "run_code", map[string]any{"timeout_seconds": 5})
	require.True(t, d.Allowed)
	assert.Equal(t, 5, d.SanitizedParams["timeout_seconds"])
}

func TestClampIsIdempotent(t *testing.T) {
	e := testEngine(t)

	first := e.Authorize("operator", "run_code", map[string]any{"timeout_seconds": float64(120)})
	require.True(t, first.Allowed)

	second := e.Authorize("operator", "run_code", first.SanitizedParams)
	require.True(t, second.Allowed)
	assert.Equal(t, first.SanitizedParams, second.SanitizedParams)
}

func TestInputParamsNeverMutated(t *testing.T) {
	e := testEngine(t)

	params := map[string]any{"timeout_seconds": float64(120)}
	d := e.Authorize("operator", "run_code", params)
	require.True(t, d.Allowed)

	assert.Equal(t, float64(120), params["timeout_seconds"])
	assert.Equal(t, float64(30), d.SanitizedParams["timeout_seconds"])
}

func TestOversizedParameterRejectedNotTruncated(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("operator", "write_file", map[string]any{
		"path":    "/tmp/out.txt",
		"content": "this payload is longer than sixteen bytes",
	})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "maximum size")
	assert.Nil(t, d.SanitizedParams)
}

func TestEnumConstraintRejectsUnknownValue(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("operator", "run_code", map[string]any{"language": "cobol"})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "not permitted")
}

func TestDenySubstringRejectsBlockedPath(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("operator", "write_file", map[string]any{
		"path":    "/etc/passwd",
		"content": "short",
	})
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "blocked pattern")
}

func TestConstraintOnAbsentParameterIsIgnored(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("operator", "run_code", map[string]any{"code": "echo hi"})
	require.True(t, d.Allowed)
	assert.Equal(t, "echo hi", d.SanitizedParams["code"])
}

func TestNilParamsAllowed(t *testing.T) {
	e := testEngine(t)

	d := e.Authorize("readonly", "get_status", nil)
	require.True(t, d.Allowed)
	assert.NotNil(t, d.SanitizedParams)
}
