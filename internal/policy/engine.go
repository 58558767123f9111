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

package policy

import (
	"fmt"
	"maps"
	"strings"
)

// Decision is the result of an authorization check
type Decision struct {
	Allowed         bool
	Reason          string         // user-presentable denial reason, empty when allowed
	SanitizedParams map[string]any // nil when denied
}

// Engine evaluates action requests against the role policy table.
// Authorize is a pure function of (table, role, action, params); the engine
// holds no mutable state and is safe for concurrent use.
type Engine struct {
	table *Table
}

// NewEngine creates an engine over a loaded table
func NewEngine(table *Table) *Engine {
	return &Engine{table: table}
}

// Authorize decides whether role may perform action with params and, when
// allowed, produces the sanitized parameter set.
//
// Evaluation order is part of the security contract:
//  1. unknown role → deny
//  2. explicit deny → deny, regardless of the allowed set (wildcard included)
//  3. allowed set (literal or match-all) → otherwise deny
//  4. parameter constraints → clamp or deny
//
// The input params map is never mutated; sanitization writes to a copy.
func (e *Engine) Authorize(role, action string, params map[string]any) Decision {
	cfg, ok := e.table.Role(role)
	if !ok {
		return deny(fmt.Sprintf("Unknown role '%s'. Contact an admin.", role))
	}

	if cfg.Denied.Contains(action) {
		return deny(fmt.Sprintf("Action '%s' is explicitly denied for role '%s'.", action, role))
	}

	if !cfg.Allowed.Contains(action) {
		allowed := "none"
		if !cfg.Allowed.IsEmpty() {
			allowed = strings.Join(cfg.Allowed.Names(), ", ")
		}
		return deny(fmt.Sprintf("Action '%s' is not permitted for role '%s'. Allowed actions: %s.",
			action, role, allowed))
	}

	sanitized, err := sanitize(cfg.Constraints[action], params)
	if err != nil {
		return deny(err.Error())
	}

	return Decision{Allowed: true, SanitizedParams: sanitized}
}

// sanitize applies the action's constraints to a copy of params.
// Parameters without a declared constraint, and constraints whose parameter
// is absent, pass through untouched. Clamping is idempotent: applying the
// same constraints to already-sanitized params is a no-op.
func sanitize(constraints []Constraint, params map[string]any) (map[string]any, error) {
	sanitized := maps.Clone(params)
	if sanitized == nil {
		sanitized = map[string]any{}
	}

	for _, c := range constraints {
		value, present := sanitized[c.Param()]
		if !present {
			continue
		}
		out, err := c.apply(value)
		if err != nil {
			return nil, err
		}
		sanitized[c.Param()] = out
	}
	return sanitized, nil
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
