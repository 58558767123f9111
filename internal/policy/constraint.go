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
	"strings"
)

// Constraint is one parameter rule of a closed set of kinds. The unexported
// apply method keeps the set closed: adding a kind is a deliberate change to
// this package, not an open extension point.
//
// Clamp silently caps; every other kind rejects. The asymmetry is on
// purpose: a capped number still expresses the caller's intent, a truncated
// payload may not.
type Constraint interface {
	// Param names the parameter the constraint applies to
	Param() string

	// apply returns the sanitized value, or an error carrying a
	// user-presentable denial reason
	apply(value any) (any, error)
}

// Clamp caps a numeric parameter at Max. Values at or below Max, and
// non-numeric values, pass through unchanged.
type Clamp struct {
	Parameter string
	Max       float64
}

func (c Clamp) Param() string { return c.Parameter }

func (c Clamp) apply(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if float64(v) > c.Max {
			return int(c.Max), nil
		}
	case int64:
		if float64(v) > c.Max {
			return int64(c.Max), nil
		}
	case float64:
		if v > c.Max {
			return c.Max, nil
		}
	}
	return value, nil
}

// MaxBytes rejects a string parameter longer than Limit bytes. Oversized
// payloads are denied, never truncated.
type MaxBytes struct {
	Parameter string
	Limit     int
}

func (c MaxBytes) Param() string { return c.Parameter }

func (c MaxBytes) apply(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	if len(s) > c.Limit {
		return nil, fmt.Errorf("parameter %q exceeds the maximum size of %d bytes", c.Parameter, c.Limit)
	}
	return value, nil
}

// Enum rejects a string parameter whose value is not in the allowed set.
// Empty and non-string values pass through.
type Enum struct {
	Parameter string
	Allowed   []string
}

func (c Enum) Param() string { return c.Parameter }

func (c Enum) apply(value any) (any, error) {
	s, ok := value.(string)
	if !ok || s == "" {
		return value, nil
	}
	for _, a := range c.Allowed {
		if s == a {
			return value, nil
		}
	}
	return nil, fmt.Errorf("value %q is not permitted for parameter %q; allowed: %s",
		s, c.Parameter, strings.Join(c.Allowed, ", "))
}

// DenySubstring rejects a parameter whose string form contains any blocked
// fragment. Covers sensitive path prefixes and internal network patterns.
type DenySubstring struct {
	Parameter string
	Blocked   []string
}

func (c DenySubstring) Param() string { return c.Parameter }

func (c DenySubstring) apply(value any) (any, error) {
	s := fmt.Sprint(value)
	for _, b := range c.Blocked {
		if b != "" && strings.Contains(s, b) {
			return nil, fmt.Errorf("parameter %q contains a blocked pattern", c.Parameter)
		}
	}
	return value, nil
}
