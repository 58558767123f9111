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
	"os"

	"gopkg.in/yaml.v3"
)

// constraint kind tokens accepted in the policy file
const (
	kindClamp         = "clamp"
	kindMaxBytes      = "max_bytes"
	kindEnum          = "enum"
	kindDenySubstring = "deny_substring"
)

type fileRoot struct {
	Roles map[string]roleSpec `yaml:"roles"`
}

type roleSpec struct {
	AllowedActions       []string                    `yaml:"allowed_actions"`
	DeniedActions        []string                    `yaml:"denied_actions"`
	RateLimit            int                         `yaml:"rate_limit"`
	ParameterConstraints map[string][]constraintSpec `yaml:"parameter_constraints"`
}

type constraintSpec struct {
	Param  string   `yaml:"param"`
	Kind   string   `yaml:"kind"`
	Max    *float64 `yaml:"max"`
	Values []string `yaml:"values"`
}

// Load reads and validates the role policy table from a YAML file.
// Any validation failure is fatal to the caller: a half-understood policy
// table must never reach the engine.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy table %s: %w", path, err)
	}
	table, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid policy table %s: %w", path, err)
	}
	return table, nil
}

// Parse builds a validated Table from YAML bytes
func Parse(raw []byte) (*Table, error) {
	var root fileRoot
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(root.Roles) == 0 {
		return nil, fmt.Errorf("no roles defined")
	}

	roles := make(map[string]Role, len(root.Roles))
	for name, spec := range root.Roles {
		role, err := compileRole(name, spec)
		if err != nil {
			return nil, err
		}
		roles[name] = role
	}
	return &Table{roles: roles}, nil
}

func compileRole(name string, spec roleSpec) (Role, error) {
	if name == "" {
		return Role{}, fmt.Errorf("role with empty name")
	}

	role := Role{
		Name:      name,
		Allowed:   NewActionSet(spec.AllowedActions),
		Denied:    NewActionSet(spec.DeniedActions),
		RateLimit: spec.RateLimit,
	}

	if len(spec.ParameterConstraints) > 0 {
		role.Constraints = make(map[string][]Constraint, len(spec.ParameterConstraints))
		for action, specs := range spec.ParameterConstraints {
			if action == "" {
				return Role{}, fmt.Errorf("role %q: constraint entry with empty action name", name)
			}
			constraints := make([]Constraint, 0, len(specs))
			for i, cs := range specs {
				c, err := compileConstraint(cs)
				if err != nil {
					return Role{}, fmt.Errorf("role %q, action %q, constraint %d: %w", name, action, i, err)
				}
				constraints = append(constraints, c)
			}
			role.Constraints[action] = constraints
		}
	}

	return role, nil
}

func compileConstraint(spec constraintSpec) (Constraint, error) {
	if spec.Param == "" {
		return nil, fmt.Errorf("missing param")
	}
	switch spec.Kind {
	case kindClamp:
		if spec.Max == nil {
			return nil, fmt.Errorf("clamp requires max")
		}
		return Clamp{Parameter: spec.Param, Max: *spec.Max}, nil
	case kindMaxBytes:
		if spec.Max == nil || *spec.Max <= 0 {
			return nil, fmt.Errorf("max_bytes requires a positive max")
		}
		return MaxBytes{Parameter: spec.Param, Limit: int(*spec.Max)}, nil
	case kindEnum:
		if len(spec.Values) == 0 {
			return nil, fmt.Errorf("enum requires values")
		}
		return Enum{Parameter: spec.Param, Allowed: spec.Values}, nil
	case kindDenySubstring:
		if len(spec.Values) == 0 {
			return nil, fmt.Errorf("deny_substring requires values")
		}
		return DenySubstring{Parameter: spec.Param, Blocked: spec.Values}, nil
	case "":
		return nil, fmt.Errorf("missing kind")
	default:
		return nil, fmt.Errorf("unknown constraint kind %q", spec.Kind)
	}
}
