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

// Package policy implements the deny-by-default authorization table.
//
// The table is loaded and validated once at startup and read-only for the
// lifetime of the process; changing policy requires a new deployment.
package policy

import (
	"fmt"
	"sort"
)

// Wildcard is the configuration token meaning "all actions". It is consumed
// by the loader; evaluation works on the ActionSet flag, never on the token,
// so an action literally named "*" cannot collide with it at runtime.
const Wildcard = "*"

// ActionSet is a set of action names with an explicit "matches everything"
// variant.
type ActionSet struct {
	all   bool
	names map[string]struct{}
}

// NewActionSet builds an ActionSet from configuration tokens. The Wildcard
// token switches the set to match-all.
func NewActionSet(tokens []string) ActionSet {
	s := ActionSet{names: make(map[string]struct{})}
	for _, t := range tokens {
		if t == Wildcard {
			s.all = true
			continue
		}
		s.names[t] = struct{}{}
	}
	return s
}

// Contains reports whether the set matches the given action
func (s ActionSet) Contains(action string) bool {
	if s.all {
		return true
	}
	_, ok := s.names[action]
	return ok
}

// IsEmpty reports whether the set matches nothing
func (s ActionSet) IsEmpty() bool {
	return !s.all && len(s.names) == 0
}

// Names returns the literal action names in sorted order, for display.
// The match-all variant reports the wildcard token.
func (s ActionSet) Names() []string {
	if s.all {
		return []string{Wildcard}
	}
	names := make([]string, 0, len(s.names))
	for n := range s.names {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Role is one entry of the policy table, immutable after load
type Role struct {
	Name        string
	Allowed     ActionSet
	Denied      ActionSet
	Constraints map[string][]Constraint // action name → constraints
	RateLimit   int                     // per sliding window; <= 0 means unlimited
}

// Table is the validated, immutable role policy table
type Table struct {
	roles map[string]Role
}

// Role looks up a role by name
func (t *Table) Role(name string) (Role, bool) {
	r, ok := t.roles[name]
	return r, ok
}

// Require verifies that every named role exists in the table. Used at
// startup to check the roles referenced by the identity mapping; a missing
// role must abort the process rather than silently deny (or worse, grant).
func (t *Table) Require(roles ...string) error {
	for _, name := range roles {
		if _, ok := t.roles[name]; !ok {
			return fmt.Errorf("role %q is referenced but not defined in the policy table", name)
		}
	}
	return nil
}

// Len returns the number of roles in the table
func (t *Table) Len() int {
	return len(t.roles)
}
