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

// Package identity maps opaque caller identifiers to role names.
//
// The mapping is loaded once at startup and read-only afterwards. Unknown
// callers resolve to the default role rather than erroring: an unmapped
// caller is a normal case, and the default role is the least-privileged one.
package identity

// DefaultRole is the hardcoded least-privilege fallback used when no
// mapping source supplies a default of its own.
const DefaultRole = "readonly"

// Identity is a resolved caller. Derived per request, never stored.
type Identity struct {
	CallerID string
	Role     string
}

// Resolver resolves caller IDs to roles from a static, case-sensitive map.
type Resolver struct {
	roleMap     map[string]string
	defaultRole string
}

// NewResolver creates a resolver over the given caller-to-role map.
// An empty defaultRole falls back to DefaultRole.
func NewResolver(roleMap map[string]string, defaultRole string) *Resolver {
	if defaultRole == "" {
		defaultRole = DefaultRole
	}
	if roleMap == nil {
		roleMap = map[string]string{}
	}
	return &Resolver{
		roleMap:     roleMap,
		defaultRole: defaultRole,
	}
}

// Resolve maps a caller ID to an Identity. Pure function of the loaded map;
// it never fails — absent (or empty) caller IDs get the default role.
func (r *Resolver) Resolve(callerID string) Identity {
	if callerID == "" {
		return Identity{CallerID: "", Role: r.defaultRole}
	}
	role, ok := r.roleMap[callerID]
	if !ok {
		role = r.defaultRole
	}
	return Identity{CallerID: callerID, Role: role}
}

// DefaultRole returns the role assigned to unmapped callers
func (r *Resolver) DefaultRole() string {
	return r.defaultRole
}

// Roles returns the set of distinct role names referenced by the mapping,
// including the default role. Used at startup to validate that every
// referenced role exists in the policy table.
func (r *Resolver) Roles() []string {
	seen := map[string]bool{r.defaultRole: true}
	roles := []string{r.defaultRole}
	for _, role := range r.roleMap {
		if !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	return roles
}
