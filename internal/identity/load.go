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

package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/skillgate/skillgate/internal/config"
	"github.com/skillgate/skillgate/internal/observability/logger"
)

// identityFile is the on-disk mapping format:
//
//	identity_map:
//	  U01ABC123: operator
//	  U02DEF456: admin
//	  default: readonly
//
// The "default" entry, when present, overrides the configured default role.
type identityFile struct {
	IdentityMap map[string]string `yaml:"identity_map"`
}

// Load builds a Resolver from the configured sources.
//
// Priority:
//  1. cfg.RoleMapJSON (the SKILLGATE_ROLE_MAP env var): JSON object caller→role
//  2. cfg.File: YAML identity map
//  3. empty map: every caller gets the default role
//
// A malformed env override or mapping file is a configuration error: the
// caller is expected to abort startup rather than run with a partial map.
func Load(cfg config.IdentityConfig) (*Resolver, error) {
	if cfg.RoleMapJSON != "" {
		var roleMap map[string]string
		if err := json.Unmarshal([]byte(cfg.RoleMapJSON), &roleMap); err != nil {
			return nil, fmt.Errorf("SKILLGATE_ROLE_MAP is not a valid JSON object: %w", err)
		}
		slog.Info("identity map loaded from environment",
			logger.Component("identity"),
			slog.Int("entries", len(roleMap)),
		)
		return NewResolver(roleMap, cfg.DefaultRole), nil
	}

	if cfg.File != "" {
		raw, err := os.ReadFile(cfg.File)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// Missing file is fine: everyone gets the default role
		case err != nil:
			return nil, fmt.Errorf("failed to read identity map %s: %w", cfg.File, err)
		default:
			var parsed identityFile
			if err := yaml.Unmarshal(raw, &parsed); err != nil {
				return nil, fmt.Errorf("failed to parse identity map %s: %w", cfg.File, err)
			}
			roleMap := parsed.IdentityMap
			defaultRole := cfg.DefaultRole
			if override, ok := roleMap["default"]; ok {
				defaultRole = override
				delete(roleMap, "default")
			}
			slog.Info("identity map loaded from file",
				logger.Component("identity"),
				slog.String("file", cfg.File),
				slog.Int("entries", len(roleMap)),
				logger.Role(defaultRole),
			)
			return NewResolver(roleMap, defaultRole), nil
		}
	}

	slog.Warn("no identity map configured, all callers get the default role",
		logger.Component("identity"),
		logger.Role(cfg.DefaultRole),
	)
	return NewResolver(nil, cfg.DefaultRole), nil
}
