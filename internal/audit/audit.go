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

// Package audit records decision outcomes as structured log events.
// Audit records are a logging side effect only; nothing here is persisted.
package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	TypeActionAllowed = "action_allowed"
	TypeActionDenied  = "action_denied"
	TypeRateLimited   = "rate_limited"
	TypeRuntimeError  = "runtime_error"
)

// Event represents one terminal pipeline outcome
type Event struct {
	Type      string
	CallerID  string
	Role      string
	Action    string
	Reason    string
	Metadata  map[string]any
	Timestamp time.Time
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger implements Logger using slog
type SlogLogger struct{}

// NewSlogLogger creates a new audit logger
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_id", uuid.NewString()),
		slog.String("audit_type", event.Type),
		slog.String("caller_id", event.CallerID),
		slog.String("role", event.Role),
		slog.String("action", event.Action),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	// Flatten metadata, redacting anything secret-shaped
	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	lower := strings.ToLower(key)
	secrets := []string{"password", "secret", "token", "key", "authorization", "credential"}
	for _, s := range secrets {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
