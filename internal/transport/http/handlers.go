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

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skillgate/skillgate/internal/gateway"
)

// maxBodyBytes caps the inbound request body. Action parameters are chat
// payloads; anything past this is abuse, not traffic.
const maxBodyBytes = 1 << 20

// Pipeline runs one action request through the decision pipeline
type Pipeline interface {
	Handle(ctx context.Context, callerID, action string, params map[string]any) gateway.Result
}

// RuntimeProber reports whether the downstream runtime is reachable
type RuntimeProber interface {
	Health(ctx context.Context) bool
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	pipeline Pipeline
	prober   RuntimeProber
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline Pipeline, prober RuntimeProber) *Handler {
	return &Handler{
		pipeline: pipeline,
		prober:   prober,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, throttle *Throttle) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(ThrottleMiddleware(throttle))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(3 * time.Minute))

	r.Get("/health", h.HealthCheck)
	r.Get("/health/runtime", h.RuntimeHealth)

	r.Post("/v1/actions", h.Action)

	return r
}

// actionRequest is the inbound boundary payload from the chat-platform
// connector. The caller identifier is trusted input; authenticating the
// platform itself happens upstream.
type actionRequest struct {
	CallerID string         `json:"caller_id"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params"`
}

// actionResponse is the caller-visible decision
type actionResponse struct {
	Allowed  bool    `json:"allowed"`
	Response *string `json:"response"`
	Reason   *string `json:"reason"`
	Role     string  `json:"role,omitempty"`
	Action   string  `json:"action,omitempty"`
}

// Action handles POST /v1/actions
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CallerID == "" {
		respondError(w, http.StatusBadRequest, "caller_id is required")
		return
	}
	if req.Action == "" {
		respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	result := h.pipeline.Handle(r.Context(), req.CallerID, req.Action, req.Params)

	// Denials are decisions, not transport failures: always HTTP 200
	resp := actionResponse{
		Allowed: result.Allowed,
		Role:    result.Role,
		Action:  result.Action,
	}
	if result.Allowed {
		resp.Response = &result.Response
	} else {
		resp.Reason = &result.Reason
	}
	respondJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health (process liveness only)
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "skillgate",
	})
}

// RuntimeHealth handles GET /health/runtime (downstream reachability)
func (h *Handler) RuntimeHealth(w http.ResponseWriter, r *http.Request) {
	if !h.prober.Health(r.Context()) {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unreachable",
			"service": "runtime",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "runtime",
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
