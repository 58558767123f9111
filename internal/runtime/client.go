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

// Package runtime is the thin HTTP adapter to the downstream agent
// execution engine. One network call per invocation, no retries: a failed
// agent action surfaces to the caller instead of being replayed, because
// agent actions are not assumed idempotent.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Domain errors
var (
	// ErrUnavailable means the runtime could not be reached within the
	// configured timeout.
	ErrUnavailable = errors.New("runtime unavailable")

	// ErrRuntime means the runtime was reached but returned a non-success
	// status.
	ErrRuntime = errors.New("runtime returned an error")
)

const healthTimeout = 5 * time.Second

// Config holds runtime client configuration
type Config struct {
	URL     string
	Token   string
	Session string
	Timeout time.Duration
}

// Client invokes the agent runtime over HTTP
type Client struct {
	baseURL string
	token   string
	session string
	httpc   *http.Client
}

// invokeResponse covers the reply shapes the runtime is known to produce
type invokeResponse struct {
	Reply   string `json:"reply"`
	Text    string `json:"text"`
	Message string `json:"message"`
}

// NewClient creates a runtime client. The timeout bounds the whole
// invocation including body read; it is mandatory so a hung runtime cannot
// pin a request forever.
func NewClient(cfg Config) *Client {
	session := cfg.Session
	if session == "" {
		session = "main"
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		session: session,
		httpc: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Invoke submits one natural-language instruction to the runtime and
// returns its reply text.
func (c *Client) Invoke(ctx context.Context, instruction string) (string, error) {
	url := fmt.Sprintf("%s/api/sessions/%s/messages", c.baseURL, c.session)

	body, err := json.Marshal(map[string]string{"message": instruction})
	if err != nil {
		return "", fmt.Errorf("failed to encode instruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", ErrRuntime, resp.StatusCode)
	}

	var parsed invokeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: malformed response body", ErrRuntime)
	}

	switch {
	case parsed.Reply != "":
		return parsed.Reply, nil
	case parsed.Text != "":
		return parsed.Text, nil
	case parsed.Message != "":
		return parsed.Message, nil
	}
	return "", fmt.Errorf("%w: response contained no reply text", ErrRuntime)
}

// Health reports whether the runtime answers its health endpoint.
// Best effort with a short timeout, independent of the invoke timeout.
func (c *Client) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeoutCause(ctx, healthTimeout, ErrUnavailable)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 400
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
