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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps the OpenTelemetry meter and the gateway's instruments
type Meter struct {
	meter metric.Meter

	decisions       metric.Int64Counter
	pipelineSeconds metric.Float64Histogram
	runtimeErrors   metric.Int64Counter
}

// New creates a new meter instance with the gateway instruments registered
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	m := &Meter{}
	if cfg.Enabled {
		m.meter = otel.Meter(serviceName)
	} else {
		m.meter = otel.Meter("noop")
	}

	var err error
	m.decisions, err = m.meter.Int64Counter(
		"skillgate.decisions",
		metric.WithDescription("Pipeline decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions counter: %w", err)
	}

	m.pipelineSeconds, err = m.meter.Float64Histogram(
		"skillgate.pipeline.duration",
		metric.WithDescription("End-to-end pipeline duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline histogram: %w", err)
	}

	m.runtimeErrors, err = m.meter.Int64Counter(
		"skillgate.runtime.errors",
		metric.WithDescription("Failed runtime invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime errors counter: %w", err)
	}

	return m, nil
}

// RecordDecision counts one terminal pipeline outcome.
// Safe to call on a nil Meter so callers don't have to branch.
func (m *Meter) RecordDecision(ctx context.Context, outcome, role, action string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("role", role),
			attribute.String("action", action),
		),
	)
}

// RecordPipelineDuration records how long one request spent in the pipeline
func (m *Meter) RecordPipelineDuration(ctx context.Context, seconds float64, outcome string) {
	if m == nil {
		return
	}
	m.pipelineSeconds.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordRuntimeError counts one failed runtime invocation
func (m *Meter) RecordRuntimeError(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.runtimeErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", action)),
	)
}
