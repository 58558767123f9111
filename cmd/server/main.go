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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillgate/skillgate/internal/audit"
	"github.com/skillgate/skillgate/internal/config"
	"github.com/skillgate/skillgate/internal/gateway"
	"github.com/skillgate/skillgate/internal/identity"
	"github.com/skillgate/skillgate/internal/observability/logger"
	"github.com/skillgate/skillgate/internal/observability/metrics"
	"github.com/skillgate/skillgate/internal/observability/tracing"
	"github.com/skillgate/skillgate/internal/policy"
	"github.com/skillgate/skillgate/internal/ratelimit"
	"github.com/skillgate/skillgate/internal/runtime"
	transportHTTP "github.com/skillgate/skillgate/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting skillgate authorization gateway")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	if tracer != nil {
		defer tracer.Shutdown(ctx)
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Load the policy table. Everything below fails closed: a policy or
	// identity configuration the process cannot fully understand prevents
	// startup rather than running with partial rules.
	table, err := policy.Load(cfg.Policy.File)
	if err != nil {
		slog.Error("failed to load policy table", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("policy table loaded",
		slog.String("file", cfg.Policy.File),
		slog.Int("roles", table.Len()),
	)

	// Load the caller-to-role mapping
	resolver, err := identity.Load(cfg.Identity)
	if err != nil {
		slog.Error("failed to load identity map", logger.Error(err))
		os.Exit(1)
	}

	// Every role the mapping can hand out must exist in the policy table,
	// the default role included
	if err := table.Require(resolver.Roles()...); err != nil {
		slog.Error("identity map references undefined roles", logger.Error(err))
		os.Exit(1)
	}

	// Assemble the pipeline
	limiter := ratelimit.New(cfg.RateLimit.Window)
	engine := policy.NewEngine(table)
	runtimeClient := runtime.NewClient(runtime.Config{
		URL:     cfg.Runtime.URL,
		Token:   cfg.Runtime.Token,
		Session: cfg.Runtime.Session,
		Timeout: cfg.Runtime.Timeout,
	})
	auditLogger := audit.NewSlogLogger()

	gw := gateway.New(
		resolver,
		limiter,
		table,
		engine,
		runtimeClient,
		auditLogger,
		meter,
		cfg.RateLimit.Window,
	)

	// Edge throttle and HTTP surface
	throttle := transportHTTP.NewThrottle(cfg.Throttle.RequestsPerSecond, cfg.Throttle.Burst)
	handler := transportHTTP.NewHandler(gw, runtimeClient)
	router := transportHTTP.NewRouter(handler, throttle)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", logger.Error(err))
	}

	slog.Info("server stopped")
}
