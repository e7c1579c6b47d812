// Copyright 2026 AdPilot
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/internal/log"
	"github.com/jackhunterking/AdPilot-sub003/pkg/chat"
	"github.com/jackhunterking/AdPilot-sub003/pkg/llm"
	"github.com/jackhunterking/AdPilot-sub003/pkg/llm/anthropic"
	"github.com/jackhunterking/AdPilot-sub003/pkg/llm/bedrock"
	"github.com/jackhunterking/AdPilot-sub003/pkg/maintenance"
	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/policy"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage/sqlite"
	"github.com/jackhunterking/AdPilot-sub003/pkg/summarizer"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools/builtin"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AdPilot HTTP server",
	Long: `Start the AdPilot server.

The server will:
- Initialize the model gateway with the configured provider
- Set up conversation persistence with SQLite
- Register the campaign tools
- Listen for HTTP requests, streaming responses over SSE

Press Ctrl+C to gracefully shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := config.Validate(); err != nil {
		return err
	}

	logger := log.Logger()
	tracer := observability.NewZapTracer(logger)

	store, err := sqlite.New(config.Database.Path, tracer)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	logger.Info("Store initialized", zap.String("path", config.Database.Path))

	provider, err := createProvider(cmd.Context(), config, logger)
	if err != nil {
		return err
	}
	logger.Info("Model gateway ready",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()))

	registry := tools.NewRegistry()
	builtin.Register(registry, builtin.NewMemoryServices())
	logger.Info("Tools registered", zap.Int("count", len(registry.ListTools())))

	worker := summarizer.New(store, provider, tracer, summarizer.Config{
		ThresholdTokens: config.Summarizer.ThresholdTokens,
	})
	worker.Start()
	defer worker.Stop()

	service := chat.NewService(chat.ServiceConfig{
		Store:       store,
		Resolver:    chat.NewResolver(store, tracer),
		Window:      chat.NewWindowLoader(store, config.Chat.WindowSize),
		Validator:   chat.NewValidator(registry, tracer),
		Coordinator: chat.NewCoordinator(provider, policy.NewGate(registry, tracer), tracer, config.Chat.MaxRounds),
		Writer:      chat.NewWriter(store, worker, tracer),
		Allocator:   chat.NewAllocator(store, tracer),
		Tracer:      tracer,
	})

	if config.Maintenance.Enabled {
		sweeper, err := maintenance.New(store, worker, tracer, maintenance.Config{
			Schedule: config.Maintenance.Schedule,
			EmptyTTL: time.Duration(config.Maintenance.EmptyTTLHours) * time.Hour,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create maintenance sweeper: %w", err)
		}
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("failed to start maintenance sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	srv := newHTTPServer(service, logger)
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	_ = tracer.Flush(shutdownCtx)
	return nil
}

// createProvider builds the model gateway for the configured provider.
func createProvider(ctx context.Context, cfg *Config, logger *zap.Logger) (types.Provider, error) {
	var limiter *llm.RateLimiter
	if cfg.RateLimit.Enabled {
		rlCfg := llm.DefaultRateLimiterConfig()
		rlCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rlCfg.BurstCapacity = cfg.RateLimit.BurstCapacity
		rlCfg.MaxRetries = cfg.RateLimit.MaxRetries
		rlCfg.Logger = logger
		limiter = llm.NewRateLimiter(rlCfg)
	}

	switch cfg.LLM.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:      cfg.LLM.AnthropicAPIKey,
			Model:       cfg.LLM.AnthropicModel,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			RateLimiter: limiter,
		})
	case "bedrock":
		return bedrock.New(ctx, bedrock.Config{
			ModelID:         cfg.LLM.BedrockModelID,
			Region:          cfg.LLM.BedrockRegion,
			AccessKeyID:     cfg.LLM.BedrockAccessKeyID,
			SecretAccessKey: cfg.LLM.BedrockSecretAccessKey,
			SessionToken:    cfg.LLM.BedrockSessionToken,
			Profile:         cfg.LLM.BedrockProfile,
			MaxTokens:       cfg.LLM.MaxTokens,
			Temperature:     cfg.LLM.Temperature,
			RateLimiter:     limiter,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
