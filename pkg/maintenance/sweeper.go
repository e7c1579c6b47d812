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
// Package maintenance runs scheduled housekeeping over the conversation
// store: pruning abandoned empty conversations and re-enqueueing
// summarization for threads that grew past the threshold while the
// summarizer was down.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/summarizer"
)

// Defaults for the sweep schedule and retention windows.
const (
	DefaultSchedule    = "@hourly"
	DefaultEmptyTTL    = 24 * time.Hour
	DefaultActiveSince = 7 * 24 * time.Hour
	sweepBatchLimit    = 500
)

// Config configures the maintenance sweeper.
type Config struct {
	// Schedule is a standard cron expression or a descriptor like
	// "@hourly". Empty uses DefaultSchedule.
	Schedule string

	// EmptyTTL is how long an empty conversation survives before pruning.
	EmptyTTL time.Duration

	// ActiveSince bounds the summarization re-check to recently updated
	// conversations.
	ActiveSince time.Duration

	Logger *zap.Logger
}

// Sweeper runs the maintenance schedule.
type Sweeper struct {
	store      storage.Store
	summarizer *summarizer.Worker
	tracer     observability.Tracer
	cronEngine *cron.Cron
	cfg        Config
	logger     *zap.Logger
}

// New creates a sweeper. The summarizer may be nil, in which case only
// pruning runs.
func New(store storage.Store, worker *summarizer.Worker, tracer observability.Tracer, cfg Config) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.EmptyTTL <= 0 {
		cfg.EmptyTTL = DefaultEmptyTTL
	}
	if cfg.ActiveSince <= 0 {
		cfg.ActiveSince = DefaultActiveSince
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Schedule, err)
	}

	return &Sweeper{
		store:      store,
		summarizer: worker,
		tracer:     tracer,
		cronEngine: cron.New(),
		cfg:        cfg,
		logger:     cfg.Logger,
	}, nil
}

// Start registers the sweep with the cron engine and begins the schedule.
func (s *Sweeper) Start() error {
	_, err := s.cronEngine.AddFunc(s.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.cronEngine.Start()
	s.logger.Info("Maintenance sweeper started", zap.String("schedule", s.cfg.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cronEngine.Stop().Done()
	s.logger.Info("Maintenance sweeper stopped")
}

// Sweep runs one maintenance pass: prune, then summarization re-check.
// Failures are logged, never propagated; the next run retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	ctx, span := s.tracer.StartSpan(ctx, "maintenance.sweep")
	defer s.tracer.EndSpan(span)

	pruned, err := s.store.PruneEmptyConversations(ctx, s.cfg.EmptyTTL)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Pruning empty conversations failed", zap.Error(err))
	} else if pruned > 0 {
		s.logger.Info("Pruned empty conversations", zap.Int64("count", pruned))
	}

	if s.summarizer == nil {
		return
	}

	ids, err := s.store.ListActiveConversationIDs(ctx, s.cfg.ActiveSince, sweepBatchLimit)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn("Listing active conversations failed", zap.Error(err))
		return
	}
	for _, id := range ids {
		s.summarizer.EnqueueSummarize(id)
	}
	span.SetAttribute("rechecked", fmt.Sprintf("%d", len(ids)))
}
