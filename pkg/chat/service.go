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
package chat

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/internal/log"
	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools/builtin"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// TurnResult is the outcome of one handled turn.
type TurnResult struct {
	Conversation *types.Conversation `json:"conversation"`
	Turns        []types.Turn        `json:"turns"`
	Persisted    int                 `json:"persisted"`
}

// Service is the facade over the turn pipeline: resolve, load, validate,
// coordinate, commit. It holds no cross-request mutable state; every
// HandleTurn call is one independent logical task.
type Service struct {
	store       storage.Store
	resolver    *Resolver
	window      *WindowLoader
	validator   *Validator
	coordinator *Coordinator
	writer      *Writer
	allocator   *Allocator
	tracer      observability.Tracer
}

// ServiceConfig collects the pipeline components for a Service.
type ServiceConfig struct {
	Store       storage.Store
	Resolver    *Resolver
	Window      *WindowLoader
	Validator   *Validator
	Coordinator *Coordinator
	Writer      *Writer
	Allocator   *Allocator
	Tracer      observability.Tracer
}

func NewService(cfg ServiceConfig) *Service {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Service{
		store:       cfg.Store,
		resolver:    cfg.Resolver,
		window:      cfg.Window,
		validator:   cfg.Validator,
		coordinator: cfg.Coordinator,
		writer:      cfg.Writer,
		allocator:   cfg.Allocator,
		tracer:      tracer,
	}
}

// HandleTurn processes one inbound turn end to end. Stream events flow
// through emit while the coordinator runs; the returned result reflects
// what was generated and how much of it was persisted. A context
// cancellation still commits the partial turns before returning the error.
func (s *Service) HandleTurn(ctx context.Context, req types.TurnRequest, emit types.EmitFunc) (*TurnResult, error) {
	ctx, span := s.tracer.StartSpan(ctx, "chat.handle_turn")
	defer s.tracer.EndSpan(span)

	conv, err := s.resolver.Resolve(ctx, req.Owner, req.ID, req.Metadata)
	if err != nil {
		return nil, err
	}
	span.SetAttribute(observability.AttrConversationID, conv.ID)

	userTurn := req.Turn
	if userTurn.Role == "" {
		userTurn.Role = types.RoleUser
	}
	if userTurn.ID == "" {
		userTurn.ID = types.NewTurnID()
	}
	userTurn.ConversationID = conv.ID

	if conv.CampaignID != "" {
		s.ensureCampaign(ctx, conv.CampaignID, userTurn.Text())
		ctx = builtin.ContextWithCampaign(ctx, conv.CampaignID)
	}

	var history []types.Turn
	if !conv.Ephemeral {
		history, err = s.window.Load(ctx, conv.ID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("loading conversation window: %w", err)
		}
	}

	window := s.validator.Validate(ctx, history, userTurn)

	generated, runErr := s.coordinator.Run(ctx, conv.ID, window, req.Metadata, emit)

	emit.Emit(types.StreamEvent{Kind: types.StreamEventDone})

	persisted := s.writer.Commit(ctx, conv, append([]types.Turn{userTurn}, generated...))

	result := &TurnResult{
		Conversation: conv,
		Turns:        generated,
		Persisted:    persisted,
	}
	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

// ensureCampaign creates the campaign record with a generated name the
// first time a campaign-bound conversation is used. Naming is cosmetic for
// the turn pipeline, so allocation failures are logged and swallowed.
func (s *Service) ensureCampaign(ctx context.Context, campaignID, source string) {
	_, err := s.store.GetCampaignName(ctx, campaignID)
	if err == nil {
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		log.Warn("campaign lookup failed", zap.String("campaign_id", campaignID), zap.Error(err))
		return
	}

	name, err := s.allocator.Allocate(ctx, campaignID, source, nil)
	if err != nil {
		log.Warn("campaign name allocation failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
		return
	}
	log.Debug("campaign created", zap.String("campaign_id", campaignID), zap.String("name", name))
}
