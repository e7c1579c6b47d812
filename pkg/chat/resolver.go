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

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// Resolver maps an inbound identifier plus turn metadata to a durable
// conversation, creating the campaign-bound conversation lazily.
type Resolver struct {
	store  storage.ConversationStore
	tracer observability.Tracer
}

func NewResolver(store storage.ConversationStore, tracer observability.Tracer) *Resolver {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Resolver{store: store, tracer: tracer}
}

// Resolve maps (id, metadata) to a conversation.
//
// An empty id yields an unbound ephemeral conversation that is never
// persisted. A conversation-shaped id is looked up directly. A
// campaign-shaped id resolves through idempotent get-or-create: the store's
// uniqueness constraint makes concurrent callers converge on one thread.
// Any other id requires a campaign binding in metadata; without one the
// caller gets ErrCampaignBindingRequired rather than not-found.
func (r *Resolver) Resolve(ctx context.Context, owner, id string, meta types.TurnMetadata) (*types.Conversation, error) {
	ctx, span := r.tracer.StartSpan(ctx, "chat.resolve")
	defer r.tracer.EndSpan(span)

	if id == "" {
		conv := &types.Conversation{
			ID:        types.NewConversationID(),
			Owner:     owner,
			Ephemeral: true,
		}
		span.SetAttribute("ephemeral", "true")
		return conv, nil
	}

	if types.IsConversationID(id) {
		conv, err := r.store.GetConversation(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
		}
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to resolve conversation: %w", err)
		}
		span.SetAttribute(observability.AttrConversationID, conv.ID)
		return conv, nil
	}

	if types.IsCampaignID(id) {
		return r.resolveCampaign(ctx, owner, id)
	}

	// Opaque id: fall back to the campaign binding in metadata.
	if types.IsCampaignID(meta.CampaignID) {
		return r.resolveCampaign(ctx, owner, meta.CampaignID)
	}
	return nil, fmt.Errorf("%w: id %q matches no known shape", ErrCampaignBindingRequired, id)
}

func (r *Resolver) resolveCampaign(ctx context.Context, owner, campaignID string) (*types.Conversation, error) {
	conv, created, err := r.store.GetOrCreateByCampaign(ctx, campaignID, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve campaign conversation: %w", err)
	}
	if created {
		r.tracer.RecordMetric("chat.conversation_created", 1, map[string]string{"binding": "campaign"})
	}
	return conv, nil
}
