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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/policy"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

func newTestService(t *testing.T, store storage.Store, provider types.Provider) *Service {
	t.Helper()
	registry, _ := newChatTestRegistry()
	return NewService(ServiceConfig{
		Store:       store,
		Resolver:    NewResolver(store, nil),
		Window:      NewWindowLoader(store, 40),
		Validator:   NewValidator(registry, nil),
		Coordinator: NewCoordinator(provider, policy.NewGate(registry, nil), nil, 5),
		Writer:      NewWriter(store, nil, nil),
		Allocator:   NewAllocator(store, nil),
	})
}

func TestHandleTurn_CampaignBoundEndToEnd(t *testing.T) {
	store := newChatTestStore(t)
	provider := &scriptedProvider{responses: []*types.ModelResponse{
		{Content: "Let's start with your goal.", StopReason: "end_turn"},
	}}
	svc := newTestService(t, store, provider)
	campaignID := types.NewCampaignID()

	var events []types.StreamEvent
	req := types.TurnRequest{
		ID:    campaignID,
		Owner: "user-1",
		Turn:  types.Turn{Parts: []types.Part{types.TextPart("advertise my coffee shop")}},
	}
	result, err := svc.HandleTurn(context.Background(), req, collectEvents(&events))
	require.NoError(t, err)

	assert.Equal(t, campaignID, result.Conversation.CampaignID)
	assert.Equal(t, 2, result.Persisted, "user turn plus assistant turn")
	require.Len(t, result.Turns, 1)
	assert.Equal(t, types.RoleAssistant, result.Turns[0].Role)

	name, err := store.GetCampaignName(context.Background(), campaignID)
	require.NoError(t, err)
	assert.NotEmpty(t, name, "first campaign-bound turn allocates a name")

	require.NotEmpty(t, events)
	assert.Equal(t, types.StreamEventDone, events[len(events)-1].Kind)

	turns, err := store.ListTurns(context.Background(), result.Conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
}

func TestHandleTurn_SecondTurnSeesHistory(t *testing.T) {
	store := newChatTestStore(t)
	provider := &scriptedProvider{responses: []*types.ModelResponse{
		{Content: "Noted.", StopReason: "end_turn"},
	}}
	svc := newTestService(t, store, provider)
	campaignID := types.NewCampaignID()
	ctx := context.Background()

	first := types.TurnRequest{
		ID:    campaignID,
		Owner: "user-1",
		Turn:  types.Turn{Parts: []types.Part{types.TextPart("first message")}},
	}
	_, err := svc.HandleTurn(ctx, first, nil)
	require.NoError(t, err)

	second := types.TurnRequest{
		ID:    campaignID,
		Owner: "user-1",
		Turn:  types.Turn{Parts: []types.Part{types.TextPart("second message")}},
	}
	_, err = svc.HandleTurn(ctx, second, nil)
	require.NoError(t, err)

	lastCall := provider.messages[len(provider.messages)-1]
	var sawFirst bool
	for _, turn := range lastCall {
		if turn.Text() == "first message" {
			sawFirst = true
		}
	}
	assert.True(t, sawFirst, "earlier turns are replayed in the window")
}

func TestHandleTurn_EphemeralSkipsPersistence(t *testing.T) {
	store := newChatTestStore(t)
	provider := &scriptedProvider{responses: []*types.ModelResponse{
		{Content: "Hello!", StopReason: "end_turn"},
	}}
	svc := newTestService(t, store, provider)

	req := types.TurnRequest{
		Owner: "user-1",
		Turn:  types.Turn{Parts: []types.Part{types.TextPart("just exploring")}},
	}
	result, err := svc.HandleTurn(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, result.Conversation.Ephemeral)
	assert.Zero(t, result.Persisted)
	require.Len(t, result.Turns, 1)
}

func TestHandleTurn_UnresolvableIDFails(t *testing.T) {
	store := newChatTestStore(t)
	svc := newTestService(t, store, &scriptedProvider{responses: []*types.ModelResponse{{Content: "x"}}})

	req := types.TurnRequest{
		ID:    "workspace-tab-1",
		Owner: "user-1",
		Turn:  types.Turn{Parts: []types.Part{types.TextPart("hi")}},
	}
	_, err := svc.HandleTurn(context.Background(), req, nil)
	assert.ErrorIs(t, err, ErrCampaignBindingRequired)
}

func TestHandleTurn_ProviderFailureStillPersistsUserTurn(t *testing.T) {
	store := newChatTestStore(t)
	provider := &scriptedProvider{err: assert.AnError}
	svc := newTestService(t, store, provider)
	campaignID := types.NewCampaignID()

	req := types.TurnRequest{
		ID:    campaignID,
		Owner: "user-1",
		Turn:  types.Turn{Parts: []types.Part{types.TextPart("hello")}},
	}
	result, err := svc.HandleTurn(context.Background(), req, nil)
	require.NoError(t, err, "gateway failure degrades to a fallback turn")
	require.NotNil(t, result)
	assert.GreaterOrEqual(t, result.Persisted, 1)

	turns, lerr := store.ListTurns(context.Background(), result.Conversation.ID, 0)
	require.NoError(t, lerr)
	require.NotEmpty(t, turns)
	assert.Equal(t, types.RoleUser, turns[0].Role)
}
