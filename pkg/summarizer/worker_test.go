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
package summarizer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage/sqlite"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

type stubProvider struct {
	content string
	err     error
	calls   int
}

func (p *stubProvider) Chat(_ context.Context, _ []types.Turn, _ []tools.Tool) (*types.ModelResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &types.ModelResponse{Content: p.content, StopReason: "end_turn"}, nil
}

func (p *stubProvider) Name() string  { return "stub" }
func (p *stubProvider) Model() string { return "test-model" }

func newSummarizerStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "summarizer.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedConversation(t *testing.T, store storage.Store, texts ...string) *types.Conversation {
	t.Helper()
	ctx := context.Background()
	conv := &types.Conversation{ID: types.NewConversationID(), Owner: "user-1"}
	require.NoError(t, store.CreateConversation(ctx, conv))
	for i, text := range texts {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		turn := &types.Turn{
			ID:             types.NewTurnID(),
			ConversationID: conv.ID,
			Role:           role,
			Parts:          []types.Part{types.TextPart(text)},
		}
		_, err := store.AppendTurn(ctx, turn)
		require.NoError(t, err)
	}
	return conv
}

func TestDeriveTitle_FromModel(t *testing.T) {
	store := newSummarizerStore(t)
	provider := &stubProvider{content: `"Coffee Shop Launch"`}
	w := New(store, provider, nil, Config{})

	conv := seedConversation(t, store, "I want to advertise my coffee shop", "Happy to help.")
	require.NoError(t, w.deriveTitle(context.Background(), conv.ID))

	got, err := store.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coffee Shop Launch", got.Title, "model title is trimmed of surrounding quotes")
}

func TestDeriveTitle_ModelFailureFallsBack(t *testing.T) {
	store := newSummarizerStore(t)
	provider := &stubProvider{err: errors.New("gateway down")}
	w := New(store, provider, nil, Config{})

	conv := seedConversation(t, store, "promote my bakery this fall", "On it.")
	require.NoError(t, w.deriveTitle(context.Background(), conv.ID))

	got, err := store.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "promote my bakery this fall", got.Title)
}

func TestDeriveTitle_ExistingTitleUntouched(t *testing.T) {
	store := newSummarizerStore(t)
	provider := &stubProvider{content: "Replacement"}
	w := New(store, provider, nil, Config{})

	conv := seedConversation(t, store, "hello", "hi")
	require.NoError(t, store.SetTitle(context.Background(), conv.ID, "Original"))

	require.NoError(t, w.deriveTitle(context.Background(), conv.ID))
	got, err := store.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Zero(t, provider.calls)
}

func TestSummarizeIfNeeded_BelowThresholdSkipsModel(t *testing.T) {
	store := newSummarizerStore(t)
	provider := &stubProvider{content: "a summary"}
	w := New(store, provider, nil, Config{ThresholdTokens: 100000})

	conv := seedConversation(t, store, "short message", "short reply")
	require.NoError(t, w.summarizeIfNeeded(context.Background(), conv.ID))
	assert.Zero(t, provider.calls)
}

func TestSummarizeIfNeeded_StoresSummaryInMetadata(t *testing.T) {
	store := newSummarizerStore(t)
	provider := &stubProvider{content: "User is planning a bakery campaign."}
	w := New(store, provider, nil, Config{ThresholdTokens: 1})

	conv := seedConversation(t, store, "promote my bakery", "Let us plan the budget first.")
	require.NoError(t, w.summarizeIfNeeded(context.Background(), conv.ID))

	got, err := store.GetConversation(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "User is planning a bakery campaign.", got.Metadata[SummaryMetadataKey])
}

func TestFallbackTitle(t *testing.T) {
	long := strings.Repeat("budget planning ", 10)
	turns := []*types.Turn{
		{Role: types.RoleAssistant, Parts: []types.Part{types.TextPart("ignored")}},
		{Role: types.RoleUser, Parts: []types.Part{types.TextPart(long)}},
	}

	title := FallbackTitle(turns)
	assert.True(t, strings.HasSuffix(title, "…"))
	assert.LessOrEqual(t, len([]rune(title)), maxTitleRunes+1)

	assert.Equal(t, "", FallbackTitle(nil))
	assert.Equal(t, "hi", FallbackTitle([]*types.Turn{
		{Role: types.RoleUser, Parts: []types.Part{types.TextPart("hi")}},
	}))
}

func TestTokenCounter(t *testing.T) {
	tc := GetTokenCounter()
	assert.Greater(t, tc.CountTokens("hello there campaign planner"), 0)
	assert.Zero(t, tc.CountTokens(""))

	turns := []*types.Turn{
		{Role: types.RoleUser, Parts: []types.Part{types.TextPart("hello")}},
		{Role: types.RoleAssistant, Parts: []types.Part{types.TextPart("hi there")}},
	}
	assert.Greater(t, tc.CountTurns(turns), tc.CountTokens("hello"))
}

func TestTokenCounter_ToolPartsCount(t *testing.T) {
	tc := GetTokenCounter()

	textOnly := []*types.Turn{
		{Role: types.RoleAssistant, Parts: []types.Part{types.TextPart("updating the draft")}},
	}
	withTools := []*types.Turn{
		{Role: types.RoleAssistant, Parts: []types.Part{
			types.TextPart("updating the draft"),
			types.ToolCallPart("call_1", "update_campaign_details", map[string]interface{}{
				"description": strings.Repeat("a long campaign description ", 20),
			}),
			types.ToolResultPart("call_1", "update_campaign_details", map[string]interface{}{
				"updated": strings.Repeat("field ", 50),
			}, nil),
		}},
	}
	assert.Greater(t, tc.CountTurns(withTools), tc.CountTurns(textOnly)+100,
		"tool inputs and outputs contribute to the threshold")
}
