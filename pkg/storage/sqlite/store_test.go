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
package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestConversation(t *testing.T, store *Store) *types.Conversation {
	t.Helper()
	conv := &types.Conversation{
		ID:    types.NewConversationID(),
		Owner: "user-1",
	}
	require.NoError(t, store.CreateConversation(context.Background(), conv))
	return conv
}

func userTurn(conversationID, text string) *types.Turn {
	return &types.Turn{
		ID:             types.NewTurnID(),
		ConversationID: conversationID,
		Role:           types.RoleUser,
		Parts:          []types.Part{types.TextPart(text)},
	}
}

func TestStore_ConversationRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := &types.Conversation{
		ID:         types.NewConversationID(),
		Owner:      "user-1",
		CampaignID: types.NewCampaignID(),
		Metadata:   map[string]string{"source": "test"},
	}
	require.NoError(t, store.CreateConversation(ctx, conv))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
	assert.Equal(t, conv.Owner, got.Owner)
	assert.Equal(t, conv.CampaignID, got.CampaignID)
	assert.Equal(t, "test", got.Metadata["source"])
}

func TestStore_GetConversation_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetConversation(context.Background(), "conv_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_TurnRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv := newTestConversation(t, store)

	turn := &types.Turn{
		ID:             types.NewTurnID(),
		ConversationID: conv.ID,
		Role:           types.RoleAssistant,
		Parts: []types.Part{
			types.TextPart("Generating three images."),
			types.ToolCallPart("call_1", "generate_ad_image", map[string]interface{}{"prompt": "sunset"}),
			types.ToolResultPart("call_1", "generate_ad_image", map[string]interface{}{"success": true}, nil),
		},
		Metadata: map[string]interface{}{"step": "creative"},
	}
	seq, err := store.AppendTurn(ctx, turn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	turns, err := store.ListTurns(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)

	got := turns[0]
	assert.Equal(t, turn.ID, got.ID)
	assert.Equal(t, types.RoleAssistant, got.Role)
	require.Len(t, got.Parts, 3)
	assert.Equal(t, types.PartKindText, got.Parts[0].Kind)
	assert.Equal(t, "call_1", got.Parts[1].CallID)
	assert.Equal(t, "sunset", got.Parts[1].Input["prompt"])
	assert.Equal(t, true, got.Parts[2].Output["success"])
	assert.Equal(t, "creative", got.Metadata["step"])
}

func TestStore_AppendTurn_SequencesStrictlyIncrease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv := newTestConversation(t, store)

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	seqs := make(chan int64, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				seq, err := store.AppendTurn(ctx, userTurn(conv.ID, "hello"))
				assert.NoError(t, err)
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		assert.False(t, seen[seq], "sequence %d assigned twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, writers*perWriter)

	turns, err := store.ListTurns(ctx, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, turns, writers*perWriter)
	for i := 1; i < len(turns); i++ {
		assert.Greater(t, turns[i].Seq, turns[i-1].Seq)
	}
}

func TestStore_ListTurns_WindowKeepsMostRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv := newTestConversation(t, store)

	for i := 0; i < 10; i++ {
		_, err := store.AppendTurn(ctx, userTurn(conv.ID, "m"))
		require.NoError(t, err)
	}

	turns, err := store.ListTurns(ctx, conv.ID, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	// Most recent three, ascending.
	assert.Equal(t, int64(8), turns[0].Seq)
	assert.Equal(t, int64(10), turns[2].Seq)
}

func TestStore_GetOrCreateByCampaign_Concurrent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	campaignID := types.NewCampaignID()

	const callers = 10
	var wg sync.WaitGroup
	ids := make(chan string, callers)
	createdCount := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conv, created, err := store.GetOrCreateByCampaign(ctx, campaignID, "user-1")
			assert.NoError(t, err)
			ids <- conv.ID
			createdCount <- created
		}()
	}
	wg.Wait()
	close(ids)
	close(createdCount)

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1, "all callers should converge on one conversation")

	creations := 0
	for created := range createdCount {
		if created {
			creations++
		}
	}
	assert.Equal(t, 1, creations, "exactly one caller should have performed the insert")
}

func TestStore_InsertCampaign_DuplicateName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertCampaign(ctx, types.NewCampaignID(), "Sunset Drive"))

	err := store.InsertCampaign(ctx, types.NewCampaignID(), "Sunset Drive")
	assert.ErrorIs(t, err, storage.ErrDuplicateName)

	name, err := store.GetCampaignName(ctx, "camp_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, name)
}

func TestStore_SetTitleAndMergeMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	conv := newTestConversation(t, store)

	require.NoError(t, store.SetTitle(ctx, conv.ID, "Coffee shop launch"))
	require.NoError(t, store.MergeMetadata(ctx, conv.ID, map[string]string{"summary": "short"}))
	require.NoError(t, store.MergeMetadata(ctx, conv.ID, map[string]string{"summary": "longer", "lang": "en"}))

	got, err := store.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coffee shop launch", got.Title)
	assert.Equal(t, "longer", got.Metadata["summary"])
	assert.Equal(t, "en", got.Metadata["lang"])
}

func TestStore_PruneEmptyConversations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	empty := newTestConversation(t, store)
	withTurns := newTestConversation(t, store)
	_, err := store.AppendTurn(ctx, userTurn(withTurns.ID, "keep me"))
	require.NoError(t, err)

	// Negative cutoff puts the threshold in the future so fresh rows
	// qualify.
	pruned, err := store.PruneEmptyConversations(ctx, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	_, err = store.GetConversation(ctx, empty.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetConversation(ctx, withTurns.ID)
	assert.NoError(t, err)
}

func TestStore_ListActiveConversationIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newTestConversation(t, store)
	b := newTestConversation(t, store)

	ids, err := store.ListActiveConversationIDs(ctx, time.Hour, 0)
	require.NoError(t, err)
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID)
}
