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
package maintenance

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage/sqlite"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

func newSweeperStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "sweep.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	store := newSweeperStore(t)

	_, err := New(store, nil, nil, Config{Schedule: "not a cron line"})
	assert.Error(t, err)

	_, err = New(store, nil, nil, Config{Schedule: "@hourly"})
	assert.NoError(t, err)

	_, err = New(nil, nil, nil, Config{})
	assert.Error(t, err)
}

func TestSweep_PrunesAgedEmptyConversations(t *testing.T) {
	store := newSweeperStore(t)
	ctx := context.Background()

	empty := &types.Conversation{ID: types.NewConversationID(), Owner: "user-1"}
	require.NoError(t, store.CreateConversation(ctx, empty))

	active := &types.Conversation{ID: types.NewConversationID(), Owner: "user-1"}
	require.NoError(t, store.CreateConversation(ctx, active))
	_, err := store.AppendTurn(ctx, &types.Turn{
		ID:             types.NewTurnID(),
		ConversationID: active.ID,
		Role:           types.RoleUser,
		Parts:          []types.Part{types.TextPart("keep me")},
	})
	require.NoError(t, err)

	s, err := New(store, nil, nil, Config{EmptyTTL: time.Nanosecond})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	s.Sweep(ctx)

	_, err = store.GetConversation(ctx, empty.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	kept, err := store.GetConversation(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, active.ID, kept.ID)
}
