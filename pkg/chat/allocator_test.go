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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// fakeCampaignStore tracks inserted names and optionally fails every insert.
type fakeCampaignStore struct {
	names     map[string]string
	taken     map[string]bool
	insertErr error
}

func newFakeCampaignStore() *fakeCampaignStore {
	return &fakeCampaignStore{names: make(map[string]string), taken: make(map[string]bool)}
}

func (f *fakeCampaignStore) InsertCampaign(_ context.Context, id, name string) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	if f.taken[strings.ToLower(name)] {
		return storage.ErrDuplicateName
	}
	f.taken[strings.ToLower(name)] = true
	f.names[id] = name
	return nil
}

func (f *fakeCampaignStore) GetCampaignName(_ context.Context, id string) (string, error) {
	name, ok := f.names[id]
	if !ok {
		return "", storage.ErrNotFound
	}
	return name, nil
}

func TestAllocator_SourceTextBecomesTitle(t *testing.T) {
	store := newFakeCampaignStore()
	a := NewAllocator(store, nil)
	id := types.NewCampaignID()

	name, err := a.Allocate(context.Background(), id, "launch my COFFEE shop promo today", nil)
	require.NoError(t, err)
	assert.Equal(t, "Launch My Coffee", name, "first candidate is the title-cased source, capped at three words")

	stored, err := store.GetCampaignName(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, name, stored)
}

func TestAllocator_CollisionRetriesWithDifferentName(t *testing.T) {
	store := newFakeCampaignStore()
	a := NewAllocator(store, nil)
	ctx := context.Background()

	first, err := a.Allocate(ctx, types.NewCampaignID(), "summer sale", nil)
	require.NoError(t, err)

	second, err := a.Allocate(ctx, types.NewCampaignID(), "summer sale", nil)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Len(t, store.names, 2)
}

func TestAllocator_AvoidListSkipsNames(t *testing.T) {
	store := newFakeCampaignStore()
	a := NewAllocator(store, nil)

	name, err := a.Allocate(context.Background(), types.NewCampaignID(), "summer sale", []string{"Summer Sale"})
	require.NoError(t, err)
	assert.NotEqual(t, "summer sale", strings.ToLower(name))
}

func TestAllocator_ExhaustionYieldsNameConflict(t *testing.T) {
	store := newFakeCampaignStore()
	store.insertErr = storage.ErrDuplicateName
	a := NewAllocator(store, nil)

	_, err := a.Allocate(context.Background(), types.NewCampaignID(), "summer sale", nil)
	assert.ErrorIs(t, err, ErrNameConflict)
}

func TestAllocator_StoreFailureAborts(t *testing.T) {
	store := newFakeCampaignStore()
	store.insertErr = errors.New("disk full")
	a := NewAllocator(store, nil)

	_, err := a.Allocate(context.Background(), types.NewCampaignID(), "summer sale", nil)
	assert.ErrorIs(t, err, ErrCreationFailed)
	assert.NotErrorIs(t, err, ErrNameConflict)
}
