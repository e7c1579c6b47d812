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
// Package storage defines the persistence contracts for conversations,
// turns, and campaign name allocation. Implementations live in
// subpackages; callers depend only on these interfaces.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateName is returned when a campaign name is already taken.
	ErrDuplicateName = errors.New("storage: duplicate name")
)

// ConversationStore persists conversation threads.
type ConversationStore interface {
	// CreateConversation inserts a new conversation.
	CreateConversation(ctx context.Context, conv *types.Conversation) error

	// GetConversation returns the conversation or ErrNotFound.
	GetConversation(ctx context.Context, id string) (*types.Conversation, error)

	// GetOrCreateByCampaign returns the conversation bound to the
	// campaign, creating it atomically when absent. Concurrent callers
	// for the same campaign converge on one thread; created reports
	// whether this call performed the insert.
	GetOrCreateByCampaign(ctx context.Context, campaignID, owner string) (conv *types.Conversation, created bool, err error)

	// ListConversations returns the owner's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, owner string, limit int) ([]*types.Conversation, error)

	// SetTitle sets the conversation title.
	SetTitle(ctx context.Context, id, title string) error

	// MergeMetadata merges the given keys into the conversation's
	// metadata, overwriting existing keys.
	MergeMetadata(ctx context.Context, id string, meta map[string]string) error
}

// TurnStore persists the turns of a conversation.
type TurnStore interface {
	// AppendTurn inserts the turn with the next sequence number for its
	// conversation and returns the assigned number. Sequence numbers are
	// strictly increasing per conversation, also under concurrency.
	AppendTurn(ctx context.Context, turn *types.Turn) (int64, error)

	// ListTurns returns up to limit of the most recent turns, in
	// ascending sequence order. limit <= 0 returns all turns.
	ListTurns(ctx context.Context, conversationID string, limit int) ([]*types.Turn, error)

	// CountTurns returns the number of persisted turns.
	CountTurns(ctx context.Context, conversationID string) (int64, error)
}

// CampaignStore allocates campaign records under unique names.
type CampaignStore interface {
	// InsertCampaign creates a campaign with the given unique name.
	// Returns ErrDuplicateName when the name is taken.
	InsertCampaign(ctx context.Context, id, name string) error

	// GetCampaignName returns the name of a campaign or ErrNotFound.
	GetCampaignName(ctx context.Context, id string) (string, error)
}

// Maintainer exposes the background housekeeping hooks the maintenance
// sweep runs on a schedule.
type Maintainer interface {
	// PruneEmptyConversations deletes conversations that have no turns
	// and were last updated before the cutoff. Returns the number
	// removed.
	PruneEmptyConversations(ctx context.Context, olderThan time.Duration) (int64, error)

	// ListActiveConversationIDs returns ids of conversations updated
	// since the cutoff, most recently updated first.
	ListActiveConversationIDs(ctx context.Context, since time.Duration, limit int) ([]string, error)
}

// Store is the full persistence surface.
type Store interface {
	ConversationStore
	TurnStore
	CampaignStore
	Maintainer

	Close() error
}
