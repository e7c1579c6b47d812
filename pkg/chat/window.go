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
	"fmt"

	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// DefaultWindowSize is the number of recent turns loaded for context.
const DefaultWindowSize = 80

// WindowLoader fetches the bounded recent slice of a conversation's
// persisted turns.
type WindowLoader struct {
	store storage.TurnStore
	limit int
}

func NewWindowLoader(store storage.TurnStore, limit int) *WindowLoader {
	if limit <= 0 {
		limit = DefaultWindowSize
	}
	return &WindowLoader{store: store, limit: limit}
}

// Load returns up to the configured number of most recent turns in
// ascending sequence order. The new inbound turn is appended in memory by
// the caller, never persisted before validation.
func (w *WindowLoader) Load(ctx context.Context, conversationID string) ([]types.Turn, error) {
	stored, err := w.store.ListTurns(ctx, conversationID, w.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history window: %w", err)
	}

	window := make([]types.Turn, 0, len(stored))
	for _, t := range stored {
		window = append(window, *t)
	}
	return window, nil
}
