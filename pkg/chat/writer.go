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

	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/internal/log"
	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
	"github.com/jackhunterking/AdPilot-sub003/pkg/summarizer"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// Writer appends finished turns to the conversation log and triggers the
// asynchronous title and summarization work. By the time Commit runs the
// response has already been streamed, so persistence failures are caught
// and recorded, never propagated.
type Writer struct {
	store      storage.Store
	summarizer *summarizer.Worker
	tracer     observability.Tracer
}

func NewWriter(store storage.Store, worker *summarizer.Worker, tracer observability.Tracer) *Writer {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Writer{store: store, summarizer: worker, tracer: tracer}
}

// Commit persists the well-formed turns in order and returns how many were
// written. Empty assistant turns are dropped and recorded. Runs detached
// from the request's cancellation so a caller disconnect does not lose
// turns that finished before it.
func (w *Writer) Commit(ctx context.Context, conv *types.Conversation, turns []types.Turn) int {
	if conv.Ephemeral {
		return 0
	}
	ctx = context.WithoutCancel(ctx)

	ctx, span := w.tracer.StartSpan(ctx, "chat.commit",
		observability.WithAttribute(observability.AttrConversationID, conv.ID))
	defer w.tracer.EndSpan(span)

	persisted := 0
	for i := range turns {
		turn := turns[i]
		turn.ConversationID = conv.ID

		if turn.Role == types.RoleAssistant && turn.IsEmpty() {
			w.tracer.RecordEvent(ctx, observability.EventEmptyTurnDropped, map[string]interface{}{
				observability.AttrConversationID: conv.ID,
				"turn_id":                        turn.ID,
			})
			continue
		}

		if _, err := w.store.AppendTurn(ctx, &turn); err != nil {
			w.tracer.RecordEvent(ctx, observability.EventPersistenceFailure, map[string]interface{}{
				observability.AttrConversationID: conv.ID,
				observability.AttrErrorMessage:   err.Error(),
			})
			log.Error("failed to persist turn",
				zap.String("conversation_id", conv.ID),
				zap.String("role", turn.Role),
				zap.Error(err),
			)
			continue
		}
		persisted++
	}

	if persisted > 0 && w.summarizer != nil {
		if conv.Title == "" {
			w.summarizer.EnqueueTitle(conv.ID)
		}
		w.summarizer.EnqueueSummarize(conv.ID)
	}
	return persisted
}
