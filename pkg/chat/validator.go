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

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// Validator merges history with the new turn and checks every tool part
// against the registered contracts. Validation never hard-fails a request:
// a broken history degrades to a fresh single-turn context while the
// persisted turns stay untouched.
type Validator struct {
	registry *tools.Registry
	tracer   observability.Tracer
}

func NewValidator(registry *tools.Registry, tracer observability.Tracer) *Validator {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Validator{registry: registry, tracer: tracer}
}

// Validate sanitizes the history, appends the new turn, and verifies tool
// parts against the registered contracts. On any failure it records
// EventValidationFallback and returns a context holding only the new turn.
func (v *Validator) Validate(ctx context.Context, history []types.Turn, newTurn types.Turn) []types.Turn {
	merged := append(v.sanitize(history), newTurn)

	if err := v.check(merged); err != nil {
		v.tracer.RecordEvent(ctx, observability.EventValidationFallback, map[string]interface{}{
			observability.AttrConversationID: newTurn.ConversationID,
			"reason":                         err.Error(),
			"history_len":                    len(history),
		})
		return []types.Turn{newTurn}
	}
	return merged
}

// sanitize strips structurally foreign parts: unknown part kinds,
// tool calls without a name, tool results without a correlation id. Turns
// left with no parts are dropped.
func (v *Validator) sanitize(history []types.Turn) []types.Turn {
	out := make([]types.Turn, 0, len(history))
	for _, turn := range history {
		kept := make([]types.Part, 0, len(turn.Parts))
		for _, part := range turn.Parts {
			switch part.Kind {
			case types.PartKindText:
				kept = append(kept, part)
			case types.PartKindToolCall:
				if part.Name != "" {
					kept = append(kept, part)
				}
			case types.PartKindToolResult:
				if part.CallID != "" {
					kept = append(kept, part)
				}
			}
		}
		if len(kept) == 0 {
			continue
		}
		turn.Parts = kept
		out = append(out, turn)
	}
	return out
}

// check validates every tool-call input against its contract schema and
// every tool-result against the calls seen so far.
func (v *Validator) check(turns []types.Turn) error {
	callIDs := make(map[string]bool)

	for _, turn := range turns {
		for _, part := range turn.Parts {
			switch part.Kind {
			case types.PartKindToolCall:
				tool, ok := v.registry.Get(part.Name)
				if !ok {
					return fmt.Errorf("tool call references unregistered contract %q", part.Name)
				}
				if err := tools.ValidateInput(tool, part.Input); err != nil {
					return fmt.Errorf("tool call %q input invalid: %w", part.Name, err)
				}
				callIDs[part.CallID] = true

			case types.PartKindToolResult:
				if !callIDs[part.CallID] {
					return fmt.Errorf("tool result %q has no matching call", part.CallID)
				}
				if part.Output == nil {
					return fmt.Errorf("tool result %q has no output", part.CallID)
				}
			}
		}
	}
	return nil
}
