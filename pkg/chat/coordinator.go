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

	"go.uber.org/zap"

	"github.com/jackhunterking/AdPilot-sub003/internal/log"
	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/policy"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// DefaultMaxRounds bounds the tool-calling loop per turn.
const DefaultMaxRounds = 5

// locationToolName is the targeting tool subject to single-location
// truncation during guided location setup.
const locationToolName = "set_target_locations"

// Coordinator drives the bounded multi-round tool-calling loop against the
// model gateway, streaming parts as they materialize. It holds no
// per-request state; every Run call derives its policy surface fresh from
// the turn's metadata.
type Coordinator struct {
	provider  types.Provider
	gate      *policy.Gate
	tracer    observability.Tracer
	maxRounds int
}

func NewCoordinator(provider types.Provider, gate *policy.Gate, tracer observability.Tracer, maxRounds int) *Coordinator {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Coordinator{
		provider:  provider,
		gate:      gate,
		tracer:    tracer,
		maxRounds: maxRounds,
	}
}

// Run executes the tool-calling loop over the validated context and
// returns the finished turns in order. Cancellation is cooperative: the
// context is checked between rounds and before each dispatch, and the
// turns completed so far are returned alongside the context error so the
// caller can still attempt best-effort persistence.
//
// Model and dispatch failures never surface raw: the caller receives a
// short stable fallback text while the detail goes to the logs and tracer.
func (c *Coordinator) Run(ctx context.Context, conversationID string, window []types.Turn, meta types.TurnMetadata, emit types.EmitFunc) ([]types.Turn, error) {
	ctx, span := c.tracer.StartSpan(ctx, "chat.coordinate",
		observability.WithAttribute(observability.AttrConversationID, conversationID))
	defer c.tracer.EndSpan(span)

	ref := policy.ParseEditReference(ctx, meta, c.tracer)
	admissible := c.gate.Admissible(meta.Step, ref)
	executor := tools.NewExecutor(policy.LockTools(admissible, ref))

	messages := append([]types.Turn{systemTurn(meta)}, window...)
	var finished []types.Turn

	for round := 1; round <= c.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return finished, err
		}
		span.SetAttribute("rounds", fmt.Sprintf("%d", round))

		resp, err := c.chatRound(ctx, messages, admissible, emit)
		if err != nil {
			if ctx.Err() != nil {
				return finished, ctx.Err()
			}
			return append(finished, c.failTurn(ctx, conversationID, err, emit)), nil
		}

		assistant := assistantTurn(conversationID, resp)
		for i := range assistant.Parts {
			if assistant.Parts[i].Kind == types.PartKindToolCall {
				emit.Emit(types.StreamEvent{Kind: types.StreamEventToolCall, Part: &assistant.Parts[i]})
			}
		}
		messages = append(messages, assistant)
		finished = append(finished, assistant)

		if len(resp.ToolCalls) == 0 {
			return finished, nil
		}

		c.gate.CheckMixing(ctx, meta.Step, resp.ToolCalls)

		toolTurn, err := c.dispatchRound(ctx, conversationID, resp.ToolCalls, meta, executor, emit)
		if err != nil {
			return finished, err
		}
		messages = append(messages, toolTurn)
		finished = append(finished, toolTurn)
	}

	// Round budget exhausted: one final call without tools to synthesize
	// what was accomplished.
	synthesis := c.synthesize(ctx, conversationID, messages, emit)
	return append(finished, synthesis), nil
}

// chatRound performs one gateway round, streaming text deltas when the
// provider supports it.
func (c *Coordinator) chatRound(ctx context.Context, messages []types.Turn, toolset []tools.Tool, emit types.EmitFunc) (*types.ModelResponse, error) {
	if streaming, ok := c.provider.(types.StreamingProvider); ok {
		return streaming.ChatStream(ctx, messages, toolset, func(token string) {
			emit.Emit(types.StreamEvent{Kind: types.StreamEventText, Text: token})
		})
	}

	resp, err := c.provider.Chat(ctx, messages, toolset)
	if err != nil {
		return nil, err
	}
	if resp.Content != "" {
		emit.Emit(types.StreamEvent{Kind: types.StreamEventText, Text: resp.Content})
	}
	return resp, nil
}

// dispatchRound executes one round's tool calls in order and assembles the
// tool turn. Dispatch failures become failed tool results the model sees
// next round; only cancellation aborts the loop.
func (c *Coordinator) dispatchRound(ctx context.Context, conversationID string, calls []types.ToolCall, meta types.TurnMetadata, executor *tools.Executor, emit types.EmitFunc) (types.Turn, error) {
	toolTurn := types.Turn{
		ID:             types.NewTurnID(),
		ConversationID: conversationID,
		Role:           types.RoleTool,
	}

	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return toolTurn, err
		}

		input := call.Input
		if meta.LocationSetup && call.Name == locationToolName {
			input = c.gate.TruncateLocations(ctx, input, meta.LocationInput)
		}

		result, err := executor.Execute(ctx, call.Name, input)
		if err != nil {
			log.Warn("tool dispatch failed",
				zap.String("conversation_id", conversationID),
				zap.String("tool", call.Name),
				zap.Error(err),
			)
		}

		part := types.ToolResultPart(call.ID, call.Name, resultOutput(result), result.Metadata)
		toolTurn.Parts = append(toolTurn.Parts, part)
		emit.Emit(types.StreamEvent{Kind: types.StreamEventToolResult, Part: &part})
	}
	return toolTurn, nil
}

// synthesize asks the model for a closing answer with no tools exposed.
// On failure the caller still gets a stable budget fallback.
func (c *Coordinator) synthesize(ctx context.Context, conversationID string, messages []types.Turn, emit types.EmitFunc) types.Turn {
	guidance := types.Turn{
		ConversationID: conversationID,
		Role:           types.RoleUser,
		Parts: []types.Part{types.TextPart(
			"Wrap up now: summarize what you accomplished and what remains, without taking further actions.",
		)},
	}

	resp, err := c.chatRound(ctx, append(messages, guidance), nil, emit)
	if err != nil {
		log.Warn("synthesis round failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		emit.Emit(types.StreamEvent{Kind: types.StreamEventText, Text: fallbackBudget})
		return types.Turn{
			ID:             types.NewTurnID(),
			ConversationID: conversationID,
			Role:           types.RoleAssistant,
			Parts:          []types.Part{types.TextPart(fallbackBudget)},
		}
	}

	turn := assistantTurn(conversationID, resp)
	// Tool calls from a no-tools synthesis round are not dispatched.
	return turn
}

// failTurn converts a gateway failure into a fallback assistant turn.
func (c *Coordinator) failTurn(ctx context.Context, conversationID string, err error, emit types.EmitFunc) types.Turn {
	log.Error("model round failed",
		zap.String("conversation_id", conversationID),
		zap.Error(err),
	)
	span := observability.SpanFromContext(ctx)
	if span != nil {
		span.RecordError(err)
	}

	text := fallbackForToolError(err)
	emit.Emit(types.StreamEvent{Kind: types.StreamEventText, Text: text})
	emit.Emit(types.StreamEvent{Kind: types.StreamEventError, Error: text})
	return types.Turn{
		ID:             types.NewTurnID(),
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
		Parts:          []types.Part{types.TextPart(text)},
	}
}

func assistantTurn(conversationID string, resp *types.ModelResponse) types.Turn {
	turn := types.Turn{
		ID:             types.NewTurnID(),
		ConversationID: conversationID,
		Role:           types.RoleAssistant,
	}
	if resp.Content != "" {
		turn.Parts = append(turn.Parts, types.TextPart(resp.Content))
	}
	for _, call := range resp.ToolCalls {
		turn.Parts = append(turn.Parts, types.ToolCallPart(call.ID, call.Name, call.Input))
	}
	return turn
}

func resultOutput(result *tools.Result) map[string]interface{} {
	out := map[string]interface{}{"success": result.Success}
	if result.Data != nil {
		out["data"] = result.Data
	}
	if result.Error != nil {
		out["error"] = map[string]interface{}{
			"code":    result.Error.Code,
			"message": result.Error.Message,
		}
	}
	return out
}
