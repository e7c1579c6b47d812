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
// Package types contains shared types used across the backend. It breaks
// import cycles by providing the conversation model that pkg/chat, pkg/llm
// and pkg/storage all depend on.
package types

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

// Roles for turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// ID prefixes. The resolver dispatches on these shapes.
const (
	ConversationIDPrefix = "conv_"
	CampaignIDPrefix     = "camp_"
	TurnIDPrefix         = "turn_"
)

// NewConversationID generates a conversation identifier.
func NewConversationID() string {
	return ConversationIDPrefix + uuid.New().String()
}

// NewCampaignID generates a campaign identifier.
func NewCampaignID() string {
	return CampaignIDPrefix + uuid.New().String()
}

// NewTurnID generates a turn identifier.
func NewTurnID() string {
	return TurnIDPrefix + uuid.New().String()
}

// IsConversationID reports whether id has the durable-conversation shape.
func IsConversationID(id string) bool {
	return strings.HasPrefix(id, ConversationIDPrefix) && len(id) > len(ConversationIDPrefix)
}

// IsCampaignID reports whether id has the campaign-identifier shape.
func IsCampaignID(id string) bool {
	return strings.HasPrefix(id, CampaignIDPrefix) && len(id) > len(CampaignIDPrefix)
}

// PartKind discriminates the part union.
type PartKind string

const (
	PartKindText       PartKind = "text"
	PartKindToolCall   PartKind = "tool-call"
	PartKindToolResult PartKind = "tool-result"
)

// Part is one ordered element of a turn: text, a tool call, or a tool
// result. Exactly the fields for the part's kind are populated.
type Part struct {
	Kind PartKind `json:"kind"`

	// Text content (kind == text).
	Text string `json:"text,omitempty"`

	// Tool call / result correlation (kind == tool-call or tool-result).
	CallID string `json:"call_id,omitempty"`
	Name   string `json:"name,omitempty"`

	// Input parameters (kind == tool-call).
	Input map[string]interface{} `json:"input,omitempty"`

	// Execution output and annotations (kind == tool-result).
	Output   map[string]interface{} `json:"output,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// ToolCallPart builds a tool-call part.
func ToolCallPart(callID, name string, input map[string]interface{}) Part {
	return Part{Kind: PartKindToolCall, CallID: callID, Name: name, Input: input}
}

// ToolResultPart builds a tool-result part.
func ToolResultPart(callID, name string, output, metadata map[string]interface{}) Part {
	return Part{Kind: PartKindToolResult, CallID: callID, Name: name, Output: output, Metadata: metadata}
}

// Turn is one persisted message: user or assistant, with any tool calls and
// results it produced. Immutable once persisted; Seq (assigned at insert
// time, strictly increasing per conversation, gaps tolerated) is the sole
// ordering key.
type Turn struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           string                 `json:"role"`
	Parts          []Part                 `json:"parts"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Seq            int64                  `json:"seq"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Text returns the concatenated text content of the turn.
func (t *Turn) Text() string {
	var b strings.Builder
	for _, p := range t.Parts {
		if p.Kind == PartKindText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// HasToolParts reports whether the turn carries any tool-call or
// tool-result part.
func (t *Turn) HasToolParts() bool {
	for _, p := range t.Parts {
		if p.Kind == PartKindToolCall || p.Kind == PartKindToolResult {
			return true
		}
	}
	return false
}

// IsEmpty reports whether an assistant turn carries nothing worth
// persisting: no text, no structured metadata, no tool part.
func (t *Turn) IsEmpty() bool {
	return strings.TrimSpace(t.Text()) == "" && len(t.Metadata) == 0 && !t.HasToolParts()
}

// Conversation is the durable chat thread, optionally bound to a campaign.
// The campaign binding is immutable once set; at most one active
// conversation exists per campaign.
type Conversation struct {
	ID         string            `json:"id"`
	Owner      string            `json:"owner,omitempty"`
	CampaignID string            `json:"campaign_id,omitempty"`
	Title      string            `json:"title,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Ephemeral  bool              `json:"-"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// StepContext is the caller-declared workflow position for this turn. Owned
// by the surrounding workspace; consumed, never stored, here.
type StepContext struct {
	Step      string `json:"step,omitempty"`
	ActiveTab string `json:"active_tab,omitempty"`
}

// TurnMetadata is the inbound per-turn metadata envelope.
type TurnMetadata struct {
	StepContext

	// Edit-mode flag plus raw EditReference payload (parsed by the
	// reference lock engine).
	EditMode      bool                   `json:"edit_mode,omitempty"`
	EditReference map[string]interface{} `json:"edit_reference,omitempty"`

	// Single-location setup follow-up.
	LocationSetup bool   `json:"location_setup,omitempty"`
	LocationInput string `json:"location_input,omitempty"`

	// Goal type selected in the workspace.
	GoalType string `json:"goal_type,omitempty"`

	// Fallback campaign binding when the opaque id matches neither shape.
	CampaignID string `json:"campaign_id,omitempty"`
}

// TurnRequest is one inbound request: an opaque identifier, the new turn,
// and the selected model.
type TurnRequest struct {
	ID       string       `json:"id,omitempty"`
	Owner    string       `json:"owner,omitempty"`
	Turn     Turn         `json:"turn"`
	Model    string       `json:"model,omitempty"`
	Metadata TurnMetadata `json:"metadata"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// Usage tracks gateway token usage.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Add accumulates another usage sample.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// ModelResponse is one completed reasoning round from the gateway.
type ModelResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Usage      Usage
}

// Provider is the model-serving gateway boundary. Implementations live in
// pkg/llm; this core only hands over the message list and the curated tool
// contract set.
type Provider interface {
	// Chat sends a conversation to the model and returns the response.
	Chat(ctx context.Context, turns []Turn, toolset []tools.Tool) (*ModelResponse, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// TokenCallback is called for each text chunk during streaming.
// Implementations should be lightweight and non-blocking.
type TokenCallback func(token string)

// StreamingProvider extends Provider with token streaming support.
type StreamingProvider interface {
	Provider

	// ChatStream streams text chunks as they are generated, then returns
	// the complete response. The callback is invoked synchronously and
	// must not block.
	ChatStream(ctx context.Context, turns []Turn, toolset []tools.Tool, cb TokenCallback) (*ModelResponse, error)
}

// SupportsStreaming checks if a provider supports token streaming.
func SupportsStreaming(p Provider) bool {
	_, ok := p.(StreamingProvider)
	return ok
}

// StreamEventKind discriminates outbound stream events.
type StreamEventKind string

const (
	StreamEventText       StreamEventKind = "text"
	StreamEventToolCall   StreamEventKind = "tool-call"
	StreamEventToolResult StreamEventKind = "tool-result"
	StreamEventError      StreamEventKind = "error"
	StreamEventDone       StreamEventKind = "done"
)

// StreamEvent is one incremental output element sent back to the caller
// while the coordinator runs.
type StreamEvent struct {
	Kind      StreamEventKind `json:"kind"`
	Text      string          `json:"text,omitempty"`
	Part      *Part           `json:"part,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// EmitFunc receives stream events. A nil EmitFunc disables streaming.
type EmitFunc func(StreamEvent)

// Emit sends an event if the func is non-nil.
func (f EmitFunc) Emit(ev StreamEvent) {
	if f != nil {
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		f(ev)
	}
}
