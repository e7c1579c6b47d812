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
// Package anthropic implements the model gateway on the Anthropic API.
// The same conversion code backs the direct API client and the Bedrock
// client, which differ only in how the underlying SDK client is built.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jackhunterking/AdPilot-sub003/pkg/llm"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

const (
	DefaultModel       = "claude-sonnet-4-5"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// Config configures the direct Anthropic API client.
type Config struct {
	// APIKey for the Anthropic API. Falls back to ANTHROPIC_API_KEY.
	APIKey string

	// Model identifier. Defaults to DefaultModel.
	Model string

	// MaxTokens per response. Defaults to DefaultMaxTokens.
	MaxTokens int64

	// Temperature for sampling. Defaults to DefaultTemperature.
	Temperature float64

	// RateLimiter optionally bounds the request rate.
	RateLimiter *llm.RateLimiter
}

// Client is the Anthropic-backed model gateway.
type Client struct {
	client      anthropic.Client
	model       string
	name        string
	maxTokens   int64
	temperature float64
	rateLimiter *llm.RateLimiter
}

var (
	_ types.Provider          = (*Client)(nil)
	_ types.StreamingProvider = (*Client)(nil)
)

// New creates a client for the Anthropic API.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key not configured")
	}
	applyDefaults(&cfg)

	client := anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		client:      client,
		model:       cfg.Model,
		name:        "anthropic",
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		rateLimiter: cfg.RateLimiter,
	}, nil
}

// NewFromSDK wraps an already configured SDK client. The Bedrock gateway
// uses this to reuse the conversion code with an AWS-signed transport.
func NewFromSDK(client anthropic.Client, name string, cfg Config) *Client {
	applyDefaults(&cfg)
	return &Client{
		client:      client,
		model:       cfg.Model,
		name:        name,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		rateLimiter: cfg.RateLimiter,
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// Chat sends a conversation to the model and returns the response.
func (c *Client) Chat(ctx context.Context, turns []types.Turn, toolset []tools.Tool) (*types.ModelResponse, error) {
	params, err := c.buildParams(turns, toolset)
	if err != nil {
		return nil, err
	}

	var message *anthropic.Message
	if c.rateLimiter != nil {
		result, err := c.rateLimiter.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return c.client.Messages.New(ctx, *params)
		})
		if err != nil {
			return nil, fmt.Errorf("%s invocation failed: %w", c.name, err)
		}
		message = result.(*anthropic.Message)
	} else {
		message, err = c.client.Messages.New(ctx, *params)
		if err != nil {
			return nil, fmt.Errorf("%s invocation failed: %w", c.name, err)
		}
	}

	return convertResponse(message), nil
}

// ChatStream streams text chunks as they are generated, then returns the
// complete response including any tool calls.
func (c *Client) ChatStream(ctx context.Context, turns []types.Turn, toolset []tools.Tool, cb types.TokenCallback) (*types.ModelResponse, error) {
	params, err := c.buildParams(turns, toolset)
	if err != nil {
		return nil, err
	}

	stream := c.client.Messages.NewStreaming(ctx, *params)

	var (
		content    strings.Builder
		toolCalls  []types.ToolCall
		usage      types.Usage
		stopReason string
	)

	// Tool inputs arrive as JSON fragments keyed by content block index.
	inputBuffers := make(map[int64]*strings.Builder)
	blockToCall := make(map[int64]int)

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			usage.InputTokens = int(event.Message.Usage.InputTokens)

		case "content_block_start":
			if event.ContentBlock.Type == "tool_use" {
				blockToCall[event.Index] = len(toolCalls)
				toolCalls = append(toolCalls, types.ToolCall{
					ID:    event.ContentBlock.ID,
					Name:  event.ContentBlock.Name,
					Input: make(map[string]interface{}),
				})
				inputBuffers[event.Index] = &strings.Builder{}
			}

		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				content.WriteString(event.Delta.Text)
				if cb != nil {
					cb(event.Delta.Text)
				}
			}
			if event.Delta.Type == "input_json_delta" {
				if buf, ok := inputBuffers[event.Index]; ok {
					buf.WriteString(event.Delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if buf, ok := inputBuffers[event.Index]; ok && buf.Len() > 0 {
				var input map[string]interface{}
				if err := json.Unmarshal([]byte(buf.String()), &input); err == nil {
					if idx, ok := blockToCall[event.Index]; ok && idx < len(toolCalls) {
						toolCalls[idx].Input = input
					}
				}
				delete(inputBuffers, event.Index)
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = string(event.Delta.StopReason)
			}
			if event.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(event.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s stream failed: %w", c.name, err)
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return &types.ModelResponse{
		Content:    content.String(),
		ToolCalls:  toolCalls,
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

func (c *Client) buildParams(turns []types.Turn, toolset []tools.Tool) (*anthropic.MessageNewParams, error) {
	system, messages := convertTurns(turns)
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	params := &anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(toolset) > 0 {
		sdkTools, err := convertTools(toolset)
		if err != nil {
			return nil, err
		}
		params.Tools = sdkTools
	}
	return params, nil
}

// convertTurns translates persisted turns into SDK messages. System turns
// are collected into the system prompt; tool results ride in user
// messages, matching the Anthropic message protocol.
func convertTurns(turns []types.Turn) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var messages []anthropic.MessageParam

	for _, turn := range turns {
		switch turn.Role {
		case types.RoleSystem:
			if text := turn.Text(); text != "" {
				systemPrompts = append(systemPrompts, text)
			}

		case types.RoleUser:
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range turn.Parts {
				if part.Kind == types.PartKindText && part.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(part.Text))
				}
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}

		case types.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range turn.Parts {
				switch part.Kind {
				case types.PartKindText:
					if part.Text != "" {
						blocks = append(blocks, anthropic.NewTextBlock(part.Text))
					}
				case types.PartKindToolCall:
					input := part.Input
					if input == nil {
						input = map[string]interface{}{}
					}
					blocks = append(blocks, anthropic.NewToolUseBlock(part.CallID, input, part.Name))
				}
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(blocks...))
			}

		case types.RoleTool:
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range turn.Parts {
				if part.Kind != types.PartKindToolResult {
					continue
				}
				output, isError := renderToolOutput(part)
				blocks = append(blocks, anthropic.NewToolResultBlock(part.CallID, output, isError))
			}
			if len(blocks) > 0 {
				messages = append(messages, anthropic.NewUserMessage(blocks...))
			}
		}
	}

	return strings.Join(systemPrompts, "\n\n"), messages
}

func renderToolOutput(part types.Part) (string, bool) {
	isError := false
	if v, ok := part.Output["success"].(bool); ok {
		isError = !v
	}
	b, err := json.Marshal(part.Output)
	if err != nil {
		return fmt.Sprintf("%v", part.Output), isError
	}
	return string(b), isError
}

func convertTools(toolset []tools.Tool) ([]anthropic.ToolUnionParam, error) {
	sdkTools := make([]anthropic.ToolParam, 0, len(toolset))
	for _, tool := range toolset {
		sdkTool := anthropic.ToolParam{
			Name:        tool.Name(),
			Description: anthropic.String(tool.Description()),
		}

		if schema := tool.InputSchema(); schema != nil {
			schemaJSON, err := schema.ToJSON()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal schema for %s: %w", tool.Name(), err)
			}
			var inputSchema anthropic.ToolInputSchemaParam
			if err := json.Unmarshal(schemaJSON, &inputSchema); err != nil {
				return nil, fmt.Errorf("failed to convert schema for %s: %w", tool.Name(), err)
			}
			sdkTool.InputSchema = inputSchema
		}

		sdkTools = append(sdkTools, sdkTool)
	}

	unions := make([]anthropic.ToolUnionParam, len(sdkTools))
	for i := range sdkTools {
		unions[i] = anthropic.ToolUnionParam{OfTool: &sdkTools[i]}
	}
	return unions, nil
}

func convertResponse(message *anthropic.Message) *types.ModelResponse {
	resp := &types.ModelResponse{
		StopReason: string(message.StopReason),
		Usage: types.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var input map[string]interface{}
			if block.Input != nil {
				_ = json.Unmarshal(block.Input, &input)
			}
			if input == nil {
				input = map[string]interface{}{}
			}
			resp.ToolCalls = append(resp.ToolCalls, types.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return resp
}
