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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

func TestValidator_CleanHistoryPassesThrough(t *testing.T) {
	registry, _ := newChatTestRegistry()
	v := NewValidator(registry, nil)

	history := []types.Turn{
		{Role: types.RoleUser, Parts: []types.Part{types.TextPart("make me an ad")}},
		{Role: types.RoleAssistant, Parts: []types.Part{
			types.TextPart("On it."),
			types.ToolCallPart("c1", "generate_ad_image", map[string]interface{}{"instruction": "sunset"}),
		}},
		{Role: types.RoleTool, Parts: []types.Part{
			types.ToolResultPart("c1", "generate_ad_image", map[string]interface{}{"success": true}, nil),
		}},
	}
	newTurn := types.Turn{Role: types.RoleUser, Parts: []types.Part{types.TextPart("nice")}}

	out := v.Validate(context.Background(), history, newTurn)
	assert.Len(t, out, 4)
}

func TestValidator_UnknownToolDegradesToSingleTurn(t *testing.T) {
	registry, _ := newChatTestRegistry()
	v := NewValidator(registry, nil)

	history := []types.Turn{
		{Role: types.RoleAssistant, Parts: []types.Part{
			types.ToolCallPart("c1", "retired_tool", map[string]interface{}{}),
		}},
	}
	newTurn := types.Turn{Role: types.RoleUser, Parts: []types.Part{types.TextPart("hello")}}

	out := v.Validate(context.Background(), history, newTurn)
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0].Text())
}

func TestValidator_OrphanToolResultDegrades(t *testing.T) {
	registry, _ := newChatTestRegistry()
	v := NewValidator(registry, nil)

	history := []types.Turn{
		{Role: types.RoleTool, Parts: []types.Part{
			types.ToolResultPart("c_orphan", "generate_ad_image", map[string]interface{}{"success": true}, nil),
		}},
	}
	newTurn := types.Turn{Role: types.RoleUser, Parts: []types.Part{types.TextPart("hi")}}

	out := v.Validate(context.Background(), history, newTurn)
	assert.Len(t, out, 1)
}

func TestValidator_SanitizeStripsForeignParts(t *testing.T) {
	registry, _ := newChatTestRegistry()
	v := NewValidator(registry, nil)

	history := []types.Turn{
		// Unknown part kind and a nameless tool call both get stripped,
		// leaving this turn empty; it is dropped entirely.
		{Role: types.RoleAssistant, Parts: []types.Part{
			{Kind: types.PartKind("bogus"), Text: "???"},
			{Kind: types.PartKindToolCall, CallID: "c1"},
		}},
		{Role: types.RoleUser, Parts: []types.Part{types.TextPart("keep me")}},
	}
	newTurn := types.Turn{Role: types.RoleUser, Parts: []types.Part{types.TextPart("new")}}

	out := v.Validate(context.Background(), history, newTurn)
	require.Len(t, out, 2)
	assert.Equal(t, "keep me", out[0].Text())
	assert.Equal(t, "new", out[1].Text())
}
