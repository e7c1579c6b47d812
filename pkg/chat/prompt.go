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
	"strings"

	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

const basePrompt = `You are AdPilot, an assistant that helps users build and launch ad campaigns through conversation.

Work with the tools you are given. Call a tool when the user asks for an action; answer directly when they ask a question. Keep responses short and concrete. Never invent campaign state: if a tool fails, tell the user what failed and what they can do about it.`

// stepGuidance adds workflow-position hints the model should respect.
var stepGuidance = map[string]string{
	"goal":      "The user is choosing a campaign goal. Help them pick one and set it.",
	"location":  "The user is setting up targeting locations.",
	"targeting": "The user is refining audience targeting.",
	"copy":      "The user is working on ad copy.",
	"creative":  "The user is working on ad images.",
	"design":    "The user is working on ad images.",
	"budget":    "The user is setting the campaign budget. Confirm amounts before applying them.",
	"review":    "The user is reviewing the campaign before publishing.",
	"publish":   "The user wants to publish. Make sure they confirm before calling the publish tool.",
}

// systemTurn builds the system prompt for one coordinated run from the
// turn's workflow metadata.
func systemTurn(meta types.TurnMetadata) types.Turn {
	var b strings.Builder
	b.WriteString(basePrompt)

	if guidance, ok := stepGuidance[meta.Step]; ok {
		b.WriteString("\n\nCurrent step: ")
		b.WriteString(meta.Step)
		b.WriteString(". ")
		b.WriteString(guidance)
	}
	if meta.GoalType != "" {
		b.WriteString("\n\nThe campaign goal is ")
		b.WriteString(meta.GoalType)
		b.WriteString(".")
	}
	if meta.EditMode {
		b.WriteString("\n\nThe user is editing one specific asset. Apply their instruction to that asset only; do not touch the others.")
	}
	if meta.LocationSetup && meta.LocationInput != "" {
		b.WriteString("\n\nInitial location setup: target \"")
		b.WriteString(meta.LocationInput)
		b.WriteString("\" and nothing else for now.")
	}

	return types.Turn{
		ID:    types.NewTurnID(),
		Role:  types.RoleSystem,
		Parts: []types.Part{types.TextPart(b.String())},
	}
}
