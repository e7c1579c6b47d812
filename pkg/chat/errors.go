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
// Package chat orchestrates one conversation turn per request: resolve the
// conversation identity, load the history window, validate it, decide the
// tool policy, run the bounded tool-calling loop, and persist the
// well-formed results.
package chat

import (
	"errors"

	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

var (
	// ErrCampaignBindingRequired means the inbound identifier matched no
	// known shape and metadata carried no campaign binding. A client
	// error, distinct from not-found.
	ErrCampaignBindingRequired = errors.New("chat: campaign binding required")

	// ErrConversationNotFound means a conversation-shaped identifier did
	// not resolve to a stored conversation.
	ErrConversationNotFound = errors.New("chat: conversation not found")

	// ErrNameConflict means campaign name allocation exhausted its
	// attempts without finding a free name.
	ErrNameConflict = errors.New("chat: campaign name conflict")

	// ErrCreationFailed means campaign creation failed for a reason other
	// than name uniqueness.
	ErrCreationFailed = errors.New("chat: campaign creation failed")
)

// Stable user-facing fallback texts. Generation failures never surface raw
// errors to the caller; detail goes to the logs and the tracer.
const (
	fallbackGeneration  = "Something went wrong while generating a response. Please try again."
	fallbackUnknownTool = "I tried to take an action that isn't available right now. Could you rephrase your request?"
	fallbackBadInput    = "I couldn't complete one of the requested actions because its parameters were invalid. Please try again."
	fallbackBudget      = "I couldn't finish everything in one go. Here's what I completed so far."
)

// fallbackForToolError maps a dispatch failure to stable user-facing text.
func fallbackForToolError(err error) string {
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return fallbackUnknownTool
	case errors.Is(err, tools.ErrInvalidInput):
		return fallbackBadInput
	default:
		return fallbackGeneration
	}
}
