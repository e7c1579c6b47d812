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
package summarizer

import (
	"encoding/json"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// TokenCounter measures conversation size for the summarization threshold.
// Uses tiktoken with cl100k_base encoding, a workable approximation for
// the models the gateway serves.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalCounter *TokenCounter
	counterOnce   sync.Once
)

// GetTokenCounter returns the shared token counter.
func GetTokenCounter() *TokenCounter {
	counterOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Char-based estimation takes over below.
			globalCounter = &TokenCounter{}
			return
		}
		globalCounter = &TokenCounter{encoder: tkm}
	})
	return globalCounter
}

// CountTokens returns the token count for the text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoder == nil {
		return len(text) / 4
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoder.Encode(text, nil, nil))
}

// CountTurns returns the cumulative token count over the turns, with a
// small per-turn overhead for message structure. Tool-call inputs and
// tool-result outputs count too; in a campaign-building conversation they
// carry most of the volume.
func (tc *TokenCounter) CountTurns(turns []*types.Turn) int {
	total := 0
	for _, turn := range turns {
		total += 4
		for _, part := range turn.Parts {
			switch part.Kind {
			case types.PartKindText:
				total += tc.CountTokens(part.Text)
			case types.PartKindToolCall:
				total += tc.CountTokens(part.Name) + tc.countJSON(part.Input)
			case types.PartKindToolResult:
				total += tc.countJSON(part.Output)
			}
		}
	}
	return total
}

func (tc *TokenCounter) countJSON(v map[string]interface{}) int {
	if len(v) == 0 {
		return 0
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return tc.CountTokens(string(raw))
}
