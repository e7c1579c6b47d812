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
package tools

import (
	"context"
	"fmt"
	"time"
)

// ErrUnknownTool is returned (wrapped) when a requested tool is not in the
// execution set for the current turn.
var ErrUnknownTool = fmt.Errorf("unknown tool")

// ErrInvalidInput is returned (wrapped) when tool-call input fails schema
// validation.
var ErrInvalidInput = fmt.Errorf("invalid tool input")

// Executor dispatches tool calls against a fixed per-turn tool set.
//
// The set is the already-gated, already-lock-wrapped slice computed for one
// turn, not the global registry: dispatching through the registry would
// bypass the per-request lock decorators.
type Executor struct {
	byName map[string]Tool
}

// NewExecutor creates an executor over the given per-turn tool set.
func NewExecutor(set []Tool) *Executor {
	byName := make(map[string]Tool, len(set))
	for _, t := range set {
		byName[t.Name()] = t
	}
	return &Executor{byName: byName}
}

// Get returns a tool from the execution set.
func (e *Executor) Get(name string) (Tool, bool) {
	t, ok := e.byName[name]
	return t, ok
}

// Execute validates input against the tool's contract schema and runs it.
// Validation failures and unknown tools come back as a failed Result plus a
// typed error, so callers can both feed the model a structured tool error
// and classify the failure.
func (e *Executor) Execute(ctx context.Context, name string, input map[string]interface{}) (*Result, error) {
	tool, ok := e.byName[name]
	if !ok {
		return &Result{
			Success: false,
			Error:   &Error{Code: "unknown_tool", Message: fmt.Sprintf("tool not available this turn: %s", name)},
		}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if err := ValidateInput(tool, input); err != nil {
		return &Result{
			Success: false,
			Error:   &Error{Code: "invalid_input", Message: err.Error()},
		}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, input)
	if err != nil {
		return &Result{
			Success:         false,
			Error:           &Error{Code: "execution_error", Message: err.Error(), Retryable: true},
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, err
	}
	if result == nil {
		result = &Result{Success: true}
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
