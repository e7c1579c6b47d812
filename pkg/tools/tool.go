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
// Package tools defines the tool contract exposed to the model for one
// request: a named, category-tagged, schema-constrained action. The set of
// contracts is registered statically; which subset the model sees on a given
// turn is decided per request by the policy gate, never stored.
package tools

import (
	"context"
	"encoding/json"
)

// Category classifies a tool by the campaign concern it mutates. The enum is
// closed: the policy gate switches over it exhaustively when computing the
// admissible subset for a workflow step.
type Category string

const (
	// CategoryCreative covers image generation and editing.
	CategoryCreative Category = "creative"

	// CategoryCopy covers ad text generation and editing.
	CategoryCopy Category = "copy"

	// CategoryTargeting covers audience and location targeting.
	CategoryTargeting Category = "targeting"

	// CategoryCampaign covers campaign-management mutations
	// (details, budget, publish).
	CategoryCampaign Category = "campaign-management"

	// CategoryGoal covers campaign goal selection.
	CategoryGoal Category = "goal"
)

// AllCategories returns every tool category. Order is stable.
func AllCategories() []Category {
	return []Category{
		CategoryCreative,
		CategoryCopy,
		CategoryTargeting,
		CategoryCampaign,
		CategoryGoal,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCreative, CategoryCopy, CategoryTargeting, CategoryCampaign, CategoryGoal:
		return true
	}
	return false
}

// Tool is the contract for a callable action exposed to the model.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description for model context.
	Description() string

	// Category returns the campaign concern this tool belongs to.
	Category() Category

	// InputSchema returns the JSON Schema for tool parameters.
	InputSchema() *JSONSchema

	// RequiresConfirmation reports whether the caller must confirm the
	// action before its effects are committed (budget, publish).
	RequiresConfirmation() bool

	// Execute runs the tool with given parameters.
	Execute(ctx context.Context, params map[string]interface{}) (*Result, error)
}

// Result represents the outcome of tool execution.
type Result struct {
	// Success indicates if the tool executed successfully.
	Success bool

	// Data contains the result data (format varies by tool).
	Data interface{}

	// Error contains error information if execution failed.
	Error *Error

	// Metadata contains tool-specific metadata. The reference lock engine
	// annotates locked asset identifiers here.
	Metadata map[string]interface{}

	// ExecutionTimeMs is the execution time in milliseconds.
	ExecutionTimeMs int64
}

// SetMeta sets a metadata key, allocating the map on first use.
func (r *Result) SetMeta(key string, value interface{}) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
	r.Metadata[key] = value
}

// Error represents a tool execution error with structured information.
type Error struct {
	// Code is a machine-readable error code.
	Code string

	// Message is a human-readable error message.
	Message string

	// Details provides additional error context.
	Details map[string]interface{}

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// JSONSchema represents a JSON Schema for tool parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	MaxItems    *int                   `json:"maxItems,omitempty"`
}

// ToJSON converts the schema to JSON bytes.
func (s *JSONSchema) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ToMap converts the schema to a generic map, the form the model gateway and
// the validator both consume.
func (s *JSONSchema) ToMap() (map[string]interface{}, error) {
	data, err := s.ToJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewObjectSchema creates a new object schema with the given properties.
func NewObjectSchema(description string, properties map[string]*JSONSchema, required []string) *JSONSchema {
	return &JSONSchema{
		Type:        "object",
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// NewStringSchema creates a new string schema.
func NewStringSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
	}
}

// NewNumberSchema creates a new number schema.
func NewNumberSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "number",
		Description: description,
	}
}

// NewIntegerSchema creates a new integer schema.
func NewIntegerSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "integer",
		Description: description,
	}
}

// NewBooleanSchema creates a new boolean schema.
func NewBooleanSchema(description string) *JSONSchema {
	return &JSONSchema{
		Type:        "boolean",
		Description: description,
	}
}

// NewArraySchema creates a new array schema.
func NewArraySchema(description string, items *JSONSchema) *JSONSchema {
	return &JSONSchema{
		Type:        "array",
		Description: description,
		Items:       items,
	}
}

// WithEnum adds enum values to the schema.
func (s *JSONSchema) WithEnum(values ...interface{}) *JSONSchema {
	s.Enum = values
	return s
}

// WithDefault adds a default value to the schema.
func (s *JSONSchema) WithDefault(value interface{}) *JSONSchema {
	s.Default = value
	return s
}
