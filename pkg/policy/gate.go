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
package policy

import (
	"context"
	"sort"

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// stepCategories maps a builder step to the tool categories admissible
// while the user is on it. Steps absent from the table are ungated: the
// full registry is admissible.
var stepCategories = map[string][]tools.Category{
	"goal":      {tools.CategoryGoal},
	"location":  {tools.CategoryTargeting},
	"targeting": {tools.CategoryTargeting},
	"copy":      {tools.CategoryCopy},
	"creative":  {tools.CategoryCreative},
	"design":    {tools.CategoryCreative},
	"budget":    {tools.CategoryCampaign},
	"review":    {tools.CategoryCampaign},
	"publish":   {tools.CategoryCampaign},
}

// contentCategories and structureCategories partition tool categories for
// the mixing check: a single gated turn must not combine asset generation
// with campaign structure changes.
var (
	contentCategories   = map[tools.Category]bool{tools.CategoryCreative: true, tools.CategoryCopy: true}
	structureCategories = map[tools.Category]bool{tools.CategoryCampaign: true, tools.CategoryTargeting: true}
)

// Violation describes a policy anomaly observed on a turn. Violations are
// recorded and surfaced to the caller; they never abort the turn.
type Violation struct {
	Kind       string
	Step       string
	ToolNames  []string
	Categories []string
}

// Gate computes the per-turn tool surface from the caller's step context
// and records policy anomalies. It reads the registry but never mutates it.
type Gate struct {
	registry *tools.Registry
	tracer   observability.Tracer
}

func NewGate(registry *tools.Registry, tracer observability.Tracer) *Gate {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Gate{registry: registry, tracer: tracer}
}

// Gated reports whether the step restricts the tool surface.
func Gated(step string) bool {
	_, ok := stepCategories[step]
	return ok
}

// Admissible returns the tools the model may see for this turn, sorted by
// name. An unmapped step admits the whole registry. An active edit
// reference overrides the step restriction for its own category: the
// governed mutation tool is always admissible while the lock holds.
func (g *Gate) Admissible(step string, ref *EditReference) []tools.Tool {
	cats, gated := stepCategories[step]
	if !gated {
		return g.registry.ListTools()
	}

	if ref != nil {
		if refCat, ok := ref.Category.toolCategory(); ok && !containsCategory(cats, refCat) {
			cats = append(append([]tools.Category{}, cats...), refCat)
		}
	}

	set := g.registry.ListByCategory(cats...)
	sort.Slice(set, func(i, j int) bool { return set[i].Name() < set[j].Name() })
	return set
}

func containsCategory(cats []tools.Category, c tools.Category) bool {
	for _, have := range cats {
		if have == c {
			return true
		}
	}
	return false
}

// CheckMixing inspects one round of proposed tool calls and reports a
// violation when a gated step mixes content generation with structural
// campaign changes. The violation is recorded through the tracer and
// returned for result annotation; execution proceeds regardless.
func (g *Gate) CheckMixing(ctx context.Context, step string, calls []types.ToolCall) *Violation {
	if !Gated(step) || len(calls) < 2 {
		return nil
	}

	var content, structure bool
	var names, cats []string
	for _, call := range calls {
		cat, ok := g.registry.CategoryOf(call.Name)
		if !ok {
			continue
		}
		if contentCategories[cat] {
			content = true
		}
		if structureCategories[cat] {
			structure = true
		}
		names = append(names, call.Name)
		cats = append(cats, string(cat))
	}
	if !content || !structure {
		return nil
	}

	v := &Violation{
		Kind:       "content_structure_mixing",
		Step:       step,
		ToolNames:  names,
		Categories: cats,
	}
	g.tracer.RecordEvent(ctx, observability.EventPolicyViolation, map[string]interface{}{
		"kind":                 v.Kind,
		observability.AttrStep: step,
		"tools":                names,
	})
	return v
}

// TruncateLocations narrows a location-targeting call to the single
// location the user is actively configuring. During guided location setup
// the model sometimes proposes the full accumulated list, or substitutes a
// location the user never typed; only the current input may be applied.
// Recorded as a validation fallback, not an error.
func (g *Gate) TruncateLocations(ctx context.Context, input map[string]interface{}, current string) map[string]interface{} {
	if current == "" {
		return input
	}
	proposed, ok := input["locations"].([]interface{})
	if !ok {
		return input
	}
	if len(proposed) == 1 {
		if name, ok := proposed[0].(string); ok && name == current {
			return input
		}
	}

	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		out[k] = v
	}
	out["locations"] = []interface{}{current}

	g.tracer.RecordEvent(ctx, observability.EventValidationFallback, map[string]interface{}{
		"reason":   "location list truncated to active input",
		"proposed": len(proposed),
	})
	return out
}
