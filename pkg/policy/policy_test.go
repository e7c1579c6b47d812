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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// fakeTool records the params it was executed with.
type fakeTool struct {
	name       string
	category   tools.Category
	lastParams map[string]interface{}
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake " + f.name }
func (f *fakeTool) Category() tools.Category   { return f.category }
func (f *fakeTool) RequiresConfirmation() bool { return false }
func (f *fakeTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema("fake", map[string]*tools.JSONSchema{
		"instruction": tools.NewStringSchema("instruction"),
	}, nil)
}

func (f *fakeTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	f.lastParams = params
	return &tools.Result{Success: true}, nil
}

func newTestRegistry() (*tools.Registry, map[string]*fakeTool) {
	set := map[string]*fakeTool{
		"generate_ad_image":       {name: "generate_ad_image", category: tools.CategoryCreative},
		"edit_ad_image":           {name: "edit_ad_image", category: tools.CategoryCreative},
		"regenerate_ad_image":     {name: "regenerate_ad_image", category: tools.CategoryCreative},
		"generate_ad_copy":        {name: "generate_ad_copy", category: tools.CategoryCopy},
		"edit_ad_copy":            {name: "edit_ad_copy", category: tools.CategoryCopy},
		"set_target_locations":    {name: "set_target_locations", category: tools.CategoryTargeting},
		"set_campaign_budget":     {name: "set_campaign_budget", category: tools.CategoryCampaign},
		"publish_campaign":        {name: "publish_campaign", category: tools.CategoryCampaign},
		"update_campaign_details": {name: "update_campaign_details", category: tools.CategoryCampaign},
		"set_campaign_goal":       {name: "set_campaign_goal", category: tools.CategoryGoal},
	}
	registry := tools.NewRegistry()
	for _, t := range set {
		registry.Register(t)
	}
	return registry, set
}

func toolNames(set []tools.Tool) []string {
	names := make([]string, len(set))
	for i, t := range set {
		names[i] = t.Name()
	}
	return names
}

func TestGate_Admissible_GatedSteps(t *testing.T) {
	registry, _ := newTestRegistry()
	gate := NewGate(registry, nil)

	cases := []struct {
		step string
		want []string
	}{
		{"creative", []string{"edit_ad_image", "generate_ad_image", "regenerate_ad_image"}},
		{"design", []string{"edit_ad_image", "generate_ad_image", "regenerate_ad_image"}},
		{"copy", []string{"edit_ad_copy", "generate_ad_copy"}},
		{"location", []string{"set_target_locations"}},
		{"targeting", []string{"set_target_locations"}},
		{"goal", []string{"set_campaign_goal"}},
		{"budget", []string{"publish_campaign", "set_campaign_budget", "update_campaign_details"}},
		{"review", []string{"publish_campaign", "set_campaign_budget", "update_campaign_details"}},
		{"publish", []string{"publish_campaign", "set_campaign_budget", "update_campaign_details"}},
	}
	for _, tc := range cases {
		t.Run(tc.step, func(t *testing.T) {
			assert.Equal(t, tc.want, toolNames(gate.Admissible(tc.step, nil)))
		})
	}
}

func TestGate_Admissible_UnmappedStepAdmitsEverything(t *testing.T) {
	registry, _ := newTestRegistry()
	gate := NewGate(registry, nil)

	assert.Len(t, gate.Admissible("", nil), registry.Count())
	assert.Len(t, gate.Admissible("something-new", nil), registry.Count())
}

func TestGate_Admissible_EditReferenceOverridesStep(t *testing.T) {
	registry, _ := newTestRegistry()
	gate := NewGate(registry, nil)

	// A copy edit arriving while the user sits on the budget step still
	// admits the governed copy tool.
	ref := &EditReference{Category: EditCopy, AssetIndex: 0}
	names := toolNames(gate.Admissible("budget", ref))
	assert.Contains(t, names, "edit_ad_copy")
	assert.Contains(t, names, "set_campaign_budget")
}

func TestGate_CheckMixing(t *testing.T) {
	registry, _ := newTestRegistry()
	gate := NewGate(registry, nil)
	ctx := context.Background()

	mixing := []types.ToolCall{
		{ID: "1", Name: "generate_ad_image"},
		{ID: "2", Name: "set_campaign_budget"},
	}
	v := gate.CheckMixing(ctx, "creative", mixing)
	require.NotNil(t, v)
	assert.Equal(t, "content_structure_mixing", v.Kind)
	assert.Equal(t, "creative", v.Step)
	assert.ElementsMatch(t, []string{"generate_ad_image", "set_campaign_budget"}, v.ToolNames)

	// Same-category pairs are fine.
	assert.Nil(t, gate.CheckMixing(ctx, "creative", []types.ToolCall{
		{ID: "1", Name: "generate_ad_image"},
		{ID: "2", Name: "edit_ad_image"},
	}))

	// Single calls are never mixing.
	assert.Nil(t, gate.CheckMixing(ctx, "creative", mixing[:1]))

	// Ungated steps are not checked.
	assert.Nil(t, gate.CheckMixing(ctx, "", mixing))
}

func TestGate_TruncateLocations(t *testing.T) {
	registry, _ := newTestRegistry()
	gate := NewGate(registry, nil)
	ctx := context.Background()

	input := map[string]interface{}{
		"locations": []interface{}{"Toronto", "Vancouver", "Montreal"},
		"radius_km": 25.0,
	}
	out := gate.TruncateLocations(ctx, input, "Toronto")
	assert.Equal(t, []interface{}{"Toronto"}, out["locations"])
	assert.Equal(t, 25.0, out["radius_km"])

	// The original input map is untouched.
	assert.Len(t, input["locations"], 3)

	// A single proposed location matching the active input passes through.
	single := map[string]interface{}{"locations": []interface{}{"Toronto"}}
	assert.Equal(t, single, gate.TruncateLocations(ctx, single, "Toronto"))

	// A single substituted location is replaced, not trusted.
	swapped := map[string]interface{}{"locations": []interface{}{"Ontario"}}
	out = gate.TruncateLocations(ctx, swapped, "Toronto")
	assert.Equal(t, []interface{}{"Toronto"}, out["locations"])

	// No active input, nothing to enforce.
	assert.Equal(t, input, gate.TruncateLocations(ctx, input, ""))
}

func TestParseEditReference(t *testing.T) {
	ctx := context.Background()
	tracer := observability.NewNoOpTracer()

	t.Run("not in edit mode", func(t *testing.T) {
		assert.Nil(t, ParseEditReference(ctx, types.TurnMetadata{}, tracer))
	})

	t.Run("asset_index zero-based", func(t *testing.T) {
		ref := ParseEditReference(ctx, types.TurnMetadata{
			EditMode: true,
			EditReference: map[string]interface{}{
				"category":    "image-edit",
				"asset_index": float64(2),
				"asset_id":    "img_3",
			},
		}, tracer)
		require.NotNil(t, ref)
		assert.Equal(t, 2, ref.AssetIndex)
		assert.Equal(t, "img_3", ref.AssetID)
		assert.Equal(t, EditImage, ref.Category)
	})

	t.Run("legacy variation is one-based", func(t *testing.T) {
		ref := ParseEditReference(ctx, types.TurnMetadata{
			EditMode: true,
			EditReference: map[string]interface{}{
				"category":  "image-edit",
				"variation": "2",
			},
		}, tracer)
		require.NotNil(t, ref)
		assert.Equal(t, 1, ref.AssetIndex)
	})

	t.Run("unparseable index leaves turn unlocked", func(t *testing.T) {
		for _, bad := range []interface{}{"two", -1, 1.5} {
			ref := ParseEditReference(ctx, types.TurnMetadata{
				EditMode: true,
				EditReference: map[string]interface{}{
					"category":    "image-edit",
					"asset_index": bad,
				},
			}, tracer)
			assert.Nil(t, ref, "index %v should not parse", bad)
		}
	})

	t.Run("unknown category leaves turn unlocked", func(t *testing.T) {
		ref := ParseEditReference(ctx, types.TurnMetadata{
			EditMode: true,
			EditReference: map[string]interface{}{
				"category":    "video-edit",
				"asset_index": 0,
			},
		}, tracer)
		assert.Nil(t, ref)
	})
}

func TestLockTools_EnforcesPinnedAsset(t *testing.T) {
	registry, set := newTestRegistry()
	gate := NewGate(registry, nil)

	ref := &EditReference{AssetIndex: 1, AssetID: "img_2", Category: EditImage}
	locked := LockTools(gate.Admissible("creative", ref), ref)

	var target tools.Tool
	for _, tool := range locked {
		if tool.Name() == "edit_ad_image" {
			target = tool
		}
	}
	require.NotNil(t, target)

	// The model asked for a different asset; the lock wins.
	result, err := target.Execute(context.Background(), map[string]interface{}{
		"instruction": "make it brighter",
		"asset_index": 0,
		"asset_id":    "img_1",
	})
	require.NoError(t, err)

	underlying := set["edit_ad_image"]
	assert.Equal(t, 1, underlying.lastParams["asset_index"])
	assert.Equal(t, "img_2", underlying.lastParams["asset_id"])
	assert.Equal(t, "make it brighter", underlying.lastParams["instruction"])

	// The result is annotated with the pinned identifiers.
	assert.Equal(t, 1, result.Metadata["asset_index"])
	assert.Equal(t, "img_2", result.Metadata["asset_id"])
}

func TestLockTools_NilReferenceIsPassthrough(t *testing.T) {
	registry, _ := newTestRegistry()
	set := registry.ListTools()
	assert.Equal(t, set, LockTools(set, nil))
}
