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
package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

func boundCtx(campaignID string) context.Context {
	return ContextWithCampaign(context.Background(), campaignID)
}

func TestRegister_WiresFullToolSet(t *testing.T) {
	registry := tools.NewRegistry()
	Register(registry, NewMemoryServices())
	assert.Equal(t, 10, registry.Count())

	for _, name := range []string{
		"generate_ad_image", "edit_ad_image", "regenerate_ad_image",
		"generate_ad_copy", "edit_ad_copy", "set_target_locations",
		"update_campaign_details", "set_campaign_budget",
		"publish_campaign", "set_campaign_goal",
	} {
		_, ok := registry.Get(name)
		assert.True(t, ok, name)
	}
}

func TestTools_RequireBoundCampaign(t *testing.T) {
	services := NewMemoryServices()
	for _, tool := range All(services) {
		result, err := tool.Execute(context.Background(), map[string]interface{}{})
		require.NoError(t, err, tool.Name())
		require.NotNil(t, result, tool.Name())
		assert.False(t, result.Success, tool.Name())
		require.NotNil(t, result.Error, tool.Name())
		assert.Equal(t, "campaign_binding_required", result.Error.Code, tool.Name())
	}
}

func TestSetTargetLocations(t *testing.T) {
	geocoder := NewMemoryGeocoder()
	geocoder.Unknown = map[string]bool{"Atlantis": true}
	campaigns := NewMemoryCampaignService()
	tool := NewSetTargetLocationsTool(geocoder, campaigns)
	ctx := boundCtx("cmp_1")

	t.Run("resolves and applies radius", func(t *testing.T) {
		result, err := tool.Execute(ctx, map[string]interface{}{
			"locations": []interface{}{"Toronto", "Atlantis", "Vancouver"},
			"radius_km": float64(25),
		})
		require.NoError(t, err)
		require.True(t, result.Success)

		data := result.Data.(map[string]interface{})
		resolved := data["locations"].([]Location)
		require.Len(t, resolved, 2)
		assert.Equal(t, "Toronto", resolved[0].Name)
		assert.Equal(t, 25.0, resolved[0].RadiusKm)
		assert.Equal(t, []string{"Atlantis"}, data["unresolved"].([]string))

		_, _, locations, _ := campaigns.Snapshot("cmp_1")
		assert.Len(t, locations, 2)
	})

	t.Run("all unresolved fails retryably", func(t *testing.T) {
		result, err := tool.Execute(ctx, map[string]interface{}{
			"locations": []interface{}{"Atlantis"},
		})
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.Equal(t, "geocode_failed", result.Error.Code)
		assert.True(t, result.Error.Retryable)
	})

	t.Run("missing locations rejected", func(t *testing.T) {
		result, err := tool.Execute(ctx, map[string]interface{}{})
		require.NoError(t, err)
		assert.False(t, result.Success)
	})
}

func TestCampaignLifecycle(t *testing.T) {
	campaigns := NewMemoryCampaignService()
	ctx := boundCtx("cmp_2")

	publish := NewPublishCampaignTool(campaigns)
	result, err := publish.Execute(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, result.Success, "publish before budget is rejected")

	goal := NewSetCampaignGoalTool(campaigns)
	result, err = goal.Execute(ctx, map[string]interface{}{"goal": "traffic"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	budget := NewSetCampaignBudgetTool(campaigns)
	result, err = budget.Execute(ctx, map[string]interface{}{"daily_amount": float64(50)})
	require.NoError(t, err)
	require.True(t, result.Success)
	data := result.Data.(map[string]interface{})
	assert.Equal(t, "USD", data["currency"], "currency defaults when omitted")

	result, err = publish.Execute(ctx, map[string]interface{}{"confirmed": true})
	require.NoError(t, err)
	require.True(t, result.Success)

	budgetAmount, goalValue, _, status := campaigns.Snapshot("cmp_2")
	assert.Equal(t, 50.0, budgetAmount)
	assert.Equal(t, "traffic", goalValue)
	assert.Equal(t, "published", status)
}

func TestUpdateCampaignDetails(t *testing.T) {
	campaigns := NewMemoryCampaignService()
	tool := NewUpdateCampaignDetailsTool(campaigns)
	ctx := boundCtx("cmp_3")

	result, err := tool.Execute(ctx, map[string]interface{}{
		"name":        "Fall Launch",
		"landing_url": "https://example.com",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	result, err = tool.Execute(ctx, map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, result.Success, "empty update is rejected")
}

func TestMemoryImageService(t *testing.T) {
	svc := NewMemoryImageService()
	ctx := context.Background()

	assets, err := svc.Generate(ctx, "cmp_4", "coffee beans", 2)
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, 0, assets[0].Index)
	assert.Equal(t, 1, assets[1].Index)

	edited, err := svc.Edit(ctx, "cmp_4", assets[0].ID, "warmer light")
	require.NoError(t, err)
	assert.Equal(t, assets[0].ID, edited.ID)

	replaced, err := svc.Regenerate(ctx, "cmp_4", assets[1].ID, "night scene")
	require.NoError(t, err)
	assert.NotEqual(t, assets[1].ID, replaced.ID)
	assert.Equal(t, assets[1].Index, replaced.Index, "regeneration keeps the slot")

	_, err = svc.Edit(ctx, "cmp_4", assets[1].ID, "again")
	assert.Error(t, err, "regenerated asset replaces the old id")
}
