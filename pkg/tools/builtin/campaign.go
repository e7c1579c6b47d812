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
	"time"

	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

// campaignGoals are the goal types a campaign can optimize for.
var campaignGoals = []interface{}{"awareness", "traffic", "leads", "sales", "engagement"}

// UpdateCampaignDetailsTool applies free-form detail changes to the
// campaign draft (name, description, landing page).
type UpdateCampaignDetailsTool struct {
	campaigns CampaignService
}

func NewUpdateCampaignDetailsTool(campaigns CampaignService) *UpdateCampaignDetailsTool {
	return &UpdateCampaignDetailsTool{campaigns: campaigns}
}

func (t *UpdateCampaignDetailsTool) Name() string { return "update_campaign_details" }
func (t *UpdateCampaignDetailsTool) Category() tools.Category { return tools.CategoryCampaign }
func (t *UpdateCampaignDetailsTool) RequiresConfirmation() bool { return false }

func (t *UpdateCampaignDetailsTool) Description() string {
	return "Updates campaign draft details such as name, description, or landing page URL. Only pass the fields the user asked to change."
}

func (t *UpdateCampaignDetailsTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Campaign detail fields to update",
		map[string]*tools.JSONSchema{
			"name":        tools.NewStringSchema("New campaign name"),
			"description": tools.NewStringSchema("New campaign description"),
			"landing_url": tools.NewStringSchema("Landing page URL for the ads"),
		},
		nil,
	)
}

func (t *UpdateCampaignDetailsTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}

	fields := make(map[string]interface{})
	for _, key := range []string{"name", "description", "landing_url"} {
		if v := stringParam(params, key); v != "" {
			fields[key] = v
		}
	}
	if len(fields) == 0 {
		return failure("INVALID_PARAMS", "at least one field to update is required", false), nil
	}

	if err := t.campaigns.UpdateDetails(ctx, campaignID, fields); err != nil {
		return serviceFailure("campaign update", err), nil
	}

	result := success(map[string]interface{}{"updated": fields})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// SetCampaignBudgetTool sets the campaign's daily budget. Budget changes
// take money effect on publish, so the caller must confirm.
type SetCampaignBudgetTool struct {
	campaigns CampaignService
}

func NewSetCampaignBudgetTool(campaigns CampaignService) *SetCampaignBudgetTool {
	return &SetCampaignBudgetTool{campaigns: campaigns}
}

func (t *SetCampaignBudgetTool) Name() string { return "set_campaign_budget" }
func (t *SetCampaignBudgetTool) Category() tools.Category { return tools.CategoryCampaign }
func (t *SetCampaignBudgetTool) RequiresConfirmation() bool { return true }

func (t *SetCampaignBudgetTool) Description() string {
	return "Sets the campaign's daily budget. Requires user confirmation before taking effect."
}

func (t *SetCampaignBudgetTool) InputSchema() *tools.JSONSchema {
	min := 1.0
	schema := tools.NewObjectSchema(
		"Daily budget for the campaign",
		map[string]*tools.JSONSchema{
			"daily_amount": tools.NewNumberSchema("Daily budget amount"),
			"currency":     tools.NewStringSchema("ISO 4217 currency code").WithDefault("USD"),
		},
		[]string{"daily_amount"},
	)
	schema.Properties["daily_amount"].Minimum = &min
	return schema
}

func (t *SetCampaignBudgetTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	amount, ok := floatParam(params, "daily_amount")
	if !ok || amount <= 0 {
		return missingParam("daily_amount"), nil
	}
	currency := stringParam(params, "currency")
	if currency == "" {
		currency = "USD"
	}

	if err := t.campaigns.SetBudget(ctx, campaignID, amount, currency); err != nil {
		return serviceFailure("budget update", err), nil
	}

	result := success(map[string]interface{}{
		"daily_amount": amount,
		"currency":     currency,
	})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// PublishCampaignTool submits the campaign draft for delivery. Publishing
// is outward-facing, so the caller must confirm.
type PublishCampaignTool struct {
	campaigns CampaignService
}

func NewPublishCampaignTool(campaigns CampaignService) *PublishCampaignTool {
	return &PublishCampaignTool{campaigns: campaigns}
}

func (t *PublishCampaignTool) Name() string { return "publish_campaign" }
func (t *PublishCampaignTool) Category() tools.Category { return tools.CategoryCampaign }
func (t *PublishCampaignTool) RequiresConfirmation() bool { return true }

func (t *PublishCampaignTool) Description() string {
	return "Publishes the campaign, submitting it for ad delivery. Requires user confirmation."
}

func (t *PublishCampaignTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for publishing the campaign",
		map[string]*tools.JSONSchema{
			"confirmed": tools.NewBooleanSchema("Set true only after the user explicitly confirmed"),
		},
		nil,
	)
}

func (t *PublishCampaignTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}

	status, err := t.campaigns.Publish(ctx, campaignID)
	if err != nil {
		return serviceFailure("publish", err), nil
	}

	result := success(map[string]interface{}{"status": status})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// SetCampaignGoalTool records what the campaign optimizes for. Goal
// selection drives which builder steps follow, so it has its own category.
type SetCampaignGoalTool struct {
	campaigns CampaignService
}

func NewSetCampaignGoalTool(campaigns CampaignService) *SetCampaignGoalTool {
	return &SetCampaignGoalTool{campaigns: campaigns}
}

func (t *SetCampaignGoalTool) Name() string { return "set_campaign_goal" }
func (t *SetCampaignGoalTool) Category() tools.Category { return tools.CategoryGoal }
func (t *SetCampaignGoalTool) RequiresConfirmation() bool { return false }

func (t *SetCampaignGoalTool) Description() string {
	return "Sets the campaign's optimization goal: awareness, traffic, leads, sales, or engagement."
}

func (t *SetCampaignGoalTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Campaign goal selection",
		map[string]*tools.JSONSchema{
			"goal": tools.NewStringSchema("Optimization goal").WithEnum(campaignGoals...),
		},
		[]string{"goal"},
	)
}

func (t *SetCampaignGoalTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	goal := stringParam(params, "goal")
	if goal == "" {
		return missingParam("goal"), nil
	}

	if err := t.campaigns.SetGoal(ctx, campaignID, goal); err != nil {
		return serviceFailure("goal update", err), nil
	}

	result := success(map[string]interface{}{"goal": goal})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
