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

// GenerateAdCopyTool produces ad copy variants for the bound campaign.
type GenerateAdCopyTool struct {
	copy CopyService
}

func NewGenerateAdCopyTool(copySvc CopyService) *GenerateAdCopyTool {
	return &GenerateAdCopyTool{copy: copySvc}
}

func (t *GenerateAdCopyTool) Name() string { return "generate_ad_copy" }
func (t *GenerateAdCopyTool) Category() tools.Category { return tools.CategoryCopy }
func (t *GenerateAdCopyTool) RequiresConfirmation() bool { return false }

func (t *GenerateAdCopyTool) Description() string {
	return "Generates ad copy variants (headline, primary text, call to action) for the current campaign from a product and audience brief."
}

func (t *GenerateAdCopyTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for ad copy generation",
		map[string]*tools.JSONSchema{
			"product":  tools.NewStringSchema("What is being advertised"),
			"audience": tools.NewStringSchema("Who the ad targets"),
			"tone":     tools.NewStringSchema("Desired tone").WithEnum("friendly", "professional", "playful", "urgent"),
			"count":    tools.NewIntegerSchema("Number of variants to generate (default 3)").WithDefault(3),
		},
		[]string{"product"},
	)
}

func (t *GenerateAdCopyTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	product := stringParam(params, "product")
	if product == "" {
		return missingParam("product"), nil
	}

	variants, err := t.copy.Generate(ctx, campaignID, CopyBrief{
		Product:  product,
		Audience: stringParam(params, "audience"),
		Tone:     stringParam(params, "tone"),
		Count:    intParam(params, "count", 3),
	})
	if err != nil {
		return serviceFailure("copy generation", err), nil
	}

	result := success(map[string]interface{}{"variants": variants})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// EditAdCopyTool applies an instruction to one existing copy variant.
// Asset identifiers are pinned upstream when an edit lock is active.
type EditAdCopyTool struct {
	copy CopyService
}

func NewEditAdCopyTool(copySvc CopyService) *EditAdCopyTool {
	return &EditAdCopyTool{copy: copySvc}
}

func (t *EditAdCopyTool) Name() string { return "edit_ad_copy" }
func (t *EditAdCopyTool) Category() tools.Category { return tools.CategoryCopy }
func (t *EditAdCopyTool) RequiresConfirmation() bool { return false }

func (t *EditAdCopyTool) Description() string {
	return "Edits an existing ad copy variant. The variant being edited is identified by asset_id and asset_index; apply the user's instruction to that variant only."
}

func (t *EditAdCopyTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for editing an existing ad copy variant",
		map[string]*tools.JSONSchema{
			"asset_id":    tools.NewStringSchema("Locator of the copy variant to edit"),
			"asset_index": tools.NewIntegerSchema("Zero-based index of the variant to edit"),
			"instruction": tools.NewStringSchema("Edit instruction, e.g. 'shorten the headline'"),
		},
		[]string{"instruction"},
	)
}

func (t *EditAdCopyTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	instruction := stringParam(params, "instruction")
	if instruction == "" {
		return missingParam("instruction"), nil
	}
	assetID := stringParam(params, "asset_id")
	if assetID == "" {
		return missingParam("asset_id"), nil
	}

	variant, err := t.copy.Edit(ctx, campaignID, assetID, instruction)
	if err != nil {
		return serviceFailure("copy edit", err), nil
	}

	result := success(map[string]interface{}{"variant": variant})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
