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

// GenerateAdImageTool produces new creative variations for the bound
// campaign.
type GenerateAdImageTool struct {
	images ImageService
}

func NewGenerateAdImageTool(images ImageService) *GenerateAdImageTool {
	return &GenerateAdImageTool{images: images}
}

func (t *GenerateAdImageTool) Name() string { return "generate_ad_image" }
func (t *GenerateAdImageTool) Category() tools.Category { return tools.CategoryCreative }
func (t *GenerateAdImageTool) RequiresConfirmation() bool { return false }

func (t *GenerateAdImageTool) Description() string {
	return "Generates new ad image variations for the current campaign from a creative prompt. Returns the generated assets with their indices and locators."
}

func (t *GenerateAdImageTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for ad image generation",
		map[string]*tools.JSONSchema{
			"prompt": tools.NewStringSchema("Creative prompt describing the desired image"),
			"count":  tools.NewIntegerSchema("Number of variations to generate (default 3)").WithDefault(3),
			"style":  tools.NewStringSchema("Optional style hint").WithEnum("photo", "illustration", "minimal", "bold"),
		},
		[]string{"prompt"},
	)
}

func (t *GenerateAdImageTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	prompt := stringParam(params, "prompt")
	if prompt == "" {
		return missingParam("prompt"), nil
	}

	assets, err := t.images.Generate(ctx, campaignID, prompt, intParam(params, "count", 3))
	if err != nil {
		return serviceFailure("image generation", err), nil
	}

	result := success(map[string]interface{}{"assets": assets})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// EditAdImageTool applies an instruction to one existing creative asset.
// Under an active edit lock the asset identifiers are pinned upstream;
// model-supplied values for them never reach the service.
type EditAdImageTool struct {
	images ImageService
}

func NewEditAdImageTool(images ImageService) *EditAdImageTool {
	return &EditAdImageTool{images: images}
}

func (t *EditAdImageTool) Name() string { return "edit_ad_image" }
func (t *EditAdImageTool) Category() tools.Category { return tools.CategoryCreative }
func (t *EditAdImageTool) RequiresConfirmation() bool { return false }

func (t *EditAdImageTool) Description() string {
	return "Edits an existing ad image in place. The asset being edited is identified by asset_id and asset_index; apply the user's instruction to that asset only."
}

func (t *EditAdImageTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for editing an existing ad image",
		map[string]*tools.JSONSchema{
			"asset_id":    tools.NewStringSchema("Locator of the asset to edit"),
			"asset_index": tools.NewIntegerSchema("Zero-based index of the variation to edit"),
			"instruction": tools.NewStringSchema("Edit instruction, e.g. 'make the background warmer'"),
		},
		[]string{"instruction"},
	)
}

func (t *EditAdImageTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
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

	asset, err := t.images.Edit(ctx, campaignID, assetID, instruction)
	if err != nil {
		return serviceFailure("image edit", err), nil
	}

	result := success(map[string]interface{}{"asset": asset})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

// RegenerateAdImageTool replaces one existing variation with a fresh
// generation, keeping its slot.
type RegenerateAdImageTool struct {
	images ImageService
}

func NewRegenerateAdImageTool(images ImageService) *RegenerateAdImageTool {
	return &RegenerateAdImageTool{images: images}
}

func (t *RegenerateAdImageTool) Name() string { return "regenerate_ad_image" }
func (t *RegenerateAdImageTool) Category() tools.Category { return tools.CategoryCreative }
func (t *RegenerateAdImageTool) RequiresConfirmation() bool { return false }

func (t *RegenerateAdImageTool) Description() string {
	return "Regenerates one ad image variation from scratch, replacing the asset identified by asset_id and asset_index while keeping its position."
}

func (t *RegenerateAdImageTool) InputSchema() *tools.JSONSchema {
	return tools.NewObjectSchema(
		"Parameters for regenerating an ad image variation",
		map[string]*tools.JSONSchema{
			"asset_id":    tools.NewStringSchema("Locator of the variation to replace"),
			"asset_index": tools.NewIntegerSchema("Zero-based index of the variation to replace"),
			"prompt":      tools.NewStringSchema("Optional new creative prompt; omit to reuse the original"),
		},
		nil,
	)
}

func (t *RegenerateAdImageTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	assetID := stringParam(params, "asset_id")
	if assetID == "" {
		return missingParam("asset_id"), nil
	}

	asset, err := t.images.Regenerate(ctx, campaignID, assetID, stringParam(params, "prompt"))
	if err != nil {
		return serviceFailure("image regeneration", err), nil
	}

	result := success(map[string]interface{}{"asset": asset})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
