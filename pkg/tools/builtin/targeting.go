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
	"fmt"
	"time"

	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

// SetTargetLocationsTool resolves and applies location targeting for the
// bound campaign. During guided location setup the policy gate narrows the
// proposed list to the location the user is actively entering.
type SetTargetLocationsTool struct {
	geocoder  Geocoder
	campaigns CampaignService
}

func NewSetTargetLocationsTool(geocoder Geocoder, campaigns CampaignService) *SetTargetLocationsTool {
	return &SetTargetLocationsTool{geocoder: geocoder, campaigns: campaigns}
}

func (t *SetTargetLocationsTool) Name() string { return "set_target_locations" }
func (t *SetTargetLocationsTool) Category() tools.Category { return tools.CategoryTargeting }
func (t *SetTargetLocationsTool) RequiresConfirmation() bool { return false }

func (t *SetTargetLocationsTool) Description() string {
	return "Resolves location names and sets them as the campaign's target locations. Pass only the locations the user asked for in this message."
}

func (t *SetTargetLocationsTool) InputSchema() *tools.JSONSchema {
	maxItems := 25
	schema := tools.NewObjectSchema(
		"Parameters for location targeting",
		map[string]*tools.JSONSchema{
			"locations": tools.NewArraySchema(
				"Location names to target, e.g. 'Toronto' or 'Vancouver, BC'",
				tools.NewStringSchema("Location name"),
			),
			"radius_km": tools.NewNumberSchema("Optional radius in kilometers applied to each location"),
		},
		[]string{"locations"},
	)
	schema.Properties["locations"].MaxItems = &maxItems
	return schema
}

func (t *SetTargetLocationsTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	start := time.Now()

	campaignID, fail := requireCampaign(ctx)
	if fail != nil {
		return fail, nil
	}
	raw, ok := params["locations"].([]interface{})
	if !ok || len(raw) == 0 {
		return missingParam("locations"), nil
	}

	radius, _ := floatParam(params, "radius_km")

	resolved := make([]Location, 0, len(raw))
	var unresolved []string
	for _, entry := range raw {
		name, ok := entry.(string)
		if !ok || name == "" {
			continue
		}
		loc, err := t.geocoder.Resolve(ctx, name)
		if err != nil {
			unresolved = append(unresolved, name)
			continue
		}
		if radius > 0 {
			loc.RadiusKm = radius
		}
		resolved = append(resolved, *loc)
	}
	if len(resolved) == 0 {
		return failure("geocode_failed", fmt.Sprintf("none of the locations could be resolved: %v", unresolved), true), nil
	}

	if err := t.campaigns.SetLocations(ctx, campaignID, resolved); err != nil {
		return serviceFailure("location targeting", err), nil
	}

	result := success(map[string]interface{}{
		"locations":  resolved,
		"unresolved": unresolved,
	})
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}
