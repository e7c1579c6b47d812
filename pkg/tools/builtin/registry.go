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
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

// All returns the full ad-campaign tool set wired to the given services.
func All(services Services) []tools.Tool {
	return []tools.Tool{
		NewGenerateAdImageTool(services.Images),
		NewEditAdImageTool(services.Images),
		NewRegenerateAdImageTool(services.Images),
		NewGenerateAdCopyTool(services.Copy),
		NewEditAdCopyTool(services.Copy),
		NewSetTargetLocationsTool(services.Geocoder, services.Campaigns),
		NewUpdateCampaignDetailsTool(services.Campaigns),
		NewSetCampaignBudgetTool(services.Campaigns),
		NewPublishCampaignTool(services.Campaigns),
		NewSetCampaignGoalTool(services.Campaigns),
	}
}

// Register adds the full tool set to the registry.
func Register(registry *tools.Registry, services Services) {
	for _, t := range All(services) {
		registry.Register(t)
	}
}
