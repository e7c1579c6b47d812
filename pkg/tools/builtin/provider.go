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
// Package builtin implements the ad-campaign tool set exposed to the model:
// creative generation and editing, ad copy, location targeting, and campaign
// management. Tools delegate to collaborator services so the same contracts
// run against production backends and in-memory test doubles.
package builtin

import (
	"context"
	"fmt"

	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
)

// Asset is a generated creative artifact.
type Asset struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// CopyVariant is one generated ad copy option.
type CopyVariant struct {
	ID          string `json:"id"`
	Headline    string `json:"headline"`
	PrimaryText string `json:"primary_text"`
	CTA         string `json:"cta"`
}

// CopyBrief describes what ad copy to generate.
type CopyBrief struct {
	Product  string
	Audience string
	Tone     string
	Count    int
}

// Location is a resolved targeting location.
type Location struct {
	Name      string  `json:"name"`
	Canonical string  `json:"canonical"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusKm  float64 `json:"radius_km"`
}

// ImageService produces and mutates creative assets.
type ImageService interface {
	Generate(ctx context.Context, campaignID, prompt string, count int) ([]Asset, error)
	Edit(ctx context.Context, campaignID, assetID, instruction string) (*Asset, error)
	Regenerate(ctx context.Context, campaignID, assetID, prompt string) (*Asset, error)
}

// CopyService produces and mutates ad copy.
type CopyService interface {
	Generate(ctx context.Context, campaignID string, brief CopyBrief) ([]CopyVariant, error)
	Edit(ctx context.Context, campaignID, assetID, instruction string) (*CopyVariant, error)
}

// Geocoder resolves free-form location input to a canonical location.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (*Location, error)
}

// CampaignService applies structural changes to a campaign draft.
type CampaignService interface {
	UpdateDetails(ctx context.Context, campaignID string, fields map[string]interface{}) error
	SetBudget(ctx context.Context, campaignID string, dailyAmount float64, currency string) error
	SetGoal(ctx context.Context, campaignID, goal string) error
	SetLocations(ctx context.Context, campaignID string, locations []Location) error
	Publish(ctx context.Context, campaignID string) (string, error)
}

// Services bundles the collaborators the builtin tool set depends on.
type Services struct {
	Images    ImageService
	Copy      CopyService
	Geocoder  Geocoder
	Campaigns CampaignService
}

type contextKey string

const campaignContextKey contextKey = "adpilot.campaign"

// ContextWithCampaign binds the resolved campaign ID for tool execution.
// The coordinator sets it once per turn; tools refuse to run without it.
func ContextWithCampaign(ctx context.Context, campaignID string) context.Context {
	return context.WithValue(ctx, campaignContextKey, campaignID)
}

// CampaignFromContext returns the campaign ID bound to the turn, if any.
func CampaignFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(campaignContextKey).(string)
	return id, ok && id != ""
}

// requireCampaign extracts the bound campaign ID or returns a failed result
// usable directly as the tool's return value.
func requireCampaign(ctx context.Context) (string, *tools.Result) {
	id, ok := CampaignFromContext(ctx)
	if !ok {
		return "", failure("campaign_binding_required", "no campaign is bound to this conversation", false)
	}
	return id, nil
}

func success(data interface{}) *tools.Result {
	return &tools.Result{Success: true, Data: data}
}

func failure(code, message string, retryable bool) *tools.Result {
	return &tools.Result{
		Success: false,
		Error: &tools.Error{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

func serviceFailure(op string, err error) *tools.Result {
	return failure("service_error", fmt.Sprintf("%s failed: %v", op, err), true)
}

func stringParam(params map[string]interface{}, key string) string {
	s, _ := params[key].(string)
	return s
}

func floatParam(params map[string]interface{}, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func intParam(params map[string]interface{}, key string, fallback int) int {
	if v, ok := floatParam(params, key); ok {
		return int(v)
	}
	return fallback
}

func missingParam(key string) *tools.Result {
	return failure("INVALID_PARAMS", fmt.Sprintf("%s parameter is required", key), false)
}
