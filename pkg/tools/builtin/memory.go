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
	"strings"
	"sync"
)

// MemoryImageService is an in-process ImageService used by the development
// server and tests. Assets are deterministic: IDs increase monotonically
// and URLs are derived from the ID.
type MemoryImageService struct {
	mu     sync.Mutex
	nextID int
	assets map[string]map[string]*Asset
}

func NewMemoryImageService() *MemoryImageService {
	return &MemoryImageService{assets: make(map[string]map[string]*Asset)}
}

func (s *MemoryImageService) Generate(ctx context.Context, campaignID, prompt string, count int) ([]Asset, error) {
	if count <= 0 {
		count = 3
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.assets[campaignID] == nil {
		s.assets[campaignID] = make(map[string]*Asset)
	}
	out := make([]Asset, count)
	base := len(s.assets[campaignID])
	for i := 0; i < count; i++ {
		s.nextID++
		a := &Asset{
			ID:    fmt.Sprintf("img_%d", s.nextID),
			Index: base + i,
		}
		a.URL = "memory://assets/" + a.ID
		s.assets[campaignID][a.ID] = a
		out[i] = *a
	}
	return out, nil
}

func (s *MemoryImageService) Edit(ctx context.Context, campaignID, assetID, instruction string) (*Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[campaignID][assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}
	edited := *a
	return &edited, nil
}

func (s *MemoryImageService) Regenerate(ctx context.Context, campaignID, assetID, prompt string) (*Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assets[campaignID][assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s not found", assetID)
	}
	s.nextID++
	replacement := &Asset{
		ID:    fmt.Sprintf("img_%d", s.nextID),
		Index: a.Index,
	}
	replacement.URL = "memory://assets/" + replacement.ID
	delete(s.assets[campaignID], assetID)
	s.assets[campaignID][replacement.ID] = replacement
	return replacement, nil
}

// MemoryCopyService is an in-process CopyService producing templated
// variants.
type MemoryCopyService struct {
	mu     sync.Mutex
	nextID int
}

func NewMemoryCopyService() *MemoryCopyService {
	return &MemoryCopyService{}
}

func (s *MemoryCopyService) Generate(ctx context.Context, campaignID string, brief CopyBrief) ([]CopyVariant, error) {
	count := brief.Count
	if count <= 0 {
		count = 3
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CopyVariant, count)
	for i := 0; i < count; i++ {
		s.nextID++
		out[i] = CopyVariant{
			ID:          fmt.Sprintf("copy_%d", s.nextID),
			Headline:    fmt.Sprintf("%s, variant %d", brief.Product, i+1),
			PrimaryText: fmt.Sprintf("Discover %s.", brief.Product),
			CTA:         "Learn More",
		}
	}
	return out, nil
}

func (s *MemoryCopyService) Edit(ctx context.Context, campaignID, assetID, instruction string) (*CopyVariant, error) {
	if assetID == "" {
		return nil, fmt.Errorf("asset id required")
	}
	return &CopyVariant{
		ID:          assetID,
		Headline:    instruction,
		PrimaryText: instruction,
		CTA:         "Learn More",
	}, nil
}

// MemoryGeocoder resolves any non-empty query to a canonical location with
// zeroed coordinates. Queries listed in Unknown fail resolution.
type MemoryGeocoder struct {
	Unknown map[string]bool
}

func NewMemoryGeocoder() *MemoryGeocoder {
	return &MemoryGeocoder{}
}

func (g *MemoryGeocoder) Resolve(ctx context.Context, query string) (*Location, error) {
	name := strings.TrimSpace(query)
	if name == "" || g.Unknown[name] {
		return nil, fmt.Errorf("no match for %q", query)
	}
	return &Location{
		Name:      name,
		Canonical: name,
		RadiusKm:  40,
	}, nil
}

// campaignState is the mutable draft tracked per campaign.
type campaignState struct {
	Details   map[string]interface{}
	Budget    float64
	Currency  string
	Goal      string
	Locations []Location
	Status    string
}

// MemoryCampaignService is an in-process CampaignService tracking draft
// state per campaign ID.
type MemoryCampaignService struct {
	mu        sync.Mutex
	campaigns map[string]*campaignState
}

func NewMemoryCampaignService() *MemoryCampaignService {
	return &MemoryCampaignService{campaigns: make(map[string]*campaignState)}
}

func (s *MemoryCampaignService) state(campaignID string) *campaignState {
	st, ok := s.campaigns[campaignID]
	if !ok {
		st = &campaignState{Details: make(map[string]interface{}), Status: "draft"}
		s.campaigns[campaignID] = st
	}
	return st
}

func (s *MemoryCampaignService) UpdateDetails(ctx context.Context, campaignID string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(campaignID)
	for k, v := range fields {
		st.Details[k] = v
	}
	return nil
}

func (s *MemoryCampaignService) SetBudget(ctx context.Context, campaignID string, dailyAmount float64, currency string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(campaignID)
	st.Budget = dailyAmount
	st.Currency = currency
	return nil
}

func (s *MemoryCampaignService) SetGoal(ctx context.Context, campaignID, goal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(campaignID).Goal = goal
	return nil
}

func (s *MemoryCampaignService) SetLocations(ctx context.Context, campaignID string, locations []Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(campaignID).Locations = locations
	return nil
}

func (s *MemoryCampaignService) Publish(ctx context.Context, campaignID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(campaignID)
	if st.Budget <= 0 {
		return "", fmt.Errorf("campaign %s has no budget set", campaignID)
	}
	st.Status = "published"
	return st.Status, nil
}

// Snapshot returns a copy of the tracked state for assertions.
func (s *MemoryCampaignService) Snapshot(campaignID string) (budget float64, goal string, locations []Location, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(campaignID)
	return st.Budget, st.Goal, append([]Location{}, st.Locations...), st.Status
}

// NewMemoryServices bundles in-process implementations of every
// collaborator, suitable for the development server and tests.
func NewMemoryServices() Services {
	return Services{
		Images:    NewMemoryImageService(),
		Copy:      NewMemoryCopyService(),
		Geocoder:  NewMemoryGeocoder(),
		Campaigns: NewMemoryCampaignService(),
	}
}
