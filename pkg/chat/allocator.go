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
package chat

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/storage"
)

// AllocationAttempts bounds the retry loop for campaign name allocation.
const AllocationAttempts = 3

// Curated word lists for generated campaign names. Candidates are pairs
// picked deterministically from the source, so retries walk a stable
// sequence rather than repeating a collision.
var (
	nameLead = []string{
		"Sunset", "Maple", "Cedar", "Harbor", "Golden", "Silver",
		"Summit", "Willow", "Aurora", "Canyon", "Meadow", "Coral",
	}
	nameTail = []string{
		"Drive", "Ridge", "Grove", "Point", "Crossing", "Lane",
		"Field", "Harbor", "Trail", "Bluff", "Bend", "Reach",
	}
)

var titleCaser = cases.Title(language.English)

// Allocator assigns unique generated names to new campaigns, relying on
// the store's unique-name constraint rather than a read-then-write check.
type Allocator struct {
	store  storage.CampaignStore
	tracer observability.Tracer
}

func NewAllocator(store storage.CampaignStore, tracer observability.Tracer) *Allocator {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Allocator{store: store, tracer: tracer}
}

// Allocate creates the campaign record under a generated unique name and
// returns the name. Candidates avoid the growing reject list; a uniqueness
// violation extends the list and retries, any other storage error aborts
// with ErrCreationFailed, and exhausting the attempts yields
// ErrNameConflict.
func (a *Allocator) Allocate(ctx context.Context, campaignID, source string, avoid []string) (string, error) {
	ctx, span := a.tracer.StartSpan(ctx, "chat.allocate_name",
		observability.WithAttribute(observability.AttrCampaignID, campaignID))
	defer a.tracer.EndSpan(span)

	rejected := append([]string{}, avoid...)

	for attempt := 0; attempt < AllocationAttempts; attempt++ {
		name := candidateName(source, attempt, rejected)

		err := a.store.InsertCampaign(ctx, campaignID, name)
		if err == nil {
			span.SetAttribute("attempts", fmt.Sprintf("%d", attempt+1))
			return name, nil
		}
		if errors.Is(err, storage.ErrDuplicateName) {
			rejected = append(rejected, name)
			a.tracer.RecordEvent(ctx, observability.EventAllocationConflict, map[string]interface{}{
				observability.AttrCampaignID: campaignID,
				"name":                       name,
				"attempt":                    attempt + 1,
			})
			continue
		}

		span.RecordError(err)
		return "", fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}

	return "", fmt.Errorf("%w after %d attempts", ErrNameConflict, AllocationAttempts)
}

// candidateName produces the attempt-th candidate for the source, skipping
// anything in the reject list. The first candidate is the title-cased
// source itself when usable; later candidates walk the curated pair space
// from a position seeded by the source.
func candidateName(source string, attempt int, rejected []string) string {
	taken := make(map[string]bool, len(rejected))
	for _, name := range rejected {
		taken[strings.ToLower(name)] = true
	}

	if attempt == 0 {
		if name := titledSource(source); name != "" && !taken[strings.ToLower(name)] {
			return name
		}
	}

	offset := int(sourceHash(source)) + attempt
	total := len(nameLead) * len(nameTail)
	for i := 0; i < total; i++ {
		idx := (offset + i) % total
		name := nameLead[idx%len(nameLead)] + " " + nameTail[idx/len(nameLead)]
		if !taken[strings.ToLower(name)] {
			return name
		}
	}

	// Every pair rejected; disambiguate numerically.
	return fmt.Sprintf("%s %s %d", nameLead[offset%len(nameLead)], nameTail[offset%len(nameTail)], attempt+1)
}

// titledSource turns free-form source text into a short title-cased name.
func titledSource(source string) string {
	words := strings.Fields(strings.TrimSpace(source))
	if len(words) == 0 {
		return ""
	}
	if len(words) > 3 {
		words = words[:3]
	}
	return titleCaser.String(strings.ToLower(strings.Join(words, " ")))
}

func sourceHash(source string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(source))))
	return h.Sum32()
}
