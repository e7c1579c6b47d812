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
// Package policy decides which tools a turn may see and pins which artifact
// a turn may touch. Both decisions are per-request: the gate and the lock
// engine hold no state that outlives one turn.
package policy

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackhunterking/AdPilot-sub003/pkg/observability"
	"github.com/jackhunterking/AdPilot-sub003/pkg/tools"
	"github.com/jackhunterking/AdPilot-sub003/pkg/types"
)

// EditCategory identifies which kind of previously generated artifact an
// edit turn targets.
type EditCategory string

const (
	EditImage           EditCategory = "image-edit"
	EditImageRegenerate EditCategory = "image-regenerate"
	EditCopy            EditCategory = "copy-edit"
)

// ToolName returns the mutation tool governed by this edit category.
func (c EditCategory) ToolName() string {
	switch c {
	case EditImage:
		return "edit_ad_image"
	case EditImageRegenerate:
		return "regenerate_ad_image"
	case EditCopy:
		return "edit_ad_copy"
	default:
		return ""
	}
}

// toolCategory returns the tool category the edit belongs to, used by the
// gate's edit-mode precedence rule.
func (c EditCategory) toolCategory() (tools.Category, bool) {
	switch c {
	case EditImage, EditImageRegenerate:
		return tools.CategoryCreative, true
	case EditCopy:
		return tools.CategoryCopy, true
	default:
		return "", false
	}
}

// Locked parameter keys injected into every matching tool call.
const (
	ParamAssetIndex = "asset_index"
	ParamAssetID    = "asset_id"
)

// EditReference pins exactly one previously generated artifact for the
// duration of a turn. Ephemeral: derived from inbound metadata, never
// persisted standalone.
type EditReference struct {
	// AssetIndex is the zero-based index of the pinned variation.
	AssetIndex int

	// AssetID is the locator of the pinned artifact.
	AssetID string

	// Category selects which mutation tool is wrapped.
	Category EditCategory

	// SessionToken optionally correlates a multi-turn edit session.
	SessionToken string
}

// LockedParams returns the parameter overrides enforced on every wrapped
// tool call.
func (r *EditReference) LockedParams() map[string]interface{} {
	return map[string]interface{}{
		ParamAssetIndex: r.AssetIndex,
		ParamAssetID:    r.AssetID,
	}
}

// ParseEditReference derives an EditReference from inbound turn metadata.
//
// The index is accepted as a number or numeric string. Current callers send
// zero-based "asset_index"; legacy callers send one-based "variation",
// normalized here to zero-based. An index that fails to parse as a
// non-negative integer leaves the turn unlocked: the lock engine emits
// EventLockUnparseable and returns nil rather than failing the turn.
func ParseEditReference(ctx context.Context, meta types.TurnMetadata, tracer observability.Tracer) *EditReference {
	if !meta.EditMode || meta.EditReference == nil {
		return nil
	}
	raw := meta.EditReference

	ref := &EditReference{}

	if cat, ok := raw["category"].(string); ok {
		ref.Category = EditCategory(cat)
	}
	if ref.Category.ToolName() == "" {
		tracer.RecordEvent(ctx, observability.EventLockUnparseable, map[string]interface{}{
			"reason":   "unknown edit category",
			"category": raw["category"],
		})
		return nil
	}

	if id, ok := raw["asset_id"].(string); ok {
		ref.AssetID = id
	}
	if tok, ok := raw["session_token"].(string); ok {
		ref.SessionToken = tok
	}

	idx, err := parseIndex(raw)
	if err != nil {
		tracer.RecordEvent(ctx, observability.EventLockUnparseable, map[string]interface{}{
			"reason": err.Error(),
			"index":  fmt.Sprintf("%v", rawIndex(raw)),
		})
		return nil
	}
	ref.AssetIndex = idx

	return ref
}

func rawIndex(raw map[string]interface{}) interface{} {
	if v, ok := raw["asset_index"]; ok {
		return v
	}
	return raw["variation"]
}

// parseIndex extracts the zero-based asset index, normalizing the legacy
// one-based "variation" form.
func parseIndex(raw map[string]interface{}) (int, error) {
	if v, ok := raw["asset_index"]; ok {
		idx, err := toInt(v)
		if err != nil {
			return 0, fmt.Errorf("asset_index not an integer")
		}
		if idx < 0 {
			return 0, fmt.Errorf("asset_index negative")
		}
		return idx, nil
	}

	if v, ok := raw["variation"]; ok {
		n, err := toInt(v)
		if err != nil {
			return 0, fmt.Errorf("variation not an integer")
		}
		if n < 1 {
			return 0, fmt.Errorf("variation below one-based range")
		}
		return n - 1, nil
	}

	return 0, fmt.Errorf("no index field present")
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unsupported index type %T", v)
	}
}

// LockTools wraps every tool in the set governed by the reference's
// category so that, irrespective of model-supplied parameters, the locked
// index and locator are enforced before execution and annotated on every
// result. A nil reference returns the set unchanged.
func LockTools(set []tools.Tool, ref *EditReference) []tools.Tool {
	if ref == nil {
		return set
	}

	target := ref.Category.ToolName()
	wrapped := make([]tools.Tool, len(set))
	for i, t := range set {
		if t.Name() == target {
			wrapped[i] = &lockingTool{Tool: t, ref: ref}
		} else {
			wrapped[i] = t
		}
	}
	return wrapped
}

// lockingTool enforces the pinned artifact identifiers on one mutation
// tool. Constructed fresh per request; never shared.
type lockingTool struct {
	tools.Tool
	ref *EditReference
}

// Execute overwrites the asset identifiers with the locked values before
// delegating, then annotates the result with the same identifiers so the
// caller can attribute the mutation to the pinned artifact.
func (l *lockingTool) Execute(ctx context.Context, params map[string]interface{}) (*tools.Result, error) {
	merged := make(map[string]interface{}, len(params)+2)
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range l.ref.LockedParams() {
		merged[k] = v
	}

	result, err := l.Tool.Execute(ctx, merged)
	if result != nil {
		result.SetMeta(ParamAssetIndex, l.ref.AssetIndex)
		result.SetMeta(ParamAssetID, l.ref.AssetID)
	}
	return result, err
}
