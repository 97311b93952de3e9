package services

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

const fallbackReason = "No reason provided by model"

// UnparseableOutputError means the reasoning service returned something that
// is not the expected JSON object with a homes list. It carries the raw text
// so callers can log what the model actually said. There is no degraded mode:
// a malformed response fails the whole routing invocation.
type UnparseableOutputError struct {
	Raw string
	Err error
}

func (e *UnparseableOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reasoning output is not valid routing JSON: %v", e.Err)
	}
	return "reasoning output is not valid routing JSON"
}

func (e *UnparseableOutputError) Unwrap() error { return e.Err }

// ParseDecisions strips common code-fence markers from the raw model output
// and extracts the homes list. The entries stay dynamically typed; all
// coercion happens in NormalizeDecisions.
func ParseDecisions(raw string) ([]map[string]any, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &UnparseableOutputError{Raw: raw, Err: err}
	}

	rawHomes, ok := payload["homes"].([]any)
	if !ok {
		return nil, &UnparseableOutputError{Raw: raw, Err: fmt.Errorf("missing top-level homes list")}
	}

	homes := make([]map[string]any, 0, len(rawHomes))
	for _, h := range rawHomes {
		if m, ok := h.(map[string]any); ok {
			homes = append(homes, m)
		} else {
			homes = append(homes, map[string]any{})
		}
	}
	return homes, nil
}

// NormalizeDecisions coerces the untrusted per-structure entries into the
// canonical schema. The summary is recomputed from the normalized list and
// never copied from the model's own claims.
func NormalizeDecisions(homes []map[string]any) *models.NormalizedDecisions {
	normalized := make([]models.StructureDecision, 0, len(homes))

	for idx, home := range homes {
		decision := strings.ToLower(strings.TrimSpace(asString(home["decision"], "")))
		if decision != models.DecisionAutoApproved && decision != models.DecisionNeedsHumanReview {
			// Fail-safe bias: anything unrecognized goes to a human.
			decision = models.DecisionNeedsHumanReview
		}

		houseID := asString(home["house_id"], fmt.Sprintf("house-%03d", idx+1))

		normalized = append(normalized, models.StructureDecision{
			HouseID:          houseID,
			Decision:         decision,
			HasClearanceZone: asOptionalBool(home["has_5ft_inclusion_zone"]),
			Confidence:       asFloat(home["confidence"]),
			Reason:           asString(home["reason"], fallbackReason),
			BBox:             normalizeBBox(home["bbox"]),
		})
	}

	summary := models.DecisionSummary{TotalHomes: len(normalized)}
	for _, h := range normalized {
		if h.Decision == models.DecisionAutoApproved {
			summary.AutoApprovedCount++
		} else {
			summary.NeedsHumanReviewCount++
		}
	}

	return &models.NormalizedDecisions{Summary: summary, Homes: normalized}
}

// normalizeBBox clamps each coordinate to [0,1] and drops the box entirely if
// any coordinate is non-numeric or the clamped box is degenerate or inverted.
// A dropped box is never substituted with a full-image default.
func normalizeBBox(raw any) *models.BoundingBox {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	coords := make(map[string]float64, 4)
	for _, key := range []string{"x_min", "y_min", "x_max", "y_max"} {
		v, ok := asNumeric(m[key])
		if !ok {
			return nil
		}
		coords[key] = clamp01(v)
	}

	if coords["x_max"] <= coords["x_min"] || coords["y_max"] <= coords["y_min"] {
		return nil
	}

	return &models.BoundingBox{
		XMin: round6(coords["x_min"]),
		YMin: round6(coords["y_min"]),
		XMax: round6(coords["x_max"]),
		YMax: round6(coords["y_max"]),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func asString(v any, fallback string) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return fallback
	default:
		return fmt.Sprintf("%v", s)
	}
}

// asFloat coerces confidence-like values; anything non-numeric becomes 0.0.
func asFloat(v any) float64 {
	f, ok := asNumeric(v)
	if !ok {
		return 0.0
	}
	return f
}

func asNumeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asOptionalBool(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeKeyComponent makes a structure identifier safe for use inside an
// object key: unsafe runs collapse to underscores and the result is capped.
func sanitizeKeyComponent(value string) string {
	cleaned := unsafeKeyChars.ReplaceAllString(value, "_")
	if len(cleaned) > 120 {
		cleaned = cleaned[:120]
	}
	if cleaned == "" {
		return "home"
	}
	return cleaned
}
