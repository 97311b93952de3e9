package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

func TestParseDecisionsStripsCodeFences(t *testing.T) {
	raw := "```json\n{\"homes\": [{\"house_id\": \"h1\"}]}\n```"
	homes, err := ParseDecisions(raw)
	require.NoError(t, err)
	require.Len(t, homes, 1)
	assert.Equal(t, "h1", homes[0]["house_id"])
}

func TestParseDecisionsRejectsNonJSON(t *testing.T) {
	_, err := ParseDecisions("I could not find any homes in this image.")
	require.Error(t, err)
	var uerr *UnparseableOutputError
	require.ErrorAs(t, err, &uerr)
	assert.Contains(t, uerr.Raw, "could not find")
}

func TestParseDecisionsRejectsMissingHomesList(t *testing.T) {
	_, err := ParseDecisions(`{"summary": {"total_homes": 3}}`)
	var uerr *UnparseableOutputError
	require.ErrorAs(t, err, &uerr)
}

func TestNormalizeDecisionsCanonicalCase(t *testing.T) {
	homes, err := ParseDecisions(`{"homes":[{"house_id":"h1","decision":"AUTO_APPROVED","confidence":"0.9","bbox":{"x_min":0.1,"y_min":0.1,"x_max":0.5,"y_max":0.5}}]}`)
	require.NoError(t, err)

	got := NormalizeDecisions(homes)
	require.Len(t, got.Homes, 1)
	h := got.Homes[0]
	assert.Equal(t, "h1", h.HouseID)
	assert.Equal(t, models.DecisionAutoApproved, h.Decision)
	assert.Equal(t, 0.9, h.Confidence)
	require.NotNil(t, h.BBox)
	assert.Equal(t, models.BoundingBox{XMin: 0.1, YMin: 0.1, XMax: 0.5, YMax: 0.5}, *h.BBox)
	assert.Equal(t, fallbackReason, h.Reason)
	assert.Nil(t, h.HasClearanceZone)
}

func TestNormalizeDecisionsFailSafeDefault(t *testing.T) {
	for _, decision := range []any{"approved", "", nil, "AUTO", 42, "auto_approved "} {
		got := NormalizeDecisions([]map[string]any{{"decision": decision}})
		require.Len(t, got.Homes, 1)
		if s, ok := decision.(string); ok && s == "auto_approved " {
			// Trailing whitespace is trimmed before matching.
			assert.Equal(t, models.DecisionAutoApproved, got.Homes[0].Decision)
			continue
		}
		assert.Equal(t, models.DecisionNeedsHumanReview, got.Homes[0].Decision, "decision %v", decision)
	}
}

func TestNormalizeDecisionsFallbackIdentifiers(t *testing.T) {
	got := NormalizeDecisions([]map[string]any{{}, {}, {"house_id": "named"}})
	require.Len(t, got.Homes, 3)
	assert.Equal(t, "house-001", got.Homes[0].HouseID)
	assert.Equal(t, "house-002", got.Homes[1].HouseID)
	assert.Equal(t, "named", got.Homes[2].HouseID)
}

func TestNormalizeDecisionsConfidenceCoercion(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{0.75, 0.75},
		{"0.6", 0.6},
		{" 0.4 ", 0.4},
		{"high", 0.0},
		{nil, 0.0},
		{true, 0.0},
	}
	for _, tc := range cases {
		got := NormalizeDecisions([]map[string]any{{"confidence": tc.in}})
		assert.Equal(t, tc.want, got.Homes[0].Confidence, "confidence %v", tc.in)
	}
}

func TestNormalizeDecisionsClearanceFlag(t *testing.T) {
	got := NormalizeDecisions([]map[string]any{
		{"has_5ft_inclusion_zone": true},
		{"has_5ft_inclusion_zone": false},
		{"has_5ft_inclusion_zone": nil},
		{"has_5ft_inclusion_zone": "yes"},
	})
	require.NotNil(t, got.Homes[0].HasClearanceZone)
	assert.True(t, *got.Homes[0].HasClearanceZone)
	require.NotNil(t, got.Homes[1].HasClearanceZone)
	assert.False(t, *got.Homes[1].HasClearanceZone)
	assert.Nil(t, got.Homes[2].HasClearanceZone)
	assert.Nil(t, got.Homes[3].HasClearanceZone)
}

func TestNormalizeBBoxDropsInvertedBoxes(t *testing.T) {
	homes, err := ParseDecisions(`{"homes":[{"house_id":"h1","decision":"auto_approved","confidence":0.8,"bbox":{"x_min":0.5,"y_min":0.1,"x_max":0.5,"y_max":0.4}}]}`)
	require.NoError(t, err)

	got := NormalizeDecisions(homes)
	require.Len(t, got.Homes, 1)
	// Decision and confidence survive even though the box is dropped.
	assert.Nil(t, got.Homes[0].BBox)
	assert.Equal(t, models.DecisionAutoApproved, got.Homes[0].Decision)
	assert.Equal(t, 0.8, got.Homes[0].Confidence)
}

func TestNormalizeBBoxClampsIntoRange(t *testing.T) {
	got := NormalizeDecisions([]map[string]any{{
		"bbox": map[string]any{"x_min": -0.5, "y_min": 0.2, "x_max": 1.7, "y_max": 0.9},
	}})
	b := got.Homes[0].BBox
	require.NotNil(t, b)
	assert.Equal(t, models.BoundingBox{XMin: 0, YMin: 0.2, XMax: 1, YMax: 0.9}, *b)
}

func TestNormalizeBBoxDropsNonNumericAndMissing(t *testing.T) {
	cases := []any{
		nil,
		"not a box",
		map[string]any{"x_min": 0.1, "y_min": 0.1, "x_max": "wide", "y_max": 0.5},
		map[string]any{"x_min": 0.1, "y_min": 0.1, "x_max": 0.5},
		// Both coordinates clamp to 1.0, leaving a degenerate box.
		map[string]any{"x_min": 1.2, "y_min": 0.1, "x_max": 1.8, "y_max": 0.5},
	}
	for i, bbox := range cases {
		got := NormalizeDecisions([]map[string]any{{"bbox": bbox}})
		assert.Nil(t, got.Homes[0].BBox, "case %d", i)
	}
}

func TestNormalizeSummaryIsRecomputed(t *testing.T) {
	// The model's own summary lies; the normalizer must count for itself.
	homes, err := ParseDecisions(`{
		"summary": {"total_homes": 99, "auto_approved_count": 99, "needs_human_review_count": 0},
		"homes": [
			{"house_id": "a", "decision": "auto_approved"},
			{"house_id": "b", "decision": "needs_human_review"},
			{"house_id": "c", "decision": "unknown"}
		]
	}`)
	require.NoError(t, err)

	got := NormalizeDecisions(homes)
	assert.Equal(t, models.DecisionSummary{
		TotalHomes:            3,
		AutoApprovedCount:     1,
		NeedsHumanReviewCount: 2,
	}, got.Summary)
}

func TestSanitizeKeyComponent(t *testing.T) {
	assert.Equal(t, "house_7_roof", sanitizeKeyComponent("house 7/roof"))
	assert.Equal(t, "h-1.2_x", sanitizeKeyComponent("h-1.2#x"))
	assert.Equal(t, "home", sanitizeKeyComponent(""))
	assert.Len(t, sanitizeKeyComponent(strings.Repeat("a", 300)), 120)
}
