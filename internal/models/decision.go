package models

import "time"

// The two canonical routing decisions. Anything else coming out of the model
// is coerced to DecisionNeedsHumanReview by the normalizer.
const (
	DecisionAutoApproved     = "auto_approved"
	DecisionNeedsHumanReview = "needs_human_review"
)

// BoundingBox is a structure location normalized to fractional image
// coordinates. Each coordinate is in [0,1] and XMax > XMin, YMax > YMin;
// boxes violating that are dropped during normalization, never repaired.
type BoundingBox struct {
	XMin float64 `json:"x_min" firestore:"x_min"`
	YMin float64 `json:"y_min" firestore:"y_min"`
	XMax float64 `json:"x_max" firestore:"x_max"`
	YMax float64 `json:"y_max" firestore:"y_max"`
}

// StructureDecision is the normalized routing verdict for a single structure.
type StructureDecision struct {
	HouseID string `json:"house_id"`
	// Decision is always one of the two canonical values.
	Decision string `json:"decision"`
	// HasClearanceZone is nil when the model could not determine whether a
	// 5-foot inclusion zone free of fire encroachment exists.
	HasClearanceZone *bool        `json:"has_5ft_inclusion_zone"`
	Confidence       float64      `json:"confidence"`
	Reason           string       `json:"reason"`
	BBox             *BoundingBox `json:"bbox,omitempty"`
}

// DecisionSummary holds counts recomputed from the normalized structure list.
// The model's own summary claims are never trusted.
type DecisionSummary struct {
	TotalHomes            int `json:"total_homes"`
	AutoApprovedCount     int `json:"auto_approved_count"`
	NeedsHumanReviewCount int `json:"needs_human_review_count"`
}

// NormalizedDecisions is the output of the decision normalizer.
type NormalizedDecisions struct {
	Summary DecisionSummary     `json:"summary"`
	Homes   []StructureDecision `json:"homes"`
}

// RoutingRecord is the persisted form of a StructureDecision. One document is
// written per (source image, structure) pair; the composite RoutingID makes
// reprocessing of the same image an overwrite rather than a duplicate.
// Records are immutable once written and stale structures from prior runs are
// never pruned.
type RoutingRecord struct {
	RoutingID        string       `firestore:"routingId"`
	SourceImageURI   string       `firestore:"sourceImageUri"`
	HouseID          string       `firestore:"houseId"`
	Decision         string       `firestore:"decision"`
	HasClearanceZone *bool        `firestore:"has5ftInclusionZone"`
	Confidence       float64      `firestore:"confidence"`
	Reason           string       `firestore:"reason"`
	BBox             *BoundingBox `firestore:"bbox,omitempty"`
	CropURI          string       `firestore:"homeCropUri,omitempty"`
	AnnotatedURI     string       `firestore:"annotatedImageUri,omitempty"`
	CreatedAt        time.Time    `firestore:"createdAt"`
}
