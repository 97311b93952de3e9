package models

import "time"

// These structs define the JSON payloads flowing between the pipeline stages
// through Cloud Storage objects, plus the Firestore correlation record that
// links a segmentation submission to its completion artifact.

// GCSEvent is the data payload of a storage object-finalize CloudEvent.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// InputDescriptor is the operator-supplied raw input under inputs/*.json.
// Filenames are relative: images resolve under images/, the comparison output
// under compared/.
type InputDescriptor struct {
	Before         string `json:"before"`
	After          string `json:"after"`
	ComparedOutput string `json:"compared_output"`
}

// SegmentationRequest is the payload object handed to the segmentation
// service. The field names are the service's contract, not ours.
type SegmentationRequest struct {
	BeforeImage    string `json:"before_image"`
	AfterImage     string `json:"after_image"`
	ComparedOutput string `json:"compared_output"`
	Text           string `json:"text"`
}

// SegmentationOutput is the completion descriptor the segmentation service
// writes under async-out/*.out once it has rendered the comparison image.
type SegmentationOutput struct {
	Before  string `json:"before"`
	After   string `json:"after"`
	Compare string `json:"compare"`
}

// AnalysisResult groups the artifacts of one report-branch invocation. It is
// transient; only the objects it references persist.
type AnalysisResult struct {
	Before      string `json:"before"`
	After       string `json:"after"`
	Compared    string `json:"compared"`
	LLMOutput   string `json:"llm_output"`
	MarkdownKey string `json:"markdown_key"`
	BaseName    string `json:"base_name"`
}

// CorrelationRecord is persisted at submission time and resolved when the
// completion artifact arrives, so that concurrent submissions cannot be
// misattributed through filename coincidence alone.
type CorrelationRecord struct {
	Token         string    `firestore:"token"`
	PayloadObject string    `firestore:"payloadObject"`
	BeforeURI     string    `firestore:"beforeUri"`
	AfterURI      string    `firestore:"afterUri"`
	ComparedURI   string    `firestore:"comparedUri"`
	OutputObject  string    `firestore:"outputObject"`
	SubmittedAt   time.Time `firestore:"submittedAt"`
}
