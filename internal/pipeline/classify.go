// Package pipeline holds the object-key conventions that stitch the pipeline
// stages together, and the classifier that routes storage events to them.
package pipeline

import "strings"

// Reserved object-key prefixes. Everything the pipeline reads or writes lives
// under one of these; the reporting collaborator discovers artifacts purely by
// these conventions.
const (
	InputsPrefix    = "inputs/"
	ImagesPrefix    = "images/"
	PayloadPrefix   = "payload/"
	AsyncOutPrefix  = "async-out/"
	ComparedPrefix  = "compared/"
	LLMOutputPrefix = "llm_output/"
	MarkdownPrefix  = "markdown/"

	AnnotatedPrefix = "routing-artifacts/annotated/"
	CropsPrefix     = "routing-artifacts/crops/"
)

// Branch identifies which pipeline stage an object key belongs to.
type Branch int

const (
	// BranchUnmatched marks keys outside every recognized pattern.
	BranchUnmatched Branch = iota
	// BranchSubmission handles new raw-input descriptors.
	BranchSubmission
	// BranchReport handles segmentation completion artifacts.
	BranchReport
	// BranchRouting handles comparison images ready for routing decisions.
	BranchRouting
)

func (b Branch) String() string {
	switch b {
	case BranchSubmission:
		return "submission"
	case BranchReport:
		return "report"
	case BranchRouting:
		return "routing"
	default:
		return "unmatched"
	}
}

// Classify maps an object key to exactly one branch. It is a pure function of
// the key's prefix and suffix; unmatched keys are a deliberate no-op signal,
// not an error.
func Classify(key string) Branch {
	switch {
	case strings.HasPrefix(key, InputsPrefix) && strings.HasSuffix(key, ".json"):
		return BranchSubmission
	case strings.HasPrefix(key, AsyncOutPrefix) && strings.HasSuffix(key, ".out"):
		return BranchReport
	case strings.HasPrefix(key, ComparedPrefix):
		return BranchRouting
	default:
		return BranchUnmatched
	}
}
