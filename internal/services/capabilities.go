package services

import (
	"context"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

// Capability interfaces for every external collaborator a stage touches.
// Production implementations live in internal/gcp and are constructed once
// per process in the entrypoints; tests inject in-memory fakes. All calls are
// blocking: a stage suspends at these boundaries and resumes with the full
// result or an error. None of them retries.

// ObjectStore reads and writes byte blobs by bucket and key. WriteIfAbsent
// creates the object only when no object exists under the key yet; a repeat
// delivery of the same event finds the object already in place and succeeds
// without rewriting it.
type ObjectStore interface {
	Read(ctx context.Context, bucket, object string) ([]byte, error)
	Write(ctx context.Context, bucket, object string, data []byte, contentType string) error
	WriteIfAbsent(ctx context.Context, bucket, object string, data []byte, contentType string) error
}

// JobLauncher submits the asynchronous segmentation job. Acceptance is the
// only acknowledgment; the completion arrives later as a storage event.
type JobLauncher interface {
	Launch(ctx context.Context, argument string) error
}

// Analyst produces a free-form damage analysis of a comparison image.
type Analyst interface {
	Analyze(ctx context.Context, image []byte, format string) (string, error)
}

// Router produces the raw (untrusted) per-structure routing decisions for a
// comparison image. The returned text is expected, but not guaranteed, to be
// a single JSON object.
type Router interface {
	Decide(ctx context.Context, image []byte, format string) (string, error)
}

// CorrelationStore links a submission to its eventual completion artifact.
type CorrelationStore interface {
	Put(ctx context.Context, rec *models.CorrelationRecord) error
	Get(ctx context.Context, token string) (*models.CorrelationRecord, error)
}

// RoutingStore persists routing records, batched, idempotently by record ID.
type RoutingStore interface {
	WriteRecords(ctx context.Context, records []models.RoutingRecord) error
}
