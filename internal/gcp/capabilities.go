package gcp

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"cloud.google.com/go/vertexai/genai"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

// The types below are the production implementations of the capability
// interfaces the services are built against. They are constructed once per
// process in each entrypoint and injected; tests substitute in-memory fakes.

// ObjectStore reads and writes byte blobs in Cloud Storage.
type ObjectStore struct {
	client *storage.Client
}

func NewObjectStore(client *storage.Client) *ObjectStore {
	return &ObjectStore{client: client}
}

func (s *ObjectStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	return ReadObject(ctx, s.client, bucket, object)
}

func (s *ObjectStore) Write(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	return WriteObject(ctx, s.client, bucket, object, data, contentType)
}

// WriteIfAbsent creates the object only if it does not exist yet. A lost
// precondition means another invocation already wrote it, which counts as
// success.
func (s *ObjectStore) WriteIfAbsent(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	return WriteObjectAtomically(ctx, s.client, bucket, object, data, contentType)
}

// WorkflowLauncher fires the segmentation orchestration workflow. The launch
// is fire-and-forget: acceptance of the execution is the only acknowledgment.
type WorkflowLauncher struct {
	client *executions.Client
	parent string
}

func NewWorkflowLauncher(client *executions.Client, projectID, location, workflowID string) *WorkflowLauncher {
	return &WorkflowLauncher{
		client: client,
		parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", projectID, location, workflowID),
	}
}

func (l *WorkflowLauncher) Launch(ctx context.Context, argument string) error {
	req := &executionspb.CreateExecutionRequest{
		Parent: l.parent,
		Execution: &executionspb.Execution{
			Argument: argument,
		},
	}
	if _, err := l.client.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to create workflow execution under %s: %w", l.parent, err)
	}
	return nil
}

// GenerativeAnalyst wraps the free-form analysis model.
type GenerativeAnalyst struct {
	model *genai.GenerativeModel
}

func NewGenerativeAnalyst(client *VertexClient) *GenerativeAnalyst {
	return &GenerativeAnalyst{model: client.AnalysisModel}
}

func (a *GenerativeAnalyst) Analyze(ctx context.Context, image []byte, format string) (string, error) {
	resp, err := a.model.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(AnalysisUserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis from gemini: %w", err)
	}
	return responseText(resp), nil
}

// GenerativeRouter wraps the strict-JSON routing model.
type GenerativeRouter struct {
	model *genai.GenerativeModel
}

func NewGenerativeRouter(client *VertexClient) *GenerativeRouter {
	return &GenerativeRouter{model: client.RoutingModel}
}

func (r *GenerativeRouter) Decide(ctx context.Context, image []byte, format string) (string, error) {
	resp, err := r.model.GenerateContent(ctx, genai.ImageData(format, image), genai.Text(RoutingUserPrompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate routing decisions from gemini: %w", err)
	}
	return responseText(resp), nil
}

// responseText concatenates all text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}

// CorrelationStore persists submission correlation records in Firestore.
type CorrelationStore struct {
	client     *firestore.Client
	collection string
}

func NewCorrelationStore(client *firestore.Client, collection string) *CorrelationStore {
	return &CorrelationStore{client: client, collection: collection}
}

func (s *CorrelationStore) Put(ctx context.Context, rec *models.CorrelationRecord) error {
	if _, err := s.client.Collection(s.collection).Doc(rec.Token).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist correlation record %s: %w", rec.Token, err)
	}
	return nil
}

func (s *CorrelationStore) Get(ctx context.Context, token string) (*models.CorrelationRecord, error) {
	snap, err := s.client.Collection(s.collection).Doc(token).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load correlation record %s: %w", token, err)
	}
	var rec models.CorrelationRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal correlation record %s: %w", token, err)
	}
	return &rec, nil
}

// RoutingStore writes routing records in a batch through a BulkWriter.
// Document IDs are derived from the composite routing ID, so reprocessing the
// same source image overwrites prior records instead of duplicating them.
type RoutingStore struct {
	client     *firestore.Client
	collection string
}

func NewRoutingStore(client *firestore.Client, collection string) *RoutingStore {
	return &RoutingStore{client: client, collection: collection}
}

func (s *RoutingStore) WriteRecords(ctx context.Context, records []models.RoutingRecord) error {
	bw := s.client.BulkWriter(ctx)

	jobs := make([]*firestore.BulkWriterJob, 0, len(records))
	for _, rec := range records {
		doc := s.client.Collection(s.collection).Doc(routingDocID(rec.RoutingID))
		job, err := bw.Set(doc, rec)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to enqueue routing record %s: %w", rec.RoutingID, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to write routing record %s: %w", records[i].RoutingID, err)
		}
	}
	return nil
}

// routingDocID makes a composite routing ID safe for use as a Firestore
// document ID. Slashes would otherwise be read as subcollection separators.
func routingDocID(routingID string) string {
	return strings.ReplaceAll(routingID, "/", "_")
}
