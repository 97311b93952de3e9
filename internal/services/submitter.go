package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/google/uuid"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
	"github.com/Lllllllleong/damageanalysisflow/internal/models"
	"github.com/Lllllllleong/damageanalysisflow/internal/pipeline"
)

// SegmentationQuery is the fixed text query handed to the segmentation
// service for every submission.
const SegmentationQuery = "house, building, roof"

// SubmitterConfig holds all configuration for the submission branch.
type SubmitterConfig struct {
	ProjectID             string
	WorkflowLocation      string
	WorkflowID            string
	SegmentationEndpoint  string
	CorrelationCollection string
}

// SubmitterFunction turns a raw-input descriptor into an asynchronous
// segmentation job. The branch is fire-and-forget: after the launch it holds
// no state beyond the persisted correlation record.
type SubmitterFunction struct {
	objects      ObjectStore
	launcher     JobLauncher
	correlations CorrelationStore
	config       SubmitterConfig
}

// launchArgument is the orchestration workflow's input contract.
type launchArgument struct {
	PayloadLocation string `json:"payload_location"`
	Endpoint        string `json:"endpoint"`
	OutputLocation  string `json:"output_location"`
	Token           string `json:"token"`
}

func loadSubmitterConfig() (*SubmitterConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	return &SubmitterConfig{
		ProjectID:             projectID,
		WorkflowLocation:      gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:            gcp.GetEnv("WORKFLOW_ID", "segmentation-orchestrator"),
		SegmentationEndpoint:  gcp.GetEnv("SEGMENTATION_ENDPOINT", "sam-seg-endpoint"),
		CorrelationCollection: gcp.GetEnv("CORRELATION_COLLECTION", "segmentation-jobs"),
	}, nil
}

// NewSubmitter creates a SubmitterFunction with production GCP capabilities.
func NewSubmitter(ctx context.Context) (*SubmitterFunction, error) {
	config, err := loadSubmitterConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	executionsClient, err := executions.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
	}

	f := &SubmitterFunction{
		objects:      gcp.NewObjectStore(storageClient),
		launcher:     gcp.NewWorkflowLauncher(executionsClient, config.ProjectID, config.WorkflowLocation, config.WorkflowID),
		correlations: gcp.NewCorrelationStore(firestoreClient, config.CorrelationCollection),
		config:       *config,
	}
	slog.Info("Submitter logic initialized.", "workflowId", config.WorkflowID, "endpoint", config.SegmentationEndpoint)
	return f, nil
}

// Process handles one raw-input storage event: it reads the descriptor,
// writes the segmentation request payload under a fresh correlation token,
// persists the correlation record, and launches the segmentation job.
func (f *SubmitterFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if pipeline.Classify(e.Name) != pipeline.BranchSubmission {
		logCtx.Error("Received event for an unsupported key pattern.")
		return fmt.Errorf("unsupported key pattern: %s", e.Name)
	}
	logCtx.Info("Processing new raw-input descriptor.")

	raw, err := f.objects.Read(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to read input descriptor.", "error", err)
		return err
	}

	var descriptor models.InputDescriptor
	if err := json.Unmarshal(raw, &descriptor); err != nil {
		logCtx.Error("Input descriptor is not valid JSON.", "error", err)
		return fmt.Errorf("malformed input descriptor %s: %w", e.Name, err)
	}
	if err := validateDescriptor(descriptor, e.Name); err != nil {
		logCtx.Error("Input descriptor is incomplete.", "error", err)
		return err
	}

	token := uuid.NewString()
	request := models.SegmentationRequest{
		BeforeImage:    gcp.ObjectURI(e.Bucket, pipeline.ImagesPrefix+descriptor.Before),
		AfterImage:     gcp.ObjectURI(e.Bucket, pipeline.ImagesPrefix+descriptor.After),
		ComparedOutput: gcp.ObjectURI(e.Bucket, pipeline.ComparedPrefix+descriptor.ComparedOutput),
		Text:           SegmentationQuery,
	}

	payloadBytes, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal segmentation request: %w", err)
	}
	payloadKey := fmt.Sprintf("%s%s.json", pipeline.PayloadPrefix, token)
	if err := f.objects.Write(ctx, e.Bucket, payloadKey, payloadBytes, "application/json"); err != nil {
		logCtx.Error("Failed to write segmentation request payload.", "error", err)
		return err
	}

	outputKey := fmt.Sprintf("%s%s.out", pipeline.AsyncOutPrefix, token)
	correlation := &models.CorrelationRecord{
		Token:         token,
		PayloadObject: payloadKey,
		BeforeURI:     request.BeforeImage,
		AfterURI:      request.AfterImage,
		ComparedURI:   request.ComparedOutput,
		OutputObject:  outputKey,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := f.correlations.Put(ctx, correlation); err != nil {
		logCtx.Error("Failed to persist correlation record.", "error", err)
		return err
	}

	argument, err := json.Marshal(launchArgument{
		PayloadLocation: gcp.ObjectURI(e.Bucket, payloadKey),
		Endpoint:        f.config.SegmentationEndpoint,
		OutputLocation:  gcp.ObjectURI(e.Bucket, outputKey),
		Token:           token,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal launch argument: %w", err)
	}
	if err := f.launcher.Launch(ctx, string(argument)); err != nil {
		logCtx.Error("Failed to launch segmentation job.", "error", err)
		return err
	}

	logCtx.Info("Segmentation job submitted.", "token", token, "payloadKey", payloadKey)
	return nil
}

func validateDescriptor(d models.InputDescriptor, key string) error {
	if d.Before == "" {
		return fmt.Errorf("missing required field %q in %s", "before", key)
	}
	if d.After == "" {
		return fmt.Errorf("missing required field %q in %s", "after", key)
	}
	if d.ComparedOutput == "" {
		return fmt.Errorf("missing required field %q in %s", "compared_output", key)
	}
	return nil
}
