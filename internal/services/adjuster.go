package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
	"github.com/Lllllllleong/damageanalysisflow/internal/imageutil"
	"github.com/Lllllllleong/damageanalysisflow/internal/models"
	"github.com/Lllllllleong/damageanalysisflow/internal/pipeline"
)

// AdjusterConfig holds all configuration for the routing branch.
type AdjusterConfig struct {
	ProjectID         string
	VertexAIRegion    string
	ModelName         string
	RoutingCollection string
	MaxImageBytes     int
}

// AdjusterFunction turns a comparison image into persisted per-structure
// routing records plus their visual artifacts.
type AdjusterFunction struct {
	objects      ObjectStore
	router       Router
	routingStore RoutingStore
	artifacts    *ArtifactGenerator
	config       AdjusterConfig
}

// RoutingOutcome is the invocation result surfaced to the entrypoint.
type RoutingOutcome struct {
	Bucket       string
	Key          string
	Skipped      bool
	SkipReason   string
	AnnotatedURI string
	Summary      models.DecisionSummary
}

func loadAdjusterConfig() (*AdjusterConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	maxBytes := imageutil.DefaultMaxImageBytes
	if raw := gcp.GetEnv("MAX_IMAGE_BYTES", ""); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("MAX_IMAGE_BYTES must be a positive integer, got %q", raw)
		}
		maxBytes = parsed
	}

	return &AdjusterConfig{
		ProjectID:         projectID,
		VertexAIRegion:    gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ModelName:         gcp.GetEnv("REASONING_MODEL", "gemini-1.5-pro"),
		RoutingCollection: gcp.GetEnv("ROUTING_COLLECTION", "routing-decisions"),
		MaxImageBytes:     maxBytes,
	}, nil
}

// NewAdjuster creates an AdjusterFunction with production GCP capabilities.
func NewAdjuster(ctx context.Context) (*AdjusterFunction, error) {
	config, err := loadAdjusterConfig()
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
	vertexClient, err := gcp.NewVertexClient(ctx, config.ProjectID, config.VertexAIRegion, config.ModelName)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}

	objects := gcp.NewObjectStore(storageClient)
	f := &AdjusterFunction{
		objects:      objects,
		router:       gcp.NewGenerativeRouter(vertexClient),
		routingStore: gcp.NewRoutingStore(firestoreClient, config.RoutingCollection),
		artifacts:    NewArtifactGenerator(objects),
		config:       *config,
	}
	slog.Info("Adjuster logic initialized.", "routingCollection", config.RoutingCollection, "model", config.ModelName)
	return f, nil
}

// Process handles one comparison-ready storage event end to end: reasoning
// call, normalization, artifact generation, and routing record persistence.
//
// Unlike the other two branches, an unmatched key here is a logged skip, not
// an error: this branch is subscribed to the whole bucket's finalize feed and
// must tolerate the artifacts it writes itself re-entering it.
func (f *AdjusterFunction) Process(ctx context.Context, e models.GCSEvent) (*RoutingOutcome, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if pipeline.Classify(e.Name) != pipeline.BranchRouting {
		logCtx.Warn("Skipping object outside the compared/ prefix.")
		return &RoutingOutcome{Bucket: e.Bucket, Key: e.Name, Skipped: true, SkipReason: "unsupported-prefix"}, nil
	}
	logCtx.Info("Processing comparison image for routing decisions.")

	imageBytes, err := f.objects.Read(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to read comparison image.", "error", err)
		return nil, err
	}

	fitted, err := imageutil.FitUnderLimit(imageBytes, f.config.MaxImageBytes)
	if err != nil {
		logCtx.Error("Failed to fit comparison image under the model size ceiling.", "error", err)
		return nil, fmt.Errorf("failed to fit %s under size ceiling: %w", e.Name, err)
	}

	rawOutput, err := f.router.Decide(ctx, fitted, imageutil.Format(fitted))
	if err != nil {
		logCtx.Error("Reasoning service invocation failed.", "error", err)
		return nil, err
	}

	homes, err := ParseDecisions(rawOutput)
	if err != nil {
		logCtx.Error("Reasoning service returned unusable output.", "error", err, "rawOutput", truncateForLog(rawOutput))
		return nil, err
	}
	normalized := NormalizeDecisions(homes)

	annotatedURI, cropURIs := f.artifacts.Generate(ctx, e.Bucket, e.Name, imageBytes, normalized)

	records := buildRoutingRecords(e.Bucket, e.Name, normalized, annotatedURI, cropURIs, time.Now().UTC())
	if err := f.routingStore.WriteRecords(ctx, records); err != nil {
		logCtx.Error("Failed to persist routing records.", "error", err)
		return nil, err
	}

	logCtx.Info("Routing complete.",
		"totalHomes", normalized.Summary.TotalHomes,
		"autoApproved", normalized.Summary.AutoApprovedCount,
		"needsHumanReview", normalized.Summary.NeedsHumanReviewCount,
	)
	return &RoutingOutcome{
		Bucket:       e.Bucket,
		Key:          e.Name,
		AnnotatedURI: annotatedURI,
		Summary:      normalized.Summary,
	}, nil
}

// buildRoutingRecords materializes one record per structure. The routing ID
// concatenates the source object key and the structure identifier so that
// reprocessing the same image overwrites rather than duplicates, while two
// different images can never collide.
func buildRoutingRecords(bucket, imageKey string, normalized *models.NormalizedDecisions, annotatedURI string, cropURIs map[string]string, now time.Time) []models.RoutingRecord {
	sourceURI := gcp.ObjectURI(bucket, imageKey)
	records := make([]models.RoutingRecord, 0, len(normalized.Homes))
	for _, home := range normalized.Homes {
		records = append(records, models.RoutingRecord{
			RoutingID:        fmt.Sprintf("%s#%s", imageKey, home.HouseID),
			SourceImageURI:   sourceURI,
			HouseID:          home.HouseID,
			Decision:         home.Decision,
			HasClearanceZone: home.HasClearanceZone,
			Confidence:       home.Confidence,
			Reason:           home.Reason,
			BBox:             home.BBox,
			CropURI:          cropURIs[home.HouseID],
			AnnotatedURI:     annotatedURI,
			CreatedAt:        now,
		})
	}
	return records
}

func truncateForLog(s string) string {
	const limit = 512
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
