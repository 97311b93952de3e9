package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
	"github.com/Lllllllleong/damageanalysisflow/internal/imageutil"
	"github.com/Lllllllleong/damageanalysisflow/internal/models"
	"github.com/Lllllllleong/damageanalysisflow/internal/pipeline"
)

// ReporterConfig holds all configuration for the report branch.
type ReporterConfig struct {
	ProjectID             string
	VertexAIRegion        string
	ModelName             string
	CorrelationCollection string
	ReportNamePrefix      string
	MaxImageBytes         int
	// EmbedImages switches the report between relative image filenames
	// (mirrored alongside the report by the archive collaborator) and
	// self-contained base64 thumbnails.
	EmbedImages bool
}

// ReporterFunction bridges a segmentation completion artifact to the
// reasoning service and renders the styled analysis report.
type ReporterFunction struct {
	objects      ObjectStore
	analyst      Analyst
	correlations CorrelationStore
	config       ReporterConfig
}

func loadReporterConfig() (*ReporterConfig, error) {
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

	return &ReporterConfig{
		ProjectID:             projectID,
		VertexAIRegion:        gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ModelName:             gcp.GetEnv("REASONING_MODEL", "gemini-1.5-pro"),
		CorrelationCollection: gcp.GetEnv("CORRELATION_COLLECTION", "segmentation-jobs"),
		ReportNamePrefix:      gcp.GetEnv("REPORT_NAME_PREFIX", "palisades-fire"),
		MaxImageBytes:         maxBytes,
		EmbedImages:           gcp.GetEnv("EMBED_REPORT_IMAGES", "true") == "true",
	}, nil
}

// NewReporter creates a ReporterFunction with production GCP capabilities.
func NewReporter(ctx context.Context) (*ReporterFunction, error) {
	config, err := loadReporterConfig()
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

	f := &ReporterFunction{
		objects:      gcp.NewObjectStore(storageClient),
		analyst:      gcp.NewGenerativeAnalyst(vertexClient),
		correlations: gcp.NewCorrelationStore(firestoreClient, config.CorrelationCollection),
		config:       *config,
	}
	slog.Info("Reporter logic initialized.", "model", config.ModelName, "embedImages", config.EmbedImages)
	return f, nil
}

// Process handles a segmentation completion event: it resolves the
// correlation record, sends the comparison image to the reasoning service,
// and persists both the raw analysis text and the rendered report.
func (f *ReporterFunction) Process(ctx context.Context, e models.GCSEvent) (*models.AnalysisResult, error) {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	if pipeline.Classify(e.Name) != pipeline.BranchReport {
		logCtx.Error("Received event for an unsupported key pattern.")
		return nil, fmt.Errorf("unsupported key pattern: %s", e.Name)
	}
	logCtx.Info("Processing segmentation completion artifact.")

	token := strings.TrimSuffix(path.Base(e.Name), ".out")
	correlation, err := f.correlations.Get(ctx, token)
	if err != nil {
		logCtx.Error("No correlation record found for completion artifact.", "token", token, "error", err)
		return nil, fmt.Errorf("no correlation record for completion %s: %w", e.Name, err)
	}

	rawOutput, err := f.objects.Read(ctx, e.Bucket, e.Name)
	if err != nil {
		logCtx.Error("Failed to read segmentation completion artifact.", "error", err)
		return nil, err
	}
	var segOutput models.SegmentationOutput
	if err := json.Unmarshal(rawOutput, &segOutput); err != nil {
		logCtx.Error("Segmentation completion artifact is not valid JSON.", "error", err)
		return nil, fmt.Errorf("malformed segmentation output %s: %w", e.Name, err)
	}
	if segOutput.Compare == "" {
		return nil, fmt.Errorf("segmentation output %s is missing the compare reference", e.Name)
	}
	if correlation.ComparedURI != "" && correlation.ComparedURI != segOutput.Compare {
		logCtx.Warn("Completion artifact references a different comparison image than its correlation record.",
			"expected", correlation.ComparedURI, "actual", segOutput.Compare)
	}

	compareBytes, err := f.readURI(ctx, segOutput.Compare)
	if err != nil {
		logCtx.Error("Failed to load comparison image.", "error", err)
		return nil, err
	}
	fitted, err := imageutil.FitUnderLimit(compareBytes, f.config.MaxImageBytes)
	if err != nil {
		logCtx.Error("Failed to fit comparison image under the model size ceiling.", "error", err)
		return nil, fmt.Errorf("failed to fit %s under size ceiling: %w", segOutput.Compare, err)
	}

	analysisText, err := f.analyst.Analyze(ctx, fitted, imageutil.Format(fitted))
	if err != nil {
		logCtx.Error("Reasoning service invocation failed.", "error", err)
		return nil, err
	}

	baseName := f.deriveBaseName(segOutput.Before, e.Name, time.Now().UTC())
	logCtx = logCtx.With("baseName", baseName)

	llmKey := fmt.Sprintf("%s%s.txt", pipeline.LLMOutputPrefix, baseName)
	if err := f.objects.Write(ctx, e.Bucket, llmKey, []byte(analysisText), "text/plain"); err != nil {
		logCtx.Error("Failed to save raw analysis text.", "error", err)
		return nil, err
	}

	markdown := renderReport(analysisText, baseName)
	if f.config.EmbedImages {
		markdown = f.embedReportImages(ctx, logCtx, markdown, baseName, segOutput)
	}

	markdownKey := fmt.Sprintf("%s%s.md", pipeline.MarkdownPrefix, baseName)
	if err := f.objects.Write(ctx, e.Bucket, markdownKey, []byte(markdown), "text/markdown"); err != nil {
		logCtx.Error("Failed to save markdown report.", "error", err)
		return nil, err
	}

	logCtx.Info("Report generation complete.", "markdownKey", markdownKey)
	return &models.AnalysisResult{
		Before:      segOutput.Before,
		After:       segOutput.After,
		Compared:    segOutput.Compare,
		LLMOutput:   gcp.ObjectURI(e.Bucket, llmKey),
		MarkdownKey: markdownKey,
		BaseName:    baseName,
	}, nil
}

func (f *ReporterFunction) readURI(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := gcp.ParseObjectURI(uri)
	if err != nil {
		return nil, err
	}
	return f.objects.Read(ctx, bucket, object)
}

// deriveBaseName groups all report artifacts for one analysis under a single
// stem: the before-image name with its -before suffix stripped, plus a UTC
// timestamp. Falls back to the completion artifact's own stem when the
// descriptor carries no before reference.
func (f *ReporterFunction) deriveBaseName(beforeURI, completionKey string, now time.Time) string {
	descriptive := strings.TrimSuffix(path.Base(completionKey), path.Ext(completionKey))
	if beforeURI != "" {
		stem := strings.TrimSuffix(path.Base(beforeURI), path.Ext(beforeURI))
		stem = strings.ReplaceAll(stem, "-before", "")
		stem = strings.ReplaceAll(stem, "_before", "")
		descriptive = fmt.Sprintf("%s-%s", f.config.ReportNamePrefix, stem)
	}
	return fmt.Sprintf("%s--%s", descriptive, now.Format("2006-01-02-15-04-05"))
}

// embedReportImages swaps the report's relative image references for
// self-contained base64 thumbnails. Any image that fails to load or encode
// keeps its relative reference; the report is still useful without it.
func (f *ReporterFunction) embedReportImages(ctx context.Context, logCtx *slog.Logger, markdown, baseName string, segOutput models.SegmentationOutput) string {
	targets := []struct {
		slot  string
		uri   string
		width int
	}{
		{"before", segOutput.Before, 300},
		{"after", segOutput.After, 300},
		{"compared", segOutput.Compare, 600},
	}

	for _, t := range targets {
		if t.uri == "" {
			continue
		}
		raw, err := f.readURI(ctx, t.uri)
		if err != nil {
			logCtx.Warn("Failed to load image for embedding; keeping relative reference.", "slot", t.slot, "error", err)
			continue
		}
		thumb, err := imageutil.Thumbnail(raw, t.width, 75)
		if err != nil {
			logCtx.Warn("Failed to encode thumbnail; keeping relative reference.", "slot", t.slot, "error", err)
			continue
		}
		dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(thumb)
		markdown = strings.ReplaceAll(markdown, fmt.Sprintf("%s_image_%s.png", t.slot, baseName), dataURI)
	}
	return markdown
}
