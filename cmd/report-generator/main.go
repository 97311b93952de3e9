package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
	"github.com/Lllllllleong/damageanalysisflow/internal/services"
)

var (
	reporterInstance *services.ReporterFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework routes the event here.
	functions.CloudEvent("GenerateReport", generateReport)
}

// main is required by the Go Functions Framework.
func main() {}

// generateReport is the Cloud Function entry point for segmentation
// completion events under async-out/*.out.
func generateReport(ctx context.Context, e cloudevents.Event) error {
	// sync.Once gives robust, one-time initialization of the GCP clients.
	once.Do(func() {
		reporterInstance, initErr = services.NewReporter(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	result, err := reporterInstance.Process(ctx, gcsEvent)
	if err != nil {
		return err
	}
	slog.Info("Report pipeline completed", "markdownKey", result.MarkdownKey, "baseName", result.BaseName)
	return nil
}
