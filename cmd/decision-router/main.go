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
	adjusterInstance *services.AdjusterFunction
	once             sync.Once
	initErr          error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework routes the event here.
	functions.CloudEvent("RouteDecisions", routeDecisions)
}

// main is required by the Go Functions Framework.
func main() {}

// routeDecisions is the Cloud Function entry point for comparison-image
// events under compared/.
func routeDecisions(ctx context.Context, e cloudevents.Event) error {
	// sync.Once gives robust, one-time initialization of the GCP clients.
	once.Do(func() {
		adjusterInstance, initErr = services.NewAdjuster(context.Background())
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

	outcome, err := adjusterInstance.Process(ctx, gcsEvent)
	if err != nil {
		return err
	}
	if outcome.Skipped {
		slog.Warn("Event skipped", "key", outcome.Key, "reason", outcome.SkipReason)
		return nil
	}
	slog.Info("Routing decisions persisted",
		"key", outcome.Key,
		"totalHomes", outcome.Summary.TotalHomes,
		"autoApproved", outcome.Summary.AutoApprovedCount,
		"needsHumanReview", outcome.Summary.NeedsHumanReviewCount,
	)
	return nil
}
