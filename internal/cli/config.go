// Package cli implements the pipelinectl subcommands used to drive the
// pipeline from a workstation: uploading image pairs, watching for finished
// reports, inspecting routing decisions and running the mask comparison
// offline.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
)

// Config carries the environment the CLI talks to.
type Config struct {
	Bucket            string
	ProjectID         string
	RoutingCollection string
}

// LoadConfig reads a .env file when present and falls back to process
// environment variables. BUCKET_NAME is required by every remote command.
func LoadConfig() (Config, error) {
	// A missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := Config{
		Bucket:            os.Getenv("BUCKET_NAME"),
		ProjectID:         os.Getenv("PROJECT_ID"),
		RoutingCollection: gcp.GetEnv("ROUTING_COLLECTION", "routing-decisions"),
	}
	if cfg.Bucket == "" {
		return Config{}, fmt.Errorf("BUCKET_NAME environment variable not set")
	}
	return cfg, nil
}
