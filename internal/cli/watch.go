package cli

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
	"github.com/Lllllllleong/damageanalysisflow/internal/pipeline"
)

// WatchCmd returns the watch command.
func WatchCmd() *cobra.Command {
	var (
		outDir   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for finished reports and download them",
		Long: `Watch polls the markdown/ prefix of the pipeline bucket and downloads
every report it has not seen yet. Reports already present when the watch
starts are skipped; only new arrivals are fetched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := storage.NewClient(ctx)
			if err != nil {
				return fmt.Errorf("storage.NewClient: %w", err)
			}
			defer client.Close()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("creating output directory: %w", err)
			}

			seen, err := listReports(ctx, client, cfg.Bucket)
			if err != nil {
				return err
			}
			fmt.Printf("Watching gs://%s/%s every %s (%d existing report(s) ignored). Ctrl-C to stop.\n",
				cfg.Bucket, pipeline.MarkdownPrefix, interval, len(seen))

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}

				current, err := listReports(ctx, client, cfg.Bucket)
				if err != nil {
					color.New(color.FgYellow).Printf("listing reports failed, retrying: %v\n", err)
					continue
				}
				for object := range current {
					if seen[object] {
						continue
					}
					seen[object] = true
					data, err := gcp.ReadObject(ctx, client, cfg.Bucket, object)
					if err != nil {
						color.New(color.FgRed).Printf("download failed for %s: %v\n", object, err)
						continue
					}
					local := filepath.Join(outDir, path.Base(object))
					if err := os.WriteFile(local, data, 0o644); err != nil {
						return fmt.Errorf("writing %s: %w", local, err)
					}
					color.New(color.FgGreen).Printf("New report: %s (%d bytes)\n", local, len(data))
				}
			}
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "reports", "Local directory to download reports into")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Polling interval")

	return cmd
}

func listReports(ctx context.Context, client *storage.Client, bucket string) (map[string]bool, error) {
	objects := make(map[string]bool)
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: pipeline.MarkdownPrefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", pipeline.MarkdownPrefix, err)
		}
		objects[attrs.Name] = true
	}
	return objects, nil
}
