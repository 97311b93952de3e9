package cli

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
	"github.com/Lllllllleong/damageanalysisflow/internal/pipeline"
)

// UploadCmd returns the upload command.
func UploadCmd() *cobra.Command {
	var (
		dir   string
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload image pairs and input descriptors to the pipeline bucket",
		Long: `Upload pushes local files into the pipeline bucket:
- <dir>/images/*       -> images/        (before/after/compared imagery)
- <dir>/inputs/*.json  -> inputs/        (descriptors; uploading one starts a run)

Images are uploaded first so every reference inside a descriptor resolves by
the time the descriptor lands and triggers the submission router.`,
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

			imageCount, err := uploadDir(ctx, client, cfg.Bucket, filepath.Join(dir, "images"), pipeline.ImagesPrefix, "")
			if err != nil {
				return err
			}
			color.New(color.FgCyan).Printf("Uploaded %d image(s) to gs://%s/%s\n", imageCount, cfg.Bucket, pipeline.ImagesPrefix)

			if delay > 0 {
				fmt.Printf("Waiting %s before uploading descriptors...\n", delay)
				time.Sleep(delay)
			}

			inputCount, err := uploadDir(ctx, client, cfg.Bucket, filepath.Join(dir, "inputs"), pipeline.InputsPrefix, ".json")
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("Uploaded %d descriptor(s) to gs://%s/%s\n", inputCount, cfg.Bucket, pipeline.InputsPrefix)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Local directory holding images/ and inputs/ subdirectories")
	cmd.Flags().DurationVar(&delay, "delay", 2*time.Second, "Pause between image and descriptor uploads")

	return cmd
}

// uploadDir uploads every regular file in localDir to the given object
// prefix. ext, when non-empty, filters by file extension. A missing local
// directory is not an error; it simply uploads nothing.
func uploadDir(ctx context.Context, client *storage.Client, bucket, localDir, prefix, ext string) (int, error) {
	entries, err := os.ReadDir(localDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", localDir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ext != "" && !strings.HasSuffix(strings.ToLower(name), ext) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(localDir, name))
		if err != nil {
			return count, fmt.Errorf("reading %s: %w", name, err)
		}
		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		object := prefix + name
		if err := gcp.WriteObject(ctx, client, bucket, object, data, contentType); err != nil {
			return count, fmt.Errorf("uploading %s: %w", object, err)
		}
		fmt.Printf("  %s -> gs://%s/%s\n", name, bucket, object)
		count++
	}
	return count, nil
}
