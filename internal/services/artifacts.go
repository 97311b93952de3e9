package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/damageanalysisflow/internal/gcp"
	"github.com/Lllllllleong/damageanalysisflow/internal/geometry"
	"github.com/Lllllllleong/damageanalysisflow/internal/models"
	"github.com/Lllllllleong/damageanalysisflow/internal/pipeline"
)

var (
	autoApprovedColor = color.NRGBA{R: 0, G: 170, B: 0, A: 255}
	needsReviewColor  = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// ArtifactGenerator produces the per-structure crop images and the annotated
// overview for one comparison image. The whole stage is optional: if the
// source image cannot be decoded it degrades to a no-op rather than failing
// the routing invocation.
type ArtifactGenerator struct {
	objects ObjectStore
}

func NewArtifactGenerator(objects ObjectStore) *ArtifactGenerator {
	return &ArtifactGenerator{objects: objects}
}

// Generate writes one crop per structure with a valid bounding box, plus a
// single annotated overview with all boxes drawn in a decision-keyed color.
// It returns the annotated image URI and a map of structure ID to crop URI.
// Artifact keys are deterministic per source image, so writes are
// create-if-absent: reprocessing the same image keeps the existing artifacts
// instead of rewriting them.
func (g *ArtifactGenerator) Generate(ctx context.Context, bucket, imageKey string, imageBytes []byte, normalized *models.NormalizedDecisions) (string, map[string]string) {
	logCtx := slog.With("gcsObject", imageKey)

	base, err := imaging.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		logCtx.Warn("Unable to decode image; skipping crop/annotation artifact generation.", "error", err)
		return "", map[string]string{}
	}

	width := base.Bounds().Dx()
	height := base.Bounds().Dy()
	annotated := imaging.Clone(base)
	lineWidth := max(2, width/400)

	cropURIs := make(map[string]string, len(normalized.Homes))
	var mu sync.Mutex

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	for _, home := range normalized.Homes {
		if home.BBox == nil {
			continue
		}

		rect := bboxToPixelRect(home.BBox, width, height)
		houseID := home.HouseID

		boxColor := needsReviewColor
		if home.Decision == models.DecisionAutoApproved {
			boxColor = autoApprovedColor
		}
		geometry.DrawRect(annotated, rect, boxColor, lineWidth)
		drawLabel(annotated, fmt.Sprintf("%s %s", houseID, home.Decision), rect.Min.X+2, rect.Min.Y, boxColor)

		crop := imaging.Crop(base, rect)
		cropKey := fmt.Sprintf("%s%s/%s.png", pipeline.CropsPrefix, imageKey, sanitizeKeyComponent(houseID))

		eg.Go(func() error {
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, crop, imaging.PNG); err != nil {
				return fmt.Errorf("crop %s: %w", houseID, err)
			}
			if err := g.objects.WriteIfAbsent(gctx, bucket, cropKey, buf.Bytes(), "image/png"); err != nil {
				return fmt.Errorf("crop %s: %w", houseID, err)
			}
			mu.Lock()
			cropURIs[houseID] = gcp.ObjectURI(bucket, cropKey)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		// Missing crops are tolerable; the routing records simply won't
		// reference them.
		logCtx.Warn("One or more crop artifacts failed to upload.", "error", err)
	}

	annotatedKey := fmt.Sprintf("%s%s.annotated.png", pipeline.AnnotatedPrefix, imageKey)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, annotated, imaging.PNG); err != nil {
		logCtx.Warn("Failed to encode annotated overview.", "error", err)
		return "", cropURIs
	}
	if err := g.objects.WriteIfAbsent(ctx, bucket, annotatedKey, buf.Bytes(), "image/png"); err != nil {
		logCtx.Warn("Failed to upload annotated overview.", "error", err)
		return "", cropURIs
	}

	return gcp.ObjectURI(bucket, annotatedKey), cropURIs
}

// bboxToPixelRect converts a fractional box to pixel coordinates against the
// actual image dimensions. The clamping guarantees at least a 1x1 pixel box
// even at extreme fractional values.
func bboxToPixelRect(bbox *models.BoundingBox, width, height int) image.Rectangle {
	left := int(bbox.XMin * float64(width))
	top := int(bbox.YMin * float64(height))
	right := int(bbox.XMax * float64(width))
	bottom := int(bbox.YMax * float64(height))

	left = max(0, min(width-1, left))
	top = max(0, min(height-1, top))
	right = max(left+1, min(width, right))
	bottom = max(top+1, min(height, bottom))
	return image.Rect(left, top, right, bottom)
}

// drawLabel renders a short decision label just above the box, nudged down
// when the box touches the top edge.
func drawLabel(dst *image.NRGBA, label string, x, top int, c color.Color) {
	baseline := top - 3
	if baseline < basicfont.Face7x13.Ascent {
		baseline = top + basicfont.Face7x13.Height
	}
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(label)
}
