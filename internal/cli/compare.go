package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/damageanalysisflow/internal/geometry"
)

// CompareCmd returns the compare command.
func CompareCmd() *cobra.Command {
	var (
		beforeImage string
		beforeMasks string
		afterMasks  string
		outPath     string
		threshold   float64
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run the mask overlap comparison offline",
		Long: `Compare evaluates segmentation masks locally, without touching the
remote pipeline. It loads before and after masks from JSON files (an array of
masks, each mask an array of {"x":..,"y":..} points), marks each before
structure as survived or destroyed by bounding-box overlap, and renders the
outcome onto the before image: green outlines survived, red destroyed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := loadMasks(beforeMasks)
			if err != nil {
				return err
			}
			after, err := loadMasks(afterMasks)
			if err != nil {
				return err
			}

			survivals := geometry.CompareMasks(before, after, threshold)
			survived := 0
			for _, s := range survivals {
				if s.Survived {
					survived++
				}
			}
			color.New(color.FgGreen).Printf("%d survived", survived)
			fmt.Print(" / ")
			color.New(color.FgRed).Printf("%d destroyed", len(survivals)-survived)
			fmt.Printf(" (threshold %.2f)\n", threshold)

			img, err := imaging.Open(beforeImage)
			if err != nil {
				return fmt.Errorf("opening %s: %w", beforeImage, err)
			}
			rendered := geometry.RenderComparison(img, survivals)
			if err := imaging.Save(rendered, outPath); err != nil {
				return fmt.Errorf("saving %s: %w", outPath, err)
			}
			fmt.Printf("Comparison image written to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&beforeImage, "before", "", "Before image to render the comparison onto")
	cmd.Flags().StringVar(&beforeMasks, "before-masks", "", "JSON file of before-image masks")
	cmd.Flags().StringVar(&afterMasks, "after-masks", "", "JSON file of after-image masks")
	cmd.Flags().StringVarP(&outPath, "out", "o", "compared.png", "Output image path")
	cmd.Flags().Float64Var(&threshold, "threshold", geometry.SurvivalThreshold, "Minimum overlap ratio to count as survived")
	_ = cmd.MarkFlagRequired("before")
	_ = cmd.MarkFlagRequired("before-masks")
	_ = cmd.MarkFlagRequired("after-masks")

	return cmd
}

func loadMasks(path string) ([]geometry.Mask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var masks []geometry.Mask
	if err := json.Unmarshal(data, &masks); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return masks, nil
}
