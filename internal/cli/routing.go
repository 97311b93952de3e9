package cli

import (
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/damageanalysisflow/internal/models"
)

// RoutingCmd returns the routing command.
func RoutingCmd() *cobra.Command {
	var reviewOnly bool

	cmd := &cobra.Command{
		Use:   "routing",
		Short: "List persisted routing decisions",
		Long: `Routing scans the routing-decision collection and prints one line per
structure: the routing ID, the decision, the model confidence and the reason.
Auto-approved rows print green, rows held for human review print red.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			if cfg.ProjectID == "" {
				return fmt.Errorf("PROJECT_ID environment variable not set")
			}

			ctx := cmd.Context()
			client, err := firestore.NewClient(ctx, cfg.ProjectID)
			if err != nil {
				return fmt.Errorf("firestore.NewClient: %w", err)
			}
			defer client.Close()

			approved := color.New(color.FgGreen)
			review := color.New(color.FgRed)

			var total, held int
			it := client.Collection(cfg.RoutingCollection).OrderBy("routingId", firestore.Asc).Documents(ctx)
			defer it.Stop()
			for {
				doc, err := it.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					return fmt.Errorf("scanning %s: %w", cfg.RoutingCollection, err)
				}

				var rec models.RoutingRecord
				if err := doc.DataTo(&rec); err != nil {
					color.New(color.FgYellow).Printf("skipping malformed document %s: %v\n", doc.Ref.ID, err)
					continue
				}
				total++

				line := fmt.Sprintf("%-50s %-20s %.2f  %s", rec.RoutingID, rec.Decision, rec.Confidence, rec.Reason)
				if rec.Decision == models.DecisionAutoApproved {
					if !reviewOnly {
						approved.Println(line)
					}
					continue
				}
				held++
				review.Println(line)
			}

			fmt.Printf("\n%d decision(s), %d held for human review\n", total, held)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reviewOnly, "review-only", false, "Only show rows held for human review")

	return cmd
}
