package commands

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contentcal/api/internal/content"
	"contentcal/api/internal/planner"
)

func newGenerateCmd() *cobra.Command {
	var (
		keywords []string
		types    []string
		start    string
		weekends bool
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a generated plan as JSON",
		Example: `  planctl generate --keywords coffee,espresso --start 2025-03-03
  planctl generate --keywords launch --types blog,email --weekends --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := planner.Options{Keywords: keywords, IncludeWeekends: weekends}

			opts.StartDate = content.DateOnly(time.Now().UTC())
			if strings.TrimSpace(start) != "" {
				parsed, err := time.Parse(time.DateOnly, start)
				if err != nil {
					return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
				}
				opts.StartDate = parsed
			}
			for _, raw := range types {
				t, err := content.ParseContentType(raw)
				if err != nil {
					return err
				}
				opts.ContentTypes = append(opts.ContentTypes, t)
			}

			var rng *rand.Rand
			if cmd.Flags().Changed("seed") {
				rng = rand.New(rand.NewPCG(seed, seed))
			}
			plan, err := planner.Generate(opts, rng)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		},
	}
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "keywords to plan around (required)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "content types to include (default all)")
	cmd.Flags().StringVar(&start, "start", "", "first day of the plan, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&weekends, "weekends", false, "schedule on Saturdays and Sundays too")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for reproducible output")
	_ = cmd.MarkFlagRequired("keywords")
	return cmd
}
