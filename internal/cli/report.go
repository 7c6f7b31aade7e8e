package cli

import (
	"fmt"
	"os"

	"github.com/FranksOps/tendril/internal/report"
	"github.com/FranksOps/tendril/internal/storage"
	"github.com/spf13/cobra"
)

func (a *app) newReportCmd() *cobra.Command {
	var (
		format string
		runID  string
		depth  int
		output string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the extractions held by the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			backend, err := a.openStore(ctx, 0)
			if err != nil {
				return err
			}
			defer backend.Close()

			filter := storage.Filter{RunID: runID}
			if cmd.Flags().Changed("depth") {
				filter.Depth = storage.DepthOf(depth)
			}

			extractions, err := backend.Query(ctx, filter)
			if err != nil {
				return err
			}
			summary := report.GenerateSummary(extractions)

			w := a.stdout(cmd)
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create report: %w", err)
				}
				defer f.Close()
				w = f
			}
			return report.Write(w, format, summary)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "report format: text, json, html")
	cmd.Flags().StringVar(&runID, "run", "", "only include this run")
	cmd.Flags().IntVar(&depth, "depth", 0, "only include this depth")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file")
	return cmd
}
