package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/cnvkit/pkg/model"
)

func newListCmd() *cobra.Command {
	opts := model.DefaultListOptions()
	var state string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if state != "" {
				st, err := model.ParseRunState(state)
				if err != nil {
					return err
				}
				opts.State = st
			}

			src, closeSrc, err := openSource()
			if err != nil {
				return err
			}
			defer closeSrc()

			opts.Clamp()
			runs, total, err := src.ListRuns(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs found.")
				return nil
			}

			fmt.Fprintf(out, "%-40s  %-10s  %-20s  %-12s  %s\n", "ID", "STATE", "SAMPLE", "STAGES", "CREATED")
			for _, run := range runs {
				fmt.Fprintf(out, "%-40s  %-10s  %-20s  %-12s  %s\n",
					run.ID, run.State, run.SampleName, summarize(run.TaskSummary), humanize.Time(run.CreatedAt))
			}
			if opts.Offset+len(runs) < total {
				fmt.Fprintf(out, "\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", opts.Limit, "Maximum number of runs to show (1-100)")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "Number of runs to skip")
	cmd.Flags().StringVar(&state, "state", "", "Only show runs in this state")
	return cmd
}
