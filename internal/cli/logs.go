package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "logs <run_id>",
		Short: "Show the captured output of a run's stages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]

			src, closeSrc, err := openSource()
			if err != nil {
				return err
			}
			defer closeSrc()

			stages := []string{stage}
			if stage == "" {
				run, err := src.GetRun(cmd.Context(), runID)
				if err != nil {
					return fmt.Errorf("get run: %w", err)
				}
				if run == nil {
					return fmt.Errorf("run %s not found", runID)
				}
				stages = stages[:0]
				for _, t := range run.Tasks {
					stages = append(stages, t.Stage)
				}
			}

			for _, s := range stages {
				tl, err := src.TaskLogs(cmd.Context(), runID, s)
				if err != nil {
					return fmt.Errorf("get logs: %w", err)
				}
				if tl == nil {
					return fmt.Errorf("stage %s of run %s not found", s, runID)
				}
				printTaskLog(cmd.OutOrStdout(), tl)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&stage, "stage", "s", "", "Only show this stage")
	return cmd
}

func printTaskLog(w io.Writer, tl *taskLog) {
	fmt.Fprintf(w, "=== %s (%s) ===\n", tl.Stage, tl.State)
	if tl.Stdout != "" {
		fmt.Fprintf(w, "[stdout]\n%s", tl.Stdout)
	}
	if tl.Stderr != "" {
		fmt.Fprintf(w, "[stderr]\n%s", tl.Stderr)
	}
	if tl.ExitCode != nil {
		fmt.Fprintf(w, "[exit code: %d]\n", *tl.ExitCode)
	}
	fmt.Fprintln(w)
}
