package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/cnvkit/internal/collect"
)

func newCollectCmd() *cobra.Command {
	var opts collect.Options

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Bundle a working directory and promote the segment table",
		Long: `Collect writes <output-dir>/model-fit.tar.gz containing every file of the
working directory under model-fit/, and copies the summary file next to it.
Nothing is written unless the summary and every --require file exist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Logger = logger
			res, err := collect.Collect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bundle:  %s (%s, %d files)\n", res.Bundle, humanize.Bytes(uint64(res.BundleSize)), len(res.Entries))
			fmt.Fprintf(out, "Summary: %s\n", res.Summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", "", "Working directory to bundle")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Directory receiving the bundle and the summary")
	cmd.Flags().StringVar(&opts.Summary, "summary", "", "File promoted next to the bundle")
	cmd.Flags().StringArrayVar(&opts.Required, "require", nil, "File that must exist before collecting (repeatable)")
	cmd.MarkFlagRequired("work-dir")
	cmd.MarkFlagRequired("output-dir")
	cmd.MarkFlagRequired("summary")
	return cmd
}
