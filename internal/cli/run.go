package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/execution"
	"github.com/me/cnvkit/internal/provision"
	"github.com/me/cnvkit/internal/runner"
)

func newRunCmd() *cobra.Command {
	var flags configFlags
	var provisionTo string
	var shell string
	var container, image string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline for one sample",
		Long: `Run resolves the configuration, runs every stage on this host in order
and records the run in the database. A failed stage skips everything after
it. With --provision-to the segment table and the bundle are copied to a
directory or uploaded to s3://bucket/prefix once collected. With
--container the stages run inside --image, with the working, output and
input directories bound at their host paths.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, p, err := flags.assemble()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			st, err := openStore(flagDB)
			if err != nil {
				return err
			}
			defer st.Close()

			var opts []runner.Option
			if provisionTo != "" {
				prov, err := provision.ParseDestination(ctx, provisionTo, logger)
				if err != nil {
					return err
				}
				opts = append(opts, runner.WithProvisioner(prov))
			}

			var rt execution.Runtime = &execution.LocalRuntime{Shell: shell}
			if container != "" {
				engine, err := execution.ParseEngine(container)
				if err != nil {
					return err
				}
				rt = &execution.ContainerRuntime{Engine: engine, Image: image, Shell: shell}
				opts = append(opts, runner.WithHostRuntime(&execution.LocalRuntime{Shell: shell}))
			}

			cfg := p.Config
			r := runner.New(st, rt, logger, opts...)
			run, err := r.Run(ctx, g, runner.Meta{
				SampleName:  cfg.SampleName,
				WorkDir:     cfg.WorkDir,
				OutputDir:   cfg.OutputDir,
				ProvisionTo: provisionTo,
				Config:      cfg.Properties(),
			})
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&provisionTo, "provision-to", "", "Copy deliverables to a directory or s3://bucket/prefix")
	cmd.Flags().StringVar(&shell, "shell", config.DefaultRunnerConfig().Shell, "Shell used to run stage commands")
	cmd.Flags().StringVar(&container, "container", "", "Run stages in a container (docker, apptainer)")
	cmd.Flags().StringVar(&image, "image", "", "Container image holding the analysis tools")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Cancel the run after this long (0 = no limit)")
	return cmd
}
