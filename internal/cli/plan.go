package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/engine"
	"github.com/me/cnvkit/internal/pipeline"
)

// configFlags are shared by plan and run.
type configFlags struct {
	path string
	sets []string
	self string
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.path, "config", "c", "", "Property file (.yaml, .hcl, .ini)")
	cmd.Flags().StringArrayVar(&f.sets, "set", nil, "Override a property (key=value, repeatable)")
	cmd.Flags().StringVar(&f.self, "self", "", "Program providing the collect subcommand (default: this binary)")
	cmd.Flags().MarkHidden("self")
}

// resolve layers --set overrides over the property file and validates the
// result.
func (f *configFlags) resolve() (*config.Resolved, error) {
	var layers config.Layered
	if f.path != "" {
		src, err := config.LoadFile(f.path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, src)
	}
	overrides, err := config.ParseOverrides(f.sets)
	if err != nil {
		return nil, err
	}
	layers = append(layers, overrides)
	return config.Resolve(layers, logger)
}

// assemble resolves the configuration and builds the graph.
func (f *configFlags) assemble() (*engine.Graph, *pipeline.Pipeline, error) {
	cfg, err := f.resolve()
	if err != nil {
		return nil, nil, err
	}
	self := f.self
	if self == "" {
		self = selfPath()
	}
	g := engine.NewGraph()
	p, err := pipeline.Assemble(g, cfg, pipeline.Options{Self: self})
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

func selfPath() string {
	exe, err := os.Executable()
	if err != nil {
		return pipeline.DefaultSelf
	}
	return exe
}

func newPlanCmd() *cobra.Command {
	var flags configFlags
	var outputFormat string
	var dot bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the stages a configuration would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			g, p, err := flags.assemble()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dot {
				return g.DOT(out)
			}

			plan, err := pipeline.Describe(g)
			if err != nil {
				return err
			}
			switch outputFormat {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(plan); err != nil {
					return err
				}
				return enc.Close()
			case "text":
				printPlan(out, p, plan)
				return nil
			default:
				return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputFormat, "output-format", "o", "text", "Output format (text, json, yaml)")
	cmd.Flags().BoolVar(&dot, "dot", false, "Print the stage graph in Graphviz DOT format")
	return cmd
}

func printPlan(w io.Writer, p *pipeline.Pipeline, plan *pipeline.Plan) {
	cfg := p.Config
	fmt.Fprintf(w, "Sample:   %s\n", cfg.SampleName)
	fmt.Fprintf(w, "Work dir: %s\n", cfg.WorkDir)
	fmt.Fprintf(w, "Output:   %s\n", cfg.OutputDir)
	fmt.Fprintf(w, "Diagram:  %s\n", cfg.DiagramMode)
	fmt.Fprintln(w)

	for i, j := range plan.Jobs {
		fmt.Fprintf(w, "%d. %s", i+1, j.Name)
		if len(j.Parents) > 0 {
			fmt.Fprintf(w, " (after %s)", strings.Join(j.Parents, ", "))
		}
		fmt.Fprintf(w, "  %d MB", j.MemoryMB)
		if j.Queue != "" {
			fmt.Fprintf(w, "  queue %s", j.Queue)
		}
		if j.Host {
			fmt.Fprint(w, "  host")
		}
		fmt.Fprintf(w, "\n   %s\n", j.Shell)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Deliverables:")
	for _, d := range p.Deliverables {
		visibility := "archived"
		if d.Manual {
			visibility = "manual"
		}
		fmt.Fprintf(w, "  %s  %s  %s\n", d.Path, d.Type, visibility)
	}
}
