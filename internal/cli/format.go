package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/me/cnvkit/pkg/model"
)

// printRun writes a run with its tasks and deliverables.
func printRun(w io.Writer, run *model.Run) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "  Sample:  %s\n", run.SampleName)
	fmt.Fprintf(w, "  State:   %s\n", run.State)
	fmt.Fprintf(w, "  Created: %s (%s)\n", run.CreatedAt.Local().Format(time.DateTime), humanize.Time(run.CreatedAt))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "  Took:    %s\n", run.CompletedAt.Sub(run.CreatedAt).Round(time.Second))
	}
	if run.Error != "" {
		fmt.Fprintf(w, "  Error:   %s\n", run.Error)
	}

	if len(run.Tasks) > 0 {
		fmt.Fprintln(w, "  Stages:")
		for _, t := range run.Tasks {
			fmt.Fprintf(w, "    %-12s %-8s", t.Stage, t.State)
			if t.ExitCode != nil {
				fmt.Fprintf(w, " exit %d", *t.ExitCode)
			}
			if d := t.Duration(); d > 0 {
				fmt.Fprintf(w, " %s", d.Round(time.Millisecond))
			}
			if t.State == model.TaskStateSkipped && t.Error != "" {
				fmt.Fprintf(w, " (%s)", t.Error)
			}
			fmt.Fprintln(w)
		}
	}

	if len(run.Deliverables) > 0 {
		fmt.Fprintln(w, "  Deliverables:")
		for _, d := range run.Deliverables {
			fmt.Fprintf(w, "    %-20s %8s", filepath.Base(d.Path), humanize.Bytes(uint64(d.SizeBytes)))
			if d.Destination != "" {
				fmt.Fprintf(w, "  -> %s", d.Destination)
			}
			fmt.Fprintln(w)
		}
	}
}

func summarize(s model.TaskSummary) string {
	out := fmt.Sprintf("%d/%d", s.Success, s.Total)
	if s.Failed > 0 {
		out += fmt.Sprintf(" (%d failed)", s.Failed)
	}
	return out
}
