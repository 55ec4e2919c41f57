package pipeline

import (
	"path/filepath"

	"github.com/me/cnvkit/internal/collect"
	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/engine"
	"github.com/me/cnvkit/pkg/model"
)

// Provenance annotations attached to the deliverables.
const (
	AnnotationSegment = "segment data from the tool"
	AnnotationBundle  = "Other files"
)

// DeclareDeliverables registers the promoted segment table and the model-fit
// bundle on the terminal job. Visibility follows cfg.ManualOutput.
func DeclareDeliverables(w engine.Workflow, terminal engine.Job, cfg *config.Resolved) []*engine.OutputFile {
	seg := w.CreateOutputFile(filepath.Join(cfg.OutputDir, cfg.SampleName+".seg"), model.FileTypeText, cfg.ManualOutput)
	seg.Annotate(AnnotationSegment, "CNVkit")
	terminal.AddFile(seg)

	bundle := w.CreateOutputFile(filepath.Join(cfg.OutputDir, collect.BundleName), model.FileTypeTarGz, cfg.ManualOutput)
	bundle.Annotate(AnnotationBundle, "cnvkit")
	terminal.AddFile(bundle)

	return []*engine.OutputFile{seg, bundle}
}
