// Package paths derives every pipeline file name from a single stem.
package paths

import (
	"path/filepath"
	"strings"
)

// Suffixes appended to the stem. The batch outputs are named by the
// analysis tool; the rest are chosen by later stages.
const (
	TargetCoverage     = ".targetcoverage.cnn"
	AntitargetCoverage = ".antitargetcoverage.cnn"
	ScatterPDF         = "-scatter.pdf"
	DiagramPDF         = "-diagram.pdf"
	Segments           = ".cns"
	Ratios             = ".cnr"

	ScatterPNG     = ".scatter.png"
	Segmetrics     = ".segmetrics.cns"
	Call           = ".segmetrics.call.cns"
	CallDiagramPDF = ".segmetrics.call-diagram.pdf"
	SegmentTable   = ".seg"
)

// BatchSuffixes lists the files the batch subcommand writes, in the order
// they are renamed.
var BatchSuffixes = []string{
	TargetCoverage,
	AntitargetCoverage,
	ScatterPDF,
	DiagramPDF,
	Segments,
	Ratios,
}

// Set is the naming scheme of one run. The zero value is not usable; build
// one with New.
type Set struct {
	workDir string
	sample  string
	native  string
}

// New builds the path set for a sample in workDir. tumor is the tumor input
// whose basename the analysis tool uses for its own output names.
func New(workDir, sample, tumor string) Set {
	workDir = filepath.Clean(workDir)
	base := filepath.Base(tumor)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return Set{
		workDir: workDir,
		sample:  sample,
		native:  join(workDir, base),
	}
}

func join(dir, name string) string {
	if dir == string(filepath.Separator) {
		return dir + name
	}
	return dir + string(filepath.Separator) + name
}

// WorkDir returns the directory every stage writes into.
func (s Set) WorkDir() string { return s.workDir }

// Sample returns the sample name.
func (s Set) Sample() string { return s.sample }

// Stem returns {workDir}/{sample}.
func (s Set) Stem() string { return join(s.workDir, s.sample) }

// Path returns the stem with suffix appended.
func (s Set) Path(suffix string) string { return s.Stem() + suffix }

// NativeStem is the stem the analysis tool derives from the tumor file
// name. Only the batch rename clause refers to it.
func (s Set) NativeStem() string { return s.native }

// NeedsRename reports whether batch outputs have to be moved onto the
// canonical stem.
func (s Set) NeedsRename() bool { return s.native != s.Stem() }

// Summary returns the segment table promoted as a standalone deliverable.
func (s Set) Summary() string { return s.Path(SegmentTable) }

// Expected returns every file the analysis stages leave in the working
// directory, for the given diagram output path. The summary is not included.
func (s Set) Expected(diagramOut string) []string {
	files := make([]string, 0, len(BatchSuffixes)+4)
	for _, suffix := range BatchSuffixes {
		files = append(files, s.Path(suffix))
	}
	files = append(files, s.Path(ScatterPNG), s.Path(Segmetrics), s.Path(Call))
	if diagramOut != s.Path(Call) {
		files = append(files, diagramOut)
	}
	return files
}
