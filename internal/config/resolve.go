package config

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/me/cnvkit/pkg/model"
)

// Property keys, named as in the SeqWare workflow.ini the pipeline was
// first deployed with.
const (
	KeyTmpDir        = "tmp_dir"
	KeyTumor         = "input_files_tumor"
	KeyNormal        = "input_files_normal"
	KeyExternalName  = "external_name"
	KeyPython        = "PYTHON"
	KeyRPath         = "RPATH"
	KeyManualOutput  = "manual_output"
	KeyMemory        = "cnvkit_mem"
	KeyQueue         = "queue"
	KeyOutputDir     = "output_dir"
	KeyProgram       = "cnvkit"
	KeyDiagramOutput = "diagram_output"
)

// sampleNameAliases are also accepted for KeyExternalName.
var sampleNameAliases = []string{"sample_name", "output_filename_prefix"}

// DefaultProgram is the analysis tool entry point.
const DefaultProgram = "cnvkit.py"

// DiagramMode selects where the diagram stage writes its output.
type DiagramMode string

const (
	// DiagramObserved reproduces the deployed behaviour: the diagram is
	// written over the filtered call file it reads.
	DiagramObserved DiagramMode = "observed"
	// DiagramPDF writes the diagram to a separate -diagram.pdf file.
	DiagramPDF DiagramMode = "pdf"
)

// Resolved is the validated, immutable configuration of one pipeline run.
type Resolved struct {
	WorkDir      string
	OutputDir    string
	Tumor        string
	Normal       string
	SampleName   string
	Python       string
	RPath        string
	MemoryGB     int
	Queue        string
	ManualOutput bool
	Program      string
	DiagramMode  DiagramMode
}

// PythonExports returns the shell prefix that puts the configured Python
// installation ahead of anything already on PATH and LD_LIBRARY_PATH.
func (r *Resolved) PythonExports() string {
	return "export PATH=" + r.Python + ":$PATH;" +
		"export PATH=" + r.Python + "/bin:$PATH;" +
		"export LD_LIBRARY_PATH=" + r.Python + "/lib:$LD_LIBRARY_PATH;"
}

// RExports returns the shell prefix for the configured R installation.
func (r *Resolved) RExports() string {
	return "export LD_LIBRARY_PATH=" + r.RPath + "/lib:$LD_LIBRARY_PATH;" +
		"export PATH=" + r.RPath + ":$PATH;" +
		"export PATH=" + r.RPath + "/bin:$PATH;" +
		"export MANPATH=" + r.RPath + "/share/man:$MANPATH;"
}

// JobMemoryMB is the per-job memory ceiling handed to the scheduler.
func (r *Resolved) JobMemoryMB() int {
	return r.MemoryGB * 1024
}

// Properties returns the resolved values keyed by their property names,
// for recording alongside a run.
func (r *Resolved) Properties() map[string]string {
	return map[string]string{
		KeyTmpDir:        r.WorkDir,
		KeyOutputDir:     r.OutputDir,
		KeyTumor:         r.Tumor,
		KeyNormal:        r.Normal,
		KeyExternalName:  r.SampleName,
		KeyPython:        r.Python,
		KeyRPath:         r.RPath,
		KeyMemory:        strconv.Itoa(r.MemoryGB),
		KeyQueue:         r.Queue,
		KeyManualOutput:  strconv.FormatBool(r.ManualOutput),
		KeyProgram:       r.Program,
		KeyDiagramOutput: string(r.DiagramMode),
	}
}

// Resolve reads and validates every property the pipeline needs. It either
// returns a complete Resolved or the first error encountered; there is no
// partially resolved result.
func Resolve(src Source, logger *slog.Logger) (*Resolved, error) {
	r := &resolver{src: src}

	cfg := &Resolved{
		WorkDir:    r.dir(KeyTmpDir, r.path(KeyTmpDir)),
		Tumor:      r.path(KeyTumor),
		Normal:     r.path(KeyNormal),
		SampleName: r.sampleName(),
		Python:     r.path(KeyPython),
		RPath:      r.path(KeyRPath),
	}
	cfg.ManualOutput = r.boolean(KeyManualOutput)
	cfg.MemoryGB = r.positiveInt(KeyMemory)
	cfg.Queue = r.optional(KeyQueue, "")
	cfg.Program = r.optional(KeyProgram, DefaultProgram)
	cfg.DiagramMode = r.diagramMode()
	if r.err != nil {
		return nil, r.err
	}

	cfg.OutputDir = r.optional(KeyOutputDir, cfg.SampleName+"_output")
	r.checkPath(KeyOutputDir, cfg.OutputDir)
	cfg.OutputDir = r.dir(KeyOutputDir, filepath.Clean(cfg.OutputDir))
	r.checkDistinct(cfg.WorkDir, cfg.OutputDir)
	if r.err != nil {
		return nil, r.err
	}

	if cfg.DiagramMode == DiagramObserved && logger != nil {
		logger.Warn("diagram stage overwrites its own input; set diagram_output=pdf to write a separate diagram file",
			"file", cfg.SampleName+".segmetrics.call.cns")
	}
	return cfg, nil
}

// resolver accumulates the first error so Resolve reads top to bottom.
type resolver struct {
	src Source
	err error
}

func (r *resolver) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *resolver) lookup(key string) (string, bool) {
	v, ok := r.src.Lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (r *resolver) required(key string) string {
	if r.err != nil {
		return ""
	}
	v, ok := r.lookup(key)
	if !ok {
		r.fail(&model.MissingConfigError{Key: key})
	}
	return v
}

func (r *resolver) optional(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *resolver) path(key string) string {
	v := r.required(key)
	if r.err != nil {
		return ""
	}
	r.checkPath(key, v)
	return filepath.Clean(v)
}

// dir rejects the filesystem root as a pipeline directory.
func (r *resolver) dir(key, v string) string {
	if r.err == nil && v == string(filepath.Separator) {
		r.fail(&model.ConfigFormatError{Key: key, Value: v, Reason: "directory must not be the filesystem root"})
	}
	return v
}

// checkPath rejects values that would break the unquoted shell line the
// stage commands are joined into.
func (r *resolver) checkPath(key, v string) {
	if strings.ContainsAny(v, " \t\n;&|'\"`$") {
		r.fail(&model.ConfigFormatError{Key: key, Value: v, Reason: "path must not contain whitespace or shell metacharacters"})
	}
}

func (r *resolver) sampleName() string {
	if r.err != nil {
		return ""
	}
	for _, key := range append([]string{KeyExternalName}, sampleNameAliases...) {
		v, ok := r.lookup(key)
		if !ok {
			continue
		}
		if strings.ContainsRune(v, '/') || v == "." || v == ".." {
			r.fail(&model.ConfigFormatError{Key: key, Value: v, Reason: "sample name must be a single path element"})
			return ""
		}
		r.checkPath(key, v)
		return v
	}
	r.fail(&model.MissingConfigError{Key: KeyExternalName, Aliases: sampleNameAliases})
	return ""
}

func (r *resolver) boolean(key string) bool {
	v := r.required(key)
	if r.err != nil {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(&model.ConfigFormatError{Key: key, Value: v, Reason: "not a boolean"})
	}
	return b
}

func (r *resolver) positiveInt(key string) int {
	v := r.required(key)
	if r.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(&model.ConfigFormatError{Key: key, Value: v, Reason: "not an integer"})
		return 0
	}
	if n <= 0 {
		r.fail(&model.ConfigFormatError{Key: key, Value: v, Reason: "must be a positive integer"})
	}
	return n
}

func (r *resolver) diagramMode() DiagramMode {
	v := r.optional(KeyDiagramOutput, string(DiagramObserved))
	switch m := DiagramMode(strings.ToLower(v)); m {
	case DiagramObserved, DiagramPDF:
		return m
	}
	r.fail(&model.ConfigFormatError{Key: KeyDiagramOutput, Value: v, Reason: "want observed or pdf"})
	return ""
}

// checkDistinct requires the deliverable directory to live outside the
// working directory, whose whole content ends up in the bundle.
func (r *resolver) checkDistinct(workDir, outputDir string) {
	work, err1 := filepath.Abs(workDir)
	out, err2 := filepath.Abs(outputDir)
	if err1 != nil || err2 != nil {
		return
	}
	if out == work || strings.HasPrefix(out, work+string(filepath.Separator)) {
		r.fail(&model.ConfigFormatError{Key: KeyOutputDir, Value: outputDir, Reason: "must not be inside " + KeyTmpDir})
	}
}
