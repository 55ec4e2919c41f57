package pipeline

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/me/cnvkit/internal/cmdline"
	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/engine"
	"github.com/me/cnvkit/pkg/model"
)

func testConfig() *config.Resolved {
	return &config.Resolved{
		WorkDir:     "/tmp/w",
		OutputDir:   "/data/S_output",
		Tumor:       "T.bam",
		Normal:      "N.cnn",
		SampleName:  "S",
		Python:      "/opt/python",
		RPath:       "/opt/R",
		MemoryGB:    4,
		Queue:       "",
		Program:     config.DefaultProgram,
		DiagramMode: config.DiagramObserved,
	}
}

func assemble(t *testing.T, cfg *config.Resolved) (*engine.Graph, *Pipeline) {
	t.Helper()
	g := engine.NewGraph()
	p, err := Assemble(g, cfg, Options{Self: "/usr/local/bin/cnvkit-workflow"})
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return g, p
}

func TestAssemble_Chain(t *testing.T) {
	g, _ := assemble(t, testConfig())

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	want := append(append([]string(nil), cmdline.Order...), StageCollect)
	var got []string
	for _, n := range order {
		got = append(got, n.Name())
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Order() = %v, want %v", got, want)
	}

	for i, name := range want {
		parents, err := g.Parents(name)
		if err != nil {
			t.Fatalf("Parents(%s) error = %v", name, err)
		}
		if i == 0 {
			if len(parents) != 0 {
				t.Errorf("%s has %d parents, want 0", name, len(parents))
			}
			continue
		}
		if len(parents) != 1 || parents[0].Name() != want[i-1] {
			t.Errorf("Parents(%s) = %v, want [%s]", name, parents, want[i-1])
		}
	}
}

func TestAssemble_Resources(t *testing.T) {
	cfg := testConfig()
	cfg.Queue = "production"
	g, _ := assemble(t, cfg)

	for _, n := range g.Jobs() {
		if n.MaxMemory() != 4096 {
			t.Errorf("%s: MaxMemory() = %d, want 4096", n.Name(), n.MaxMemory())
		}
		if n.Queue() != "production" {
			t.Errorf("%s: Queue() = %q, want production", n.Name(), n.Queue())
		}
	}
}

func TestAssemble_OnlyCollectOnHost(t *testing.T) {
	g, _ := assemble(t, testConfig())

	for _, n := range g.Jobs() {
		if want := n.Name() == StageCollect; n.Host() != want {
			t.Errorf("%s: Host() = %v, want %v", n.Name(), n.Host(), want)
		}
	}
}

func TestAssemble_Declarations(t *testing.T) {
	g, _ := assemble(t, testConfig())

	if got, want := g.Directories(), []string{"/tmp/w", "/data/S_output"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Directories() = %v, want %v", got, want)
	}
	wantInputs := []engine.Input{
		{Name: "tumor", Path: "T.bam", Type: model.FileTypeBAM},
		{Name: "normal", Path: "N.cnn", Type: model.FileTypeCNN},
	}
	if got := g.Inputs(); !reflect.DeepEqual(got, wantInputs) {
		t.Errorf("Inputs() = %v, want %v", got, wantInputs)
	}
}

func TestAssemble_CollectCommand(t *testing.T) {
	g, _ := assemble(t, testConfig())
	n, err := g.Job(StageCollect)
	if err != nil {
		t.Fatalf("Job(collect) error = %v", err)
	}

	cmd := n.Command()
	wantHead := []string{
		"/usr/local/bin/cnvkit-workflow collect",
		"--work-dir /tmp/w",
		"--output-dir /data/S_output",
		"--summary /tmp/w/S.seg",
	}
	if !reflect.DeepEqual(cmd[:4], wantHead) {
		t.Errorf("command head = %v, want %v", cmd[:4], wantHead)
	}

	var required []string
	for _, tok := range cmd[4:] {
		if !strings.HasPrefix(tok, "--require ") {
			t.Errorf("unexpected fragment %q", tok)
			continue
		}
		required = append(required, strings.TrimPrefix(tok, "--require "))
	}
	if len(required) != 9 {
		t.Errorf("required = %v, want 9 files", required)
	}
	for _, f := range required {
		if strings.HasSuffix(f, ".seg") {
			t.Errorf("summary %q listed as a bundle requirement", f)
		}
	}
}

func TestAssemble_Deliverables(t *testing.T) {
	for _, manual := range []bool{false, true} {
		cfg := testConfig()
		cfg.ManualOutput = manual
		g, p := assemble(t, cfg)

		n, _ := g.Job(StageCollect)
		files := n.Files()
		if len(files) != 2 {
			t.Fatalf("collect has %d files, want 2", len(files))
		}
		if !reflect.DeepEqual(files, p.Deliverables) {
			t.Errorf("Deliverables differ from files attached to collect")
		}

		want := []engine.OutputFile{
			{
				Path:        "/data/S_output/S.seg",
				Type:        "text/plain",
				Manual:      manual,
				Annotations: map[string]string{"segment data from the tool": "CNVkit"},
			},
			{
				Path:        "/data/S_output/model-fit.tar.gz",
				Type:        "application/tar-gzip",
				Manual:      manual,
				Annotations: map[string]string{"Other files": "cnvkit"},
			},
		}
		for i := range want {
			if !reflect.DeepEqual(*files[i], want[i]) {
				t.Errorf("manual=%v files[%d] = %+v, want %+v", manual, i, *files[i], want[i])
			}
		}

		for _, other := range g.Jobs()[:len(g.Jobs())-1] {
			if len(other.Files()) != 0 {
				t.Errorf("%s has deliverables attached", other.Name())
			}
		}
	}
}

func TestAssemble_DuplicateJob(t *testing.T) {
	g := engine.NewGraph()
	if _, err := g.CreateJob(cmdline.StageScatter, nil); err != nil {
		t.Fatal(err)
	}
	_, err := Assemble(g, testConfig(), Options{})
	if !errors.Is(err, engine.ErrDuplicateJob) {
		t.Errorf("Assemble() error = %v, want ErrDuplicateJob", err)
	}
}

func TestCollectStage_DefaultSelf(t *testing.T) {
	cfg := testConfig()
	_, p := assemble(t, cfg)
	spec := CollectStage(cfg, p.Paths, p.Paths.Path(".segmetrics.call-diagram.pdf"), "")
	if spec.Command[0] != "cnvkit-workflow collect" {
		t.Errorf("Command[0] = %q", spec.Command[0])
	}
	if got := spec.Command[len(spec.Command)-1]; got != "--require /tmp/w/S.segmetrics.call-diagram.pdf" {
		t.Errorf("last requirement = %q, want the diagram pdf", got)
	}
	if !reflect.DeepEqual(spec.DependsOn, []string{cmdline.StageExportSeg}) {
		t.Errorf("DependsOn = %v", spec.DependsOn)
	}
}

func TestDescribe(t *testing.T) {
	g, _ := assemble(t, testConfig())
	plan, err := Describe(g)
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if len(plan.Jobs) != 7 {
		t.Fatalf("len(Jobs) = %d, want 7", len(plan.Jobs))
	}
	if plan.Jobs[0].Name != cmdline.StageBatch || len(plan.Jobs[0].Parents) != 0 {
		t.Errorf("first job = %+v", plan.Jobs[0])
	}
	last := plan.Jobs[6]
	if last.Name != StageCollect || !reflect.DeepEqual(last.Parents, []string{cmdline.StageExportSeg}) {
		t.Errorf("last job = %s parents %v", last.Name, last.Parents)
	}
	if !last.Host || plan.Jobs[0].Host {
		t.Errorf("host flags: batch %v, collect %v", plan.Jobs[0].Host, last.Host)
	}
	if len(last.Files) != 2 {
		t.Errorf("collect files = %d, want 2", len(last.Files))
	}
	if !strings.HasPrefix(plan.Jobs[1].Shell, "export PATH=/opt/python:$PATH;") {
		t.Errorf("scatter shell = %q", plan.Jobs[1].Shell)
	}
}
