package engine

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

func mustJob(t *testing.T, g *Graph, name string) Job {
	t.Helper()
	j, err := g.CreateJob(name, []string{"echo", name})
	if err != nil {
		t.Fatalf("CreateJob(%s) error = %v", name, err)
	}
	return j
}

func TestGraph_ChainOrder(t *testing.T) {
	g := NewGraph()
	// Create out of order so that Order has to follow the edges.
	c := mustJob(t, g, "c")
	a := mustJob(t, g, "a")
	b := mustJob(t, g, "b")

	if err := b.AddParent(a); err != nil {
		t.Fatalf("AddParent() error = %v", err)
	}
	if err := c.AddParent(b); err != nil {
		t.Fatalf("AddParent() error = %v", err)
	}

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if got, want := names(order), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}

	parents, err := g.Parents("c")
	if err != nil {
		t.Fatalf("Parents() error = %v", err)
	}
	if got, want := names(parents), []string{"b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Parents(c) = %v, want %v", got, want)
	}
	parents, _ = g.Parents("a")
	if len(parents) != 0 {
		t.Errorf("Parents(a) = %v, want none", names(parents))
	}
}

func TestGraph_OrderTiesFollowCreation(t *testing.T) {
	g := NewGraph()
	mustJob(t, g, "z")
	mustJob(t, g, "y")
	mustJob(t, g, "x")

	order, err := g.Order()
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if got, want := names(order), []string{"z", "y", "x"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Order() = %v, want %v", got, want)
	}
}

func TestGraph_RejectsCycle(t *testing.T) {
	g := NewGraph()
	a := mustJob(t, g, "a")
	b := mustJob(t, g, "b")
	if err := b.AddParent(a); err != nil {
		t.Fatalf("AddParent() error = %v", err)
	}

	if err := a.AddParent(b); !errors.Is(err, ErrCycle) {
		t.Errorf("AddParent(cycle) error = %v, want ErrCycle", err)
	}
	if err := a.AddParent(a); !errors.Is(err, ErrCycle) {
		t.Errorf("AddParent(self) error = %v, want ErrCycle", err)
	}
}

func TestGraph_DuplicateAndForeign(t *testing.T) {
	g := NewGraph()
	a := mustJob(t, g, "a")
	if _, err := g.CreateJob("a", nil); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("CreateJob(dup) error = %v, want ErrDuplicateJob", err)
	}

	other := NewGraph()
	b := mustJob(t, other, "b")
	if err := b.AddParent(a); !errors.Is(err, ErrForeignJob) {
		t.Errorf("AddParent(foreign) error = %v, want ErrForeignJob", err)
	}

	if _, err := g.Job("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Job(missing) error = %v, want ErrUnknownJob", err)
	}
	if _, err := g.Parents("missing"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Parents(missing) error = %v, want ErrUnknownJob", err)
	}
}

func TestGraph_JobSettings(t *testing.T) {
	g := NewGraph()
	cmd := []string{"echo", "hi"}
	j, err := g.CreateJob("a", cmd)
	if err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	cmd[1] = "changed"

	j.SetMaxMemory(4096)
	j.SetQueue("highmem")
	f := g.CreateOutputFile("/out/S.seg", "text/plain", true)
	f.Annotate("segment data from the tool", "CNVkit")
	j.AddFile(f)

	n, err := g.Job("a")
	if err != nil {
		t.Fatalf("Job() error = %v", err)
	}
	if got := n.Command(); !reflect.DeepEqual(got, []string{"echo", "hi"}) {
		t.Errorf("Command() = %v, want copy of original", got)
	}
	if n.MaxMemory() != 4096 {
		t.Errorf("MaxMemory() = %d, want 4096", n.MaxMemory())
	}
	if n.Queue() != "highmem" {
		t.Errorf("Queue() = %q, want highmem", n.Queue())
	}
	if len(n.Files()) != 1 || n.Files()[0].Annotations["segment data from the tool"] != "CNVkit" {
		t.Errorf("Files() = %+v", n.Files())
	}
}

func TestGraph_Declarations(t *testing.T) {
	g := NewGraph()
	g.AddDirectory("/tmp/w")
	g.AddDirectory("/out")
	g.DeclareInput("tumor", "T.bam", "application/bam")

	if got, want := g.Directories(), []string{"/tmp/w", "/out"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Directories() = %v, want %v", got, want)
	}
	want := []Input{{Name: "tumor", Path: "T.bam", Type: "application/bam"}}
	if got := g.Inputs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Inputs() = %v, want %v", got, want)
	}
}

func TestGraph_DOT(t *testing.T) {
	g := NewGraph()
	a := mustJob(t, g, "batch")
	b := mustJob(t, g, "scatter")
	b.SetMaxMemory(4096)
	if err := b.AddParent(a); err != nil {
		t.Fatalf("AddParent() error = %v", err)
	}

	var buf bytes.Buffer
	if err := g.DOT(&buf); err != nil {
		t.Fatalf("DOT() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"digraph", "batch", "scatter", "4096 MB"} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT output missing %q:\n%s", want, out)
		}
	}
}
