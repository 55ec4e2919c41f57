package engine

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// Node is a job in a Graph.
type Node struct {
	owner    *Graph
	index    int
	name     string
	command  []string
	memoryMB int
	queue    string
	host     bool
	files    []*OutputFile
}

// Name implements Job.
func (n *Node) Name() string { return n.name }

// Command implements Job. The returned slice must not be modified.
func (n *Node) Command() []string { return n.command }

// MaxMemory returns the memory ceiling in MB (0 if unset).
func (n *Node) MaxMemory() int { return n.memoryMB }

// Queue returns the scheduling queue ("" for the default queue).
func (n *Node) Queue() string { return n.queue }

// Host reports whether the job must run on the host rather than in the
// stage runtime.
func (n *Node) Host() bool { return n.host }

// Files returns the deliverables attached to the job.
func (n *Node) Files() []*OutputFile { return n.files }

// SetMaxMemory implements Job.
func (n *Node) SetMaxMemory(mb int) { n.memoryMB = mb }

// SetQueue implements Job.
func (n *Node) SetQueue(queue string) { n.queue = queue }

// SetHost implements Job.
func (n *Node) SetHost(host bool) { n.host = host }

// AddFile implements Job.
func (n *Node) AddFile(f *OutputFile) { n.files = append(n.files, f) }

// AddParent implements Job.
func (n *Node) AddParent(parent Job) error {
	p, ok := parent.(*Node)
	if !ok || p.owner != n.owner {
		return fmt.Errorf("%w: %s", ErrForeignJob, parent.Name())
	}
	err := n.owner.g.AddEdge(p.name, n.name)
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("%w: %s -> %s", ErrCycle, p.name, n.name)
	default:
		return fmt.Errorf("add edge %s -> %s: %w", p.name, n.name, err)
	}
}

// Graph is an in-process Workflow. Edges go from parent to child and
// edges that would close a cycle are rejected.
type Graph struct {
	g      graph.Graph[string, *Node]
	nodes  []*Node
	dirs   []string
	inputs []Input
}

var _ Workflow = (*Graph)(nil)

// NewGraph creates an empty workflow graph.
func NewGraph() *Graph {
	return &Graph{
		g: graph.New(func(n *Node) string { return n.name }, graph.Directed(), graph.PreventCycles()),
	}
}

// AddDirectory implements Workflow.
func (g *Graph) AddDirectory(path string) { g.dirs = append(g.dirs, path) }

// DeclareInput implements Workflow.
func (g *Graph) DeclareInput(name, path, fileType string) {
	g.inputs = append(g.inputs, Input{Name: name, Path: path, Type: fileType})
}

// CreateJob implements Workflow.
func (g *Graph) CreateJob(name string, command []string) (Job, error) {
	n := &Node{
		owner:   g,
		index:   len(g.nodes),
		name:    name,
		command: append([]string(nil), command...),
	}
	err := g.g.AddVertex(n, graph.VertexAttribute("shape", "box"))
	if errors.Is(err, graph.ErrVertexAlreadyExists) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	if err != nil {
		return nil, fmt.Errorf("add job %s: %w", name, err)
	}
	g.nodes = append(g.nodes, n)
	return n, nil
}

// CreateOutputFile implements Workflow.
func (g *Graph) CreateOutputFile(path, fileType string, manual bool) *OutputFile {
	return &OutputFile{Path: path, Type: fileType, Manual: manual}
}

// Directories returns the declared directories in declaration order.
func (g *Graph) Directories() []string { return g.dirs }

// Inputs returns the declared input files in declaration order.
func (g *Graph) Inputs() []Input { return g.inputs }

// Jobs returns every job in creation order.
func (g *Graph) Jobs() []*Node { return g.nodes }

// Job looks up a job by name.
func (g *Graph) Job(name string) (*Node, error) {
	n, err := g.g.Vertex(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return n, nil
}

// Order returns the jobs in execution order: every job comes after all of
// its parents, ties broken by creation order.
func (g *Graph) Order() ([]*Node, error) {
	names, err := graph.StableTopologicalSort(g.g, func(a, b string) bool {
		return g.indexOf(a) < g.indexOf(b)
	})
	if err != nil {
		return nil, fmt.Errorf("order jobs: %w", err)
	}

	order := make([]*Node, 0, len(names))
	for _, name := range names {
		n, err := g.Job(name)
		if err != nil {
			return nil, err
		}
		order = append(order, n)
	}
	return order, nil
}

func (g *Graph) indexOf(name string) int {
	n, err := g.g.Vertex(name)
	if err != nil {
		return len(g.nodes)
	}
	return n.index
}

// Parents returns the direct parents of the named job in creation order.
func (g *Graph) Parents(name string) ([]*Node, error) {
	if _, err := g.Job(name); err != nil {
		return nil, err
	}
	preds, err := g.g.PredecessorMap()
	if err != nil {
		return nil, fmt.Errorf("predecessors of %s: %w", name, err)
	}

	parents := make([]*Node, 0, len(preds[name]))
	for parent := range preds[name] {
		n, err := g.Job(parent)
		if err != nil {
			return nil, err
		}
		parents = append(parents, n)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].index < parents[j].index })
	return parents, nil
}

// DOT writes the graph in Graphviz DOT format.
func (g *Graph) DOT(w io.Writer) error {
	for _, n := range g.nodes {
		label := n.name
		if n.memoryMB > 0 {
			label += "\\n" + strconv.Itoa(n.memoryMB) + " MB"
		}
		if n.queue != "" {
			label += "\\nqueue " + n.queue
		}
		if err := g.setLabel(n, label); err != nil {
			return err
		}
	}
	return draw.DOT(g.g, w)
}

func (g *Graph) setLabel(n *Node, label string) error {
	_, props, err := g.g.VertexWithProperties(n.name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownJob, n.name)
	}
	if props.Attributes == nil {
		return nil
	}
	props.Attributes["label"] = label
	return nil
}
