// Package callgraph renders the scan result as a call graph: one node per
// calling method, one node for the target, and an edge for every distinct
// caller.
package callgraph

import (
	"fmt"
	"os"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"jmf/internal/bytecode"
)

// Build constructs a lattice.Graph with edges from each caller method to the
// target. Multiple call sites in the same method collapse to one edge.
func Build(target string, calls []bytecode.Call) *lattice.Graph {
	g := &lattice.Graph{}
	g.Nodes = append(g.Nodes, target)
	for _, c := range calls {
		caller := c.CallerClass + "#" + c.CallerMethod
		g.Nodes = append(g.Nodes, caller)
		g.Edges = append(g.Edges, lattice.Edge{
			Caller: caller,
			Callee: target,
		})
	}
	g.Dedup()
	return g
}

// WriteDOT renders the call graph to a Graphviz DOT file.
func WriteDOT(path, target string, calls []bytecode.Call) error {
	g := Build(target, calls)
	dot := render.DOT(g, "callgraph")
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return fmt.Errorf("write callgraph dot: %w", err)
	}
	return nil
}
