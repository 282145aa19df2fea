package symbolic

import (
	"fmt"
	"io"
)

// WriteDOT renders the CFG as Graphviz dot source: one node per registered
// symbolic location, a solid edge for every pair the transition relation
// connects, and a dashed edge for every CALL->ENTRY pair the call relation
// connects. There is no per-edge label — the relation is a single BDD over
// every transition at once, not a list a label could be read off of — but the
// shape alone is enough to see the block structure a compiled program
// produced.
func (c *CFG) WriteDOT(w io.Writer) error {
	fmt.Fprintln(w, "digraph cfg {")
	fmt.Fprintln(w, "  rankdir=TB;")
	fmt.Fprintln(w, "  node [shape=box];")
	fmt.Fprintln(w)

	for _, n := range c.nodes {
		fmt.Fprintf(w, "  %q;\n", n.String())
	}
	fmt.Fprintln(w)

	for _, src := range c.nodes {
		srcPred := c.Encode(src, false)
		for _, dst := range c.nodes {
			edge := c.mgr.And(srcPred, c.mgr.And(c.trans, c.Encode(dst, true)))
			if edge != c.mgr.Zero() {
				fmt.Fprintf(w, "  %q -> %q;\n", src.String(), dst.String())
			}
		}
	}

	for _, src := range c.nodes {
		srcPred := c.Encode(src, false)
		for _, dst := range c.nodes {
			edge := c.mgr.And(srcPred, c.mgr.And(c.calls, c.Encode(dst, true)))
			if edge != c.mgr.Zero() {
				fmt.Fprintf(w, "  %q -> %q [style=dashed, label=\"call\"];\n", src.String(), dst.String())
			}
		}
	}

	fmt.Fprintln(w, "}")
	return nil
}
