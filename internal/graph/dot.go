package graph

import (
	"fmt"
	"html"
	"io"
	"strings"
)

// WriteDot renders the graph as a Graphviz digraph. Nodes list their
// conditions; transitions hang off the node that fires them. conds may be
// nil, in which case condition ids are shown instead of their text.
//
//	fsmnet compile --dot specs/ | dot -Tpng > graph.png
func WriteDot(w io.Writer, g *Graph, conds ConditionSet) error {
	var b strings.Builder

	b.WriteString("digraph G {\n")
	b.WriteString(`  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	for i, n := range g.Nodes {
		var lines []string
		for _, id := range n.Conditions.Elems() {
			if conds == nil {
				lines = append(lines, fmt.Sprintf("#%d", id))
				continue
			}
			lines = append(lines, fmt.Sprintf("#%d %s", id, html.EscapeString(conds.Get(id).String())))
		}
		label := strings.Join(lines, `<BR ALIGN="LEFT"/>`)
		if label == "" {
			label = "*"
		}

		style := "rounded,filled"
		if g.Start.Contains(i) {
			style += ",bold"
		}
		fillcolor := "#99ddc8"
		if len(n.Transitions) == 0 {
			fillcolor = "#2d93ad"
		}
		fmt.Fprintf(&b, "  n%d [style=\"%s\", fillcolor=\"%s\", label=<%s> ]\n", i, style, fillcolor, label)

		for j, t := range n.Transitions {
			fmt.Fprintf(&b, "  t%d_%d [shape=\"note\", style=\"filled\", fillcolor=\"#f98b8b\", label=<%s> ]\n",
				i, j, html.EscapeString(t.String()))
			fmt.Fprintf(&b, "  n%d -> t%d_%d [ style=\"dashed\" ]\n", i, i, j)
		}
		for _, e := range n.Edges.Elems() {
			fmt.Fprintf(&b, "  n%d -> n%d\n", i, e)
		}
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
