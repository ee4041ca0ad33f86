package graph

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/fsmnet/internal/intset"
)

// String renders the graph in its debug text form, one line per node.
func (g *Graph) String() string {
	var b strings.Builder
	b.WriteString("start:")
	for i, s := range g.Start.Elems() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(s))
	}
	b.WriteByte('\n')

	for i, n := range g.Nodes {
		fmt.Fprintf(&b, "%d: %s [", i, n.Conditions)
		for j, t := range n.Transitions {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.String())
		}
		b.WriteString("] -> ")
		if n.Edges.Empty() {
			b.WriteString("end")
		} else {
			b.WriteString(joinInts(n.Edges.Elems(), ", "))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseDebug rebuilds a graph from its debug text form. Node lines must
// number the nodes 0..n-1 in order. The result is validated.
func ParseDebug(text string) (*Graph, error) {
	g := New()
	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	sawStart := false

	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}

		if !sawStart {
			rest, ok := strings.CutPrefix(s, "start:")
			if !ok {
				return nil, fmt.Errorf("line %d: expected \"start:\"", line)
			}
			start, err := parseInts(rest)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			g.Start = intset.Of(start...)
			sawStart = true
			continue
		}

		idx, node, err := parseNodeLine(s)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if idx != len(g.Nodes) {
			return nil, fmt.Errorf("line %d: expected node %d, got %d", line, len(g.Nodes), idx)
		}
		g.Nodes = append(g.Nodes, node)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if !sawStart {
		return nil, fmt.Errorf("missing \"start:\" line")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// parseNodeLine parses "i: {c, ...} [T, ...] -> j, k | end".
func parseNodeLine(s string) (int, *Node, error) {
	idxText, rest, ok := strings.Cut(s, ":")
	if !ok {
		return 0, nil, fmt.Errorf("expected \"<index>:\"")
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxText))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid node index %q", idxText)
	}

	rest = strings.TrimSpace(rest)
	condText, rest, err := bracketed(rest, '{', '}')
	if err != nil {
		return 0, nil, err
	}
	conds, err := parseInts(condText)
	if err != nil {
		return 0, nil, err
	}

	transText, rest, err := bracketed(strings.TrimSpace(rest), '[', ']')
	if err != nil {
		return 0, nil, err
	}
	var ts []Transition
	for _, part := range strings.Split(transText, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := ParseTransition(part)
		if err != nil {
			return 0, nil, err
		}
		ts = append(ts, t)
	}

	edgeText, ok := strings.CutPrefix(strings.TrimSpace(rest), "->")
	if !ok {
		return 0, nil, fmt.Errorf("expected \"->\"")
	}
	edgeText = strings.TrimSpace(edgeText)
	var edges []int
	if edgeText != "end" {
		edges, err = parseInts(edgeText)
		if err != nil {
			return 0, nil, err
		}
		if len(edges) == 0 {
			return 0, nil, fmt.Errorf("expected edges or \"end\"")
		}
	}

	return idx, &Node{
		Conditions:  intset.Of(conds...),
		Transitions: addTransitions(nil, ts...),
		Edges:       intset.Of(edges...),
	}, nil
}

// bracketed splits "<open>inner<close>rest".
func bracketed(s string, openCh, closeCh byte) (inner, rest string, err error) {
	if len(s) == 0 || s[0] != openCh {
		return "", "", fmt.Errorf("expected %q", openCh)
	}
	end := strings.IndexByte(s, closeCh)
	if end < 0 {
		return "", "", fmt.Errorf("missing %q", closeCh)
	}
	return s[1:end], s[end+1:], nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(xs []int, sep string) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, sep)
}
