package taxonomy

import "strings"

// Graph is the relationship graph for one form/quarter: presentation arcs
// merged with label-linkbase annotations. Child ordering under a parent is
// the order the arcs appeared in the source document. The graph is never
// mutated after serialization starts.
type Graph struct {
	labels        map[string]string
	children      map[string][]string
	parents       map[string][]string
	edgeSeen      map[[2]string]bool
	nodeSeen      map[string]bool
	nodeOrder     []string
	labelFallback *string
}

// NewGraph creates an empty graph. labelFallback is the label emitted for
// codes with no label-index entry; nil yields JSON null.
func NewGraph(labelFallback *string) *Graph {
	return &Graph{
		labels:        make(map[string]string),
		children:      make(map[string][]string),
		parents:       make(map[string][]string),
		edgeSeen:      make(map[[2]string]bool),
		nodeSeen:      make(map[string]bool),
		labelFallback: labelFallback,
	}
}

// AddLabel indexes a human-readable label for a code. When multiple
// documents contribute conflicting labels, the first parsed wins.
func (g *Graph) AddLabel(code, text string) {
	if _, ok := g.labels[code]; ok {
		return
	}
	g.labels[code] = text
}

// AddArc records a parent -> child presentation edge. Duplicate pairs are
// deduplicated, keeping the first-seen occurrence's order position.
func (g *Graph) AddArc(parent, child string) {
	key := [2]string{parent, child}
	if g.edgeSeen[key] {
		return
	}
	g.edgeSeen[key] = true
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
	g.track(parent)
	g.track(child)
}

func (g *Graph) track(code string) {
	if !g.nodeSeen[code] {
		g.nodeSeen[code] = true
		g.nodeOrder = append(g.nodeOrder, code)
	}
}

// Label resolves a code against the label index. Missing entries fall back
// to the configured fallback (nil by default), never an error.
func (g *Graph) Label(code string) *string {
	if text, ok := g.labels[code]; ok {
		return &text
	}
	return g.labelFallback
}

// Children returns the ordered child codes of parent.
func (g *Graph) Children(parent string) []string {
	return g.children[parent]
}

// Mnemonics returns all leaf field codes in first-seen arc order.
func (g *Graph) Mnemonics() []string {
	var out []string
	for _, code := range g.nodeOrder {
		if isMnemonic(code) && len(g.children[code]) == 0 {
			out = append(out, code)
		}
	}
	return out
}

// Edge is one presentation relationship with its order position under the
// parent.
type Edge struct {
	Parent   string
	Child    string
	Position int
}

// Nodes returns every code seen in a presentation arc, in first-seen order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodeOrder...)
}

// Edges returns all arcs, grouped by parent in first-seen order.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, parent := range g.nodeOrder {
		for i, child := range g.children[parent] {
			out = append(out, Edge{Parent: parent, Child: child, Position: i})
		}
	}
	return out
}

// PathsToRoot walks from code upward through every parent chain and returns
// all simple paths ending at a node with no parent. Presentation linkbases
// encode a DAG; a cycle means malformed input and fails the run.
func (g *Graph) PathsToRoot(code string) ([][]string, error) {
	var paths [][]string
	onPath := map[string]bool{}
	var walk func(node string, path []string) error
	walk = func(node string, path []string) error {
		if onPath[node] {
			return &GraphConsistencyError{Code: node, Reason: "cycle in presentation arcs"}
		}
		onPath[node] = true
		defer delete(onPath, node)
		path = append(path, node)

		parents := g.parents[node]
		if len(parents) == 0 {
			paths = append(paths, append([]string(nil), path...))
			return nil
		}
		for _, p := range parents {
			if err := walk(p, path); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(code, nil); err != nil {
		return nil, err
	}
	return paths, nil
}

// isMnemonic reports whether a code names a reportable data field. CDR
// taxonomies prefix confidential/unrestricted concept codes with cc_/uc_.
func isMnemonic(code string) bool {
	return strings.Contains(code, "cc_") || strings.Contains(code, "uc_")
}

func isColumnCode(code string) bool { return strings.Contains(code, "column") }

func isLineCode(code string) bool { return strings.Contains(code, "line") }
