package routing

import "sort"

// Param is a single captured path parameter.
type Param struct {
	Key   string
	Value string
}

// Params holds captured parameters in path order.
type Params []Param

// Get returns the value of the named parameter, or "".
func (ps Params) Get(name string) string {
	for _, p := range ps {
		if p.Key == name {
			return p.Value
		}
	}
	return ""
}

// Map copies the parameters into a map.
func (ps Params) Map() map[string]string {
	m := make(map[string]string, len(ps))
	for _, p := range ps {
		m[p.Key] = p.Value
	}
	return m
}

// ── Trie ──────────────────────────────────────────────────────────────────────

// node is one trie level. Exact children win over parametric ones; parametric
// children are kept sorted by specificity.
type node struct {
	exact    map[string]*node
	params   []*paramEdge
	route    *Route
	fallback *Route
}

type paramEdge struct {
	seg  *segment
	node *node
}

func newNode() *node {
	return &node{exact: make(map[string]*node)}
}

// insert places r at the position given by segs and returns the route it
// displaced, if any.
func (n *node) insert(segs []*segment, r *Route) *Route {
	cur := n
	for _, seg := range segs {
		cur = cur.child(seg)
	}
	if r.fallback {
		prev := cur.fallback
		cur.fallback = r
		return prev
	}
	prev := cur.route
	cur.route = r
	return prev
}

func (n *node) child(seg *segment) *node {
	if seg.literal {
		next, ok := n.exact[seg.raw]
		if !ok {
			next = newNode()
			n.exact[seg.raw] = next
		}
		return next
	}
	for _, e := range n.params {
		if e.seg.expr == seg.expr {
			return e.node
		}
	}
	e := &paramEdge{seg: seg, node: newNode()}
	n.params = append(n.params, e)
	sort.SliceStable(n.params, func(i, j int) bool {
		return moreSpecific(n.params[i].seg, n.params[j].seg)
	})
	return e.node
}

// lookup walks one request path through the trie.
type lookup struct {
	segs   []string
	params Params

	// deepest fallback seen on the way down
	fallback       *Route
	fallbackParams Params
	fallbackDepth  int
}

func (n *node) match(l *lookup, depth int) *Route {
	if n.fallback != nil && depth > l.fallbackDepth && n.fallback.accepts(l.params) {
		l.fallback = n.fallback
		l.fallbackParams = append(Params(nil), l.params...)
		l.fallbackDepth = depth
	}

	if depth == len(l.segs) {
		if n.route != nil && n.route.accepts(l.params) {
			return n.route
		}
		return nil
	}

	text := l.segs[depth]
	if next, ok := n.exact[text]; ok {
		if r := next.match(l, depth+1); r != nil {
			return r
		}
	}

	for _, e := range n.params {
		mark := len(l.params)
		var ok bool
		if l.params, ok = e.seg.capture(text, l.params); ok {
			if r := e.node.match(l, depth+1); r != nil {
				return r
			}
		}
		l.params = l.params[:mark]
	}
	return nil
}
