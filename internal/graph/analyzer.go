package graph

import (
	"fmt"
	"log/slog"
	goruntime "runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/container/intsets"
)

// Analyzer computes the minimal closed set of nodes reachable from a root
// set and assigns the stable output order.
//
// Discovery is a wave-based mark phase: every node in the current frontier
// has its edge list computed (once, cached on the node) on parallel
// workers, then newly-seen targets form the next frontier. Cycles are
// harmless because the visited check happens before a node is ever
// expanded. Discovery order varies with thread scheduling; it never leaks
// into the output because the final list is re-sorted by each node's
// (ordinal, signature) key before emission.
type Analyzer struct {
	factory *Factory
	workers int
}

// NewAnalyzer creates an analyzer over the session's node factory.
// workers bounds the parallel edge discovery; zero or less means NumCPU.
func NewAnalyzer(factory *Factory, workers int) *Analyzer {
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}
	return &Analyzer{factory: factory, workers: workers}
}

// Result holds the outcome of a reachability analysis.
type Result struct {
	// Nodes is the deduplicated reachable set in final emission order.
	Nodes []Node
}

// MethodCodeNodes returns the reachable compiled-method nodes, in emission
// order. These are the artifacts the image must carry.
func (r *Result) MethodCodeNodes() []*MethodCodeNode {
	var out []*MethodCodeNode
	for _, n := range r.Nodes {
		if code, ok := n.(*MethodCodeNode); ok {
			out = append(out, code)
		}
	}
	return out
}

// discovery is the working state of one analysis run: an arena of nodes
// addressed by stable integer index, a visited bitset keyed by that index,
// and the bookkeeping to reconstruct how each node was reached.
type discovery struct {
	nodes   []Node
	index   map[Node]int
	visited intsets.Sparse

	// parent and reason record the first discovered edge into each node,
	// for error reports only. Roots have parent -1.
	parent []int
	reason []string
}

// add assigns the node its arena index on first sight. The returned flag
// reports whether the node is new to this run.
func (d *discovery) add(n Node, parent int, reason string) (int, bool) {
	if idx, ok := d.index[n]; ok {
		return idx, false
	}
	idx := len(d.nodes)
	d.nodes = append(d.nodes, n)
	d.index[n] = idx
	d.parent = append(d.parent, parent)
	d.reason = append(d.reason, reason)
	return idx, true
}

// path renders the chain of edge reasons from a root to the node, for
// build-failure diagnostics.
func (d *discovery) path(idx int) string {
	var parts []string
	for idx >= 0 {
		n := d.nodes[idx]
		if d.parent[idx] >= 0 {
			parts = append(parts, fmt.Sprintf("%s (%s)", n.Name(), d.reason[idx]))
		} else {
			parts = append(parts, n.Name()+" (root)")
		}
		idx = d.parent[idx]
	}
	slices.Reverse(parts)
	return strings.Join(parts, " -> ")
}

// Analyze performs the reachability walk from the root set and returns the
// reachable node set in deterministic emission order. Any edge-enumeration
// failure aborts the whole analysis: a missing dependency would silently
// corrupt the image, so there is no per-node recovery.
func (a *Analyzer) Analyze(roots []Node) (*Result, error) {
	d := &discovery{index: make(map[Node]int)}

	var frontier []int
	for _, root := range roots {
		idx, _ := d.add(root, -1, "")
		if d.visited.Insert(idx) {
			frontier = append(frontier, idx)
		}
	}

	// Each wave computes the frontier's edge lists concurrently. Workers
	// write to their own slot of a pre-sized slice, so no lock is needed;
	// the main goroutine reads only after Wait. Arena growth stays on the
	// main goroutine.
	waves := 0
	for len(frontier) > 0 {
		waves++
		results := make([][]Edge, len(frontier))

		var wg errgroup.Group
		wg.SetLimit(a.workers)
		for i, idx := range frontier {
			wg.Go(func() error {
				edges, err := d.nodes[idx].Dependencies(a.factory)
				if err != nil {
					return fmt.Errorf("expanding %s: %w", d.path(idx), err)
				}
				results[i] = edges
				return nil
			})
		}
		if err := wg.Wait(); err != nil {
			return nil, err
		}

		var next []int
		for i, edges := range results {
			from := frontier[i]
			for _, e := range edges {
				idx, _ := d.add(e.Target, from, e.Reason)
				if d.visited.Insert(idx) {
					next = append(next, idx)
				}
			}
		}
		frontier = next
	}

	slog.Debug("dependency analysis complete",
		"roots", len(roots), "nodes", len(d.nodes), "waves", waves)

	sorted := slices.Clone(d.nodes)
	SortNodes(sorted)
	return &Result{Nodes: sorted}, nil
}
