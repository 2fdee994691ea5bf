package compile

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/robot9706/corert/internal/graph"
	"github.com/robot9706/corert/pkg/artifact"
	"github.com/robot9706/corert/pkg/imports"
)

// Emission is the finalized build output handed to the image emitter: the
// deduplicated node list in deterministic order, the import table, and the
// slot index of every delay-load node. Nodes are frozen once an Emission
// exists; the whole graph is discarded together after the image is written.
type Emission struct {
	// Module is the name of the built module.
	Module string

	// Nodes is the reachable node set in emission order.
	Nodes []graph.Node

	// Table is the assigned import table, ready for the runtime loader.
	Table *imports.Table

	// SlotIndex maps each delay-load node to its import slot.
	SlotIndex map[graph.Node]int

	// Factory is the session factory, retained so diagnostics can
	// re-enumerate cached dependency edges.
	Factory *graph.Factory
}

// Artifacts returns the compiled artifacts the image must carry, in
// emission order. An artifact reachable only through a local method import
// is included; that is the point of the import's hard edge.
func (e *Emission) Artifacts() []*artifact.MethodArtifact {
	var out []*artifact.MethodArtifact
	for _, n := range e.Nodes {
		if code, ok := n.(*graph.MethodCodeNode); ok {
			out = append(out, code.Artifact())
		}
	}
	return out
}

// Edges returns the cached dependency edges of an emitted node, for
// diagnostics and cycle reports.
func (e *Emission) Edges(n graph.Node) []graph.Edge {
	edges, err := n.Dependencies(e.Factory)
	if err != nil {
		// Dependencies were already enumerated during analysis; the cached
		// result cannot fail afresh.
		return nil
	}
	return edges
}

// Render prints the node layout for humans: one line per node in emission
// order, with the slot index of every delay-load node.
func (e *Emission) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "module %s: %d nodes, %d import slots\n", e.Module, len(e.Nodes), e.Table.Len())
	for i, n := range e.Nodes {
		fmt.Fprintf(&b, "[%3d] %s", i, n.Name())
		if slot, ok := e.SlotIndex[n]; ok {
			fmt.Fprintf(&b, " slot=%d", slot)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// LayoutEntry is the JSON-friendly view of one emitted node.
type LayoutEntry struct {
	Ordinal   uint8  `json:"ordinal"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Slot      *int   `json:"slot,omitempty"`
}

// Layout returns the emission as a flat list of entries, signature bytes
// hex-encoded, for machine consumption.
func (e *Emission) Layout() []LayoutEntry {
	entries := make([]LayoutEntry, 0, len(e.Nodes))
	for _, n := range e.Nodes {
		entry := LayoutEntry{
			Ordinal:   uint8(n.Ordinal()),
			Kind:      n.Ordinal().String(),
			Name:      n.Name(),
			Signature: hex.EncodeToString(n.Signature()),
		}
		if slot, ok := e.SlotIndex[n]; ok {
			entry.Slot = &slot
		}
		entries = append(entries, entry)
	}
	return entries
}
