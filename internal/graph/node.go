// Package graph implements the dependency graph of compilation artifacts:
// the closed set of node kinds, the memoizing node factory, and the
// reachability analyzer that produces the deterministically ordered node
// list handed to the image emitter.
//
// A node's identity is its (ordinal, signature bytes) pair. Ordinals order
// nodes of different kinds; signature bytes order nodes within a kind.
// Neither depends on creation order or addresses, so two builds over the
// same inputs emit identical node lists regardless of thread scheduling.
package graph

import (
	"bytes"
	"cmp"
	"slices"
	"sync"
)

// Ordinal discriminates node kinds for deterministic ordering. It is never
// used for identity; two nodes of the same kind are distinguished by their
// signature bytes.
type Ordinal uint8

const (
	OrdinalMethodCode           Ordinal = 0x10
	OrdinalFixupSignature       Ordinal = 0x20
	OrdinalGenericDictionary    Ordinal = 0x28
	OrdinalExternalMethodImport Ordinal = 0x30
	OrdinalLocalMethodImport    Ordinal = 0x38
)

func (o Ordinal) String() string {
	switch o {
	case OrdinalMethodCode:
		return "method-code"
	case OrdinalFixupSignature:
		return "fixup-signature"
	case OrdinalGenericDictionary:
		return "generic-dictionary"
	case OrdinalExternalMethodImport:
		return "external-method-import"
	case OrdinalLocalMethodImport:
		return "local-method-import"
	}
	return "unknown"
}

// Edge is one static dependency of a node. The reason is plain text for
// cycle and missing-dependency reports; it is never parsed.
type Edge struct {
	Target Node
	Reason string
}

// Node is a vertex of the dependency graph. The set of implementations is
// closed: all kinds live in this package, so consumers can type-switch
// exhaustively.
type Node interface {
	// Ordinal returns the kind discriminator used for emission ordering.
	Ordinal() Ordinal

	// Signature returns the node's identity payload, derived from its
	// deduplication key. Stable across runs.
	Signature() []byte

	// Name returns a human-readable description for diagnostics.
	Name() string

	// Dependencies enumerates the node's static dependency edges. The edge
	// list is computed once, on first call, and cached; computation may
	// create further nodes through the factory.
	Dependencies(f *Factory) ([]Edge, error)

	sealed()
}

// edgeCache backs the lazily-computed, cached edge list every node carries.
// Without laziness the node universe is unbounded: generic instantiation
// lets edges mint new nodes indefinitely.
type edgeCache struct {
	once  sync.Once
	edges []Edge
	err   error
}

func (c *edgeCache) compute(fn func() ([]Edge, error)) ([]Edge, error) {
	c.once.Do(func() {
		c.edges, c.err = fn()
	})
	return c.edges, c.err
}

// Compare orders nodes by (ordinal, signature bytes) for emission.
func Compare(a, b Node) int {
	if c := cmp.Compare(a.Ordinal(), b.Ordinal()); c != 0 {
		return c
	}
	return bytes.Compare(a.Signature(), b.Signature())
}

// SortNodes sorts nodes into final emission order.
func SortNodes(nodes []Node) {
	slices.SortFunc(nodes, Compare)
}
