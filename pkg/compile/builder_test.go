package compile

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/robot9706/corert/internal/graph"
)

func dedupManifest() *Manifest {
	return &Manifest{
		Module: "app",
		Methods: []ManifestMethod{
			{
				Owner: "Program", Name: "Main", Root: true,
				Calls: []ManifestCall{
					{Owner: "Foo", Method: "Bar(int)"},
					{Owner: "Foo", Method: "Bar(int)"},
				},
			},
			{Owner: "Foo", Name: "Bar(int)"},
		},
	}
}

func TestBuild_Layout(t *testing.T) {
	emission, err := NewBuilder(Options{Workers: 1}).Build(dedupManifest())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "basic", []byte(emission.Render()))
}

func TestBuild_DedupsCallSites(t *testing.T) {
	emission, err := NewBuilder(Options{}).Build(dedupManifest())
	require.NoError(t, err)

	// Two call sites to one target collapse into one import node and one
	// slot; the code node's two edges point at the same instance.
	require.Equal(t, 1, emission.Table.Len())
	require.Len(t, emission.Nodes, 4)

	var main *graph.MethodCodeNode
	for _, n := range emission.Nodes {
		if code, ok := n.(*graph.MethodCodeNode); ok && code.Key().Owner == "Program" {
			main = code
		}
	}
	require.NotNil(t, main)

	edges := emission.Edges(main)
	require.Len(t, edges, 2)
	require.Same(t, edges[0].Target, edges[1].Target)
}

func TestBuild_StableAcrossSessions(t *testing.T) {
	first, err := NewBuilder(Options{Workers: 1}).Build(dedupManifest())
	require.NoError(t, err)
	second, err := NewBuilder(Options{}).Build(dedupManifest())
	require.NoError(t, err)

	require.Equal(t, first.Render(), second.Render())
	require.Equal(t, first.Layout(), second.Layout())
}

func TestBuild_Artifacts(t *testing.T) {
	emission, err := NewBuilder(Options{}).Build(dedupManifest())
	require.NoError(t, err)

	artifacts := emission.Artifacts()
	require.Len(t, artifacts, 2)
	require.Equal(t, "app!Foo.Bar(int)", artifacts[0].Key.String())
	require.Equal(t, "app!Program.Main", artifacts[1].Key.String())
	for _, a := range artifacts {
		require.Positive(t, a.CodeSize)
	}
}

func TestBuild_InvalidManifest(t *testing.T) {
	_, err := NewBuilder(Options{}).Build(&Manifest{Module: "app"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid manifest:")
}

func TestBuild_MissingLocalTarget(t *testing.T) {
	m := &Manifest{
		Module: "app",
		Methods: []ManifestMethod{{
			Owner: "Program", Name: "Main", Root: true,
			Calls: []ManifestCall{{Owner: "Ghost", Method: "Walk()"}},
		}},
	}

	_, err := NewBuilder(Options{}).Build(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "dependency analysis:")
	require.Contains(t, err.Error(), "not compiled in this build")
}

func TestBuild_SlotIndexMatchesTable(t *testing.T) {
	m := &Manifest{
		Module: "app",
		Methods: []ManifestMethod{
			{
				Owner: "Program", Name: "Main", Root: true,
				Calls: []ManifestCall{
					{Owner: "Foo", Method: "Bar(int)"},
					{Module: "corelib", Owner: "Console", Method: "Write"},
				},
			},
			{Owner: "Foo", Name: "Bar(int)"},
		},
	}

	emission, err := NewBuilder(Options{}).Build(m)
	require.NoError(t, err)
	require.Equal(t, 2, emission.Table.Len())

	for node, idx := range emission.SlotIndex {
		slot := emission.Table.Slot(idx)
		require.Equal(t, node.Signature(), slot.Signature)
	}
}
