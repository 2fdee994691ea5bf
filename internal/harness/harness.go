// Package harness provides scenario-driven testing utilities for the
// dependency analyzer and import table. A scenario is a YAML file pairing
// a compilation manifest with the expected emission layout; the harness
// builds the manifest twice under different parallelism and checks that
// both runs produce the expected, identical layout.
package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/robot9706/corert/pkg/compile"
)

// Scenario is one test case: the manifest to build and what the emission
// must look like.
type Scenario struct {
	// Manifest is the compilation input.
	Manifest compile.Manifest `yaml:"manifest"`

	// ExpectedNodes lists the diagnostic names of every emitted node, in
	// emission order.
	ExpectedNodes []string `yaml:"expected_nodes"`

	// ExpectedSlots describes the import table.
	ExpectedSlots []ExpectedSlot `yaml:"expected_slots"`

	// ExpectedError, when set, is a substring the build failure must
	// contain; the expectations above are ignored.
	ExpectedError string `yaml:"expected_error,omitempty"`
}

// ExpectedSlot is one expected import table cell.
type ExpectedSlot struct {
	// Index is the slot index.
	Index int `yaml:"index"`

	// Kind is the fixup kind tag.
	Kind string `yaml:"kind"`

	// Node is the diagnostic name of the node owning the slot.
	Node string `yaml:"node"`
}

// Harness runs scenario files from a testdata root.
type Harness struct {
	root string
}

func NewHarness(root string) *Harness {
	return &Harness{root: root}
}

// LoadScenario reads one scenario file.
func (h *Harness) LoadScenario(name string) (*Scenario, error) {
	data, err := os.ReadFile(filepath.Join(h.root, name))
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding scenario %s: %w", name, err)
	}
	return &sc, nil
}

// Scenarios lists the scenario files under the root, for range-over-tests.
func (h *Harness) Scenarios(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.root)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".yaml") {
			names = append(names, e.Name())
		}
	}
	require.NotEmpty(t, names, "no scenario files under %s", h.root)
	return names
}

// Run builds the scenario's manifest twice, once serial and once with all
// CPUs, and validates both emissions against the expectations. Running
// twice exercises the determinism contract: discovery interleaving must
// never leak into emission order or slot assignment.
func (h *Harness) Run(t *testing.T, sc *Scenario) {
	t.Helper()

	serial := h.build(t, sc, 1)
	parallel := h.build(t, sc, runtime.NumCPU())
	if sc.ExpectedError != "" {
		return // both builds failed with the expected error
	}

	require.Equal(t, serial.Render(), parallel.Render(),
		"serial and parallel builds must emit identical layouts")
	h.validate(t, sc, serial)
}

func (h *Harness) build(t *testing.T, sc *Scenario, workers int) *compile.Emission {
	t.Helper()
	builder := compile.NewBuilder(compile.Options{Workers: workers})
	emission, err := builder.Build(&sc.Manifest)
	if sc.ExpectedError != "" {
		require.Error(t, err)
		require.Contains(t, err.Error(), sc.ExpectedError)
		return nil
	}
	require.NoError(t, err)
	return emission
}

func (h *Harness) validate(t *testing.T, sc *Scenario, emission *compile.Emission) {
	t.Helper()

	var names []string
	for _, n := range emission.Nodes {
		names = append(names, n.Name())
	}
	require.Equal(t, sc.ExpectedNodes, names, "emission order mismatch")

	require.Equal(t, len(sc.ExpectedSlots), emission.Table.Len(), "slot count mismatch")
	for _, expected := range sc.ExpectedSlots {
		slot := emission.Table.Slot(expected.Index)
		require.Equal(t, expected.Kind, slot.Kind.String(),
			"slot %d fixup kind mismatch", expected.Index)

		owner := ""
		for node, idx := range emission.SlotIndex {
			if idx == expected.Index {
				owner = node.Name()
				break
			}
		}
		require.Equal(t, expected.Node, owner, "slot %d owner mismatch", expected.Index)
	}
}
