// Package compile drives a build: it loads a compilation manifest, compiles
// method bodies into artifacts, runs the dependency analysis from the
// manifest's roots, and assigns import table slots for emission.
package compile

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robot9706/corert/internal/metadata"
)

// Manifest describes the managed methods of one build: what gets compiled,
// which methods are roots, and the calls each body makes.
type Manifest struct {
	// Module is the name of the module being built.
	Module string `yaml:"module"`

	// Methods are the method bodies compiled in this build.
	Methods []ManifestMethod `yaml:"methods"`
}

// ManifestMethod is one compiled method body.
type ManifestMethod struct {
	// Owner is the declaring type.
	Owner string `yaml:"owner"`

	// Name is the method name, including its parameter list.
	Name string `yaml:"name"`

	// Root marks the method as a compilation root.
	Root bool `yaml:"root,omitempty"`

	// Body stands in for the codegen output; only its size and checksum
	// survive into the artifact. Empty bodies get a deterministic stub.
	Body string `yaml:"body,omitempty"`

	// GCInfoSize is the size of the GC metadata trailing the body.
	GCInfoSize int `yaml:"gc_info_size,omitempty"`

	// TypeParams lists the generic parameters in scope inside the body.
	// Call-site instantiation placeholders ("!0", "!1", ...) index into it.
	TypeParams []string `yaml:"type_params,omitempty"`

	// Calls are the body's call sites.
	Calls []ManifestCall `yaml:"calls,omitempty"`
}

// ManifestCall is one call site inside a method body.
type ManifestCall struct {
	// Module is the target's defining module. Empty means the module being
	// built; targets in the built module import through the local variant.
	Module string `yaml:"module,omitempty"`

	// Owner is the target's declaring type.
	Owner string `yaml:"owner"`

	// Method is the target method name.
	Method string `yaml:"method"`

	// Kind is the fixup kind tag; defaults to "method-call".
	Kind string `yaml:"kind,omitempty"`

	// Instantiation holds generic arguments for the target.
	Instantiation []string `yaml:"instantiation,omitempty"`

	// UnboxingStub selects the unboxing thunk variant of the target.
	UnboxingStub bool `yaml:"unboxing_stub,omitempty"`
}

// Key returns the MethodKey a manifest method compiles under.
func (m *ManifestMethod) Key(module string) metadata.MethodKey {
	return metadata.MethodKey{Module: module, Owner: m.Owner, Name: m.Name}
}

// targetKey returns the MethodKey a call site references.
func (c *ManifestCall) targetKey(module string) metadata.MethodKey {
	target := c.Module
	if target == "" {
		target = module
	}
	return metadata.MethodKey{
		Module:        target,
		Owner:         c.Owner,
		Name:          c.Method,
		Instantiation: c.Instantiation,
	}
}

// fixupKind returns the parsed fixup kind of the call site. Validate has
// already rejected unknown tags.
func (c *ManifestCall) fixupKind() metadata.FixupKind {
	if c.Kind == "" {
		return metadata.FixupMethodCall
	}
	kind, _ := metadata.ParseFixupKind(c.Kind)
	return kind
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest for structural problems. All problems are
// reported at once rather than one per run.
func (m *Manifest) Validate() error {
	var problems []string

	if m.Module == "" {
		problems = append(problems, "manifest has no module name")
	}
	if len(m.Methods) == 0 {
		problems = append(problems, "manifest defines no methods")
	}

	seen := make(map[string]struct{}, len(m.Methods))
	roots := 0
	for i, method := range m.Methods {
		where := fmt.Sprintf("method %d (%s.%s)", i, method.Owner, method.Name)
		if method.Owner == "" || method.Name == "" {
			problems = append(problems, where+": missing owner or name")
			continue
		}
		id := method.Owner + "." + method.Name
		if _, dup := seen[id]; dup {
			problems = append(problems, where+": duplicate definition")
		}
		seen[id] = struct{}{}
		if method.Root {
			roots++
		}
		for j, call := range method.Calls {
			if call.Owner == "" || call.Method == "" {
				problems = append(problems, fmt.Sprintf("%s: call %d missing owner or method", where, j))
			}
			if call.Kind != "" {
				if _, ok := metadata.ParseFixupKind(call.Kind); !ok {
					problems = append(problems, fmt.Sprintf("%s: call %d has unknown fixup kind %q", where, j, call.Kind))
				}
			}
		}
	}
	if roots == 0 {
		problems = append(problems, "manifest has no root methods")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid manifest:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}
