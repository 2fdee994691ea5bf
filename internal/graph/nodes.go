package graph

import (
	"github.com/robot9706/corert/internal/metadata"
	"github.com/robot9706/corert/pkg/artifact"
)

// CallSite describes one call a compiled method body makes. Each call site
// becomes a dependency edge from the method's code node to an import node.
type CallSite struct {
	Target       metadata.MethodKey
	Kind         metadata.FixupKind
	Context      metadata.SignatureContext
	UnboxingStub bool

	// Local marks calls to methods compiled within this build; they import
	// through a LocalMethodImportNode, which pins the callee's artifact.
	Local bool
}

// MethodCodeNode represents the compiled body of a same-build method. Its
// dependencies are one import node per call site of the body.
type MethodCodeNode struct {
	key      metadata.MethodKey
	artifact *artifact.MethodArtifact
	calls    []CallSite
	sig      []byte

	deps edgeCache
}

func (n *MethodCodeNode) Ordinal() Ordinal  { return OrdinalMethodCode }
func (n *MethodCodeNode) Signature() []byte { return n.sig }
func (n *MethodCodeNode) Name() string      { return "method-code " + n.key.String() }
func (n *MethodCodeNode) sealed()           {}

// Key returns the method this node's artifact was compiled from.
func (n *MethodCodeNode) Key() metadata.MethodKey { return n.key }

// Artifact returns the opaque compiled artifact the node represents.
func (n *MethodCodeNode) Artifact() *artifact.MethodArtifact { return n.artifact }

func (n *MethodCodeNode) Dependencies(f *Factory) ([]Edge, error) {
	return n.deps.compute(func() ([]Edge, error) {
		edges := make([]Edge, 0, len(n.calls))
		for _, call := range n.calls {
			var imp Node
			var err error
			if call.Local {
				imp, err = f.LocalMethodImport(call.Target, call.Kind, call.Context, call.UnboxingStub)
			} else {
				imp, err = f.ExternalMethodImport(call.Target, call.Kind, call.Context, call.UnboxingStub)
			}
			if err != nil {
				return nil, err
			}
			edges = append(edges, Edge{Target: imp, Reason: "Call site"})
		}
		return edges, nil
	})
}

// unboxingSuffix marks unboxing-thunk variants in diagnostic names; the
// variants are otherwise indistinguishable by target and kind.
func unboxingSuffix(unboxingStub bool) string {
	if unboxingStub {
		return " [unboxing]"
	}
	return ""
}

// FixupSignatureNode carries the encoded fixup blob an import slot embeds.
// Leaf node: the signature bytes are the whole artifact.
type FixupSignatureNode struct {
	kind         metadata.FixupKind
	key          metadata.MethodKey
	unboxingStub bool
	sig          []byte
}

func (n *FixupSignatureNode) Ordinal() Ordinal  { return OrdinalFixupSignature }
func (n *FixupSignatureNode) Signature() []byte { return n.sig }
func (n *FixupSignatureNode) Name() string {
	return "fixup-signature " + n.kind.String() + " " + n.key.String() + unboxingSuffix(n.unboxingStub)
}
func (n *FixupSignatureNode) sealed() {}

func (n *FixupSignatureNode) Dependencies(*Factory) ([]Edge, error) { return nil, nil }

// GenericDictionaryNode represents the instantiation context a generic
// import needs materialized before its target can be dispatched.
type GenericDictionaryNode struct {
	key metadata.MethodKey
	ctx metadata.SignatureContext
	sig []byte
}

func (n *GenericDictionaryNode) Ordinal() Ordinal  { return OrdinalGenericDictionary }
func (n *GenericDictionaryNode) Signature() []byte { return n.sig }
func (n *GenericDictionaryNode) Name() string {
	return "generic-dictionary " + n.key.String() + " in " + n.ctx.String()
}
func (n *GenericDictionaryNode) sealed() {}

func (n *GenericDictionaryNode) Dependencies(*Factory) ([]Edge, error) { return nil, nil }

// importParts is the shared state of the two delay-load import variants:
// the target reference, the slot content description, and the encoded
// fixup signature that doubles as the node identity.
type importParts struct {
	key          metadata.MethodKey
	kind         metadata.FixupKind
	ctx          metadata.SignatureContext
	unboxingStub bool
	sig          []byte
}

// FixupKind returns what the owned import slot resolves to.
func (p *importParts) FixupKind() metadata.FixupKind { return p.kind }

// Key returns the import's target method.
func (p *importParts) Key() metadata.MethodKey { return p.key }

// Context returns the signature context the reference resolves in.
func (p *importParts) Context() metadata.SignatureContext { return p.ctx }

// UnboxingStub reports whether the import targets the unboxing thunk
// variant of the method.
func (p *importParts) UnboxingStub() bool { return p.unboxingStub }

func (p *importParts) Signature() []byte { return p.sig }

// baseImportEdges enumerates the dependencies shared by every delay-load
// import: the fixup signature blob, plus the generic dictionary when the
// target carries an instantiation.
func (p *importParts) baseImportEdges(f *Factory) []Edge {
	edges := []Edge{
		{Target: f.FixupSignature(p.kind, p.unboxingStub, p.key, p.ctx), Reason: "Import fixup signature"},
	}
	if p.key.IsGeneric() {
		edges = append(edges, Edge{Target: f.GenericDictionary(p.key, p.ctx), Reason: "Generic dictionary"})
	}
	return edges
}

// ExternalMethodImportNode is a delay-load import of a method compiled in
// another module. Its target body is not part of this image; the runtime
// resolver locates it from the fixup signature on first call.
type ExternalMethodImportNode struct {
	importParts
	deps edgeCache
}

func (n *ExternalMethodImportNode) Ordinal() Ordinal { return OrdinalExternalMethodImport }
func (n *ExternalMethodImportNode) Name() string {
	return "external-method-import " + n.kind.String() + " " + n.key.String() + unboxingSuffix(n.unboxingStub)
}
func (n *ExternalMethodImportNode) sealed() {}

func (n *ExternalMethodImportNode) Dependencies(f *Factory) ([]Edge, error) {
	return n.deps.compute(func() ([]Edge, error) {
		return n.baseImportEdges(f), nil
	})
}

// LocalMethodImportNode is a delay-load import of a method compiled within
// this build. Beyond the shared import dependencies it declares a hard edge
// to the target's MethodCodeNode: a locally-defined method stays in the
// image purely because something imports it, even if nothing else
// references the body directly.
type LocalMethodImportNode struct {
	importParts
	deps edgeCache
}

func (n *LocalMethodImportNode) Ordinal() Ordinal { return OrdinalLocalMethodImport }
func (n *LocalMethodImportNode) Name() string {
	return "local-method-import " + n.kind.String() + " " + n.key.String() + unboxingSuffix(n.unboxingStub)
}
func (n *LocalMethodImportNode) sealed() {}

func (n *LocalMethodImportNode) Dependencies(f *Factory) ([]Edge, error) {
	return n.deps.compute(func() ([]Edge, error) {
		code, err := f.MethodCode(n.key)
		if err != nil {
			return nil, err
		}
		edges := n.baseImportEdges(f)
		edges = append(edges, Edge{Target: code, Reason: "Local method import"})
		return edges, nil
	})
}
