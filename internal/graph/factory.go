package graph

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/robot9706/corert/internal/metadata"
	"github.com/robot9706/corert/pkg/artifact"
)

// nodeKey is the deduplication key of the memoization table: the kind
// discriminator plus the node's signature bytes.
type nodeKey struct {
	ordinal Ordinal
	sig     string
}

// Factory is the memoizing registry mapping deduplication keys to singleton
// node instances. It is owned by one compilation session and passed down
// explicitly; there is no ambient global registry.
//
// Construction requests race freely from parallel compilation workers. The
// table resolves races with an atomic insert-if-absent: a losing racer's
// freshly-built node is discarded, and no lock is ever held across a
// constructor. Constructors can trigger nested node creation, so holding a
// lock there would deadlock.
type Factory struct {
	artifacts  *artifact.Store
	signatures *metadata.SignatureCache

	// methods records the call sites of every same-build method body, keyed
	// by the method signature bytes. Populated by the compilation driver
	// before analysis starts.
	methods *xsync.Map[string, []CallSite]

	nodes *xsync.Map[nodeKey, Node]
}

// NewFactory creates a factory over the session's artifact store.
func NewFactory(artifacts *artifact.Store) *Factory {
	return &Factory{
		artifacts:  artifacts,
		signatures: metadata.NewSignatureCache(),
		methods:    xsync.NewMap[string, []CallSite](),
		nodes:      xsync.NewMap[nodeKey, Node](),
	}
}

// Artifacts returns the session's artifact store.
func (f *Factory) Artifacts() *artifact.Store { return f.artifacts }

// DefineMethod records the call sites of a method compiled in this build.
// MethodCode nodes for the method enumerate one import edge per call site.
func (f *Factory) DefineMethod(key metadata.MethodKey, calls []CallSite) {
	f.methods.Store(string(metadata.EncodeMethod(key)), calls)
}

// NodeCount returns the number of distinct nodes created so far.
func (f *Factory) NodeCount() int { return f.nodes.Size() }

// intern returns the canonical node for (ordinal, sig), publishing the
// built candidate if the key is new. Build happens outside the map, so a
// concurrent duplicate build is possible; only one instance wins and slots
// are assigned at emission, never at construction, so the loser cannot
// leak a slot.
func (f *Factory) intern(ordinal Ordinal, sig []byte, build func() Node) Node {
	key := nodeKey{ordinal: ordinal, sig: string(sig)}
	if n, ok := f.nodes.Load(key); ok {
		return n
	}
	n, _ := f.nodes.LoadOrStore(key, build())
	return n
}

// validateReference checks that a method reference can be interpreted in
// its signature context.
func validateReference(key metadata.MethodKey, ctx metadata.SignatureContext) error {
	if !key.IsValid() {
		return &InvalidReferenceError{Key: key, Detail: "missing module, owner, or name"}
	}
	if ctx.Module == "" {
		return &InvalidReferenceError{Key: key, Detail: "empty signature context"}
	}
	for _, arg := range key.Instantiation {
		idx, isPlaceholder := metadata.PlaceholderIndex(arg)
		if !isPlaceholder {
			continue
		}
		if idx < 0 || idx >= len(ctx.TypeParams) {
			return &SignatureResolutionError{Key: key, Context: ctx, Arg: arg}
		}
	}
	return nil
}

// MethodCode returns the singleton code node for a same-build method.
// The method must have been compiled already; referencing a method with no
// artifact is a malformed reference and fails the build.
func (f *Factory) MethodCode(key metadata.MethodKey) (*MethodCodeNode, error) {
	if !key.IsValid() {
		return nil, &InvalidReferenceError{Key: key, Detail: "missing module, owner, or name"}
	}
	art, ok := f.artifacts.Lookup(key)
	if !ok {
		return nil, &InvalidReferenceError{Key: key, Detail: "no compiled artifact for method"}
	}
	sig := metadata.EncodeMethod(key)
	calls, _ := f.methods.Load(string(sig))
	n := f.intern(OrdinalMethodCode, sig, func() Node {
		return &MethodCodeNode{key: key, artifact: art, calls: calls, sig: sig}
	})
	return n.(*MethodCodeNode), nil
}

// LocalMethodImport returns the singleton delay-load import node for a
// method compiled within this build.
func (f *Factory) LocalMethodImport(key metadata.MethodKey, kind metadata.FixupKind, ctx metadata.SignatureContext, unboxingStub bool) (*LocalMethodImportNode, error) {
	if err := validateReference(key, ctx); err != nil {
		return nil, err
	}
	if _, ok := f.artifacts.Lookup(key); !ok {
		return nil, &InvalidReferenceError{Key: key, Detail: "local import of a method not compiled in this build"}
	}
	sig := f.signatures.Fixup(kind, unboxingStub, key, ctx)
	n := f.intern(OrdinalLocalMethodImport, sig, func() Node {
		return &LocalMethodImportNode{importParts: importParts{
			key: key, kind: kind, ctx: ctx, unboxingStub: unboxingStub, sig: sig,
		}}
	})
	return n.(*LocalMethodImportNode), nil
}

// ExternalMethodImport returns the singleton delay-load import node for a
// method defined in another module.
func (f *Factory) ExternalMethodImport(key metadata.MethodKey, kind metadata.FixupKind, ctx metadata.SignatureContext, unboxingStub bool) (*ExternalMethodImportNode, error) {
	if err := validateReference(key, ctx); err != nil {
		return nil, err
	}
	sig := f.signatures.Fixup(kind, unboxingStub, key, ctx)
	n := f.intern(OrdinalExternalMethodImport, sig, func() Node {
		return &ExternalMethodImportNode{importParts: importParts{
			key: key, kind: kind, ctx: ctx, unboxingStub: unboxingStub, sig: sig,
		}}
	})
	return n.(*ExternalMethodImportNode), nil
}

// FixupSignature returns the singleton signature blob node for an import
// identity. Only reached from import node edge enumeration, after the
// reference has been validated.
func (f *Factory) FixupSignature(kind metadata.FixupKind, unboxingStub bool, key metadata.MethodKey, ctx metadata.SignatureContext) *FixupSignatureNode {
	sig := f.signatures.Fixup(kind, unboxingStub, key, ctx)
	n := f.intern(OrdinalFixupSignature, sig, func() Node {
		return &FixupSignatureNode{kind: kind, key: key, unboxingStub: unboxingStub, sig: sig}
	})
	return n.(*FixupSignatureNode)
}

// GenericDictionary returns the singleton dictionary node for a generic
// target's instantiation in the given context.
func (f *Factory) GenericDictionary(key metadata.MethodKey, ctx metadata.SignatureContext) *GenericDictionaryNode {
	sig := metadata.EncodeDictionary(key, ctx)
	n := f.intern(OrdinalGenericDictionary, sig, func() Node {
		return &GenericDictionaryNode{key: key, ctx: ctx, sig: sig}
	})
	return n.(*GenericDictionaryNode)
}
