// Package metadata provides method identity, fixup kinds, and canonical
// fixup signatures for the dependency graph and import table.
package metadata

import (
	"slices"
	"strings"
)

// MethodKey identifies a managed method: its defining module, owning type,
// method name, and generic instantiation arguments (if any). Keys are
// immutable values, comparable, and totally ordered so node lists can be
// sorted deterministically.
type MethodKey struct {
	// Module is the defining module of the method (e.g., "System.Private.CoreLib").
	Module string

	// Owner is the declaring type (e.g., "Foo").
	Owner string

	// Name is the method name (e.g., "Bar(int)").
	Name string

	// Instantiation holds the generic type arguments, in declaration order.
	// A placeholder argument of the form "!N" refers to the N-th generic
	// parameter of the surrounding SignatureContext.
	Instantiation []string
}

// IsGeneric reports whether the key carries generic instantiation arguments.
func (k MethodKey) IsGeneric() bool {
	return len(k.Instantiation) > 0
}

// IsValid reports whether the key names a method at all. A key missing its
// module, owner, or name cannot be resolved to anything.
func (k MethodKey) IsValid() bool {
	return k.Module != "" && k.Owner != "" && k.Name != ""
}

// Compare totally orders keys by (module, owner, name, instantiation).
func (k MethodKey) Compare(o MethodKey) int {
	if c := strings.Compare(k.Module, o.Module); c != 0 {
		return c
	}
	if c := strings.Compare(k.Owner, o.Owner); c != 0 {
		return c
	}
	if c := strings.Compare(k.Name, o.Name); c != 0 {
		return c
	}
	return slices.Compare(k.Instantiation, o.Instantiation)
}

// String renders the key as Module!Owner.Name[args] for diagnostics.
func (k MethodKey) String() string {
	var b strings.Builder
	b.Grow(len(k.Module) + len(k.Owner) + len(k.Name) + 16)
	b.WriteString(k.Module)
	b.WriteByte('!')
	b.WriteString(k.Owner)
	b.WriteByte('.')
	b.WriteString(k.Name)
	if len(k.Instantiation) > 0 {
		b.WriteByte('[')
		for i, arg := range k.Instantiation {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(arg)
		}
		b.WriteByte(']')
	}
	return b.String()
}

// FixupKind describes what an import slot resolves to at run time.
// Two imports of the same method with different kinds are distinct slots.
type FixupKind uint8

const (
	// FixupMethodCall resolves to the method's entry point.
	FixupMethodCall FixupKind = iota

	// FixupUnboxingStubCall resolves to the unboxing thunk wrapping the
	// method's entry point.
	FixupUnboxingStubCall

	// FixupVirtualCall resolves to the virtual-dispatch helper for the method.
	FixupVirtualCall

	// FixupGenericHelper resolves to the generic-instantiation helper that
	// materializes the method's dictionary before dispatch.
	FixupGenericHelper
)

var fixupKindNames = map[FixupKind]string{
	FixupMethodCall:       "method-call",
	FixupUnboxingStubCall: "unboxing-stub-call",
	FixupVirtualCall:      "virtual-call",
	FixupGenericHelper:    "generic-helper",
}

func (f FixupKind) String() string {
	if name, ok := fixupKindNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFixupKind converts a manifest tag into a FixupKind.
func ParseFixupKind(s string) (FixupKind, bool) {
	for kind, name := range fixupKindNames {
		if name == s {
			return kind, true
		}
	}
	return 0, false
}

// SignatureContext carries the module and generic-parameter scope needed to
// interpret a method reference unambiguously. Contexts are attached to a
// node at construction and never mutated afterwards.
type SignatureContext struct {
	// Module is the module whose token scope the reference resolves in.
	Module string

	// TypeParams lists the generic parameters in scope, in declaration
	// order. An instantiation placeholder "!N" in a MethodKey must satisfy
	// N < len(TypeParams).
	TypeParams []string
}

// Compare totally orders contexts by (module, type parameters). Contexts
// that compare equal are the same equivalence class for deduplication.
func (c SignatureContext) Compare(o SignatureContext) int {
	if cmp := strings.Compare(c.Module, o.Module); cmp != 0 {
		return cmp
	}
	return slices.Compare(c.TypeParams, o.TypeParams)
}

// String renders the context for diagnostics.
func (c SignatureContext) String() string {
	if len(c.TypeParams) == 0 {
		return c.Module
	}
	return c.Module + "<" + strings.Join(c.TypeParams, ", ") + ">"
}
