package metadata

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// Fixup signature layout, all fields in order:
//
//	kind     1 byte
//	flags    1 byte (bit 0: unboxing stub)
//	module   uvarint length + bytes
//	owner    uvarint length + bytes
//	name     uvarint length + bytes
//	instantiation  uvarint count, then uvarint length + bytes per argument
//	context module uvarint length + bytes
//	context params uvarint count, then uvarint length + bytes per parameter
//
// The layout is self-contained: the runtime resolver can recompute a target
// address from the signature bytes alone, without build-time state. Encoding
// never consults map iteration order or addresses, so identical inputs yield
// identical bytes across runs.

const flagUnboxingStub byte = 1 << 0

// EncodeFixup produces the canonical byte signature for one import:
// what it resolves (kind + flags), which method it targets, and the
// signature context the reference must be interpreted in. The bytes double
// as the node's deduplication identity.
func EncodeFixup(kind FixupKind, unboxingStub bool, key MethodKey, ctx SignatureContext) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(kind))
	var flags byte
	if unboxingStub {
		flags |= flagUnboxingStub
	}
	buf = append(buf, flags)
	buf = appendMethodKey(buf, key)
	buf = appendContext(buf, ctx)
	return buf
}

// EncodeMethod produces the identity payload of a compiled method body.
// No kind or context: a method body is unique per MethodKey within a build.
func EncodeMethod(key MethodKey) []byte {
	return appendMethodKey(make([]byte, 0, 48), key)
}

// EncodeDictionary produces the identity payload of a generic dictionary:
// the context plus the instantiation arguments it must materialize.
func EncodeDictionary(key MethodKey, ctx SignatureContext) []byte {
	buf := make([]byte, 0, 48)
	buf = appendStrings(buf, key.Instantiation)
	buf = appendContext(buf, ctx)
	return buf
}

func appendMethodKey(buf []byte, key MethodKey) []byte {
	buf = appendString(buf, key.Module)
	buf = appendString(buf, key.Owner)
	buf = appendString(buf, key.Name)
	buf = appendStrings(buf, key.Instantiation)
	return buf
}

func appendContext(buf []byte, ctx SignatureContext) []byte {
	buf = appendString(buf, ctx.Module)
	buf = appendStrings(buf, ctx.TypeParams)
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func appendStrings(buf []byte, ss []string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(ss)))
	for _, s := range ss {
		buf = appendString(buf, s)
	}
	return buf
}

// PlaceholderIndex parses an instantiation placeholder of the form "!N" and
// returns N. ok is false for concrete (non-placeholder) arguments.
func PlaceholderIndex(arg string) (int, bool) {
	if !strings.HasPrefix(arg, "!") {
		return 0, false
	}
	n, err := strconv.Atoi(arg[1:])
	if err != nil || n < 0 {
		return -1, true // malformed placeholder: in-scope check will reject
	}
	return n, true
}

// fixupCacheKey flattens a fixup identity into a comparable value for the
// signature cache. Instantiation and parameter lists are joined with a
// separator that cannot occur inside manifest identifiers.
type fixupCacheKey struct {
	kind         FixupKind
	unboxingStub bool
	module       string
	owner        string
	name         string
	inst         string
	ctxModule    string
	ctxParams    string
}

// SignatureCache memoizes encoded fixup signatures. Imports of hot methods
// are requested once per call site; the encoding is pure, so a concurrent
// duplicate computation is wasted work, not a correctness problem.
type SignatureCache struct {
	fixups *xsync.Map[fixupCacheKey, []byte]
}

func NewSignatureCache() *SignatureCache {
	return &SignatureCache{
		fixups: xsync.NewMap[fixupCacheKey, []byte](),
	}
}

// Fixup returns the canonical signature for the import identity, encoding
// and caching it on first request.
func (c *SignatureCache) Fixup(kind FixupKind, unboxingStub bool, key MethodKey, ctx SignatureContext) []byte {
	ck := fixupCacheKey{
		kind:         kind,
		unboxingStub: unboxingStub,
		module:       key.Module,
		owner:        key.Owner,
		name:         key.Name,
		inst:         strings.Join(key.Instantiation, "\x1f"),
		ctxModule:    ctx.Module,
		ctxParams:    strings.Join(ctx.TypeParams, "\x1f"),
	}
	if sig, ok := c.fixups.Load(ck); ok {
		return sig
	}
	sig, _ := c.fixups.LoadOrStore(ck, EncodeFixup(kind, unboxingStub, key, ctx))
	return sig
}

// Size returns the number of distinct cached signatures.
func (c *SignatureCache) Size() int {
	return c.fixups.Size()
}
