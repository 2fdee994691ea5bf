// Package artifact holds the opaque compiled-method artifacts produced by
// the codegen pipeline and consumed as dependencies by the graph.
package artifact

import (
	"crypto/sha256"
	"fmt"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/robot9706/corert/internal/metadata"
)

// MethodArtifact is an immutable unit representing a compiled method body
// plus its GC metadata. The graph treats it as opaque: it has an identity,
// sizes, and a body checksum, nothing more. It lives from the moment
// codegen completes for the method until image emission finishes.
type MethodArtifact struct {
	// Key identifies the method this artifact was compiled from.
	Key metadata.MethodKey

	// CodeSize is the native code size in bytes.
	CodeSize int

	// GCInfoSize is the size of the GC metadata trailing the body.
	GCInfoSize int

	// Checksum fingerprints the compiled body for identity comparison.
	Checksum [sha256.Size]byte
}

// Compile produces the artifact for a method body. The body bytes stand in
// for the real codegen output; only their size and fingerprint survive.
func Compile(key metadata.MethodKey, body []byte, gcInfoSize int) *MethodArtifact {
	return &MethodArtifact{
		Key:        key,
		CodeSize:   len(body),
		GCInfoSize: gcInfoSize,
		Checksum:   sha256.Sum256(body),
	}
}

// storeKey flattens a MethodKey for the concurrent map. The unit separator
// cannot occur inside manifest identifiers.
func storeKey(key metadata.MethodKey) string {
	s := key.Module + "\x1f" + key.Owner + "\x1f" + key.Name
	for _, arg := range key.Instantiation {
		s += "\x1f" + arg
	}
	return s
}

// Store is a concurrent registry of artifacts keyed by MethodKey. Methods
// compile on parallel workers; registration is insert-if-absent.
type Store struct {
	artifacts *xsync.Map[string, *MethodArtifact]
}

func NewStore() *Store {
	return &Store{
		artifacts: xsync.NewMap[string, *MethodArtifact](),
	}
}

// Add registers an artifact. Re-registering the identical artifact is a
// no-op; registering a different body under the same key means two workers
// compiled conflicting code for one method, which fails the build.
func (s *Store) Add(a *MethodArtifact) error {
	existing, loaded := s.artifacts.LoadOrStore(storeKey(a.Key), a)
	if loaded && existing.Checksum != a.Checksum {
		return fmt.Errorf("conflicting artifacts for %s", a.Key)
	}
	return nil
}

// Lookup returns the artifact compiled for key, if any.
func (s *Store) Lookup(key metadata.MethodKey) (*MethodArtifact, bool) {
	return s.artifacts.Load(storeKey(key))
}

// Size returns the number of registered artifacts.
func (s *Store) Size() int {
	return s.artifacts.Size()
}
