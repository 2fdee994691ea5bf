package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robot9706/corert/internal/metadata"
)

func TestCompile(t *testing.T) {
	key := metadata.MethodKey{Module: "app", Owner: "Foo", Name: "Bar(int)"}
	a := Compile(key, []byte("body"), 8)
	b := Compile(key, []byte("body"), 8)

	require.Equal(t, key, a.Key)
	require.Equal(t, 4, a.CodeSize)
	require.Equal(t, 8, a.GCInfoSize)
	require.Equal(t, a.Checksum, b.Checksum)
	require.NotEqual(t, a.Checksum, Compile(key, []byte("other"), 8).Checksum)
}

func TestStore_AddAndLookup(t *testing.T) {
	store := NewStore()
	key := metadata.MethodKey{Module: "app", Owner: "Foo", Name: "Bar(int)"}

	_, ok := store.Lookup(key)
	require.False(t, ok)

	a := Compile(key, []byte("body"), 0)
	require.NoError(t, store.Add(a))
	got, ok := store.Lookup(key)
	require.True(t, ok)
	require.Same(t, a, got)
	require.Equal(t, 1, store.Size())

	// Re-registering the same body is idempotent.
	require.NoError(t, store.Add(Compile(key, []byte("body"), 0)))
	require.Equal(t, 1, store.Size())
}

func TestStore_ConflictingBodies(t *testing.T) {
	store := NewStore()
	key := metadata.MethodKey{Module: "app", Owner: "Foo", Name: "Bar(int)"}

	require.NoError(t, store.Add(Compile(key, []byte("body"), 0)))
	err := store.Add(Compile(key, []byte("other"), 0))
	require.Error(t, err)
	require.Contains(t, err.Error(), "conflicting artifacts for app!Foo.Bar(int)")
}

func TestStore_InstantiationDistinguishesKeys(t *testing.T) {
	store := NewStore()
	plain := metadata.MethodKey{Module: "app", Owner: "List", Name: "Add"}
	generic := metadata.MethodKey{Module: "app", Owner: "List", Name: "Add", Instantiation: []string{"int"}}

	require.NoError(t, store.Add(Compile(plain, []byte("a"), 0)))
	require.NoError(t, store.Add(Compile(generic, []byte("b"), 0)))
	require.Equal(t, 2, store.Size())

	got, ok := store.Lookup(generic)
	require.True(t, ok)
	require.Equal(t, generic, got.Key)
}
