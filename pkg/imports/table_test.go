package imports

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robot9706/corert/internal/metadata"
)

// fakeEntry is a minimal Entry for table tests.
type fakeEntry struct {
	kind metadata.FixupKind
	sig  []byte
}

func (e fakeEntry) FixupKind() metadata.FixupKind { return e.kind }
func (e fakeEntry) Signature() []byte             { return e.sig }

func TestTable_Assign(t *testing.T) {
	table := NewTable()
	entries := []Entry{
		fakeEntry{kind: metadata.FixupMethodCall, sig: []byte("a")},
		fakeEntry{kind: metadata.FixupMethodCall, sig: []byte("b")},
		fakeEntry{kind: metadata.FixupVirtualCall, sig: []byte("a")},
	}

	slots, err := table.Assign(entries)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	require.Equal(t, 3, table.Len())

	for i, slot := range slots {
		require.Equal(t, i, slot.Index)
		require.Equal(t, entries[i].FixupKind(), slot.Kind)
		require.Equal(t, entries[i].Signature(), slot.Signature)
		_, resolved := slot.Resolved()
		require.False(t, resolved)
		require.Same(t, slot, table.Slot(i))
	}
}

func TestTable_AssignOnce(t *testing.T) {
	table := NewTable()
	_, err := table.Assign([]Entry{fakeEntry{sig: []byte("a")}})
	require.NoError(t, err)

	_, err = table.Assign([]Entry{fakeEntry{sig: []byte("b")}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already assigned")
}

func TestTable_DuplicateEntry(t *testing.T) {
	table := NewTable()
	_, err := table.Assign([]Entry{
		fakeEntry{kind: metadata.FixupMethodCall, sig: []byte("a")},
		fakeEntry{kind: metadata.FixupMethodCall, sig: []byte("a")},
	})
	var dup *DuplicateSlotError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, metadata.FixupMethodCall, dup.Kind)
}
