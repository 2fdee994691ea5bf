// Package imports owns the indirection-cell storage of the native image:
// the import table built at emission time, and the lock-free runtime
// protocol that resolves a cell's target address on first call.
package imports

import (
	"fmt"
	"sync/atomic"

	"github.com/robot9706/corert/internal/metadata"
)

// Entry describes one import slot's content: what the slot resolves to and
// the self-contained fixup signature the runtime resolves it from. The
// graph's delay-load import nodes satisfy this.
type Entry interface {
	FixupKind() metadata.FixupKind
	Signature() []byte
}

// Slot is one fixed-size indirection cell. The node that produced the
// entry designs the slot's content; the table owns the slot's memory.
// Kind and Signature are frozen at assignment; the target address is
// written exactly once, at run time, through the resolution protocol.
type Slot struct {
	Index     int
	Kind      metadata.FixupKind
	Signature []byte

	// addr is the published target address. Zero means unresolved; a
	// single atomic word, so callers can never observe a torn value.
	addr atomic.Uint64
}

// Resolved returns the published target address, if any.
func (s *Slot) Resolved() (uint64, bool) {
	addr := s.addr.Load()
	return addr, addr != 0
}

// DuplicateSlotError reports two entries with equal deduplication keys
// reaching slot assignment. The node factory guarantees one node per key,
// so this is an internal consistency failure, never an input error.
type DuplicateSlotError struct {
	Kind      metadata.FixupKind
	Signature []byte
}

func (e *DuplicateSlotError) Error() string {
	return fmt.Sprintf("duplicate import slot for %s fixup (%d signature bytes): node deduplication invariant violated",
		e.Kind, len(e.Signature))
}

// Table is the ordered collection of import slots handed to the runtime
// loader as a flat array of cells.
type Table struct {
	slots []*Slot
}

func NewTable() *Table {
	return &Table{}
}

// Assign creates one slot per entry, in the given order, with dense
// indices from zero. Callers pass entries in final sorted node order, so
// re-running assignment over an unchanged node set yields identical
// indices. Entries must already be deduplicated.
func (t *Table) Assign(entries []Entry) ([]*Slot, error) {
	if len(t.slots) != 0 {
		return nil, fmt.Errorf("import table already assigned (%d slots)", len(t.slots))
	}
	seen := make(map[string]struct{}, len(entries))
	slots := make([]*Slot, 0, len(entries))
	for i, e := range entries {
		sig := e.Signature()
		key := string([]byte{byte(e.FixupKind())}) + string(sig)
		if _, dup := seen[key]; dup {
			return nil, &DuplicateSlotError{Kind: e.FixupKind(), Signature: sig}
		}
		seen[key] = struct{}{}
		slots = append(slots, &Slot{Index: i, Kind: e.FixupKind(), Signature: sig})
	}
	t.slots = slots
	return slots, nil
}

// Len returns the number of assigned slots.
func (t *Table) Len() int { return len(t.slots) }

// Slot returns the cell at the given index.
func (t *Table) Slot(index int) *Slot { return t.slots[index] }

// Slots returns the flat cell array, in slot-index order.
func (t *Table) Slots() []*Slot { return t.slots }
