package imports

import (
	"fmt"

	"github.com/robot9706/corert/internal/metadata"
)

// Resolver computes the target address for a fixup from its kind and
// signature bytes alone. It must be a pure function: the address depends
// only on the signature, so computing it twice is wasted work, not an
// error. Address zero is reserved as the unresolved sentinel and must not
// be returned for a valid target.
type Resolver func(kind metadata.FixupKind, signature []byte) (uint64, error)

// UnresolvableImportError reports that the resolution helper could not
// locate a target for a slot. Fatal to the calling thread: a missing
// target does not become available later, so there is no retry.
type UnresolvableImportError struct {
	Index int
	Err   error
}

func (e *UnresolvableImportError) Error() string {
	return fmt.Sprintf("cannot resolve import slot %d: %v", e.Index, e.Err)
}

func (e *UnresolvableImportError) Unwrap() error { return e.Err }

// Resolve returns the slot's target address, running the resolution
// protocol if the slot is still unresolved.
//
// The protocol is deliberately lock-free. Multiple threads may reach an
// unresolved slot concurrently and each computes the address redundantly;
// because the address is a pure function of the signature, every computed
// value is the correct one, and whichever compare-and-swap wins publishes
// it. A slow resolution never blocks another caller of the same slot from
// making progress through its own attempt. There is no observable
// "resolving" state: a reader sees either zero or the final address.
func (t *Table) Resolve(index int, resolve Resolver) (uint64, error) {
	s := t.slots[index]
	if addr := s.addr.Load(); addr != 0 {
		return addr, nil
	}
	addr, err := resolve(s.Kind, s.Signature)
	if err != nil {
		return 0, &UnresolvableImportError{Index: index, Err: err}
	}
	if addr == 0 {
		return 0, &UnresolvableImportError{Index: index, Err: fmt.Errorf("resolver returned reserved address 0")}
	}
	s.addr.CompareAndSwap(0, addr)
	return s.addr.Load(), nil
}
