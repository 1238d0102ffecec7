// Package page defines the page descriptor shared by the page table, the
// coremap, and the swap file: the mapping of one virtual page to its
// physical frame (if resident) or swap slot (if not), generalized from the
// original kernel's struct page (pg_paddr/pg_vaddr/pg_offset/pg_flags).
package page

import (
	"eduvm/internal/vm/flags"
	"eduvm/internal/vm/mem"
)

// NoSlot marks a page with no swap slot assigned.
const NoSlot = -1

// Page is the mapping of a single virtual page to its current physical
// frame and, while its content is held in the swap file, its slot there.
// A page is reachable from exactly one page table entry; the coremap's
// frame descriptors hold a back-pointer to it instead of duplicating the
// mapping.
//
// Page carries no lock of its own: callers that mutate a page reachable
// from the coremap do so under the coremap's lock, mirroring the original
// kernel's single cm_lock guarding both frame and page state during
// eviction.
type Page struct {
	VAddr mem.VA
	PAddr mem.PA

	// Slot is the swap file slot this page's content lives in, or NoSlot
	// if it holds none: it was never written to swap, or its slot was
	// released when the content was loaded back into RAM.
	Slot int

	Flags flags.Set
}

// New returns a page for vaddr with no frame and no swap slot assigned.
func New(vaddr mem.VA) *Page {
	return &Page{VAddr: vaddr, Slot: NoSlot}
}

// Valid reports whether the page currently has a live frame mapping.
func (p *Page) Valid() bool { return p.Flags.Has(flags.Valid) }

// SetValid marks the page resident or non-resident.
func (p *Page) SetValid(v bool) {
	if v {
		p.Flags = p.Flags.With(flags.Valid)
	} else {
		p.Flags = p.Flags.Without(flags.Valid)
	}
}

// InSwap reports whether the page owns swap rights: it has taken a write
// fault, so evicting it writes its content to a swap slot, and a
// non-resident page with the flag set is reloaded from Slot. The flag
// stays set after the page is loaded back from swap.
func (p *Page) InSwap() bool { return p.Flags.Has(flags.Swap) }

// SetInSwap sets or clears the page's swap-rights flag.
func (p *Page) SetInSwap(v bool) {
	if v {
		p.Flags = p.Flags.With(flags.Swap)
	} else {
		p.Flags = p.Flags.Without(flags.Swap)
	}
}
