// Package tlb implements a software-managed translation lookaside buffer:
// a fixed 64-entry table of (virtual page, physical page, dirty, valid)
// translations, grounded on the original kernel's MIPS-style tlb_read/
// tlb_write/tlb_probe helpers in vm/vm.c and generalized from the
// teacher's PTE flag-constant style in kernel/vmm.go.
package tlb

import (
	"sync"

	"eduvm/internal/vm/mem"
)

// NumEntries is the fixed TLB size (spec.md's NUM_TLB).
const NumEntries = 64

// entry mirrors one hardware TLB row: EntryHi carries the virtual page,
// EntryLo carries the physical page plus the Dirty/Valid bits.
type entry struct {
	hi       mem.VA
	pa       mem.PA
	dirty    bool
	valid    bool
	occupied bool // entry has ever been written; distinguishes a real mapping of page 0 from an empty slot
}

// TLB is the fixed-size software-managed translation cache the fault
// handler installs entries into and the coremap invalidates entries from
// during replacement.
type TLB struct {
	mu         sync.Mutex
	entries    [NumEntries]entry
	nextVictim int
}

// New returns an empty TLB, every entry invalid.
func New() *TLB {
	return &TLB{}
}

// Probe returns the index of the entry mapping vaddr's page, or -1 if none
// exists (valid or not — Probe finds stale entries too, same as the
// original tlb_probe).
func (t *TLB) Probe(vaddr mem.VA) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probeLocked(vaddr)
}

func (t *TLB) probeLocked(vaddr mem.VA) int {
	page := vaddr.Page()
	for i := range t.entries {
		if t.entries[i].occupied && t.entries[i].hi == page {
			return i
		}
	}
	return -1
}

// Read returns the entry at idx: the mapped page, physical frame, and the
// dirty/valid bits.
func (t *TLB) Read(idx int) (vaddr mem.VA, paddr mem.PA, dirty, valid bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[idx]
	return e.hi, e.pa, e.dirty, e.valid
}

// Write installs a translation at idx.
func (t *TLB) Write(idx int, vaddr mem.VA, paddr mem.PA, dirty, valid bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[idx] = entry{hi: vaddr.Page(), pa: paddr, dirty: dirty, valid: valid, occupied: true}
}

// FindFree returns the index of an invalid entry, or -1 if the TLB is full.
func (t *TLB) FindFree() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		if !t.entries[i].valid {
			return i
		}
	}
	return -1
}

// NextVictim returns the next round-robin replacement index and advances
// the hand, the same fixed rotation the original tlb_get_rr_victim uses
// instead of any reference-based policy (the TLB is too small for one to
// pay off).
func (t *TLB) NextVictim() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.nextVictim
	t.nextVictim = (t.nextVictim + 1) % NumEntries
	return v
}

// Evict drops the entry for vaddr entirely, if present: both its mapping
// and its valid bit are cleared, so a future Probe for the same address
// misses outright rather than finding a stale PA.
func (t *TLB) Evict(vaddr mem.VA) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.probeLocked(vaddr)
	if idx < 0 {
		return
	}
	t.entries[idx] = entry{}
}

// Invalidate clears only the valid bit for vaddr's entry, if present,
// preserving the mapped PA so the entry can be re-validated on the next
// soft fault without losing track of which frame it pointed at.
func (t *TLB) Invalidate(vaddr mem.VA) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.probeLocked(vaddr)
	if idx < 0 {
		return
	}
	t.entries[idx].valid = false
}

// InvalidateAll clears the valid bit on every entry, used when activating
// a different address space.
func (t *TLB) InvalidateAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i].valid = false
	}
}

// ShootDown exists only to keep the multi-CPU TLB coherence interface
// visible; a single-CPU software TLB has nothing to shoot down across.
func (t *TLB) ShootDown() {
	panic("tlb: shootdown not implemented")
}
