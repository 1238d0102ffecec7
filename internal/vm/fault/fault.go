// Package fault implements the demand-paging fault handler: the single
// state machine every TLB-miss, TLB-invalid, and read-only trap funnels
// into, grounded on the original kernel's vm_fault (original_source/vm/vm.c)
// and generalized from the teacher's AdvancedPageFaultHandler/
// PageFaultStats shape in kernel/vmm.go.
package fault

import (
	"fmt"

	"golang.org/x/sync/singleflight"

	vmerrors "eduvm/internal/errors"
	"eduvm/internal/vfs"
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/page"
	"eduvm/internal/vm/vmstat"
)

// Type identifies which of the three hardware trap vectors raised a
// fault.
type Type int

const (
	Read Type = iota
	Write
	ReadOnly
)

func (t Type) String() string {
	switch t {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case ReadOnly:
		return "READONLY"
	default:
		return "UNKNOWN"
	}
}

// AddressSpace is the subset of addrspace.AddressSpace the fault handler
// drives: locating a faulting address, materializing its page descriptor,
// and loading content on first touch.
type AddressSpace interface {
	Locate(vaddr mem.VA) (inSegment, textSegment, inStack bool)
	GetPage(vaddr mem.VA) (pg *page.Page, needsLoad bool)
	LoadPage(pg *page.Page) error
}

// Coremap is the subset of coremap.Coremap the fault handler needs to
// update a frame's reference/dirty bits on a soft fault.
type Coremap interface {
	SetUsed(pa mem.PA)
	SetModified(pa mem.PA)
}

// TLB is the subset of tlb.TLB the fault handler reads and writes entries
// on.
type TLB interface {
	Probe(vaddr mem.VA) int
	Read(idx int) (vaddr mem.VA, paddr mem.PA, dirty, valid bool)
	Write(idx int, vaddr mem.VA, paddr mem.PA, dirty, valid bool)
	FindFree() int
	NextVictim() int
}

// ProcessContext is the reduced external "process" collaborator spec §6
// names: the two fields vm_fault actually touches, the current address
// space and the vnode of the loaded executable. Prog is carried only for
// parity with the original's p_prog field — the address space's own
// ELFReader, bound at addrspace.Create time, is what LoadPage actually
// reads through.
type ProcessContext struct {
	AddressSpace AddressSpace
	Prog         vfs.File
}

// Handler dispatches VMFault calls, keeping the TLB consistent with page
// residency and driving the address-space/coremap collaborators.
type Handler struct {
	tlb    TLB
	frames Coremap
	stats  *vmstat.Counters

	sf singleflight.Group
}

// New returns a fault handler wired to the given TLB, coremap, and the
// shared VM-wide counters.
func New(t TLB, frames Coremap, stats *vmstat.Counters) *Handler {
	return &Handler{tlb: t, frames: frames, stats: stats}
}

// Stats returns a point-in-time snapshot of the shared VMSTAT counters.
func (h *Handler) Stats() vmstat.Snapshot { return h.stats.Snapshot() }

// VMFault resolves a single hardware fault of the given type at
// faultaddr, on behalf of proc. It returns a *errors.VMError
// (EFAULT/ENOMEM) on failure, or a wrapped I/O error surfaced from the
// page-in path.
//
// Concurrent faults for the same (address space, page) collapse through
// a singleflight.Group: only one goroutine actually walks the coremap and
// TLB for a given key at a time, and every caller observes that single
// resolution's outcome. Preemptive threads share their process's address
// space (spec §5), so two threads touching the same not-yet-resident page
// at once must not double-allocate a frame or issue two swap reads for
// the same slot; the original single-threaded kernel has no need for
// this, but nothing in spec §1's scope excludes it.
func (h *Handler) VMFault(ft Type, faultaddr mem.VA, proc ProcessContext) error {
	if proc.AddressSpace == nil {
		return vmerrors.Fault("fault: process has no address space")
	}
	va := faultaddr.Page()

	key := fmt.Sprintf("%p:%d", proc.AddressSpace, va)
	_, err, _ := h.sf.Do(key, func() (interface{}, error) {
		return nil, h.resolve(ft, va, proc.AddressSpace)
	})
	return err
}

// resolve implements the body of the state machine (spec §4.5, steps
// 2-9) once the caller's process/address-space check has passed.
func (h *Handler) resolve(ft Type, va mem.VA, as AddressSpace) error {
	inSegment, textSegment, inStack := as.Locate(va)
	if !inSegment && !inStack {
		return vmerrors.Fault("fault: 0x%x is outside every segment and the stack", va)
	}

	// Checked before any frame is allocated: a write to .text must never
	// cost a frame, whether this is the first touch (hard miss) or a
	// previously-resident page whose TLB entry lapsed (soft fault).
	if (ft == Write || ft == ReadOnly) && textSegment {
		return vmerrors.Fault("fault: write to read-only text segment at 0x%x", va)
	}

	pg, needsLoad := as.GetPage(va)
	if pg == nil {
		return vmerrors.NoMemory("fault: page table has no entry for 0x%x", va)
	}

	if idx := h.tlb.Probe(va); idx >= 0 && !needsLoad {
		return h.soft(ft, idx, pg)
	}
	return h.hard(ft, va, pg, needsLoad, as)
}

// soft resolves a fault where the page is already resident and the TLB
// still holds an entry for it (missing VALID, or stale DIRTY): no I/O,
// just reference/dirty-bit bookkeeping and reinstalling the entry.
func (h *Handler) soft(ft Type, idx int, pg *page.Page) error {
	prevEnabled := mem.SplHigh()
	defer mem.SplX(prevEnabled)

	_, _, dirty, _ := h.tlb.Read(idx)
	if ft == ReadOnly || ft == Write {
		h.frames.SetModified(pg.PAddr)
		pg.SetInSwap(true)
		dirty = true
	}

	h.frames.SetUsed(pg.PAddr)
	h.tlb.Write(idx, pg.VAddr, pg.PAddr, dirty, true)
	return nil
}

// hard resolves a fault where the page still needs loading or the TLB
// holds no entry for it:
// install a slot (free if one exists, else the round-robin victim), load
// content on first touch, then overwrite the entry with neither DIRTY nor
// VALID set so the very next access — a plain read — takes one more soft
// fault to correctly establish the reference bit (step 9).
func (h *Handler) hard(ft Type, va mem.VA, pg *page.Page, needsLoad bool, as AddressSpace) error {
	h.stats.IncTLBFault()

	prevEnabled := mem.SplHigh()
	idx := h.tlb.FindFree()
	if idx >= 0 {
		h.stats.IncTLBFaultFree()
	} else {
		idx = h.tlb.NextVictim()
		h.stats.IncTLBFaultReplace()
	}
	h.tlb.Write(idx, va, pg.PAddr, true, true)
	mem.SplX(prevEnabled)

	if needsLoad {
		if err := as.LoadPage(pg); err != nil {
			return err
		}
	} else {
		h.stats.IncTLBReload()
	}

	prevEnabled = mem.SplHigh()
	h.tlb.Write(idx, va, pg.PAddr, false, false)
	mem.SplX(prevEnabled)
	return nil
}
