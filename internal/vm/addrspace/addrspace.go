// Package addrspace implements the per-process address space: segment
// descriptors, the page table, and on-demand loading from an ELF-style
// executable, grounded on the original kernel's addrspace.c/addrspace.h
// and the teacher's CreateAddressSpace conventions in kernel/vmm.go.
package addrspace

import (
	"sync"

	vmerrors "eduvm/internal/errors"
	"eduvm/internal/vm/coremap"
	"eduvm/internal/vm/flags"
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/page"
	"eduvm/internal/vm/pagetable"
	"eduvm/internal/vm/swap"
	"eduvm/internal/vm/vmstat"
)

// UserStackTop is the fixed top of the user stack region (OS/161's
// USERSTACK), one byte past the last valid stack address.
const UserStackTop mem.VA = 0x80000000

// ELFReader is the external collaborator an address space loads on-demand
// segment content from: the vnode of the process's executable, read by
// offset (spec §6's read_at(vnode, offset, buf, len)).
type ELFReader interface {
	ReadAt(offset int64, buf []byte) error
}

// TLB is the subset of the software TLB an address space needs: dropping
// a single stale entry (page table destruction) and invalidating every
// entry (activation on a context switch).
type TLB interface {
	Evict(vaddr mem.VA)
	Invalidate(vaddr mem.VA)
	InvalidateAll()
}

// Segment is one region of the address space backed (wholly or partly) by
// the process's executable: the page-aligned base and rounded page count
// used for containment checks, plus the unrounded file size and offset
// used to decide how many bytes to actually read versus zero-fill.
type Segment struct {
	Base       mem.VA
	Pages      int
	FileOffset int64
	FileSize   uint32
	Flags      flags.Set
}

func (s Segment) contains(va mem.VA) bool {
	return va >= s.Base && va < s.Base+mem.VA(s.Pages*mem.PageSize)
}

func segmentBounds(s Segment) pagetable.Bounds {
	return pagetable.Bounds{Base: s.Base, Pages: s.Pages}
}

// AddressSpace holds a process's segment descriptors, its page table,
// and the collaborators (coremap, swap file, TLB, executable) needed to
// resolve a fault.
type AddressSpace struct {
	mu sync.Mutex

	segments   []Segment
	pt         *pagetable.PageTable
	stackPages int

	ram     *mem.RAM
	frames  *coremap.Coremap
	swapper *swap.SwapFile
	tlb     TLB
	elf     ELFReader
	stats   *vmstat.Counters
}

// SetStats wires the shared VM-wide counters into the address space, so
// page-in activity (ELF reads, swap reads, zero-fills) and TLB
// invalidation on activate are reflected in vmstat.Counters.
func (as *AddressSpace) SetStats(stats *vmstat.Counters) { as.stats = stats }

var (
	activeMu   sync.Mutex
	lastActive *AddressSpace
)

// Create returns an empty address space: no segments, no page table, no
// stack.
func Create(ram *mem.RAM, frames *coremap.Coremap, swapper *swap.SwapFile, tlb TLB, elf ELFReader) *AddressSpace {
	return &AddressSpace{ram: ram, frames: frames, swapper: swapper, tlb: tlb, elf: elf}
}

// DefineRegion appends a segment. vaddr must be page-aligned; sz may be
// unaligned and is rounded up to whole pages for containment purposes;
// filesz is the unrounded byte count that drives how much of the last
// page is real file content versus zero-fill.
func (as *AddressSpace) DefineRegion(vaddr mem.VA, sz uint32, readable, writeable, executable bool, fileOffset int64, filesz uint32) error {
	if !vaddr.Aligned() {
		return vmerrors.Invalid("addrspace: region base 0x%x is not page-aligned", vaddr)
	}
	as.mu.Lock()
	defer as.mu.Unlock()

	npages := mem.Size(sz).Pages()
	var f flags.Set
	if readable {
		f = f.With(flags.Readable)
	}
	if writeable {
		f = f.With(flags.Writeable)
	}
	if executable {
		f = f.With(flags.Executable)
	}
	as.segments = append(as.segments, Segment{
		Base:       vaddr,
		Pages:      int(npages),
		FileOffset: fileOffset,
		FileSize:   filesz,
		Flags:      f,
	})
	return nil
}

// PrepareLoad builds the page table from the defined segments. Exactly
// two segments (text, data) must have been defined.
func (as *AddressSpace) PrepareLoad() error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if len(as.segments) != 2 {
		return vmerrors.Invalid("addrspace: prepare_load requires exactly two segments, got %d", len(as.segments))
	}
	as.pt = pagetable.Create(segmentBounds(as.segments[0]), segmentBounds(as.segments[1]), UserStackTop)
	return nil
}

// CompleteLoad is a no-op: loading is on-demand.
func (as *AddressSpace) CompleteLoad() error { return nil }

// DefineStack fixes the stack to its maximum size and returns the initial
// stack pointer.
func (as *AddressSpace) DefineStack() (mem.VA, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.stackPages = pagetable.MaxStackPages
	return UserStackTop, nil
}

// Activate makes this address space the one the TLB reflects. If it was
// already the last-activated address space, this is a no-op: stale TLB
// entries can only exist if some other address space ran in between.
func (as *AddressSpace) Activate() {
	activeMu.Lock()
	defer activeMu.Unlock()
	if as == lastActive {
		return
	}
	prevEnabled := mem.SplHigh()
	as.tlb.InvalidateAll()
	as.stats.IncTLBInvalidate()
	mem.SplX(prevEnabled)
	lastActive = as
}

// Destroy tears down the page table, if one was built, and drops the
// segment list.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.pt != nil {
		as.pt.Destroy(as.frames, as.tlb)
		as.pt = nil
	}
	as.segments = nil

	activeMu.Lock()
	if lastActive == as {
		lastActive = nil
	}
	activeMu.Unlock()
}

// Locate reports where vaddr falls: inSegment is true if a defined
// segment contains it, with textSegment true when that segment is not
// writeable (the fault handler's "is_text_segment" check); inStack is
// true if vaddr instead falls within the fixed stack region. A vaddr
// outside both is outside the address space entirely.
func (as *AddressSpace) Locate(vaddr mem.VA) (inSegment, textSegment, inStack bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	for _, seg := range as.segments {
		if seg.contains(vaddr) {
			inSegment = true
			textSegment = !seg.Flags.Has(flags.Writeable)
			return
		}
	}
	if as.pt == nil {
		return
	}
	stackBase := UserStackTop - mem.VA(pagetable.MaxStackPages*mem.PageSize)
	inStack = vaddr >= stackBase && vaddr < UserStackTop
	return
}

// GetPage locates the page descriptor owning vaddr. If it has no frame
// yet, one is allocated via the coremap and the page is marked valid;
// needsLoad reports whether the caller must still materialize its
// content (false only when the page was already resident).
func (as *AddressSpace) GetPage(vaddr mem.VA) (pg *page.Page, needsLoad bool) {
	as.mu.Lock()
	defer as.mu.Unlock()

	pg = as.pt.Find(vaddr)
	if pg == nil || !pg.Valid() {
		needsLoad = true
	}
	if pg == nil {
		return nil, needsLoad
	}
	if !pg.Valid() {
		pa := as.frames.AllocUserFrame(pg)
		pg.PAddr = pa
		pg.SetValid(true)
	}
	return pg, needsLoad
}

// LoadPage materializes pg's content: from its swap slot if it has one,
// else from the segment containing its address (copying the real bytes
// and zero-filling the rest of the page), else zero-filling the whole
// page (e.g. a fresh stack page).
func (as *AddressSpace) LoadPage(pg *page.Page) error {
	if pg.InSwap() {
		buf := make([]byte, mem.PageSize)
		if err := as.swapper.Load(pg, buf); err != nil {
			return err
		}
		as.ram.CopyIn(pg.PAddr, buf)
		as.stats.IncSwapFileRead()
		as.stats.IncPageFaultDisk()
		return nil
	}

	as.mu.Lock()
	segs := as.segments
	as.mu.Unlock()

	for _, seg := range segs {
		if !seg.contains(pg.VAddr) {
			continue
		}
		off := int64(pg.VAddr - seg.Base)
		length := int64(seg.FileSize) - off
		if length < 0 {
			length = 0
		}
		if length > mem.PageSize {
			length = mem.PageSize
		}
		if length == 0 {
			as.ram.Zero(pg.PAddr)
			as.stats.IncPageFaultZero()
			return nil
		}
		buf := make([]byte, length)
		if err := as.elf.ReadAt(seg.FileOffset+off, buf); err != nil {
			return vmerrors.IO(err)
		}
		as.ram.CopyIn(pg.PAddr, buf)
		as.stats.IncELFFileRead()
		as.stats.IncPageFaultDisk()
		return nil
	}

	as.ram.Zero(pg.PAddr)
	as.stats.IncPageFaultZero()
	return nil
}

// Copy returns a deep copy of as: every segment is duplicated, a fresh
// page table is built, and every resident or swap-resident source page
// is materialized into its own independent destination frame. A copy
// never shares a source page's swap slot (invariant: a slot has exactly
// one owner at a time); swap-resident pages are read into the copy and
// left fully resident there instead.
func (as *AddressSpace) Copy() (*AddressSpace, error) {
	as.mu.Lock()
	segments := append([]Segment(nil), as.segments...)
	hadPT := as.pt != nil
	stackPages := as.stackPages
	as.mu.Unlock()

	dst := Create(as.ram, as.frames, as.swapper, as.tlb, as.elf)
	dst.segments = segments
	dst.stackPages = stackPages

	if !hadPT {
		return dst, nil
	}
	if err := dst.PrepareLoad(); err != nil {
		return nil, err
	}

	srcPages := as.pt.All()
	dstPages := dst.pt.All()
	for i, srcPg := range srcPages {
		dstPg := dstPages[i]
		switch {
		case srcPg.Valid():
			pa := dst.frames.AllocUserFrame(dstPg)
			dstPg.PAddr = pa
			dstPg.SetValid(true)
			buf := make([]byte, mem.PageSize)
			as.ram.CopyOut(srcPg.PAddr, buf)
			dst.ram.CopyIn(pa, buf)
		case srcPg.InSwap():
			pa := dst.frames.AllocUserFrame(dstPg)
			dstPg.PAddr = pa
			dstPg.SetValid(true)
			buf := make([]byte, mem.PageSize)
			if err := as.swapper.Peek(srcPg.Slot, buf); err != nil {
				return nil, err
			}
			dst.ram.CopyIn(pa, buf)
		}
	}
	return dst, nil
}
