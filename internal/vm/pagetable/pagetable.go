// Package pagetable implements the per-address-space page table: three
// fixed regions (text, data, stack), each a contiguous array of page
// descriptors, grounded on the original kernel's pt.c/pt.h.
package pagetable

import (
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/page"
)

// Region indices, in the fixed order the original assigns them.
const (
	RegionText = iota
	RegionData
	RegionStack

	numRegions
)

// MaxStackPages is the fixed stack size in pages (spec.md's MAX_STACK_SIZE).
const MaxStackPages = 12

// Bounds describes the page-aligned VA range a region covers.
type Bounds struct {
	Base  mem.VA
	Pages int
}

type region struct {
	base  mem.VA
	pages []page.Page
}

func newRegion(b Bounds) region {
	r := region{base: b.Base, pages: make([]page.Page, b.Pages)}
	for i := range r.pages {
		r.pages[i] = *page.New(b.Base + mem.VA(i*mem.PageSize))
	}
	return r
}

func (r region) contains(va mem.VA) bool {
	if len(r.pages) == 0 {
		return false
	}
	aligned := va.Page()
	end := r.base + mem.VA(len(r.pages)*mem.PageSize)
	return aligned >= r.base && aligned < end
}

func (r *region) find(va mem.VA) *page.Page {
	idx := int((va.Page() - r.base) / mem.PageSize)
	return &r.pages[idx]
}

// PageTable maps virtual addresses within an address space's three
// regions to their owning page descriptor.
type PageTable struct {
	regions [numRegions]region
}

// Create builds a page table for the given text and data segment bounds,
// plus a fixed-size stack region ending at userStack. Callers are
// responsible for having validated that exactly two segments (text, data)
// were defined before calling this.
func Create(text, data Bounds, userStack mem.VA) *PageTable {
	pt := &PageTable{}
	pt.regions[RegionText] = newRegion(text)
	pt.regions[RegionData] = newRegion(data)
	stackBase := userStack - mem.VA(MaxStackPages*mem.PageSize)
	pt.regions[RegionStack] = newRegion(Bounds{Base: stackBase, Pages: MaxStackPages})
	return pt
}

// Find returns the page descriptor owning va, or nil if va falls outside
// every region.
func (pt *PageTable) Find(va mem.VA) *page.Page {
	for i := range pt.regions {
		if pt.regions[i].contains(va) {
			return pt.regions[i].find(va)
		}
	}
	return nil
}

// All returns every page descriptor across all three regions, in a
// stable order. Two page tables built from identical bounds produce the
// same order, which address space fork relies on to zip corresponding
// pages between a source and destination page table.
func (pt *PageTable) All() []*page.Page {
	var out []*page.Page
	for i := range pt.regions {
		for j := range pt.regions[i].pages {
			out = append(out, &pt.regions[i].pages[j])
		}
	}
	return out
}

// FrameReclaimer is the subset of the coremap the page table destructor
// needs to return a page's frame to the free pool.
type FrameReclaimer interface {
	ZeroFrame(pa mem.PA)
}

// TLBInvalidator is the subset of the TLB the page table destructor needs
// to drop stale entries for pages it is tearing down.
type TLBInvalidator interface {
	Evict(vaddr mem.VA)
}

// Destroy walks every region, evicting any live TLB entry and reclaiming
// any live frame before the page table's arrays are dropped.
func (pt *PageTable) Destroy(frames FrameReclaimer, tlb TLBInvalidator) {
	for i := range pt.regions {
		for j := range pt.regions[i].pages {
			pg := &pt.regions[i].pages[j]
			if pg.VAddr != 0 {
				tlb.Evict(pg.VAddr)
			}
			if pg.PAddr != 0 {
				frames.ZeroFrame(pg.PAddr)
			}
		}
		pt.regions[i].pages = nil
	}
}
