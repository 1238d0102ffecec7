// Package mem provides the page-size arithmetic, the simulated physical RAM
// frames are copied in and out of, and the interrupt-priority-level
// primitive the TLB and fault handler synchronize with — the substrate
// spec.md §3 calls "opaque 32-bit unsigned integers" for PA/VA, generalized
// from the teacher's page-size constants and volatile-memory helpers in
// kernel/memory.go (PageSize4KB/DefaultPageSize, ReadVolatile*/WriteVolatile*,
// DisableInterrupts/EnableInterrupts/GetInterruptFlag).
package mem

import (
	"sync"
	"unsafe"
)

// PA is a physical address: a byte offset into the simulated RAM arena.
type PA uint32

// VA is a virtual address.
type VA uint32

const (
	// PageShift is log2(PageSize).
	PageShift = 12
	// PageSize is the page size in bytes (4 KiB), per spec.md §3.
	PageSize = 1 << PageShift
)

// Page rounds va down to its containing page-aligned address.
func (va VA) Page() VA { return va &^ (PageSize - 1) }

// Offset returns the byte offset of va within its page.
func (va VA) Offset() uint32 { return uint32(va) & (PageSize - 1) }

// Aligned reports whether va is page-aligned.
func (va VA) Aligned() bool { return va.Offset() == 0 }

// Page rounds pa down to its containing page-aligned address.
func (pa PA) Page() PA { return pa &^ (PageSize - 1) }

// Aligned reports whether pa is page-aligned.
func (pa PA) Aligned() bool { return pa%PageSize == 0 }

// Size is a byte count, spelled out in the units spec.md uses (KiB/MiB).
type Size uint64

const (
	KiB Size = 1 << 10
	MiB Size = 1 << 20
)

// Pages returns the number of whole pages s occupies, rounding up.
func (s Size) Pages() uint32 {
	return uint32((s + PageSize - 1) / PageSize)
}

// RAM is the simulated physical memory frames are allocated from. Physical
// addresses are byte offsets into a single contiguous arena starting at 0;
// the coremap divides it into frames.
type RAM struct {
	buf []byte
}

// NewRAM allocates an arena of the given size, rounded up to a whole number
// of pages.
func NewRAM(size Size) *RAM {
	n := int(size.Pages()) * PageSize
	return &RAM{buf: make([]byte, n)}
}

// Len returns the arena size in bytes.
func (r *RAM) Len() int { return len(r.buf) }

// page returns a fixed-size view of the page at pa, the same
// (*[PageSize]byte)(unsafe.Pointer(...)) cast the teacher uses in
// kernel/vmm.go to zero or copy a frame through a raw address.
func (r *RAM) page(pa PA) *[PageSize]byte {
	if int(pa)+PageSize > len(r.buf) {
		panic("mem: physical address out of range")
	}
	return (*[PageSize]byte)(unsafe.Pointer(&r.buf[pa]))
}

// Zero clears the frame at pa to all zero bytes.
func (r *RAM) Zero(pa PA) {
	p := r.page(pa)
	for i := range p {
		p[i] = 0
	}
}

// CopyIn copies data into the frame at pa, zero-filling the remainder of
// the page. len(data) must be <= PageSize.
func (r *RAM) CopyIn(pa PA, data []byte) {
	if len(data) > PageSize {
		panic("mem: CopyIn data exceeds page size")
	}
	p := r.page(pa)
	n := copy(p[:], data)
	for i := n; i < PageSize; i++ {
		p[i] = 0
	}
}

// CopyOut reads the whole frame at pa into dst, which must be exactly
// PageSize bytes.
func (r *RAM) CopyOut(pa PA, dst []byte) {
	if len(dst) != PageSize {
		panic("mem: CopyOut destination must be exactly one page")
	}
	p := r.page(pa)
	copy(dst, p[:])
}

// Slice returns the live backing bytes of the frame at pa, for callers (the
// swap file) that need a []byte view without copying.
func (r *RAM) Slice(pa PA) []byte {
	p := r.page(pa)
	return p[:]
}

// interrupt-priority-level primitive.
//
// Real OS/161 code brackets TLB manipulation with splhigh()/splx(spl) pairs
// run on a single CPU. This module is exercised by goroutines standing in
// for kernel threads, so the same save/restore idiom is backed by a mutex:
// SplHigh blocks until it owns the section and reports whether interrupts
// were previously enabled; SplX restores that state and releases it.
var (
	intrMu       sync.Mutex
	intrDisabled bool
)

// SplHigh disables interrupts (blocking until the section is free) and
// returns the previous interrupt-enabled state, to be passed to SplX.
func SplHigh() bool {
	intrMu.Lock()
	prevEnabled := !intrDisabled
	intrDisabled = true
	return prevEnabled
}

// SplX restores the interrupt-enabled state returned by a prior SplHigh and
// releases the section.
func SplX(prevEnabled bool) {
	intrDisabled = !prevEnabled
	intrMu.Unlock()
}
