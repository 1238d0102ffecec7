// Package swap implements the fixed-size swap file: a bounded pool of
// on-disk page slots with one-page I/O, grounded on the original kernel's
// swapfile.c and adapted to the teacher's lock/spinlock-for-bookkeeping,
// blocking-lock-for-I/O split seen in kernel/vmm.go.
package swap

import (
	"sync"

	vmerrors "eduvm/internal/errors"
	"eduvm/internal/vfs"
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/page"
	"eduvm/internal/vm/vmstat"
)

const (
	// FileSize is the fixed swap file size (9 MiB), per spec.
	FileSize = 9 * mem.MiB
	// NumSlots is the number of page-sized slots FileSize holds.
	NumSlots = int(FileSize) / mem.PageSize

	defaultPath = "/swapfile"
)

// SwapFile is a fixed-size on-disk pool of page slots.
type SwapFile struct {
	bookkeeping sync.Mutex // guards free and next, the "spinlock" in spec terms
	io          sync.Mutex // serializes all I/O to the swap vnode

	file  vfs.File
	free  []int
	next  int
	stats *vmstat.Counters
}

// SetStats wires the shared VM-wide counters into the swap file, so every
// persisted write is reflected in vmstat.Counters.SwapFileWrite.
func (s *SwapFile) SetStats(stats *vmstat.Counters) { s.stats = stats }

// Bootstrap opens (creating and truncating) the swap file at path within
// fsys. Called once at VM bootstrap, after the filesystem is usable.
func Bootstrap(fsys vfs.FileSystem, path string) (*SwapFile, error) {
	if path == "" {
		path = defaultPath
	}
	f, err := fsys.Create(path)
	if err != nil {
		return nil, vmerrors.IO(err)
	}
	return &SwapFile{file: f}, nil
}

// alloc assigns pg a free slot: pops the free stack if non-empty, else
// advances the high-water mark. Panics if the file is exhausted, matching
// the original's "out of swap space" panic.
func (s *SwapFile) alloc(pg *page.Page) int {
	s.bookkeeping.Lock()
	defer s.bookkeeping.Unlock()

	if n := len(s.free); n > 0 {
		idx := s.free[n-1]
		s.free = s.free[:n-1]
		pg.Slot = idx
		return idx
	}
	if s.next < NumSlots {
		idx := s.next
		s.next++
		pg.Slot = idx
		return idx
	}
	panic("swap: out of swap space")
}

// release returns idx to the free stack and clears pg's slot.
func (s *SwapFile) release(idx int, pg *page.Page) {
	s.bookkeeping.Lock()
	defer s.bookkeeping.Unlock()
	s.free = append(s.free, idx)
	pg.Slot = page.NoSlot
}

// Write persists one page's worth of data to a freshly allocated slot.
// The caller must have already decided pg owns swap rights; pg must not
// already hold a slot. On I/O failure the slot is returned to the free
// list and the error is returned to the caller (the original kernel
// panics here; this implementation returns it, and the coremap's
// eviction path, its one caller, panics on it).
func (s *SwapFile) Write(pg *page.Page, data []byte) error {
	if pg.Slot != page.NoSlot {
		panic("swap: write of a page that already owns a slot")
	}
	idx := s.alloc(pg)
	s.stats.IncSwapFileWrite()

	s.io.Lock()
	defer s.io.Unlock()

	if err := writeAt(s.file, idx, data); err != nil {
		s.release(idx, pg)
		return vmerrors.IO(err)
	}
	pg.SetInSwap(true)
	return nil
}

// Load reads pg's slot content into dst, then releases the slot: the
// authoritative copy is now in RAM. On failure the slot remains assigned
// so a retry can find it again.
func (s *SwapFile) Load(pg *page.Page, dst []byte) error {
	if pg.Slot == page.NoSlot {
		return vmerrors.Invalid("swap: load of a page with no slot")
	}
	idx := pg.Slot

	s.io.Lock()
	defer s.io.Unlock()

	if err := readAt(s.file, idx, dst); err != nil {
		return vmerrors.IO(err)
	}
	s.release(idx, pg)
	return nil
}

// Peek reads a slot's content without releasing it, for address space
// fork: the source page keeps owning its slot while the destination gets
// its own independent resident copy (invariant: a slot has exactly one
// owner at a time).
func (s *SwapFile) Peek(slot int, dst []byte) error {
	s.io.Lock()
	defer s.io.Unlock()
	if err := readAt(s.file, slot, dst); err != nil {
		return vmerrors.IO(err)
	}
	return nil
}
