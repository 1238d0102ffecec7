// Package coremap owns every physical RAM frame after boot: it serves
// allocations for user and kernel pages and evicts user frames under
// memory pressure with the enhanced second-chance (clock) algorithm,
// grounded on the original kernel's coremap.c and generalized from the
// teacher's VirtualMemoryManager/PhysicalMemoryManager accounting in
// kernel/vmm.go and kernel/memory.go.
package coremap

import (
	"sync"
	"unsafe"

	vmerrors "eduvm/internal/errors"
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/page"
)

// State is a frame's ownership state.
type State int

const (
	FrameFree State = iota
	FrameUser
	FrameFixed
)

func (s State) String() string {
	switch s {
	case FrameFree:
		return "FREE"
	case FrameUser:
		return "USER"
	case FrameFixed:
		return "FIXED"
	default:
		return "UNKNOWN"
	}
}

// Frame is one physical RAM frame's bookkeeping entry.
type Frame struct {
	state    State
	owner    *page.Page
	used     bool
	modified bool
}

// Swapper is the subset of the swap file the coremap needs to persist a
// victim frame's content before reassigning it.
type Swapper interface {
	Write(pg *page.Page, data []byte) error
}

// TLBInvalidator is the subset of the TLB the coremap needs to keep
// consistent with frame reassignment and reference-bit clearing.
type TLBInvalidator interface {
	Evict(vaddr mem.VA)
	Invalidate(vaddr mem.VA)
}

// Stats is a point-in-time snapshot of coremap occupancy, exposed for the
// demo CLI and tests; it has no effect on allocator behavior.
type Stats struct {
	Free, User, Fixed int
	Evictions         uint64
	Sweep1Hits        uint64
	Sweep2Hits        uint64
	Sweep3Hits        uint64
}

// Coremap is the physical frame allocator and replacement engine.
type Coremap struct {
	mu sync.Mutex

	ram     *mem.RAM
	swapper Swapper
	tlb     TLBInvalidator

	frames []Frame
	// runs maps a kernel allocation's start frame index to its run
	// length, a sidecar table standing in for the original's abuse of a
	// frame's back-pointer slot to stash an integer.
	runs map[int]int

	nextVictim int

	stats Stats
}

// Bootstrap initializes a coremap over the given RAM arena. The first
// frames large enough to hold the coremap's own bookkeeping are reserved
// FIXED, mirroring the original reserving frames for its own struct frame
// array.
func Bootstrap(ram *mem.RAM, swapper Swapper, tlb TLBInvalidator) *Coremap {
	n := ram.Len() / mem.PageSize

	var sample Frame
	descriptorBytes := int(unsafe.Sizeof(sample))
	reserved := (n*descriptorBytes + mem.PageSize - 1) / mem.PageSize

	cm := &Coremap{
		ram:     ram,
		swapper: swapper,
		tlb:     tlb,
		frames:  make([]Frame, n),
		runs:    make(map[int]int),
	}
	for i := 0; i < reserved && i < n; i++ {
		cm.frames[i].state = FrameFixed
	}
	return cm
}

func (cm *Coremap) frameVA(i int) mem.PA { return mem.PA(i * mem.PageSize) }

// advance moves the clock hand forward one frame, wrapping and skipping
// FIXED frames.
func (cm *Coremap) advance() {
	n := len(cm.frames)
	cm.nextVictim++
	if cm.nextVictim >= n {
		cm.nextVictim = 0
	}
	for cm.frames[cm.nextVictim].state == FrameFixed {
		cm.nextVictim++
		if cm.nextVictim >= n {
			cm.nextVictim = 0
		}
	}
}

func (cm *Coremap) populate(idx int, pg *page.Page) {
	cm.frames[idx].state = FrameUser
	cm.frames[idx].owner = pg
	cm.frames[idx].used = true
	cm.frames[idx].modified = false
}

// sweep1 looks for a FREE frame.
func (cm *Coremap) sweep1(pg *page.Page) mem.PA {
	n := len(cm.frames)
	for i := 0; i < n; i++ {
		if cm.frames[cm.nextVictim].state == FrameFree {
			pa := cm.frameVA(cm.nextVictim)
			cm.populate(cm.nextVictim, pg)
			cm.stats.Sweep1Hits++
			cm.advance()
			return pa
		}
		cm.advance()
	}
	return 0
}

// sweep2 looks for a USER frame with used=false, modified=false.
func (cm *Coremap) sweep2(pg *page.Page) mem.PA {
	n := len(cm.frames)
	for i := 0; i < n; i++ {
		f := &cm.frames[cm.nextVictim]
		if f.state == FrameUser && !f.used && !f.modified {
			return cm.evict(pg, 2)
		}
		cm.advance()
	}
	return 0
}

// sweep3 looks for a USER frame with used=false, modified=true, clearing
// reference bits on every frame it passes over (the second-chance step).
func (cm *Coremap) sweep3(pg *page.Page) mem.PA {
	n := len(cm.frames)
	for i := 0; i < n; i++ {
		f := &cm.frames[cm.nextVictim]
		if f.state == FrameUser && !f.used && f.modified {
			return cm.evict(pg, 3)
		}
		if f.state == FrameUser {
			f.used = false
			cm.tlb.Invalidate(f.owner.VAddr)
		}
		cm.advance()
	}
	return 0
}

// evict reassigns the frame currently under the clock hand to pg. The old
// owner's content is written to swap only if it already owns swap rights
// (its swap flag is set, i.e. it has taken a write fault at some point;
// the flag stays set after a reload from swap); a clean page can simply be reloaded from its segment on the
// next fault. cm_lock is released for the duration of any swap write; the
// victim is held FIXED meanwhile so no other allocator can touch it.
func (cm *Coremap) evict(pg *page.Page, sweep int) mem.PA {
	victim := cm.nextVictim
	pa := cm.frameVA(victim)
	old := cm.frames[victim].owner
	old.SetValid(false)

	if old.InSwap() {
		cm.frames[victim].state = FrameFixed

		cm.mu.Unlock()
		data := make([]byte, mem.PageSize)
		cm.ram.CopyOut(pa, data)
		if err := cm.swapper.Write(old, data); err != nil {
			panic(vmerrors.IO(err))
		}
		cm.mu.Lock()
	}

	cm.frames[victim].state = FrameUser
	cm.populate(victim, pg)
	old.PAddr = 0

	cm.tlb.Evict(old.VAddr)

	cm.stats.Evictions++
	switch sweep {
	case 2:
		cm.stats.Sweep2Hits++
	case 3:
		cm.stats.Sweep3Hits++
	}
	cm.advance()
	return pa
}

// AllocUserFrame returns a physical frame for pg, evicting another user
// page if necessary. It panics if three sweeps make no progress, which
// the algorithm guarantees cannot happen as long as at least one USER or
// FREE frame exists.
func (cm *Coremap) AllocUserFrame(pg *page.Page) mem.PA {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if pa := cm.sweep1(pg); pa != 0 {
		return pa
	}

	for runs := 0; runs < 3; runs++ {
		if pa := cm.sweep2(pg); pa != 0 {
			return pa
		}
		if pa := cm.sweep3(pg); pa != 0 {
			return pa
		}
	}
	panic("coremap: three sweeps made no progress")
}

// AllocKernelFrames allocates npages contiguous FREE frames and marks them
// FIXED, never evicting user pages. It returns 0 if no contiguous run of
// that length exists.
func (cm *Coremap) AllocKernelFrames(npages int) mem.PA {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	n := len(cm.frames)
	run := 0
	for i := 0; i < n; i++ {
		if cm.frames[i].state == FrameFree {
			run++
			if run == npages {
				start := i - (npages - 1)
				for j := start; j <= i; j++ {
					cm.frames[j].state = FrameFixed
				}
				cm.runs[start] = npages
				return cm.frameVA(start)
			}
		} else {
			run = 0
		}
	}
	return 0
}

// FreeKernelFrames releases a run previously returned by
// AllocKernelFrames, reading back the stored run length.
func (cm *Coremap) FreeKernelFrames(pa mem.PA) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	start := int(pa) / mem.PageSize
	npages, ok := cm.runs[start]
	if !ok {
		panic("coremap: free of unknown kernel frame run")
	}
	delete(cm.runs, start)
	for i := start; i < start+npages; i++ {
		cm.frames[i].state = FrameFree
		cm.frames[i].owner = nil
	}
}

// SetUsed marks the frame at pa's reference bit, called by the fault
// handler on a soft fault.
func (cm *Coremap) SetUsed(pa mem.PA) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.frames[int(pa)/mem.PageSize].used = true
}

// SetModified marks the frame at pa dirty, called by the fault handler on
// a write fault.
func (cm *Coremap) SetModified(pa mem.PA) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.frames[int(pa)/mem.PageSize].modified = true
}

// ZeroFrame resets the frame at pa to FREE with no owner, called by the
// page table destructor.
func (cm *Coremap) ZeroFrame(pa mem.PA) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	idx := int(pa) / mem.PageSize
	cm.frames[idx].state = FrameFree
	cm.frames[idx].owner = nil
	cm.frames[idx].used = false
	cm.frames[idx].modified = false
	cm.ram.Zero(pa)
}

// Stats returns a snapshot of current frame occupancy and eviction
// counters.
func (cm *Coremap) Stats() Stats {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	snap := cm.stats
	for _, f := range cm.frames {
		switch f.state {
		case FrameFree:
			snap.Free++
		case FrameUser:
			snap.User++
		case FrameFixed:
			snap.Fixed++
		}
	}
	return snap
}
