// Package vmstat holds the VM-wide fault/IO counters spec.md §6 names, a
// single shared instance standing in for the original kernel's one global
// uw-vmstats counter array. The coremap, swap file, address space, and
// fault handler all increment into the same *Counters, exactly as every
// vmstats_inc() call site in the original source reaches the same global.
package vmstat

import "sync/atomic"

// Counters is ten independent atomic counters, one per VMSTAT_* name.
type Counters struct {
	tlbFault        uint64
	tlbFaultFree    uint64
	tlbFaultReplace uint64
	tlbInvalidate   uint64
	tlbReload       uint64
	pageFaultZero   uint64
	pageFaultDisk   uint64
	elfFileRead     uint64
	swapFileRead    uint64
	swapFileWrite   uint64
}

// Every Inc method tolerates a nil receiver: collaborators hold a
// *Counters that is nil until something wires one in (addrspace.SetStats,
// swap.SetStats), so tests that don't care about counters need not
// construct one.
func (c *Counters) IncTLBFault() {
	if c != nil {
		atomic.AddUint64(&c.tlbFault, 1)
	}
}
func (c *Counters) IncTLBFaultFree() {
	if c != nil {
		atomic.AddUint64(&c.tlbFaultFree, 1)
	}
}
func (c *Counters) IncTLBFaultReplace() {
	if c != nil {
		atomic.AddUint64(&c.tlbFaultReplace, 1)
	}
}
func (c *Counters) IncTLBInvalidate() {
	if c != nil {
		atomic.AddUint64(&c.tlbInvalidate, 1)
	}
}
func (c *Counters) IncTLBReload() {
	if c != nil {
		atomic.AddUint64(&c.tlbReload, 1)
	}
}
func (c *Counters) IncPageFaultZero() {
	if c != nil {
		atomic.AddUint64(&c.pageFaultZero, 1)
	}
}
func (c *Counters) IncPageFaultDisk() {
	if c != nil {
		atomic.AddUint64(&c.pageFaultDisk, 1)
	}
}
func (c *Counters) IncELFFileRead() {
	if c != nil {
		atomic.AddUint64(&c.elfFileRead, 1)
	}
}
func (c *Counters) IncSwapFileRead() {
	if c != nil {
		atomic.AddUint64(&c.swapFileRead, 1)
	}
}
func (c *Counters) IncSwapFileWrite() {
	if c != nil {
		atomic.AddUint64(&c.swapFileWrite, 1)
	}
}

// Snapshot is a point-in-time copy of every counter, safe to read without
// racing further increments.
type Snapshot struct {
	TLBFault        uint64
	TLBFaultFree    uint64
	TLBFaultReplace uint64
	TLBInvalidate   uint64
	TLBReload       uint64
	PageFaultZero   uint64
	PageFaultDisk   uint64
	ELFFileRead     uint64
	SwapFileRead    uint64
	SwapFileWrite   uint64
}

// Snapshot reads every counter atomically and returns their current values.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		TLBFault:        atomic.LoadUint64(&c.tlbFault),
		TLBFaultFree:    atomic.LoadUint64(&c.tlbFaultFree),
		TLBFaultReplace: atomic.LoadUint64(&c.tlbFaultReplace),
		TLBInvalidate:   atomic.LoadUint64(&c.tlbInvalidate),
		TLBReload:       atomic.LoadUint64(&c.tlbReload),
		PageFaultZero:   atomic.LoadUint64(&c.pageFaultZero),
		PageFaultDisk:   atomic.LoadUint64(&c.pageFaultDisk),
		ELFFileRead:     atomic.LoadUint64(&c.elfFileRead),
		SwapFileRead:    atomic.LoadUint64(&c.swapFileRead),
		SwapFileWrite:   atomic.LoadUint64(&c.swapFileWrite),
	}
}
