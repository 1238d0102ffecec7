package main

import (
	"bytes"
	"fmt"

	"eduvm/internal/vm/addrspace"
	"eduvm/internal/vm/fault"
	"eduvm/internal/vm/mem"
)

// scenario is one of the lettered end-to-end walkthroughs from spec §8,
// each driving a fresh address space through the shared system.
type scenario struct {
	name string
	desc string
	run  func(*system) error
}

var scenarios = []scenario{
	{"A", "first touch zero-fills past real ELF content", scenarioA},
	{"B", "a write to .text is rejected", scenarioB},
	{"C", "a soft-fault write dirties an already-resident page", scenarioC},
	{"D", "eviction round-trips a dirty page through swap", scenarioD},
	{"E", "a stack fault zero-fills without touching the ELF reader", scenarioE},
	{"F", "an address outside any region faults", scenarioF},
}

func scenarioA(sys *system) error {
	as, err := sys.newProcess()
	if err != nil {
		return err
	}
	if err := sys.h.VMFault(fault.Read, 0x10000010, fault.ProcessContext{AddressSpace: as}); err != nil {
		return fmt.Errorf("fault: %w", err)
	}
	pg, needsLoad := as.GetPage(0x10000000)
	if needsLoad {
		return fmt.Errorf("page not resident after fault")
	}
	got := make([]byte, mem.PageSize)
	sys.ram.CopyOut(pg.PAddr, got)
	want := make([]byte, mem.PageSize)
	for i := 0; i < 0x100; i++ {
		want[i] = 0xBB
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("frame content did not match expected ELF+zero-fill layout")
	}
	return nil
}

func scenarioB(sys *system) error {
	as, err := sys.newProcess()
	if err != nil {
		return err
	}
	if err := sys.h.VMFault(fault.Write, 0x00400004, fault.ProcessContext{AddressSpace: as}); err == nil {
		return fmt.Errorf("expected EFAULT writing to .text, got nil")
	}
	return nil
}

func scenarioC(sys *system) error {
	as, err := sys.newProcess()
	if err != nil {
		return err
	}
	proc := fault.ProcessContext{AddressSpace: as}
	if err := sys.h.VMFault(fault.Read, 0x10000000, proc); err != nil {
		return err
	}
	if err := sys.h.VMFault(fault.Write, 0x10000000, proc); err != nil {
		return err
	}
	pg, _ := as.GetPage(0x10000000)
	if !pg.InSwap() {
		return fmt.Errorf("expected the page to own swap rights after a write soft fault")
	}
	return nil
}

func scenarioD(sys *system) error {
	as, err := sys.newProcess()
	if err != nil {
		return err
	}
	proc := fault.ProcessContext{AddressSpace: as}

	free := sys.cm.Stats().Free
	n := free + 1
	addrs := make([]mem.VA, n)
	for i := range addrs {
		addrs[i] = mem.VA(0x10000000 + i*mem.PageSize)
	}

	writesBefore := sys.stats.Snapshot().SwapFileWrite
	for _, va := range addrs {
		if err := sys.h.VMFault(fault.Write, va, proc); err != nil {
			return fmt.Errorf("hard fault at 0x%x: %w", va, err)
		}
		if err := sys.h.VMFault(fault.Write, va, proc); err != nil {
			return fmt.Errorf("dirtying fault at 0x%x: %w", va, err)
		}
	}
	if got := sys.stats.Snapshot().SwapFileWrite - writesBefore; got != 1 {
		return fmt.Errorf("got %d swap writes forcing one eviction, want 1", got)
	}

	evicted := mem.VA(0)
	for _, va := range addrs[:n-1] {
		pg, _ := as.GetPage(va)
		if !pg.Valid() {
			evicted = va
			break
		}
	}
	if evicted == 0 {
		return fmt.Errorf("expected exactly one page to have been evicted")
	}

	readsBefore := sys.stats.Snapshot().SwapFileRead
	if err := sys.h.VMFault(fault.Write, evicted, proc); err != nil {
		return err
	}
	if got := sys.stats.Snapshot().SwapFileRead - readsBefore; got != 1 {
		return fmt.Errorf("got %d swap reads on re-touch, want 1", got)
	}
	return nil
}

func scenarioE(sys *system) error {
	as, err := sys.newProcess()
	if err != nil {
		return err
	}
	before := sys.stats.Snapshot().ELFFileRead
	if err := sys.h.VMFault(fault.Write, addrspace.UserStackTop-4, fault.ProcessContext{AddressSpace: as}); err != nil {
		return err
	}
	if sys.stats.Snapshot().ELFFileRead != before {
		return fmt.Errorf("expected no ELF read for a stack fault")
	}
	return nil
}

func scenarioF(sys *system) error {
	as, err := sys.newProcess()
	if err != nil {
		return err
	}
	if err := sys.h.VMFault(fault.Read, 0x20000000, fault.ProcessContext{AddressSpace: as}); err == nil {
		return fmt.Errorf("expected EFAULT outside any region, got nil")
	}
	return nil
}
