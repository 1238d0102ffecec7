// Command eduvm-demo boots the demand-paged virtual memory subsystem
// (coremap, swap file, software TLB, address space, fault handler) over a
// small simulated RAM arena and an in-memory ELF-style fixture, then
// drives the lettered end-to-end scenarios from spec §8, printing a
// report. Grounded on the teacher's boot-banner-then-run-tests shape in
// cmd/orizon-kernel/main.go, scaled down to what this module actually
// owns: no hardware, no process lifecycle, just the VM core.
package main

import (
	"flag"
	"fmt"
	"os"

	"eduvm/internal/cli"
	"eduvm/internal/vfs"
	"eduvm/internal/vm/addrspace"
	"eduvm/internal/vm/coremap"
	"eduvm/internal/vm/fault"
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/swap"
	"eduvm/internal/vm/tlb"
	"eduvm/internal/vm/vmstat"
)

func main() {
	var (
		ramPages int
		jsonOut  bool
		verbose  bool
	)
	flag.IntVar(&ramPages, "ram-pages", 64, "simulated physical RAM size, in pages")
	flag.BoolVar(&jsonOut, "json", false, "print version info as JSON and exit")
	flag.BoolVar(&verbose, "verbose", false, "log each scenario as it runs")
	flag.Parse()

	if jsonOut {
		cli.PrintVersion("eduvm-demo", true)
		return
	}

	logger := cli.NewLogger(verbose)

	fmt.Println("========================================")
	fmt.Println(" eduvm — demand-paged VM core")
	fmt.Println("========================================")
	fmt.Println()

	sys, err := bootstrap(ramPages)
	if err != nil {
		cli.ExitWithError("bootstrap: %v", err)
	}
	logger.Info("bootstrapped coremap over %d RAM pages", ramPages)

	failures := 0
	for _, sc := range scenarios {
		logger.Info("running scenario %s: %s", sc.name, sc.desc)
		if err := sc.run(sys); err != nil {
			fmt.Printf("[FAIL] scenario %s (%s): %v\n", sc.name, sc.desc, err)
			failures++
			continue
		}
		fmt.Printf("[ OK ] scenario %s: %s\n", sc.name, sc.desc)
	}

	fmt.Println()
	printStats(sys.h.Stats())

	if failures > 0 {
		os.Exit(1)
	}
}

// system bundles one wired VM stack: the shared collaborators every
// scenario drives through its own fresh address space.
type system struct {
	ram   *mem.RAM
	cm    *coremap.Coremap
	tb    *tlb.TLB
	sw    *swap.SwapFile
	stats *vmstat.Counters
	h     *fault.Handler
	elf   vfs.File
}

func bootstrap(ramPages int) (*system, error) {
	ram := mem.NewRAM(mem.Size(ramPages * mem.PageSize))
	tb := tlb.New()

	mf := vfs.NewMem()
	sw, err := swap.Bootstrap(mf, "/swapfile")
	if err != nil {
		return nil, err
	}
	cm := coremap.Bootstrap(ram, sw, tb)
	stats := &vmstat.Counters{}
	sw.SetStats(stats)

	elf, err := mf.Create("/prog.elf")
	if err != nil {
		return nil, err
	}
	// 0x10 bytes of .text content (pattern 0xAA) followed by 0x100 bytes
	// of .data content (pattern 0xBB), laid out back to back.
	fixture := make([]byte, 0x10+0x100)
	for i := 0; i < 0x10; i++ {
		fixture[i] = 0xAA
	}
	for i := 0x10; i < len(fixture); i++ {
		fixture[i] = 0xBB
	}
	if _, err := elf.Write(fixture); err != nil {
		return nil, err
	}

	h := fault.New(tb, cm, stats)
	return &system{ram: ram, cm: cm, tb: tb, sw: sw, stats: stats, h: h, elf: elf}, nil
}

// elfReader adapts the system's shared ELF vnode to addrspace.ELFReader.
type elfReader struct{ f vfs.File }

func (r elfReader) ReadAt(offset int64, buf []byte) error { return vfs.ReadAt(r.f, offset, buf) }

// newProcess returns a fresh address space over the shared RAM/coremap/
// swap/TLB, with the standard text+data fixture defined, ready for a
// scenario to fault against.
func (s *system) newProcess() (*addrspace.AddressSpace, error) {
	as := addrspace.Create(s.ram, s.cm, s.sw, s.tb, elfReader{s.elf})
	as.SetStats(s.stats)
	if err := as.DefineRegion(0x00400000, mem.PageSize, true, false, true, 0, 0x10); err != nil {
		return nil, err
	}
	if err := as.DefineRegion(0x10000000, mem.PageSize, true, true, false, 0x10, 0x100); err != nil {
		return nil, err
	}
	if err := as.PrepareLoad(); err != nil {
		return nil, err
	}
	if _, err := as.DefineStack(); err != nil {
		return nil, err
	}
	return as, nil
}

func printStats(snap vmstat.Snapshot) {
	fmt.Println("VMSTAT counters:")
	fmt.Printf("  TLB faults:          %d\n", snap.TLBFault)
	fmt.Printf("  TLB faults (free):   %d\n", snap.TLBFaultFree)
	fmt.Printf("  TLB faults (replace):%d\n", snap.TLBFaultReplace)
	fmt.Printf("  TLB invalidations:   %d\n", snap.TLBInvalidate)
	fmt.Printf("  TLB reloads:         %d\n", snap.TLBReload)
	fmt.Printf("  Page faults (zero):  %d\n", snap.PageFaultZero)
	fmt.Printf("  Page faults (disk):  %d\n", snap.PageFaultDisk)
	fmt.Printf("  ELF reads:           %d\n", snap.ELFFileRead)
	fmt.Printf("  Swap reads:          %d\n", snap.SwapFileRead)
	fmt.Printf("  Swap writes:         %d\n", snap.SwapFileWrite)
}
