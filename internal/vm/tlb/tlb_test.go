package tlb

import (
	"testing"

	"eduvm/internal/vm/mem"
)

func TestProbeMissesOnEmptyTLB(t *testing.T) {
	tb := New()
	if idx := tb.Probe(0x400000); idx != -1 {
		t.Fatalf("got index %d, want -1", idx)
	}
}

func TestWriteThenProbeAndRead(t *testing.T) {
	tb := New()
	tb.Write(5, 0x400000, 0x2000, true, true)

	idx := tb.Probe(0x400000)
	if idx != 5 {
		t.Fatalf("got index %d, want 5", idx)
	}
	vaddr, paddr, dirty, valid := tb.Read(idx)
	if vaddr != 0x400000 || paddr != 0x2000 || !dirty || !valid {
		t.Fatalf("got (%#x, %#x, %v, %v)", vaddr, paddr, dirty, valid)
	}
}

func TestProbeMatchesAnyOffsetWithinThePage(t *testing.T) {
	tb := New()
	tb.Write(0, 0x400000, 0x1000, false, true)
	if idx := tb.Probe(0x400abc); idx != 0 {
		t.Fatalf("got index %d, want 0", idx)
	}
}

func TestEvictClearsTheEntryEntirely(t *testing.T) {
	tb := New()
	tb.Write(0, 0x400000, 0x1000, true, true)
	tb.Evict(0x400000)
	if idx := tb.Probe(0x400000); idx != -1 {
		t.Fatal("expected evicted entry to miss on probe")
	}
}

func TestInvalidatePreservesMappingButClearsValid(t *testing.T) {
	tb := New()
	tb.Write(0, 0x400000, 0x1000, true, true)
	tb.Invalidate(0x400000)

	idx := tb.Probe(0x400000)
	if idx != 0 {
		t.Fatal("expected invalidate to keep the entry discoverable by probe")
	}
	_, paddr, _, valid := tb.Read(idx)
	if valid {
		t.Fatal("expected valid bit cleared")
	}
	if paddr != 0x1000 {
		t.Fatal("expected the physical mapping to survive invalidate")
	}
}

func TestInvalidateAllClearsValidOnEveryEntry(t *testing.T) {
	tb := New()
	tb.Write(0, 0x400000, 0x1000, true, true)
	tb.Write(1, 0x500000, 0x2000, false, true)
	tb.InvalidateAll()

	for _, va := range []mem.VA{0x400000, 0x500000} {
		idx := tb.Probe(va)
		if idx < 0 {
			t.Fatalf("expected entry for %#x to remain discoverable", va)
		}
		_, _, _, valid := tb.Read(idx)
		if valid {
			t.Fatalf("expected entry for %#x to be invalidated", va)
		}
	}
}

func TestFindFreeSkipsValidEntries(t *testing.T) {
	tb := New()
	tb.Write(0, 0x400000, 0x1000, true, true)
	idx := tb.FindFree()
	if idx == 0 {
		t.Fatal("expected FindFree to skip the one valid entry")
	}
	if idx < 0 {
		t.Fatal("expected an empty TLB (minus one entry) to have free slots")
	}
}

func TestFindFreeReturnsNegativeWhenFull(t *testing.T) {
	tb := New()
	for i := 0; i < NumEntries; i++ {
		tb.Write(i, mem.VA(i*mem.PageSize), mem.PA(i*mem.PageSize), false, true)
	}
	if idx := tb.FindFree(); idx != -1 {
		t.Fatalf("got %d, want -1 when every entry is valid", idx)
	}
}

func TestNextVictimRoundRobins(t *testing.T) {
	tb := New()
	first := tb.NextVictim()
	for i := 1; i < NumEntries; i++ {
		tb.NextVictim()
	}
	wrapped := tb.NextVictim()
	if wrapped != first {
		t.Fatalf("expected the hand to wrap after %d steps, got %d want %d", NumEntries, wrapped, first)
	}
}

func TestShootDownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected ShootDown to panic")
		}
	}()
	New().ShootDown()
}
