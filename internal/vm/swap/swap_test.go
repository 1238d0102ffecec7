package swap

import (
	"testing"

	"eduvm/internal/vfs"
	"eduvm/internal/vm/mem"
	"eduvm/internal/vm/page"
)

func newTestSwap(t *testing.T) *SwapFile {
	t.Helper()
	s, err := Bootstrap(vfs.NewMem(), "")
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return s
}

func TestWriteLoadRoundTrip(t *testing.T) {
	s := newTestSwap(t)
	pg := page.New(mem.VA(0x400000))

	want := make([]byte, mem.PageSize)
	for i := range want {
		want[i] = byte(i)
	}
	if err := s.Write(pg, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if pg.Slot != 0 {
		t.Fatalf("got slot %d, want 0 (first allocation)", pg.Slot)
	}
	if !pg.InSwap() {
		t.Fatal("expected Write to mark the page in-swap")
	}

	got := make([]byte, mem.PageSize)
	if err := s.Load(pg, got); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if pg.Slot != page.NoSlot {
		t.Fatal("expected Load to release the slot")
	}
}

func TestLoadWithNoSlotIsInvalid(t *testing.T) {
	s := newTestSwap(t)
	pg := page.New(mem.VA(0x400000))
	if err := s.Load(pg, make([]byte, mem.PageSize)); err == nil {
		t.Fatal("expected an error loading a page with no swap slot")
	}
}

func TestWriteOfPageAlreadyHoldingSlotPanics(t *testing.T) {
	s := newTestSwap(t)
	pg := page.New(mem.VA(0x400000))
	pg.Slot = 5

	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic writing a page that already owns a slot")
		}
	}()
	_ = s.Write(pg, make([]byte, mem.PageSize))
}

func TestFreedSlotIsReused(t *testing.T) {
	s := newTestSwap(t)
	a := page.New(mem.VA(0x400000))
	b := page.New(mem.VA(0x500000))

	if err := s.Write(a, make([]byte, mem.PageSize)); err != nil {
		t.Fatal(err)
	}
	if err := s.Load(a, make([]byte, mem.PageSize)); err != nil {
		t.Fatal(err)
	}

	if err := s.Write(b, make([]byte, mem.PageSize)); err != nil {
		t.Fatal(err)
	}
	if b.Slot != 0 {
		t.Fatalf("expected the freed slot 0 to be reused, got %d", b.Slot)
	}
}

func TestExhaustionPanics(t *testing.T) {
	s := newTestSwap(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic when the swap file is exhausted")
		}
	}()
	for i := 0; i <= NumSlots; i++ {
		pg := page.New(mem.VA(i * mem.PageSize))
		_ = s.Write(pg, make([]byte, mem.PageSize))
	}
}
