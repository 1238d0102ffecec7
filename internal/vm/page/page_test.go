package page

import (
	"testing"

	"eduvm/internal/vm/mem"
)

func TestNewPageStartsInvalidAndUnswapped(t *testing.T) {
	p := New(mem.VA(0x400000))
	if p.Valid() {
		t.Fatal("a fresh page should not be valid")
	}
	if p.InSwap() {
		t.Fatal("a fresh page should not be marked in-swap")
	}
	if p.Slot != NoSlot {
		t.Fatalf("got slot %d, want NoSlot", p.Slot)
	}
}

func TestSetValidSetInSwapAreIndependent(t *testing.T) {
	p := New(mem.VA(0x400000))
	p.SetValid(true)
	p.SetInSwap(true)
	if !p.Valid() || !p.InSwap() {
		t.Fatal("expected both flags set")
	}
	p.SetValid(false)
	if p.Valid() {
		t.Fatal("expected valid cleared")
	}
	if !p.InSwap() {
		t.Fatal("clearing valid should not clear in-swap")
	}
}
