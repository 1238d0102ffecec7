package flags

import "testing"

func TestSetHasWithWithout(t *testing.T) {
	var s Set
	if s.Has(Readable) {
		t.Fatal("zero value should have no flags set")
	}
	s = s.With(Readable).With(Executable)
	if !s.Has(Readable) || !s.Has(Executable) {
		t.Fatal("expected both flags set")
	}
	if s.Has(Writeable) {
		t.Fatal("writeable should not be set")
	}
	s = s.Without(Readable)
	if s.Has(Readable) {
		t.Fatal("readable should have been cleared")
	}
	if !s.Has(Executable) {
		t.Fatal("executable should remain set")
	}
}

func TestPageFlagsDisjointFromSegmentFlags(t *testing.T) {
	if Valid.Has(Readable) || Swap.Has(Writeable) || Swap.Has(Executable) {
		t.Fatal("page flags must not overlap segment flag bits")
	}
}
