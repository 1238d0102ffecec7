package errors

import (
	"errors"
	"testing"
)

func TestFaultCategory(t *testing.T) {
	err := Fault("write to read-only segment at 0x%x", 0x400000)
	if err.Category != CategoryFault {
		t.Fatalf("got category %s, want %s", err.Category, CategoryFault)
	}
	if err.Caller == "" || err.Caller == "unknown" {
		t.Fatalf("expected caller to be captured, got %q", err.Caller)
	}
}

func TestIOWrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := IO(cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to unwrap to the underlying cause")
	}
}
