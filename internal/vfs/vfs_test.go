package vfs

import (
	"path/filepath"
	"testing"

	"eduvm/internal/vm/mem"
)

func TestOSFS_CreateReadWrite(t *testing.T) {
	fsys := NewOS()
	dir := t.TempDir()
	p := filepath.Join(dir, "a.txt")
	f, err := fsys.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	if err := f.Sync(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	if err := ReadAt(f, 0, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", string(buf))
	}
}

func TestOSFS_OpenMissing(t *testing.T) {
	fsys := NewOS()
	if _, err := fsys.Open(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected an error opening a vnode that was never created")
	}
}

func TestMemFS_OpenMissing(t *testing.T) {
	m := NewMem()
	if _, err := m.Open("/nope"); err == nil {
		t.Fatal("expected an error opening a vnode that was never created")
	}
}

func TestMemFS_ReadAtWriteAt(t *testing.T) {
	m := NewMem()
	f, err := m.Create("/swapfile")
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteAt(f, 4096, make([]byte, 4096)); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4096)
	if err := ReadAt(f, 4096, buf); err != nil {
		t.Fatal(err)
	}
}

func TestMemFS_ReadWritePage(t *testing.T) {
	m := NewMem()
	f, err := m.Create("/swapfile")
	if err != nil {
		t.Fatal(err)
	}
	want := make([]byte, mem.PageSize)
	for i := range want {
		want[i] = byte(i)
	}
	if err := WritePage(f, 3, want); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, mem.PageSize)
	if err := ReadPage(f, 3, got); err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestMemFS_ReopenSharesContent(t *testing.T) {
	m := NewMem()
	f, err := m.Create("/prog.elf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("fixture")); err != nil {
		t.Fatal(err)
	}
	reopened, err := m.Open("/prog.elf")
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 7)
	if err := ReadAt(reopened, 0, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "fixture" {
		t.Fatalf("got %q", string(buf))
	}
}
