// Package vfs abstracts the filesystem collaborators the VM core depends on:
// the vnode an ELF executable is read from, and the vnode backing the swap
// file. Production code uses OSFS; tests use MemFS so no real disk is ever
// touched. Trimmed to exactly the shape spec §6 names for the VFS
// collaborator — open(path, flags, mode) -> vnode, read/write via uio,
// close(vnode) — the VM core never lists a directory or renames a vnode, so
// neither verb appears here.
package vfs

import (
	"io"

	"eduvm/internal/vm/mem"
)

// File represents an open vnode.
type File interface {
	io.Reader
	io.Writer
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
}

// FileSystem opens or creates a vnode by path.
type FileSystem interface {
	Open(name string) (File, error)
	Create(name string) (File, error)
}

// ReadAt reads exactly len(buf) bytes from f at offset, the shape spec's
// external ELF-reader collaborator (read_at(vnode, offset, buf, len)) takes.
func ReadAt(f File, offset int64, buf []byte) error {
	_, err := f.ReadAt(buf, offset)
	return err
}

// WriteAt writes all of buf to f at offset.
func WriteAt(f File, offset int64, buf []byte) error {
	_, err := f.WriteAt(buf, offset)
	return err
}

// ReadPage reads exactly one mem.PageSize page from f's slot'th page-sized
// region into dst — the shape every swap-file read takes (spec §4.2's
// swap_load reads PAGE_SIZE bytes at idx * PAGE_SIZE).
func ReadPage(f File, slot int, dst []byte) error {
	if len(dst) != mem.PageSize {
		panic("vfs: ReadPage destination must be exactly one page")
	}
	return ReadAt(f, int64(slot)*mem.PageSize, dst)
}

// WritePage writes exactly one mem.PageSize page from data to f's slot'th
// page-sized region — the shape every swap-file write takes (spec §4.2's
// swap_write writes PAGE_SIZE bytes at idx * PAGE_SIZE).
func WritePage(f File, slot int, data []byte) error {
	if len(data) != mem.PageSize {
		panic("vfs: WritePage source must be exactly one page")
	}
	return WriteAt(f, int64(slot)*mem.PageSize, data)
}
