package vfs

import "os"

// OSFS is the production FileSystem: every vnode is a real file on disk.
// *os.File already satisfies File directly (Read/Write/ReadAt/WriteAt/
// Close/Sync), so Open and Create need no wrapper.
type OSFS struct{}

// NewOS returns a FileSystem backed by the real filesystem.
func NewOS() *OSFS { return &OSFS{} }

func (fsys *OSFS) Open(name string) (File, error)   { return os.Open(name) }
func (fsys *OSFS) Create(name string) (File, error) { return os.Create(name) }
