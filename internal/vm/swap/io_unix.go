//go:build unix

package swap

import (
	"os"

	"golang.org/x/sys/unix"

	"eduvm/internal/vfs"
	"eduvm/internal/vm/mem"
)

// writeAt and readAt prefer a positioned pwrite/pread on the real file
// descriptor when the swap file is backed by an *os.File, avoiding the
// seek-then-read/write race a plain ReadAt/WriteAt would have if the
// vnode were ever shared across more than one in-flight operation. Any
// other vfs.File implementation (MemFS, in tests) falls back to
// vfs.WritePage/ReadPage.
func writeAt(f vfs.File, slot int, data []byte) error {
	if osf, ok := f.(*os.File); ok {
		_, err := unix.Pwrite(int(osf.Fd()), data, int64(slot)*mem.PageSize)
		return err
	}
	return vfs.WritePage(f, slot, data)
}

func readAt(f vfs.File, slot int, dst []byte) error {
	if osf, ok := f.(*os.File); ok {
		_, err := unix.Pread(int(osf.Fd()), dst, int64(slot)*mem.PageSize)
		return err
	}
	return vfs.ReadPage(f, slot, dst)
}
