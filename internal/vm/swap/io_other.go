//go:build !unix

package swap

import "eduvm/internal/vfs"

func writeAt(f vfs.File, slot int, data []byte) error {
	return vfs.WritePage(f, slot, data)
}

func readAt(f vfs.File, slot int, dst []byte) error {
	return vfs.ReadPage(f, slot, dst)
}
