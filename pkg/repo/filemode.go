package repo

import (
	"os"

	"github.com/gritvcs/grit/pkg/object"
)

// fileModeOf maps filesystem metadata to the tree entry mode. Only the
// executable bit is tracked; everything else normalizes to a plain
// file.
func fileModeOf(fi os.FileInfo) uint32 {
	if fi.Mode()&os.ModeSymlink != 0 {
		return object.ModeSymlink
	}
	if fi.Mode().Perm()&0o111 != 0 {
		return object.ModeExecutable
	}
	return object.ModeFile
}

// permFor maps a tree entry mode back to filesystem permissions on
// checkout.
func permFor(mode uint32) os.FileMode {
	if mode == object.ModeExecutable {
		return 0o755
	}
	return 0o644
}
