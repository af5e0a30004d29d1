// Package fs exposes a directory as an fs.FS that still knows its root, so
// errors can carry real file paths.
package fs

import (
	"io/fs"
	"os"
	"path/filepath"
)

type FS interface {
	fs.FS
	RootDir() string
	Path(name string) string
}

var _ FS = (*rootDirFS)(nil)

func New(entry string) FS {
	return &rootDirFS{entry: entry, FS: os.DirFS(entry)}
}

type rootDirFS struct {
	fs.FS
	entry string
}

func (r rootDirFS) RootDir() string {
	return r.entry
}

// Path maps a slash-separated name inside the FS to an OS path.
func (r rootDirFS) Path(name string) string {
	return filepath.Join(r.entry, filepath.FromSlash(name))
}
