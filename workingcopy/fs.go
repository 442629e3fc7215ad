// Package workingcopy materializes a tree onto disk and snapshots a
// directory back into one: the two operations that keep a checkout in
// sync with the object graph.
package workingcopy

import (
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the subset of filesystem operations a working copy needs, trimmed
// from the teacher's modules/vfs.VFS interface down to what Snapshot and
// Checkout actually call. Rooting it at a directory (rather than exposing
// raw *os.File handles globally) keeps every path argument repo-relative.
type FS interface {
	// ReadFile reads the full content of a repo-relative file path.
	ReadFile(path string) ([]byte, error)
	// WriteFile writes content to a repo-relative file path, creating parent
	// directories as needed.
	WriteFile(path string, content []byte, perm os.FileMode) error
	// Lstat stats a repo-relative path without following a trailing symlink.
	Lstat(path string) (os.FileInfo, error)
	// Symlink creates a symlink at path pointing at target.
	Symlink(target, path string) error
	// Readlink returns the target of a symlink at path.
	Readlink(path string) (string, error)
	// Remove removes a single file, symlink, or empty directory.
	Remove(path string) error
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string, perm os.FileMode) error
	// Walk visits every entry under root, directories included, in lexical
	// order, passing paths repo-relative to the FS root (not to root itself).
	Walk(root string, fn fs.WalkDirFunc) error
	// Root returns the absolute filesystem path the FS is bound to.
	Root() string
	// Abs returns the absolute filesystem path for a repo-relative path.
	Abs(path string) string
}

// osFS roots every path at dir, the same bound-root idea as the teacher's
// newBoundOS constructor behind vfs.NewVFS.
type osFS struct {
	dir string
}

// NewOSFS returns an FS rooted at dir.
func NewOSFS(dir string) FS {
	return &osFS{dir: dir}
}

func (o *osFS) abs(path string) string {
	return filepath.Join(o.dir, filepath.FromSlash(path))
}

func (o *osFS) Root() string { return o.dir }

func (o *osFS) Abs(path string) string { return o.abs(path) }

func (o *osFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(o.abs(path))
}

func (o *osFS) WriteFile(path string, content []byte, perm os.FileMode) error {
	full := o.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	// os.WriteFile only applies perm when creating the file; an existing
	// file keeps its old mode bits, so chmod explicitly to pick up a
	// file<->executable mode change.
	if err := os.WriteFile(full, content, perm); err != nil {
		return err
	}
	return os.Chmod(full, perm)
}

func (o *osFS) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(o.abs(path))
}

func (o *osFS) Symlink(target, path string) error {
	full := o.abs(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	_ = os.Remove(full)
	return os.Symlink(target, full)
}

func (o *osFS) Readlink(path string) (string, error) {
	return os.Readlink(o.abs(path))
}

func (o *osFS) Remove(path string) error {
	return os.Remove(o.abs(path))
}

func (o *osFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(o.abs(path), perm)
}

func (o *osFS) Walk(root string, fn fs.WalkDirFunc) error {
	full := o.abs(root)
	if _, err := os.Lstat(full); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(full, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(o.dir, path)
		if relErr != nil {
			return relErr
		}
		return fn(filepath.ToSlash(rel), d, nil)
	})
}
