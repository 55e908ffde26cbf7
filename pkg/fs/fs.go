// Package fs provides the filesystem seam used by the disk cache.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the cache performs
//   - [File]: interface for open files (satisfied by [os.File])
//   - [Real]: production implementation using the [os] package
//   - [Chaos]: testing implementation that injects random failures
//
// Every journal line and value byte the cache reads or writes goes through an
// [FS], so tests can swap in [Chaos] to exercise write faults, failed renames
// and vanished directories without touching a real disk driver.
//
// Example usage:
//
//	fsys := fs.NewReal()
//	f, err := fsys.Open("/var/cache/app/file")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	data, _ := io.ReadAll(f)
package fs

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor.
//
// This interface is satisfied by [os.File]. [File.Fd] must return a valid OS
// file descriptor until the file is closed; the cache passes it to
// unix.Fsync when durable writeback is requested.
//
// Like [os.File], Write on a handle opened read-only returns an error.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	// Fd returns the file descriptor. See [os.File.Fd].
	Fd() uintptr

	// Stat returns the [os.FileInfo] for this file. See [os.File.Stat].
	Stat() (os.FileInfo, error)

	// Sync commits the file's contents to disk. See [os.File.Sync].
	Sync() error
}

// FS defines the filesystem operations needed to keep a journal and a set of
// value files inside one directory.
//
// All methods mirror their [os] package equivalents. Paths use OS semantics
// (like the os package and path/filepath), not the slash-separated paths of
// the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// Open opens a file for reading. See [os.Open].
	Open(path string) (File, error)

	// Create creates or truncates a file for writing. See [os.Create].
	Create(path string) (File, error)

	// OpenFile opens a file with specified flags and permissions. See [os.OpenFile].
	OpenFile(path string, flag int, perm os.FileMode) (File, error)

	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// ReadDir reads a directory and returns its entries sorted by name.
	// See [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error

	// Stat returns file info. See [os.Stat].
	Stat(path string) (os.FileInfo, error)

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// Remove deletes a file or empty directory. See [os.Remove].
	Remove(path string) error

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	// No error if path doesn't exist.
	RemoveAll(path string) error

	// Rename moves a file, replacing newpath if it exists. See [os.Rename].
	// Atomic on the same filesystem.
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)
