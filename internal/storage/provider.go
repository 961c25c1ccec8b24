// Package storage defines the pipeline folder file-system abstraction.
package storage

import "github.com/starford/agevault/internal/models"

// TempPrefix marks in-flight files written by the pipeline itself. List never
// reports them.
const TempPrefix = ".agevault-tmp-"

// Provider is the interface for pipeline file operations. Paths may be
// absolute (inside the root) or relative to the root.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// EnsureDir creates dir and its parents if missing.
	EnsureDir(dir string) error
	// List returns the regular files directly inside dir. Subdirectories are skipped.
	List(dir string) ([]models.StagedFile, error)
	// Exists reports whether path exists.
	Exists(path string) (bool, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// TempPath returns an unused hidden path in dir for an in-flight output.
	TempPath(dir string) (string, error)
	// Remove deletes the file at path.
	Remove(path string) error
	// Move renames oldPath to newPath, replacing newPath.
	Move(oldPath, newPath string) error
	// Relocate moves src into destDir under the same base name and returns the
	// new path. It fails with apperr.ErrAlreadyExists when the target exists.
	Relocate(src, destDir string) (string, error)
}
