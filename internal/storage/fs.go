package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/models"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the pipeline root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute root directory.
func (f *FS) Root() string { return f.root }

// safePath resolves p against the root and rejects any result that escapes
// it (directory traversal). Absolute paths are accepted when inside the root.
func (f *FS) safePath(p string) (string, error) {
	if p == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(p)
	if !filepath.IsAbs(cleaned) {
		cleaned = filepath.Join(f.root, cleaned)
	}
	abs, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", p)
	}
	return abs, nil
}

// EnsureDir creates dir if it is missing. Existing directories are left alone.
func (f *FS) EnsureDir(dir string) error {
	abs, err := f.safePath(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return &apperr.FilesystemError{Op: "mkdir", Path: abs, Err: err}
	}
	return nil
}

// List returns the regular files directly inside dir, in directory order.
// Symlinks are followed; links to directories are skipped like directories.
func (f *FS) List(dir string) ([]models.StagedFile, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, &apperr.FilesystemError{Op: "list", Path: base, Err: err}
	}
	var out []models.StagedFile
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		p := filepath.Join(base, e.Name())
		info, err := os.Stat(p)
		if err != nil {
			// Removed between ReadDir and Stat, or a dangling link.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		out = append(out, models.StagedFile{
			Name:    e.Name(),
			Path:    p,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return out, nil
}

// Exists reports whether path exists.
func (f *FS) Exists(path string) (bool, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return false, err
	}
	_, err = os.Lstat(abs)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("storage: stat %s: %w", path, err)
}

// Read returns the raw bytes of a file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// TempPath returns a unique hidden path in dir. Nothing is created.
func (f *FS) TempPath(dir string) (string, error) {
	abs, err := f.safePath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(abs, TempPrefix+uuid.NewString()), nil
}

// Remove deletes a file.
func (f *FS) Remove(path string) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return &apperr.FilesystemError{Op: "remove", Path: abs, Err: err}
	}
	return nil
}

// Move renames oldPath to newPath. When the two live on different devices
// the file is copied with verification and the original removed.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.safePath(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.safePath(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return &apperr.FilesystemError{Op: "mkdir", Path: filepath.Dir(absNew), Err: err}
	}
	err = os.Rename(absOld, absNew)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return &apperr.FilesystemError{Op: "move", Path: absOld, Err: err}
	}
	if err := copyFileVerified(absOld, absNew); err != nil {
		return &apperr.FilesystemError{Op: "copy", Path: absOld, Err: err}
	}
	if err := os.Remove(absOld); err != nil {
		return &apperr.FilesystemError{Op: "remove", Path: absOld, Err: err}
	}
	return nil
}

// Relocate moves src into destDir, refusing to overwrite an existing file.
func (f *FS) Relocate(src, destDir string) (string, error) {
	absDir, err := f.safePath(destDir)
	if err != nil {
		return "", err
	}
	target := filepath.Join(absDir, filepath.Base(src))
	exists, err := f.Exists(target)
	if err != nil {
		return "", err
	}
	if exists {
		return "", &apperr.FilesystemError{Op: "relocate", Path: target, Err: apperr.ErrAlreadyExists}
	}
	if err := f.Move(src, target); err != nil {
		return "", err
	}
	return target, nil
}

var _ Provider = (*FS)(nil)
