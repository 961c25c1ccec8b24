// Package testutil provides shared test helpers for pipeline folders, journals
// and an in-memory transcoder.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/journal"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/storage"
)

// TestJournal creates a temporary SQLite journal that is automatically cleaned up.
func TestJournal(t *testing.T) *journal.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "agevault-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := journal.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestLayout creates the four pipeline folders under a temp root.
func TestLayout(t *testing.T) (models.Layout, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	layout := models.Layout{
		Local:   filepath.Join(root, "Local"),
		Encrypt: filepath.Join(root, "1. Encrypt"),
		Vault:   filepath.Join(root, "2. Vault"),
		Decrypt: filepath.Join(root, "3. Decrypt"),
		KeyFile: filepath.Join(root, "key.txt"),
	}
	for _, d := range layout.Dirs() {
		if err := store.EnsureDir(d); err != nil {
			t.Fatal(err)
		}
	}
	return layout, store
}

// WriteFile writes content to dir/name, failing the test on error.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, content, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

var fakeHeader = []byte("fake-age\n")

// FakeTranscoder is an in-memory Transcoder honouring the same contract as the
// age CLI: output in the target folder, source removed only on success.
type FakeTranscoder struct {
	Store  storage.Provider
	Layout models.Layout

	mu      sync.Mutex
	failAll error
	fail    map[string]error
	calls   []string
}

// NewFakeTranscoder returns a fake writing into layout.
func NewFakeTranscoder(store storage.Provider, layout models.Layout) *FakeTranscoder {
	return &FakeTranscoder{Store: store, Layout: layout, fail: map[string]error{}}
}

// FailAll makes every call fail with err, or succeed again when err is nil.
func (f *FakeTranscoder) FailAll(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAll = err
}

// FailFile makes calls for the file with this base name fail.
func (f *FakeTranscoder) FailFile(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[name] = err
}

// Calls returns "op:name" for every invocation so far.
func (f *FakeTranscoder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeTranscoder) check(op models.Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(path)
	f.calls = append(f.calls, string(op)+":"+name)
	err := f.failAll
	if e, ok := f.fail[name]; ok {
		err = e
	}
	if err != nil {
		return &apperr.TranscodeError{Op: string(op), Path: path, Err: err}
	}
	return nil
}

// Encrypt implements transcoder.Transcoder.
func (f *FakeTranscoder) Encrypt(ctx context.Context, path string) (string, error) {
	if err := f.check(models.OpEncrypt, path); err != nil {
		return "", err
	}
	data, err := f.Store.Read(path)
	if err != nil {
		return "", &apperr.TranscodeError{Op: string(models.OpEncrypt), Path: path, Err: err}
	}
	out := filepath.Join(f.Layout.Vault, filepath.Base(path)+".age")
	if exists, _ := f.Store.Exists(out); exists {
		return "", &apperr.TranscodeError{Op: string(models.OpEncrypt), Path: path,
			Err: &apperr.FilesystemError{Op: "move", Path: out, Err: apperr.ErrAlreadyExists}}
	}
	if err := f.Store.Write(out, append(append([]byte{}, fakeHeader...), flip(data)...)); err != nil {
		return "", &apperr.TranscodeError{Op: string(models.OpEncrypt), Path: path, Err: err}
	}
	if err := f.Store.Remove(path); err != nil {
		return "", err
	}
	return out, nil
}

// Decrypt implements transcoder.Transcoder.
func (f *FakeTranscoder) Decrypt(ctx context.Context, path string) (string, error) {
	if err := f.check(models.OpDecrypt, path); err != nil {
		return "", err
	}
	data, err := f.Store.Read(path)
	if err != nil {
		return "", &apperr.TranscodeError{Op: string(models.OpDecrypt), Path: path, Err: err}
	}
	if !bytes.HasPrefix(data, fakeHeader) {
		return "", &apperr.TranscodeError{Op: string(models.OpDecrypt), Path: path, Err: errors.New("not a fake-age file")}
	}
	out := filepath.Join(f.Layout.Local, strings.TrimSuffix(filepath.Base(path), ".age"))
	if exists, _ := f.Store.Exists(out); exists {
		return "", &apperr.TranscodeError{Op: string(models.OpDecrypt), Path: path,
			Err: &apperr.FilesystemError{Op: "move", Path: out, Err: apperr.ErrAlreadyExists}}
	}
	if err := f.Store.Write(out, flip(data[len(fakeHeader):])); err != nil {
		return "", &apperr.TranscodeError{Op: string(models.OpDecrypt), Path: path, Err: err}
	}
	if err := f.Store.Remove(path); err != nil {
		return "", err
	}
	return out, nil
}

func flip(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ 0x5a
	}
	return out
}
