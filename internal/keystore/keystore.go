// Package keystore manages the age key-pair file used by the pipeline.
package keystore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/starford/agevault/internal/apperr"
)

var commandContext = exec.CommandContext

const publicKeyComment = "# public key:"

// Option configures a Store.
type Option func(*Store)

// WithBinary overrides the key generation binary.
func WithBinary(binary string) Option {
	return func(s *Store) {
		if binary != "" {
			s.binary = binary
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store owns the key file. It generates the file once and only reads it
// afterwards; it never deletes a complete key.
type Store struct {
	path   string
	binary string
	logger *slog.Logger
}

// New constructs a Store for the key file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, binary: "age-keygen", logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IdentityPath returns the path of the key file, usable as an age identity.
func (s *Store) IdentityPath() string { return s.path }

// Exists reports whether the key file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// EnsureKey generates the key file if it does not exist yet.
func (s *Store) EnsureKey(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &apperr.KeyGenerationError{Path: s.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &apperr.KeyGenerationError{Path: s.path, Err: err}
	}

	var stderr bytes.Buffer
	cmd := commandContext(ctx, s.binary, "-o", s.path) //nolint:gosec
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// A failed run may leave a partial file; the key must stay absent.
		_ = os.Remove(s.path)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &apperr.KeyGenerationError{Path: s.path, Err: err}
	}
	if !s.Exists() {
		return &apperr.KeyGenerationError{Path: s.path, Err: fmt.Errorf("%s exited cleanly but wrote no key", s.binary)}
	}

	s.logger.Info("keystore: key file generated", slog.String("path", s.path))
	return nil
}

// Recipient reads the key file and returns the recipient used for encryption.
func (s *Store) Recipient() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("keystore: read key: %w", err)
	}
	return ParseRecipient(data)
}

// ParseRecipient extracts the recipient from key file contents. The
// "# public key:" comment written by age-keygen wins; otherwise the text after
// the first ':' on line 2 is used.
func ParseRecipient(data []byte) (string, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, publicKeyComment) {
			if r := strings.TrimSpace(strings.TrimPrefix(trimmed, publicKeyComment)); r != "" {
				return r, nil
			}
		}
	}

	if len(lines) < 2 {
		return "", fmt.Errorf("keystore: key file has %d line(s), want at least 2: %w", len(lines), apperr.ErrNotFound)
	}
	_, after, ok := strings.Cut(lines[1], ":")
	recipient := strings.TrimSpace(after)
	if !ok || recipient == "" {
		return "", fmt.Errorf("keystore: no recipient on line 2: %w", apperr.ErrNotFound)
	}
	return recipient, nil
}
