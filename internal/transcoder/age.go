package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/storage"
)

var commandContext = exec.CommandContext

// Option configures the CLI transcoder.
type Option func(*AgeCLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *AgeCLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds each invocation. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *AgeCLI) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *AgeCLI) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// AgeCLI wraps the age command-line tool.
type AgeCLI struct {
	binary  string
	timeout time.Duration
	store   storage.Provider
	keys    KeySource
	layout  models.Layout
	logger  *slog.Logger
}

// NewAgeCLI constructs a transcoder writing encrypted output to layout.Vault
// and decrypted output to layout.Local.
func NewAgeCLI(store storage.Provider, keys KeySource, layout models.Layout, opts ...Option) *AgeCLI {
	c := &AgeCLI{
		binary: "age",
		store:  store,
		keys:   keys,
		layout: layout,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encrypt runs age -r <recipient> and removes the plaintext on success.
func (c *AgeCLI) Encrypt(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)

	recipient, err := c.keys.Recipient()
	if err != nil {
		c.logger.Error("transcoder: encrypt failed", slog.String("file", name), slog.String("error", err.Error()))
		return "", &apperr.TranscodeError{Op: string(models.OpEncrypt), Path: path, Err: err}
	}

	output := filepath.Join(c.layout.Vault, name+Suffix)
	if err := c.run(ctx, path, output, "-r", recipient); err != nil {
		c.logger.Error("transcoder: encrypt failed", slog.String("file", name), slog.String("error", err.Error()))
		return "", &apperr.TranscodeError{Op: string(models.OpEncrypt), Path: path, Err: err}
	}

	if err := c.store.Remove(path); err != nil {
		c.logger.Error("transcoder: remove plaintext failed", slog.String("file", name), slog.String("error", err.Error()))
		return "", err
	}

	c.logger.Info("transcoder: encrypted file",
		slog.String("file", name),
		slog.String("dest", c.layout.Vault))
	return output, nil
}

// Decrypt runs age --decrypt -i <keyfile> and removes the ciphertext on success.
func (c *AgeCLI) Decrypt(ctx context.Context, path string) (string, error) {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, Suffix)
	if name == "" {
		name = base
	}

	output := filepath.Join(c.layout.Local, name)
	if err := c.run(ctx, path, output, "--decrypt", "-i", c.keys.IdentityPath()); err != nil {
		c.logger.Error("transcoder: decrypt failed", slog.String("file", base), slog.String("error", err.Error()))
		return "", &apperr.TranscodeError{Op: string(models.OpDecrypt), Path: path, Err: err}
	}

	if err := c.store.Remove(path); err != nil {
		c.logger.Error("transcoder: remove ciphertext failed", slog.String("file", base), slog.String("error", err.Error()))
		return "", err
	}

	c.logger.Info("transcoder: decrypted file",
		slog.String("file", base),
		slog.String("dest", c.layout.Local))
	return output, nil
}

// run invokes age writing to a hidden temp path next to output, then renames
// the temp into place. Nothing appears at output unless age exits zero.
func (c *AgeCLI) run(ctx context.Context, input, output string, args ...string) error {
	if err := c.checkFree(output); err != nil {
		return err
	}
	tmp, err := c.store.TempPath(filepath.Dir(output))
	if err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args = append(args, "-o", tmp, input)
	var stderr bytes.Buffer
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmp)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", c.binary, err, msg)
		}
		return fmt.Errorf("%s: %w", c.binary, err)
	}

	// The output may have appeared while age was running.
	if err := c.checkFree(output); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := c.store.Move(tmp, output); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// checkFree refuses to write over an existing file at output.
func (c *AgeCLI) checkFree(output string) error {
	exists, err := c.store.Exists(output)
	if err != nil {
		return &apperr.FilesystemError{Op: "stat", Path: output, Err: err}
	}
	if exists {
		return &apperr.FilesystemError{Op: "move", Path: output, Err: apperr.ErrAlreadyExists}
	}
	return nil
}

var _ Transcoder = (*AgeCLI)(nil)
