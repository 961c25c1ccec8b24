package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/agevault/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Folders FoldersConfig     `yaml:"folders"`
	Key     KeyConfig         `yaml:"key"`
	Age     AgeConfig         `yaml:"age"`
	Poll    PollConfig        `yaml:"poll"`
	Journal JournalConfig     `yaml:"journal"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Folders.Validate(); err != nil {
		return err
	}
	if err := c.Key.Validate(); err != nil {
		return err
	}
	layout, err := c.Layout()
	if err != nil {
		return err
	}
	if err := validateLayout(layout); err != nil {
		return err
	}
	if err := c.Age.Validate(); err != nil {
		return err
	}
	if err := c.Poll.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// Layout resolves the folder and key paths against the root.
func (c *Config) Layout() (models.Layout, error) {
	root, err := filepath.Abs(c.Folders.Root)
	if err != nil {
		return models.Layout{}, fmt.Errorf("resolve root: %w", err)
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(root, p)
	}
	return models.Layout{
		Local:   resolve(c.Folders.Local),
		Encrypt: resolve(c.Folders.Encrypt),
		Vault:   resolve(c.Folders.Vault),
		Decrypt: resolve(c.Folders.Decrypt),
		KeyFile: resolve(c.Key.Path),
	}, nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.Required, validation.In(LogFormatText, LogFormatJSON)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds the status server configuration.
type HTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// FoldersConfig names the four pipeline folders. Relative names resolve
// against Root.
type FoldersConfig struct {
	Root    string `yaml:"root"`
	Local   string `yaml:"local"`
	Encrypt string `yaml:"encrypt"`
	Vault   string `yaml:"vault"`
	Decrypt string `yaml:"decrypt"`
}

// Validate validates the folder configuration.
func (c *FoldersConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Local, validation.Required),
		validation.Field(&c.Encrypt, validation.Required),
		validation.Field(&c.Vault, validation.Required),
		validation.Field(&c.Decrypt, validation.Required),
	); err != nil {
		return err
	}
	return nil
}

// validateLayout rejects resolved folders that coincide or nest, and a key
// file placed directly in a queue folder, where it would be swept.
func validateLayout(l models.Layout) error {
	names := []string{"local", "encrypt", "vault", "decrypt"}
	dirs := l.Dirs()
	for i := range dirs {
		for j := i + 1; j < len(dirs); j++ {
			if dirs[i] == dirs[j] {
				return fmt.Errorf("folders: %s and %s both point at %q", names[i], names[j], dirs[i])
			}
			if within(dirs[i], dirs[j]) {
				return fmt.Errorf("folders: %s %q is inside %s %q", names[j], dirs[j], names[i], dirs[i])
			}
			if within(dirs[j], dirs[i]) {
				return fmt.Errorf("folders: %s %q is inside %s %q", names[i], dirs[i], names[j], dirs[j])
			}
		}
	}
	keyDir := filepath.Dir(l.KeyFile)
	if keyDir == l.Encrypt || keyDir == l.Decrypt {
		return fmt.Errorf("key: %q must not live in a queue folder", l.KeyFile)
	}
	return nil
}

// within reports whether child is strictly below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// KeyConfig locates the age key-pair file.
type KeyConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the key configuration.
func (c *KeyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AgeConfig names the external binaries.
type AgeConfig struct {
	Binary       string        `yaml:"binary"`
	KeygenBinary string        `yaml:"keygen_binary"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Validate validates the age configuration.
func (c *AgeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.KeygenBinary, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// PollConfig controls the scheduler loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Settle   time.Duration `yaml:"settle"`
	Notify   bool          `yaml:"notify"`
}

// Validate validates the poll configuration.
func (c *PollConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Interval, validation.Required, validation.Min(10*time.Millisecond)),
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// JournalConfig holds the SQLite journal path. Empty disables the journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds status API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a Config matching the fixed layout: Local,
// "1. Encrypt", "2. Vault", "3. Decrypt" and key.txt in the working directory,
// polled once per second.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Folders: FoldersConfig{
			Root:    ".",
			Local:   "Local",
			Encrypt: "1. Encrypt",
			Vault:   "2. Vault",
			Decrypt: "3. Decrypt",
		},
		Key: KeyConfig{
			Path: "key.txt",
		},
		Age: AgeConfig{
			Binary:       "age",
			KeygenBinary: "age-keygen",
		},
		Poll: PollConfig{
			Interval: time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
