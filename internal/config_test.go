package internal

import (
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/agevault/pkg/config"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultConfig_Layout(t *testing.T) {
	cfg := NewDefaultConfig()
	root := t.TempDir()
	cfg.Folders.Root = root

	layout, err := cfg.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	want := map[string]string{
		layout.Local:   "Local",
		layout.Encrypt: "1. Encrypt",
		layout.Vault:   "2. Vault",
		layout.Decrypt: "3. Decrypt",
		layout.KeyFile: "key.txt",
	}
	for got, name := range want {
		if got != filepath.Join(root, name) {
			t.Errorf("path = %q, want %q", got, filepath.Join(root, name))
		}
	}
}

func TestLayout_AbsoluteFolderKept(t *testing.T) {
	cfg := NewDefaultConfig()
	abs := filepath.Join(t.TempDir(), "elsewhere")
	cfg.Folders.Vault = abs
	layout, err := cfg.Layout()
	if err != nil {
		t.Fatal(err)
	}
	if layout.Vault != abs {
		t.Errorf("vault = %q, want %q", layout.Vault, abs)
	}
}

func TestFoldersConfig_Duplicate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Folders.Decrypt = cfg.Folders.Encrypt
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "both point at") {
		t.Fatalf("expected duplicate folder error, got %v", err)
	}
}

func TestFoldersConfig_AbsoluteAndRelativeSameFolder(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Folders.Root = t.TempDir()
	cfg.Folders.Vault = filepath.Join(cfg.Folders.Root, "1. Encrypt")
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "both point at") {
		t.Fatalf("expected duplicate folder error, got %v", err)
	}
}

func TestFoldersConfig_Nested(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Folders.Vault = filepath.Join("1. Encrypt", "v")
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "is inside") {
		t.Fatalf("expected nested folder error, got %v", err)
	}
}

func TestFoldersConfig_SiblingPrefixAllowed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Folders.Local = "Vault"
	cfg.Folders.Vault = "Vault2"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sibling folders sharing a prefix should pass: %v", err)
	}
}

func TestKeyConfig_InQueueFolder(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Key.Path = filepath.Join("1. Encrypt", "key.txt")
	if err := cfg.Validate(); err == nil {
		t.Fatal("key inside the encrypt queue should fail validation")
	}
}

func TestFoldersConfig_Required(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Folders.Vault = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("empty vault folder should fail validation")
	}
}

func TestPollConfig_IntervalTooSmall(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Poll.Interval = time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("1ms interval should fail validation")
	}
}

func TestAppConfig_BadLogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown log format should fail validation")
	}
}

func TestHTTPConfig_PortCheckedOnlyWhenEnabled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.HTTP.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled HTTP should ignore port: %v", err)
	}
	cfg.App.HTTP.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("enabled HTTP with port 0 should fail")
	}
}

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestSampleConfig_Loads(t *testing.T) {
	t.Setenv("AGEVAULT_API_TOKEN", "")
	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(filepath.Join("..", "config", "config.yaml"), cfg); err != nil {
		t.Fatalf("sample config: %v", err)
	}
	def := NewDefaultConfig()
	if cfg.Folders != def.Folders || cfg.Poll != def.Poll || cfg.Key != def.Key {
		t.Errorf("sample config drifted from defaults: %+v", cfg)
	}
	if cfg.App.LogLevel != slog.LevelInfo {
		t.Errorf("log level = %v", cfg.App.LogLevel)
	}
}
