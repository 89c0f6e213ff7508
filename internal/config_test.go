package internal

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

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

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
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
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := NewDefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfig_SectionValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing notes path", func(c *Config) { c.Notes.Path = "" }},
		{"missing data dir", func(c *Config) { c.Data.Dir = "" }},
		{"zero max candidates", func(c *Config) { c.Index.MaxCandidates = 0 }},
		{"negative hot set", func(c *Config) { c.Index.HotSet = -1 }},
		{"zero backup keep", func(c *Config) { c.Backup.Keep = 0 }},
		{"negative debounce", func(c *Config) { c.Watcher.Debounce = -time.Second }},
		{"port out of range", func(c *Config) { c.App.HTTP.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestNewLayout(t *testing.T) {
	data := t.TempDir()
	notes := filepath.Join(t.TempDir(), "My Notes")

	l, err := NewLayout(data, notes)
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if l.NotesRoot != notes {
		t.Errorf("NotesRoot = %q, want %q", l.NotesRoot, notes)
	}
	base := filepath.Base(l.IndexPath)
	if !strings.HasPrefix(base, "My_Notes_") || !strings.HasSuffix(base, ".db") {
		t.Errorf("index file = %q", base)
	}
	if filepath.Dir(l.IndexPath) != filepath.Join(data, "indexes") {
		t.Errorf("index dir = %q", filepath.Dir(l.IndexPath))
	}
	if filepath.Base(l.BackupDir) != strings.TrimSuffix(base, ".db") {
		t.Errorf("backup dir %q does not share the index key %q", l.BackupDir, base)
	}
}

func TestNewLayout_DistinctRootsSameName(t *testing.T) {
	data := t.TempDir()
	a, _ := NewLayout(data, filepath.Join(t.TempDir(), "notes"))
	b, _ := NewLayout(data, filepath.Join(t.TempDir(), "notes"))
	if a.IndexPath == b.IndexPath || a.BackupDir == b.BackupDir {
		t.Errorf("two roots share state: %q / %q", a.IndexPath, b.IndexPath)
	}
}
