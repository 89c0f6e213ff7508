package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tessera/internal/checksum"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Notes   NotesConfig       `yaml:"notes"`
	Data    DataConfig        `yaml:"data"`
	Index   IndexConfig       `yaml:"index"`
	Backup  BackupConfig      `yaml:"backup"`
	Watcher WatcherConfig     `yaml:"watcher"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Notes, &c.Data, &c.Index, &c.Backup, &c.Watcher, &c.Auth,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig holds the path to the notes root.
type NotesConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DataConfig holds the application data directory. Indexes and backups
// live below it, one set per notes root.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// IndexConfig tunes the index and the search ranker.
type IndexConfig struct {
	HotSet           int `yaml:"hot_set"`
	MaxCandidates    int `yaml:"max_candidates"`
	QuickCheckSample int `yaml:"quick_check_sample"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.HotSet, validation.Min(0)),
		validation.Field(&c.MaxCandidates, validation.Required, validation.Min(1)),
		validation.Field(&c.QuickCheckSample, validation.Required, validation.Min(1)),
	)
}

// BackupConfig controls backup retention.
type BackupConfig struct {
	Keep int `yaml:"keep"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Keep, validation.Required, validation.Min(1)),
	)
}

// WatcherConfig controls the filesystem watcher.
type WatcherConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Debounce        time.Duration `yaml:"debounce"`
	SelfWriteWindow time.Duration `yaml:"self_write_window"`
}

// Validate validates the watcher configuration.
func (c *WatcherConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.SelfWriteWindow, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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

// Layout is the on-disk location of everything derived from one notes root.
type Layout struct {
	NotesRoot string
	IndexPath string
	BackupDir string
}

// NewLayout resolves the index and backup locations for notesPath under
// dataDir. Both are keyed by a readable name plus a hash of the absolute
// notes root, so two roots with the same base name never share state.
func NewLayout(dataDir, notesPath string) (Layout, error) {
	abs, err := filepath.Abs(notesPath)
	if err != nil {
		return Layout{}, fmt.Errorf("config: resolve notes path: %w", err)
	}
	key := friendlyName(abs) + "_" + checksum.Short(abs)
	return Layout{
		NotesRoot: abs,
		IndexPath: filepath.Join(dataDir, "indexes", key+".db"),
		BackupDir: filepath.Join(dataDir, "backups", key),
	}, nil
}

func friendlyName(abs string) string {
	base := filepath.Base(abs)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "notes"
	}
	return strings.ReplaceAll(base, " ", "_")
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Path: "./notes",
		},
		Data: DataConfig{
			Dir: "./data",
		},
		Index: IndexConfig{
			HotSet:           2000,
			MaxCandidates:    500,
			QuickCheckSample: 100,
		},
		Backup: BackupConfig{
			Keep: 20,
		},
		Watcher: WatcherConfig{
			Enabled:         true,
			Debounce:        500 * time.Millisecond,
			SelfWriteWindow: 3 * time.Second,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
