package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/nki-radiology/SegmentationReview/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Viewer contains connection settings for the viewer bridge socket.
type Viewer struct {
	Socket         string `toml:"socket"`
	ConnectTimeout int    `toml:"connect_timeout"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Review contains session behavior knobs.
type Review struct {
	// DefaultDirectory preselects a case root when the daemon starts.
	// Empty means the operator picks one with `segreview select`.
	DefaultDirectory string   `toml:"default_directory"`
	EditorEffects    []string `toml:"editor_effects"`
	UndoDepth        int      `toml:"undo_depth"`
	LabelPresets     string   `toml:"label_presets"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic        string `toml:"ntfy_topic"`
	RequestTimeout   int    `toml:"request_timeout"`
	SessionStarted   bool   `toml:"session_started"`
	SessionCompleted bool   `toml:"session_completed"`
	Errors           bool   `toml:"errors"`
}

// Preflight contains thresholds for startup and pre-save checks.
type Preflight struct {
	MinFreeMiB int `toml:"min_free_mib"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format       string `toml:"format"`
	Level        string `toml:"level"`
	TailCapacity int    `toml:"tail_capacity"`
}

// Config encapsulates all configuration values for SegmentationReview.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and control API bind address
//   - Viewer: viewer bridge socket and call timeouts
//   - Review: session behavior (editor effects, undo depth, label presets)
//   - Notifications: ntfy push notification settings
//   - Preflight: disk-space floor for saves
//   - Logging: log format, level, and tail buffer size
type Config struct {
	Paths         Paths         `toml:"paths"`
	Viewer        Viewer        `toml:"viewer"`
	Review        Review        `toml:"review"`
	Notifications Notifications `toml:"notifications"`
	Preflight     Preflight     `toml:"preflight"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/segreview/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("segreview.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorklistDatabasePath returns the location of the per-session worklist store.
func (c *Config) WorklistDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "worklist.db")
}

// LockFilePath returns the daemon's single-instance lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "segreviewd.lock")
}

// PIDFilePath returns where the running daemon records its process id.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.Paths.DataDir, "segreviewd.pid")
}

// DaemonLogPath returns the daemon's primary log file.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "segreviewd.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
