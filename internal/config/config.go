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

// LLM contains connection settings for the translation model provider.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RetryAttempts  int     `toml:"retry_attempts"`
}

// Translation contains chunking and job lifecycle settings.
type Translation struct {
	ChunkSizeChars     int  `toml:"chunk_size_chars"`
	MaxChunks          int  `toml:"max_chunks"`
	PreserveCodeBlocks bool `toml:"preserve_code_blocks"`
	JobTimeoutSeconds  int  `toml:"job_timeout_seconds"`
	MaxChunkRetries    int  `toml:"max_chunk_retries"`
}

// Cache contains settings for the translation cache table.
type Cache struct {
	Enabled              bool    `toml:"enabled"`
	DefaultTTLHours      int     `toml:"default_ttl_hours"`
	HighQualityTTLHours  int     `toml:"high_quality_ttl_hours"`
	LowQualityTTLHours   int     `toml:"low_quality_ttl_hours"`
	HighQualityThreshold float64 `toml:"high_quality_threshold"`
	LowQualityThreshold  float64 `toml:"low_quality_threshold"`
	PurgeIntervalSeconds int     `toml:"purge_interval_seconds"`
}

// Workflow contains daemon sweep timing and intervals.
type Workflow struct {
	TimeoutSweepInterval  int `toml:"timeout_sweep_interval"`
	RetryPollInterval     int `toml:"retry_poll_interval"`
	StaleProcessingCutoff int `toml:"stale_processing_cutoff"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths       Paths       `toml:"paths"`
	LLM         LLM         `toml:"llm"`
	Translation Translation `toml:"translation"`
	Cache       Cache       `toml:"cache"`
	Workflow    Workflow    `toml:"workflow"`
	Logging     Logging     `toml:"logging"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	return "~/.config/glossa/config.toml"
}

// Load reads the config file at path (or the default location when path is
// empty), applies defaults for unset fields, normalizes, and validates.
// It returns the config, the resolved path, and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}
	resolved = ExpandPath(resolved)

	cfg := Default()
	exists := true
	data, err := os.ReadFile(resolved)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, resolved, false, fmt.Errorf("read config %s: %w", resolved, err)
		}
		exists = false
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, resolved, true, fmt.Errorf("parse config %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolved, exists, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, exists, err
	}
	return &cfg, resolved, exists, nil
}

// CreateSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func CreateSample(path string) error {
	path = ExpandPath(path)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "glossa.db")
}

// LockPath returns the daemon lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "glossad.lock")
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath expands a leading ~ to the current user's home directory.
func ExpandPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || trimmed[0] != '~' {
		return trimmed
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return trimmed
	}
	if trimmed == "~" {
		return home
	}
	if strings.HasPrefix(trimmed, "~/") {
		return filepath.Join(home, trimmed[2:])
	}
	return trimmed
}
