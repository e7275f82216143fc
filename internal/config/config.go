// Package config provides configuration management for the iter CLI.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the CLI's configuration.
type Config struct {
	Service ServiceConfig `toml:"service"`
	LLM     LLMConfig     `toml:"llm"`
	Index   IndexConfig   `toml:"index"`
	Logging LoggingConfig `toml:"logging"`
}

// ServiceConfig contains process-level settings: where the monitor's
// HTTP/WebSocket feed listens, and where run state (traces, snapshots,
// analytics) is kept.
type ServiceConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	DataDir         string `toml:"data_dir"`
	ShutdownTimeout int    `toml:"shutdown_timeout_seconds"`
}

// LLMConfig selects and tunes the reasoning collaborator.
type LLMConfig struct {
	Provider    string  `toml:"provider"`
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	TimeoutSecs int     `toml:"timeout_seconds"`
}

// IndexConfig contains indexing and file-watch settings.
type IndexConfig struct {
	ExcludeGlobs      []string `toml:"exclude_globs"`
	IncludeExts       []string `toml:"include_extensions"`
	MaxFileSize       int64    `toml:"max_file_size_bytes"`
	DebounceMs        int      `toml:"debounce_ms"`
	WatchEnabled      bool     `toml:"watch_enabled"`
	MaxSymbolsPerFile int      `toml:"max_symbols_per_file"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string      `toml:"level"`
	Format     string      `toml:"format"`
	Output     StringSlice `toml:"output"`
	TimeFormat string      `toml:"time_format"`
	MaxSizeMB  int         `toml:"max_size_mb"`
	MaxBackups int         `toml:"max_backups"`
	MaxAgeDays int         `toml:"max_age_days"`
	Compress   bool        `toml:"compress"`
}

// StringSlice is a custom type that can unmarshal from either a string or []string.
type StringSlice []string

// UnmarshalTOML implements toml.Unmarshaler for flexible config parsing.
func (s *StringSlice) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		*s = []string{v}
	case []interface{}:
		result := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("expected string in array, got %T", item)
			}
			result[i] = str
		}
		*s = result
	default:
		return fmt.Errorf("expected string or array, got %T", data)
	}
	return nil
}

// DefaultConfig returns the default configuration with all values set.
// Environment variables ITER_HOST and ITER_PORT can override defaults.
func DefaultConfig() *Config {
	dataDir := DefaultDataDir()

	host := "127.0.0.1"
	if envHost := os.Getenv("ITER_HOST"); envHost != "" {
		host = envHost
	}

	port := 8420
	if envPort := os.Getenv("ITER_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			port = p
		}
	}

	return &Config{
		Service: ServiceConfig{
			Host:            host,
			Port:            port,
			DataDir:         dataDir,
			ShutdownTimeout: 30,
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			APIKey:      os.Getenv("ANTHROPIC_API_KEY"),
			Model:       "claude-sonnet-4-20250514",
			MaxTokens:   4096,
			Temperature: 0.3,
			TimeoutSecs: 300,
		},
		Index: IndexConfig{
			ExcludeGlobs: []string{
				"vendor/**",
				"node_modules/**",
				".git/**",
				"*.min.js",
				"*.min.css",
				"dist/**",
				"build/**",
				"__pycache__/**",
				"*.pyc",
				".venv/**",
				"target/**",
			},
			IncludeExts: []string{
				".go", ".py", ".js", ".ts", ".tsx", ".jsx",
				".java", ".kt", ".scala", ".rs", ".c", ".cpp",
				".h", ".hpp", ".cs", ".rb", ".php", ".swift",
				".m", ".mm", ".sql", ".sh", ".bash", ".zsh",
			},
			MaxFileSize:       1024 * 1024,
			DebounceMs:        500,
			WatchEnabled:      true,
			MaxSymbolsPerFile: 1000,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     StringSlice{"file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
	}
}

// DefaultDataDir returns the default data directory based on OS.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "iter")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "iter")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "iter")
	default:
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData != "" {
			return filepath.Join(xdgData, "iter")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".iter")
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.toml")
}

// Load loads configuration from a file, merging with defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadFromString loads configuration from a TOML string, merging with defaults.
func LoadFromString(tomlStr string) (*Config, error) {
	cfg := DefaultConfig()

	expanded := os.ExpandEnv(tomlStr)

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("parse config string: %w", err)
	}

	cfg.expandPaths()
	return cfg, nil
}

func (c *Config) expandPaths() {
	home, _ := os.UserHomeDir()

	expandTilde := func(path string) string {
		if strings.HasPrefix(path, "~/") {
			return filepath.Join(home, path[2:])
		}
		return path
	}

	c.Service.DataDir = expandTilde(c.Service.DataDir)
}

// Save saves the configuration to a file in TOML format.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	return nil
}

// WriteExampleConfig writes an example config file with comments.
func WriteExampleConfig(path string) error {
	example := `# iter configuration file
# All values shown are defaults - uncomment and modify as needed

[service]
# Address the monitor's HTTP/WebSocket feed binds to
host = "127.0.0.1"
port = 8420
# Directory for run state: traces, snapshots, analytics buffer
# data_dir = "~/.iter"
shutdown_timeout_seconds = 30

[llm]
# LLM provider: anthropic, ollama, gemini
provider = "anthropic"
api_key = "${ANTHROPIC_API_KEY}"
model = "claude-sonnet-4-20250514"
max_tokens = 4096
temperature = 0.3
timeout_seconds = 300

[index]
exclude_globs = [
    "vendor/**",
    "node_modules/**",
    ".git/**",
    "*.min.js",
    "*.min.css",
    "dist/**",
    "build/**",
    "__pycache__/**",
    "*.pyc",
    ".venv/**",
    "target/**",
]
include_extensions = [
    ".go", ".py", ".js", ".ts", ".tsx", ".jsx",
    ".java", ".kt", ".scala", ".rs", ".c", ".cpp",
    ".h", ".hpp", ".cs", ".rb", ".php", ".swift",
    ".m", ".mm", ".sql", ".sh", ".bash", ".zsh",
]
max_file_size_bytes = 1048576
debounce_ms = 500
watch_enabled = true
max_symbols_per_file = 1000

[logging]
level = "info"
format = "text"
output = ["file"]
time_format = "15:04:05.000"
max_size_mb = 100
max_backups = 5
max_age_days = 30
compress = true
`

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return os.WriteFile(path, []byte(example), 0644)
}

// Address returns the full address string for the monitor's HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

// LogPath returns the path to the CLI's log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Service.DataDir, "logs", "iter.log")
}

// AnalyticsDir returns the path to the KPI JSONL buffer directory.
func (c *Config) AnalyticsDir() string {
	return filepath.Join(c.Service.DataDir, "analytics", "buffer")
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Service.DataDir,
		filepath.Dir(c.LogPath()),
		c.AnalyticsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ProjectHash generates a unique hash for a project path. Returns the
// first 16 characters of the SHA256 hash, used to namespace a
// project's trace/snapshot directories under the data dir.
func ProjectHash(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	absPath = filepath.Clean(absPath)

	h := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(h[:])[:16]
}

// ProjectDataDir returns the data directory for a specific project.
func (c *Config) ProjectDataDir(projectPath string) string {
	return filepath.Join(c.Service.DataDir, "projects", ProjectHash(projectPath))
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Service.Port)
	}

	if c.Service.ShutdownTimeout < 1 {
		return fmt.Errorf("shutdown_timeout_seconds must be at least 1")
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0.0 and 1.0")
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c

	clone.Index.ExcludeGlobs = make([]string, len(c.Index.ExcludeGlobs))
	copy(clone.Index.ExcludeGlobs, c.Index.ExcludeGlobs)

	clone.Index.IncludeExts = make([]string, len(c.Index.IncludeExts))
	copy(clone.Index.IncludeExts, c.Index.IncludeExts)

	clone.Logging.Output = make(StringSlice, len(c.Logging.Output))
	copy(clone.Logging.Output, c.Logging.Output)

	return &clone
}
