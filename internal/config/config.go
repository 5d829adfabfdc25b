// Package config loads vectorfsd's configuration with the same layering
// the teacher used: hardcoded defaults, then a user config file, then a
// mount-local config file, then environment variables, each step
// overriding only the fields it sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete vectorfsd configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Mount      MountConfig      `yaml:"mount" json:"mount"`
	Containers ContainersConfig `yaml:"containers" json:"containers"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Bus        BusConfig        `yaml:"bus" json:"bus"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// MountConfig configures the FUSE mount.
type MountConfig struct {
	MountPoint string `yaml:"mount_point" json:"mount_point"`
	AllowOther bool   `yaml:"allow_other" json:"allow_other"`
	ReadOnly   bool   `yaml:"read_only" json:"read_only"`
}

// ContainersConfig configures the default resource budget handed to a
// newly created container when its request omits one.
type ContainersConfig struct {
	DefaultStorageQuota   int64 `yaml:"default_storage_quota" json:"default_storage_quota"`
	DefaultMemoryCapacity int64 `yaml:"default_memory_capacity" json:"default_memory_capacity"`
	DefaultMaxOpenFiles   int64 `yaml:"default_max_open_files" json:"default_max_open_files"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// SearchConfig tunes the hybrid search, graph and HMM components.
type SearchConfig struct {
	SimilarityEdgeThreshold float64       `yaml:"similarity_edge_threshold" json:"similarity_edge_threshold"`
	RandomWalkIterations    int           `yaml:"random_walk_iterations" json:"random_walk_iterations"`
	RandomWalkLength        int           `yaml:"random_walk_length" json:"random_walk_length"`
	HMMTrainingWindow       int           `yaml:"hmm_training_window" json:"hmm_training_window"`
	ModelRefreshInterval    time.Duration `yaml:"model_refresh_interval" json:"model_refresh_interval"`
	MaxResults              int           `yaml:"max_results" json:"max_results"`
}

// BusConfig configures the NATS message bus client.
type BusConfig struct {
	URL           string        `yaml:"url" json:"url"`
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	RetryInterval time.Duration `yaml:"retry_interval" json:"retry_interval"`
}

// ServerConfig configures the HTTP control-plane edge.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Mount: MountConfig{
			MountPoint: defaultMountPoint(),
			AllowOther: false,
			ReadOnly:   false,
		},
		Containers: ContainersConfig{
			DefaultStorageQuota:   256 << 20,
			DefaultMemoryCapacity: 64 << 20,
			DefaultMaxOpenFiles:   256,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // empty triggers auto-detection: remote → static
			Model:      "nomic-embed-text",
			Dimensions: 0, // auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "",
		},
		Search: SearchConfig{
			SimilarityEdgeThreshold: 0.3,
			RandomWalkIterations:    1000,
			RandomWalkLength:        50,
			HMMTrainingWindow:       10,
			ModelRefreshInterval:    5 * time.Minute,
			MaxResults:              20,
		},
		Bus: BusConfig{
			URL:           "nats://127.0.0.1:4222",
			MaxRetries:    5,
			RetryInterval: 100 * time.Millisecond,
		},
		Server: ServerConfig{
			ListenAddr: ":8765",
			LogLevel:   "info",
		},
	}
}

func defaultMountPoint() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vectorfs", "mnt")
	}
	return filepath.Join(home, "vectorfs", "mnt")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG base directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vectorfs", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "vectorfs", "config.yaml")
	}
	return filepath.Join(home, ".config", "vectorfs", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := &Config{}
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the effective configuration for dir: defaults, then the
// user config, then dir/.vectorfs.yaml, then environment overrides.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".vectorfs.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".vectorfs.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays the non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Mount.MountPoint != "" {
		c.Mount.MountPoint = other.Mount.MountPoint
	}
	c.Mount.AllowOther = c.Mount.AllowOther || other.Mount.AllowOther
	c.Mount.ReadOnly = c.Mount.ReadOnly || other.Mount.ReadOnly

	if other.Containers.DefaultStorageQuota != 0 {
		c.Containers.DefaultStorageQuota = other.Containers.DefaultStorageQuota
	}
	if other.Containers.DefaultMemoryCapacity != 0 {
		c.Containers.DefaultMemoryCapacity = other.Containers.DefaultMemoryCapacity
	}
	if other.Containers.DefaultMaxOpenFiles != 0 {
		c.Containers.DefaultMaxOpenFiles = other.Containers.DefaultMaxOpenFiles
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}

	if other.Search.SimilarityEdgeThreshold != 0 {
		c.Search.SimilarityEdgeThreshold = other.Search.SimilarityEdgeThreshold
	}
	if other.Search.RandomWalkIterations != 0 {
		c.Search.RandomWalkIterations = other.Search.RandomWalkIterations
	}
	if other.Search.RandomWalkLength != 0 {
		c.Search.RandomWalkLength = other.Search.RandomWalkLength
	}
	if other.Search.HMMTrainingWindow != 0 {
		c.Search.HMMTrainingWindow = other.Search.HMMTrainingWindow
	}
	if other.Search.ModelRefreshInterval != 0 {
		c.Search.ModelRefreshInterval = other.Search.ModelRefreshInterval
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Bus.URL != "" {
		c.Bus.URL = other.Bus.URL
	}
	if other.Bus.MaxRetries != 0 {
		c.Bus.MaxRetries = other.Bus.MaxRetries
	}
	if other.Bus.RetryInterval != 0 {
		c.Bus.RetryInterval = other.Bus.RetryInterval
	}

	if other.Server.ListenAddr != "" {
		c.Server.ListenAddr = other.Server.ListenAddr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VECTORFS_MOUNT_POINT"); v != "" {
		c.Mount.MountPoint = v
	}
	if v := os.Getenv("VECTORFS_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("VECTORFS_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("VECTORFS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("VECTORFS_BUS_URL"); v != "" {
		c.Bus.URL = v
	}
	if v := os.Getenv("VECTORFS_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("VECTORFS_LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("VECTORFS_SIMILARITY_EDGE_THRESHOLD"); v != "" {
		if t, err := parseFloat64(v); err == nil && t >= 0 && t <= 1 {
			c.Search.SimilarityEdgeThreshold = t
		}
	}
	if v := os.Getenv("VECTORFS_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.Containers.DefaultStorageQuota < 0 {
		return fmt.Errorf("containers.default_storage_quota must be >= 0")
	}
	if c.Containers.DefaultMemoryCapacity < 0 {
		return fmt.Errorf("containers.default_memory_capacity must be >= 0")
	}
	if c.Containers.DefaultMaxOpenFiles < 0 {
		return fmt.Errorf("containers.default_max_open_files must be >= 0")
	}
	if c.Search.SimilarityEdgeThreshold < 0 || c.Search.SimilarityEdgeThreshold > 1 {
		return fmt.Errorf("search.similarity_edge_threshold must be within [0, 1]")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be > 0")
	}
	if c.Bus.MaxRetries < 0 {
		return fmt.Errorf("bus.max_retries must be >= 0")
	}
	return nil
}

// WriteYAML marshals c and writes it to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user/global configuration file, returning
// NewConfig defaults if none exists.
func LoadUserConfig() (*Config, error) {
	cfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return NewConfig(), nil
	}
	merged := NewConfig()
	merged.mergeWith(cfg)
	return merged, nil
}
