// Package config provides configuration loading and structs for the ragstore server and CLI.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Store     StoreConfig     `yaml:"store"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Embedding provider names.
const (
	ProviderMock   = "mock"
	ProviderOpenAI = "openai"
	ProviderONNX   = "onnx"
)

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	BatchSize         int     `yaml:"batch_size"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	CacheSize         int     `yaml:"cache_size"`
	ModelPath         string  `yaml:"model_path"`
	MaxTokens         int     `yaml:"max_tokens"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	BaseURL           string  `yaml:"base_url"`

	// APIKey is resolved from the environment, never read from or written to YAML.
	APIKey string `yaml:"-"`
}

// ChunkingConfig holds splitter parameters in characters.
type ChunkingConfig struct {
	ChunkSize int  `yaml:"chunk_size"`
	Overlap   *int `yaml:"overlap"`
}

// OverlapOrDefault returns the configured overlap; 200 when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.Overlap != nil {
		return *c.Overlap
	}
	return DefaultOverlap
}

// Store backend names.
const (
	StoreMemory   = "memory"
	StorePinecone = "pinecone"
	StoreLocal    = "local"
	StoreWeaviate = "weaviate"
)

// StoreConfig selects the backing store.
type StoreConfig struct {
	Type           string         `yaml:"type"`
	Timeout        time.Duration  `yaml:"timeout"`
	DefaultAlpha   *float64       `yaml:"default_alpha"`
	DefaultK       int            `yaml:"default_k"`
	TopKCandidates int            `yaml:"top_k_candidates"`
	Pinecone       PineconeConfig `yaml:"pinecone"`
	Weaviate       WeaviateConfig `yaml:"weaviate"`
	Local          LocalConfig    `yaml:"local"`
}

// AlphaOrDefault returns the configured hybrid weight; 0.5 when unset.
// 0.0 is a valid choice (keyword only), so unset is modelled as nil.
func (s *StoreConfig) AlphaOrDefault() float64 {
	if s.DefaultAlpha != nil {
		return *s.DefaultAlpha
	}
	return DefaultAlpha
}

// PineconeConfig holds the Pinecone control and data plane settings.
type PineconeConfig struct {
	APIKeyEnv     string `yaml:"api_key_env"`
	ControllerURL string `yaml:"controller_url"`
	IndexName     string `yaml:"index_name"`
	Dimension     int    `yaml:"dimension"`
	Metric        string `yaml:"metric"`
	Cloud         string `yaml:"cloud"`
	Region        string `yaml:"region"`
	Namespace     string `yaml:"namespace"`

	APIKey string `yaml:"-"`
}

// WeaviateConfig holds the Weaviate endpoint and class.
type WeaviateConfig struct {
	URL       string `yaml:"url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Class     string `yaml:"class"`

	APIKey string `yaml:"-"`
}

// LocalConfig holds the on-disk hybrid store location.
type LocalConfig struct {
	DataDir string `yaml:"data_dir"`
	Class   string `yaml:"class"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, applies defaults, expands paths
// and resolves credentials from the environment. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rserr.Wrap(err, rserr.CodeConfigLoadFailure, "failed to read config", rserr.Field("path", path))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, rserr.Wrap(err, rserr.CodeConfigLoadFailure, "failed to parse config", rserr.Field("path", path))
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.Local.DataDir = expandPath(cfg.Store.Local.DataDir, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	ApplyEnv(&cfg)
	return &cfg, nil
}

// Save writes the config to path. Credentials are never written.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return rserr.Wrap(err, rserr.CodeConfigLoadFailure, "failed to marshal config")
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return rserr.Wrap(err, rserr.CodeConfigLoadFailure, "failed to write config", rserr.Field("path", path))
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
