package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	rserr "github.com/hyperjump/ragstore/pkg/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
store:
  type: local
  timeout: 5s
  local:
    data_dir: "./data"
chunking:
  chunk_size: 500
  overlap: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Store.Timeout != 5*time.Second {
		t.Errorf("timeout: got %v", cfg.Store.Timeout)
	}
	if want := filepath.Join(filepath.Dir(path), "data"); cfg.Store.Local.DataDir != want {
		t.Errorf("data_dir = %s, want %s", cfg.Store.Local.DataDir, want)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.OverlapOrDefault() != 0 {
		t.Errorf("chunking: got size=%d overlap=%d", cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !rserr.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoad_badYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); !rserr.HasCode(err, rserr.CodeConfigLoadFailure) {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
watch:
  directories: ["./dev/sample"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	want := filepath.Join(filepath.Dir(path), "dev", "sample")
	if cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
}

func TestLoad_envCredentials(t *testing.T) {
	t.Setenv("MY_PINECONE_KEY", "pc-secret")
	t.Setenv("WEAVIATE_URL", "http://weaviate.internal:8080")
	path := writeConfig(t, `
store:
  type: pinecone
  pinecone:
    api_key_env: MY_PINECONE_KEY
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Pinecone.APIKey != "pc-secret" {
		t.Errorf("pinecone api key: got %q", cfg.Store.Pinecone.APIKey)
	}
	if cfg.Store.Weaviate.URL != "http://weaviate.internal:8080" {
		t.Errorf("weaviate url override: got %q", cfg.Store.Weaviate.URL)
	}
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("RAGSTORE_TEST_KEY=from-dotenv\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGSTORE_TEST_KEY", "")
	os.Unsetenv("RAGSTORE_TEST_KEY")
	if err := LoadEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("RAGSTORE_TEST_KEY"); got != "from-dotenv" {
		t.Errorf("RAGSTORE_TEST_KEY = %q", got)
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("explicit missing env file should fail")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8000 {
		t.Errorf("default server: got %+v", cfg.Server)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.OverlapOrDefault() != 200 {
		t.Errorf("default chunking: got %d/%d", cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault())
	}
	if cfg.Store.Type != StoreMemory {
		t.Errorf("default store: got %s", cfg.Store.Type)
	}
	if cfg.Store.AlphaOrDefault() != 0.5 {
		t.Errorf("default alpha: got %f", cfg.Store.AlphaOrDefault())
	}
	if cfg.Store.Pinecone.IndexName != "research-assistant" || cfg.Store.Pinecone.Region != "us-east-1" {
		t.Errorf("pinecone defaults: got %+v", cfg.Store.Pinecone)
	}
	if cfg.Store.Weaviate.Class != "ResearchDocument" || cfg.Store.Weaviate.URL != "http://localhost:8080" {
		t.Errorf("weaviate defaults: got %+v", cfg.Store.Weaviate)
	}
	if len(cfg.Watch.Extensions) != 6 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_openAI(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: ProviderOpenAI}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 1536 || cfg.Embedding.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai defaults: got %+v", cfg.Embedding)
	}
	if cfg.Store.Pinecone.Dimension != 1536 {
		t.Errorf("pinecone dimension should follow embedding: got %d", cfg.Store.Pinecone.Dimension)
	}
}

func TestApplyDefaults_explicitZeroAlphaKept(t *testing.T) {
	zero := 0.0
	cfg := &Config{Store: StoreConfig{DefaultAlpha: &zero}}
	ApplyDefaults(cfg)
	if cfg.Store.AlphaOrDefault() != 0 {
		t.Errorf("explicit alpha 0 overwritten: got %f", cfg.Store.AlphaOrDefault())
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	f := false
	if !(&WatchConfig{}).RecursiveOrDefault() {
		t.Error("nil should default to true")
	}
	if (&WatchConfig{Recursive: &f}).RecursiveOrDefault() {
		t.Error("explicit false should be kept")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   rserr.Code
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"overlap equals size", func(c *Config) { o := 1000; c.Chunking.Overlap = &o }, rserr.CodeConfigInvalidValue},
		{"negative overlap", func(c *Config) { o := -1; c.Chunking.Overlap = &o }, rserr.CodeConfigInvalidValue},
		{"alpha above one", func(c *Config) { a := 1.5; c.Store.DefaultAlpha = &a }, rserr.CodeConfigInvalidValue},
		{"unknown store", func(c *Config) { c.Store.Type = "chroma" }, rserr.CodeConfigInvalidValue},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "cohere" }, rserr.CodeConfigInvalidValue},
		{"openai without key", func(c *Config) { c.Embedding.Provider = ProviderOpenAI }, rserr.CodeConfigMissingCredential},
		{"pinecone without key", func(c *Config) { c.Store.Type = StorePinecone }, rserr.CodeConfigMissingCredential},
		{"pinecone dimension mismatch", func(c *Config) {
			c.Store.Type = StorePinecone
			c.Store.Pinecone.APIKey = "k"
			c.Store.Pinecone.Dimension = 1536
		}, rserr.CodeConfigDimensionMismatch},
		{"weaviate without key is fine", func(c *Config) { c.Store.Type = StoreWeaviate }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.code == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !rserr.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			if !rserr.IsConfiguration(err) {
				t.Errorf("expected configuration kind, got %v", err)
			}
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{Server: ServerConfig{Host: "localhost", Port: 9090}}
	cfg.Embedding.APIKey = "secret"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) == "" || strings.Contains(string(data), "secret") {
		t.Error("credentials must not be persisted")
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
