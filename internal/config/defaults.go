package config

import "time"

const (
	DefaultChunkSize      = 1000
	DefaultOverlap        = 200
	DefaultAlpha          = 0.5
	DefaultK              = 5
	DefaultTopKCandidates = 100
	DefaultTimeout        = 30 * time.Second

	DefaultOpenAIModel      = "text-embedding-ada-002"
	DefaultOpenAIDimensions = 1536

	DefaultPineconeController = "https://api.pinecone.io"
	DefaultPineconeIndex      = "research-assistant"
	DefaultPineconeMetric     = "cosine"
	DefaultPineconeCloud      = "aws"
	DefaultPineconeRegion     = "us-east-1"

	DefaultWeaviateURL = "http://localhost:8080"
	DefaultClass       = "ResearchDocument"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	e := &cfg.Embedding
	if e.Provider == "" {
		e.Provider = ProviderMock
	}
	switch e.Provider {
	case ProviderOpenAI:
		if e.Model == "" {
			e.Model = DefaultOpenAIModel
		}
		if e.Dimensions == 0 {
			e.Dimensions = DefaultOpenAIDimensions
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "OPENAI_API_KEY"
		}
	case ProviderONNX:
		if e.ModelPath == "" {
			e.ModelPath = "/usr/local/var/ragstore/models/all-MiniLM-L6-v2.onnx"
		}
		if e.Dimensions == 0 {
			e.Dimensions = 384
		}
		if e.MaxTokens == 0 {
			e.MaxTokens = 256
		}
	default:
		if e.Dimensions == 0 {
			e.Dimensions = 384
		}
	}
	if e.BatchSize == 0 {
		e.BatchSize = 100
	}
	if e.CacheSize == 0 {
		e.CacheSize = 10000
	}

	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.Overlap == nil {
		o := DefaultOverlap
		cfg.Chunking.Overlap = &o
	}

	s := &cfg.Store
	if s.Type == "" {
		s.Type = StoreMemory
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.DefaultAlpha == nil {
		a := DefaultAlpha
		s.DefaultAlpha = &a
	}
	if s.DefaultK == 0 {
		s.DefaultK = DefaultK
	}
	if s.TopKCandidates == 0 {
		s.TopKCandidates = DefaultTopKCandidates
	}

	p := &s.Pinecone
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = "PINECONE_API_KEY"
	}
	if p.ControllerURL == "" {
		p.ControllerURL = DefaultPineconeController
	}
	if p.IndexName == "" {
		p.IndexName = DefaultPineconeIndex
	}
	if p.Dimension == 0 {
		p.Dimension = e.Dimensions
	}
	if p.Metric == "" {
		p.Metric = DefaultPineconeMetric
	}
	if p.Cloud == "" {
		p.Cloud = DefaultPineconeCloud
	}
	if p.Region == "" {
		p.Region = DefaultPineconeRegion
	}

	w := &s.Weaviate
	if w.URL == "" {
		w.URL = DefaultWeaviateURL
	}
	if w.APIKeyEnv == "" {
		w.APIKeyEnv = "WEAVIATE_API_KEY"
	}
	if w.Class == "" {
		w.Class = DefaultClass
	}

	if s.Local.DataDir == "" {
		s.Local.DataDir = "/usr/local/var/ragstore/data"
	}
	if s.Local.Class == "" {
		s.Local.Class = DefaultClass
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
