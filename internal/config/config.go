package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Database DBConfig      `yaml:"database"`
	EmbedLLM LLMConfig     `yaml:"embed_llm"`
	ChatLLM  LLMConfig     `yaml:"chat_llm"`
	RAG      RAGConfig     `yaml:"rag"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the corpus store driver.
type StorageConfig struct {
	// Driver is one of "postgres", "chromem", "qdrant".
	Driver string `yaml:"driver"`

	// Path is the on-disk location for the chromem driver; empty means
	// in-memory.
	Path string `yaml:"path"`

	// Collection names the qdrant collection.
	Collection string `yaml:"collection"`

	// URL and APIKey configure the qdrant driver.
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`

	// Dimension is the embedding vector size; must match the embedding
	// model across ingestion and query.
	Dimension int `yaml:"dimension"`
}

type DBConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	SearchLimit   int `yaml:"search_limit"`
	CandidatePool int `yaml:"candidate_pool"`
	EmbedWorkers  int `yaml:"embed_workers"`
}

// LoadConfig reads the YAML config at path. ${VAR} values are expanded from
// the environment so secrets can live in the process environment or a .env
// file rather than on disk.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Storage.Collection == "" {
		cfg.Storage.Collection = "sitechat"
	}
	if cfg.Storage.Dimension == 0 {
		cfg.Storage.Dimension = 768
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 500
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 50
	}
	if cfg.RAG.SearchLimit == 0 {
		cfg.RAG.SearchLimit = 5
	}
	if cfg.RAG.CandidatePool == 0 {
		cfg.RAG.CandidatePool = 100
	}
	if cfg.RAG.EmbedWorkers == 0 {
		cfg.RAG.EmbedWorkers = 4
	}
}
