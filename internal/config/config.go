// Package config provides configuration loading and structs for the ytrag server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Vector      VectorConfig      `yaml:"vector"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Segmenter   SegmenterConfig   `yaml:"segmenter"`
	Translation TranslationConfig `yaml:"translation"`
	Transcript  TranscriptConfig  `yaml:"transcript"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Lock        LockConfig        `yaml:"lock"`
	Watch       WatchConfig       `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the transcript cache and the keyword index.
// An empty keyword_index_path keeps the index in memory.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// VectorConfig selects and configures the vector database.
type VectorConfig struct {
	// Driver is one of qdrant (gRPC with REST fallback), qdrant-rest, pgvector, memory.
	Driver         string `yaml:"driver"`
	URL            string `yaml:"url"`
	GRPCPort       int    `yaml:"grpc_port"`
	APIKey         string `yaml:"api_key"`
	UseTLS         bool   `yaml:"use_tls"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	PostgresURL    string `yaml:"postgres_url"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	// Provider is one of openai (any OpenAI-compatible endpoint), onnx, mock.
	Provider      string `yaml:"provider"`
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	CacheSize     int    `yaml:"cache_size"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
	MaxTokens     int    `yaml:"max_tokens"`
}

// SegmenterConfig holds chunking settings.
type SegmenterConfig struct {
	TargetSize     int `yaml:"target_size"`
	OverlapEntries int `yaml:"overlap_entries"`
}

// TranslationConfig holds chunk translation settings.
type TranslationConfig struct {
	Enabled *bool `yaml:"enabled"`
	// Mode is "process" (killable worker subprocess) or "inline" (in-process with timeout).
	Mode           string `yaml:"mode"`
	TargetLanguage string `yaml:"target_language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Endpoint       string `yaml:"endpoint"`
}

// EnabledOrDefault returns whether translation is enabled; defaults to true when unset.
func (t *TranslationConfig) EnabledOrDefault() bool {
	if t.Enabled != nil {
		return *t.Enabled
	}
	return true
}

// TranscriptConfig holds caption source settings.
type TranscriptConfig struct {
	// Sources are tried in order: files, watchpage, ytdlp.
	Sources        []string `yaml:"sources"`
	CaptionsDir    string   `yaml:"captions_dir"`
	YtDlpPath      string   `yaml:"ytdlp_path"`
	WatchURL       string   `yaml:"watch_url"`
	Languages      []string `yaml:"languages"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// RetrievalConfig holds query defaults.
type RetrievalConfig struct {
	DefaultK      int    `yaml:"default_k"`
	MaxK          int    `yaml:"max_k"`
	OverviewK     int    `yaml:"overview_k"`
	OverviewQuery string `yaml:"overview_query"`
	MomentsLimit  int    `yaml:"moments_limit"`
}

// LockConfig holds ingest lock settings. Without redis_addr an in-process lock is used.
type LockConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
	WaitSeconds   int    `yaml:"wait_seconds"`
}

// WatchConfig holds caption drop-folder watch settings.
type WatchConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Extensions []string `yaml:"extensions"`
	Recursive  *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ExpandPaths(&cfg, filepath.Dir(path))
	return &cfg, nil
}

// ExpandPaths makes every configured filesystem path absolute.
func ExpandPaths(cfg *Config, configDir string) {
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.TokenizerPath = expandPath(cfg.Embedding.TokenizerPath, configDir)
	cfg.Transcript.CaptionsDir = expandPath(cfg.Transcript.CaptionsDir, configDir)
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
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
