// Package config loads the askdesk configuration from a YAML file with
// environment-variable overrides. Defaults are applied for every field so an
// empty file (or no file at all) yields a working configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

// Config represents the complete askdesk configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" json:"paths"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval" json:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest" json:"ingest"`
	Chat      ChatConfig      `yaml:"chat" json:"chat"`
	LogLevel  string          `yaml:"log_level" json:"log_level"`
}

// PathsConfig locates on-disk state.
type PathsConfig struct {
	// DataDir is the root for all persistent state (default: ~/.askdesk).
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// IndexPath is the vector index file (default: <data_dir>/chunks.index).
	IndexPath string `yaml:"index_path" json:"index_path"`
	// DatabasePath is the SQLite database (default: <data_dir>/askdesk.db).
	DatabasePath string `yaml:"database_path" json:"database_path"`
	// BlobDir is the uploaded-file root (default: <data_dir>/blobs).
	BlobDir string `yaml:"blob_dir" json:"blob_dir"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Model string `yaml:"model" json:"model"`
	// Dimensions, when 0, is discovered at startup from a probe embedding.
	Dimensions int `yaml:"dimensions" json:"dimensions"`
	CacheSize  int `yaml:"cache_size" json:"cache_size"`
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	Model string `yaml:"model" json:"model"`
	// AnswerTemperature is used for chat answers (default 0.2); routing
	// always runs at temperature 0.
	AnswerTemperature float64 `yaml:"answer_temperature" json:"answer_temperature"`
}

// RetrievalConfig configures scoped vector search.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k" json:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold" json:"score_threshold"`
}

// IngestConfig configures chunking.
type IngestConfig struct {
	ChunkSize       int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap    int `yaml:"chunk_overlap" json:"chunk_overlap"`
	CSVRowsPerChunk int `yaml:"csv_rows_per_chunk" json:"csv_rows_per_chunk"`
}

// ChatConfig configures the per-request chat pipeline.
type ChatConfig struct {
	HistoryLimit         int `yaml:"history_limit" json:"history_limit"`
	ContextCharBudget    int `yaml:"context_char_budget" json:"context_char_budget"`
	PerMessageSnippet    int `yaml:"per_message_snippet" json:"per_message_snippet"`
	RecentMessageDisplay int `yaml:"recent_message_display" json:"recent_message_display"`
}

// Default returns the configuration defaults.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	dataDir := filepath.Join(home, ".askdesk")

	return &Config{
		Paths: PathsConfig{
			DataDir:      dataDir,
			IndexPath:    filepath.Join(dataDir, "chunks.index"),
			DatabasePath: filepath.Join(dataDir, "askdesk.db"),
			BlobDir:      filepath.Join(dataDir, "blobs"),
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			CacheSize: 1000,
		},
		LLM: LLMConfig{
			Model:             "gpt-4.1-nano",
			AnswerTemperature: 0.2,
		},
		Retrieval: RetrievalConfig{
			TopK:           5,
			ScoreThreshold: 0.55,
		},
		Ingest: IngestConfig{
			ChunkSize:       300,
			ChunkOverlap:    80,
			CSVRowsPerChunk: 20,
		},
		Chat: ChatConfig{
			HistoryLimit:         20,
			ContextCharBudget:    1000,
			PerMessageSnippet:    200,
			RecentMessageDisplay: 30,
		},
		LogLevel: "info",
	}
}

// Load reads the config file at path (if it exists), applies defaults for
// missing fields, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// No file: defaults apply.
		case err != nil:
			return nil, deskerrors.Wrap(deskerrors.ErrCodeConfigInvalid, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, deskerrors.New(deskerrors.ErrCodeConfigInvalid,
					fmt.Sprintf("parse %s: %v", path, err), err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies ASKDESK_* environment overrides (highest priority).
func (c *Config) applyEnv() {
	if v := os.Getenv("ASKDESK_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
		c.Paths.IndexPath = ""
		c.Paths.DatabasePath = ""
		c.Paths.BlobDir = ""
	}
	if v := os.Getenv("ASKDESK_INDEX_PATH"); v != "" {
		c.Paths.IndexPath = v
	}
	if v := os.Getenv("ASKDESK_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("ASKDESK_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("ASKDESK_SCORE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.ScoreThreshold = f
		}
	}
	if v := os.Getenv("ASKDESK_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// applyDerivedDefaults fills path fields that derive from DataDir.
func (c *Config) applyDerivedDefaults() {
	if c.Paths.IndexPath == "" {
		c.Paths.IndexPath = filepath.Join(c.Paths.DataDir, "chunks.index")
	}
	if c.Paths.DatabasePath == "" {
		c.Paths.DatabasePath = filepath.Join(c.Paths.DataDir, "askdesk.db")
	}
	if c.Paths.BlobDir == "" {
		c.Paths.BlobDir = filepath.Join(c.Paths.DataDir, "blobs")
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Ingest.ChunkSize <= 0 {
		return deskerrors.New(deskerrors.ErrCodeConfigInvalid, "chunk_size must be positive", nil)
	}
	if c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return deskerrors.New(deskerrors.ErrCodeConfigInvalid, "chunk_overlap must be in [0, chunk_size)", nil)
	}
	if c.Retrieval.TopK <= 0 {
		return deskerrors.New(deskerrors.ErrCodeConfigInvalid, "top_k must be positive", nil)
	}
	if c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1 {
		return deskerrors.New(deskerrors.ErrCodeConfigInvalid, "score_threshold must be in [-1, 1]", nil)
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
