package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.55, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 300, cfg.Ingest.ChunkSize)
	assert.Equal(t, 80, cfg.Ingest.ChunkOverlap)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(cfg.Paths.DataDir, "chunks.index"), cfg.Paths.IndexPath)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
retrieval:
  top_k: 8
ingest:
  chunk_size: 500
log_level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, 500, cfg.Ingest.ChunkSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.55, cfg.Retrieval.ScoreThreshold)
	assert.Equal(t, 20, cfg.Ingest.CSVRowsPerChunk)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	t.Setenv("ASKDESK_LOG_LEVEL", "warn")
	t.Setenv("ASKDESK_SCORE_THRESHOLD", "0.7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 0.7, cfg.Retrieval.ScoreThreshold)
}

func TestLoad_DataDirEnvRederivesPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ASKDESK_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(dir, "chunks.index"), cfg.Paths.IndexPath)
	assert.Equal(t, filepath.Join(dir, "askdesk.db"), cfg.Paths.DatabasePath)
	assert.Equal(t, filepath.Join(dir, "blobs"), cfg.Paths.BlobDir)
}

func TestLoad_MalformedYAMLIsConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [broken\n"), 0o644))

	_, err := Load(path)

	require.Error(t, err)
	assert.Equal(t, deskerrors.ErrCodeConfigInvalid, deskerrors.GetCode(err))
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Ingest.ChunkSize = 0 }},
		{"overlap equals chunk size", func(c *Config) { c.Ingest.ChunkOverlap = c.Ingest.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Ingest.ChunkOverlap = -1 }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"threshold above one", func(c *Config) { c.Retrieval.ScoreThreshold = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Equal(t, deskerrors.ErrCodeConfigInvalid, deskerrors.GetCode(err))
		})
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopK = 7
	cfg.LLM.Model = "gpt-4.1-mini"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Retrieval.TopK)
	assert.Equal(t, "gpt-4.1-mini", loaded.LLM.Model)
}
