package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.SearchTopK)
	assert.Equal(t, 900, cfg.RetentionSeconds)
	assert.Equal(t, "weaviate", cfg.VectorBackend)
	assert.Equal(t, "gemini-embedding-001", cfg.EmbeddingModel)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("VECTOR_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, "memory", cfg.VectorBackend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing db host", func(c *Config) { c.DBHost = "" }, true},
		{"missing db user", func(c *Config) { c.DBUser = "" }, true},
		{"overlap >= size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, true},
		{"unknown backend", func(c *Config) { c.VectorBackend = "pinecone" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMissingRequired))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
