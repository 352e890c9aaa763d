package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "qadex", cfg.Postgres.Database)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "entry-ingest", cfg.Kafka.Topics.EntryIngest)
	assert.Equal(t, 4, cfg.Indexer.Partitions)
	assert.Equal(t, "matches", cfg.Search.RankMode)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "notes.md", cfg.Knowledge.DocumentPath)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  port: 9999
indexer:
  dataDir: /var/lib/qadex
  partitions: 8
search:
  rankMode: bm25
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/var/lib/qadex", cfg.Indexer.DataDir)
	assert.Equal(t, 8, cfg.Indexer.Partitions)
	assert.Equal(t, "bm25", cfg.Search.RankMode)
	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost", cfg.Postgres.Host)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("QD_SERVER_PORT", "7070")
	t.Setenv("QD_POSTGRES_HOST", "db.internal")
	t.Setenv("QD_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("QD_INDEXER_PARTITIONS", "16")
	t.Setenv("QD_SEARCH_RANK_MODE", "bm25")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 16, cfg.Indexer.Partitions)
	assert.Equal(t, "bm25", cfg.Search.RankMode)
}

func TestEnvOverridesIgnoreInvalidNumbers(t *testing.T) {
	t.Setenv("QD_SERVER_PORT", "not-a-port")
	t.Setenv("QD_INDEXER_PARTITIONS", "0")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Indexer.Partitions)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "localhost", Port: 5432,
		User: "qadex", Password: "secret",
		Database: "qadex", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=qadex password=secret dbname=qadex sslmode=disable",
		p.DSN())
}
