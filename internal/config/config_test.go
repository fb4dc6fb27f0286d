package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/strata/pkg/ingest"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "strata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "elastic", cfg.Adapter)
	assert.Equal(t, "mappings", cfg.MappingDir)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elastic.Addresses)
	assert.Equal(t, 100, cfg.Elastic.BulkCommitSize)
	assert.Equal(t, "strata", cfg.Kafka.GroupID)
	assert.Equal(t, 5*time.Second, cfg.Kafka.FlushInterval)
	assert.Empty(t, cfg.File)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
adapter: memory
mapping_dir: docs
elastic:
  index_prefix: shop_
  bulk_commit_size: 10
kafka:
  brokers: [localhost:9092]
  topics: [shop.products]
  flush_interval: 2s
  routes:
    - pattern: "shop.*"
      repository: product
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Adapter)
	assert.Equal(t, filepath.Join(dir, "docs"), cfg.MappingDir)
	assert.Equal(t, "shop_", cfg.Elastic.IndexPrefix)
	assert.Equal(t, 10, cfg.Elastic.BulkCommitSize)
	assert.Equal(t, path, cfg.File)

	ic := cfg.Ingest(nil)
	assert.Equal(t, []string{"localhost:9092"}, ic.Brokers)
	assert.Equal(t, []string{"shop.products"}, ic.Topics)
	assert.Equal(t, 2*time.Second, ic.FlushInterval)
	assert.Equal(t, []ingest.Route{{Pattern: "shop.*", Repository: "product"}}, ic.Routes)
}

func TestLoad_ProjectRoot(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "adapter: memory\n")
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Adapter)
	assert.Equal(t, filepath.Join(dir, "mappings"), cfg.MappingDir)
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STRATA_ADAPTER", "memory")
	t.Setenv("STRATA_ELASTIC_ADDRESSES", "http://es1:9200,http://es2:9200")
	t.Setenv("STRATA_ELASTIC_BULK_COMMIT_SIZE", "7")
	t.Setenv("STRATA_KAFKA_FLUSH_INTERVAL", "250ms")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Adapter)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elastic.Addresses)
	assert.Equal(t, 7, cfg.Elastic.BulkCommitSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Kafka.FlushInterval)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(writeConfig(t, dir, "adapter: cassandra\n"))
	assert.ErrorContains(t, err, "adapter must be elastic or memory")

	_, err = Load(writeConfig(t, dir, "elastic:\n  bulk_commit_size: 0\n"))
	assert.ErrorContains(t, err, "bulk_commit_size")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Options(t *testing.T) {
	cfg := &Config{Adapter: "memory", MappingDir: "m", Elastic: ElasticConfig{Username: "u", Password: "p", BulkCommitSize: 1}}
	assert.Len(t, cfg.Options(nil), 7)
}
