package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
lockxfer:
  system:
    logging:
      level: DEBUG
  transfer:
    block_size: 2
    header_table: ${LOCKXFER_TEST_HEADER:-hdr}
    concurrency: 4
  workflow:
    name: demo
    steps:
      - name: lock
      - name: import
        properties:
          concurrency: 2
  database:
    gsi_staging:
      type: sqlite
      database: staging.db
`

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	tr := cfg.Lockxfer.Transfer
	assert.Equal(t, 60000, tr.BlockSize)
	assert.Equal(t, 600000, tr.RemoteTimeout)
	assert.Equal(t, "gsi_staging", tr.StagingConnection)
	assert.Equal(t, "ebs11i", tr.RemoteConnection)
	assert.Equal(t, "h3g_it_gl_int_header", tr.HeaderTable)
	assert.Equal(t, "h3g_it_gl_import_all", tr.ImportTable)
	assert.Equal(t, "R11", tr.SourceSystem)
	assert.Equal(t, "R11_JOURNALS", tr.MessageType)
	assert.Len(t, cfg.Lockxfer.Workflow.Steps, 2)
	assert.True(t, cfg.Lockxfer.Infrastructure.MigrateStaging)
}

func TestLoadConfig_YAMLOverlaysDefaults(t *testing.T) {
	cfg, err := LoadConfig("", EmbeddedConfig(testYAML))
	require.NoError(t, err)

	tr := cfg.Lockxfer.Transfer
	assert.Equal(t, 2, tr.BlockSize)
	assert.Equal(t, 600000, tr.RemoteTimeout, "keys absent from YAML keep their defaults")
	assert.Equal(t, "hdr", tr.HeaderTable, "placeholder default applies")
	assert.Equal(t, 4, tr.Concurrency)
	assert.Equal(t, "DEBUG", cfg.Lockxfer.System.Logging.Level)
	assert.Equal(t, "demo", cfg.Lockxfer.Workflow.Name)
	require.Len(t, cfg.Lockxfer.Workflow.Steps, 2)
	assert.Equal(t, 2, cfg.Lockxfer.Workflow.Steps[1].Properties["concurrency"])
	assert.Contains(t, cfg.Lockxfer.AdapterConfigs, "gsi_staging")
	assert.Equal(t, EmbeddedConfig(testYAML), cfg.EmbeddedConfig)
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	t.Setenv("LOCKXFER_TEST_HEADER", "from_placeholder")
	t.Setenv("LOCKXFER_TRANSFER_BLOCK_SIZE", "7")
	t.Setenv("LOCKXFER_TRANSFER_DETAIL_TABLE", "det")
	t.Setenv("LOCKXFER_INFRASTRUCTURE_MIGRATE_STAGING", "false")
	t.Setenv("LOCKXFER_DATABASE_GSI_STAGING_HOST", "db.internal")

	cfg, err := LoadConfig("", EmbeddedConfig(testYAML))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Lockxfer.Transfer.BlockSize)
	assert.Equal(t, "det", cfg.Lockxfer.Transfer.DetailTable)
	assert.Equal(t, "from_placeholder", cfg.Lockxfer.Transfer.HeaderTable)
	assert.False(t, cfg.Lockxfer.Infrastructure.MigrateStaging)

	entry, ok := cfg.Lockxfer.AdapterConfigs["gsi_staging"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "db.internal", entry["host"])
	assert.Equal(t, "sqlite", entry["type"])
}

func TestLoadConfig_InvalidSettings(t *testing.T) {
	t.Setenv("LOCKXFER_TRANSFER_BLOCK_SIZE", "0")
	t.Setenv("LOCKXFER_INFRASTRUCTURE_STATE_STORE", "redis")

	_, err := LoadConfig("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transfer.block_size must be positive")
	assert.Contains(t, err.Error(), "infrastructure.state_store")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := LoadConfig("", EmbeddedConfig("lockxfer: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal embedded config")
}

func TestOsEnvironmentExpander(t *testing.T) {
	t.Setenv("LOCKXFER_TEST_SET", "value")
	out, err := NewOsEnvironmentExpander().Expand([]byte("a=${LOCKXFER_TEST_SET} b=${LOCKXFER_TEST_UNSET:-fallback} c=${LOCKXFER_TEST_UNSET}"))
	require.NoError(t, err)
	assert.Equal(t, "a=value b=fallback c=", string(out))
}
