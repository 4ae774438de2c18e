package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadClean(t *testing.T) (Config, error) {
	t.Helper()
	// Point the loader at a nonexistent file so a host's real config file
	// cannot leak into the test.
	t.Setenv("SYSOTEL_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	return Load()
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.NodeID)
	assert.Equal(t, cfg.Hostname, cfg.NodeID)
	assert.Empty(t, cfg.ForceEnvironment)
	assert.Empty(t, cfg.Collectors)
	assert.Equal(t, 30*time.Second, cfg.CollectionInterval)
	assert.True(t, cfg.TransformEnabled)
	assert.Equal(t, "127.0.0.1:4317", cfg.OTLPEndpoint)
	assert.True(t, cfg.OTLPInsecure)
	assert.Equal(t, 1000, cfg.QueueSize)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.FlushTimeout)
	assert.Equal(t, "0.0.0.0:9465", cfg.ProbeListenAddr)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SYSOTEL_NODE_ID", "edge-07")
	t.Setenv("SYSOTEL_COLLECTION_INTERVAL", "5s")
	t.Setenv("SYSOTEL_OTLP_ENDPOINT", "collector.example.com:4317")
	t.Setenv("SYSOTEL_ENVIRONMENT_FORCE", "container")
	t.Setenv("SYSOTEL_LOG_LEVEL", "DEBUG")

	cfg, err := loadClean(t)
	require.NoError(t, err)

	assert.Equal(t, "edge-07", cfg.NodeID)
	assert.Equal(t, 5*time.Second, cfg.CollectionInterval)
	assert.Equal(t, "collector.example.com:4317", cfg.OTLPEndpoint)
	assert.Equal(t, "container", cfg.ForceEnvironment)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsBadForcedEnvironment(t *testing.T) {
	t.Setenv("SYSOTEL_ENVIRONMENT_FORCE", "mainframe")

	_, err := loadClean(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forced environment")
}

func TestValidateRejectsBadBatchSizes(t *testing.T) {
	cfg, err := loadClean(t)
	require.NoError(t, err)

	cfg.BatchSize = cfg.QueueSize + 1
	assert.Error(t, cfg.Validate())

	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg.BatchSize = 10
	cfg.QueueSize = 100
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresEndpointAndIntervals(t *testing.T) {
	cfg, err := loadClean(t)
	require.NoError(t, err)

	broken := cfg
	broken.OTLPEndpoint = " "
	assert.Error(t, broken.Validate())

	broken = cfg
	broken.CollectionInterval = 0
	assert.Error(t, broken.Validate())

	broken = cfg
	broken.ShutdownTimeout = 0
	assert.Error(t, broken.Validate())
}

func TestTLSConfigDisabledReturnsNil(t *testing.T) {
	cfg := Config{TLSEnabled: false}
	tlsCfg, err := cfg.TLSConfig()
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)
}

func TestTLSConfigRequiresCertAndKeyTogether(t *testing.T) {
	cfg := Config{TLSEnabled: true, TLSCertPath: "/tmp/cert.pem"}
	_, err := cfg.TLSConfig()
	assert.Error(t, err)
}
