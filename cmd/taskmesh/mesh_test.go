package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMesh_FromDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	mesh, err := buildMesh(cfg)
	require.NoError(t, err)
	assert.NotNil(t, mesh)
}

func TestBuildMesh_TokenLimitApplied(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.Model.MaxTokens = 2048

	mesh, err := buildMesh(cfg)
	require.NoError(t, err)
	assert.NotNil(t, mesh)
}

func TestBuildGenerator_UnknownProvider(t *testing.T) {
	cfg := &Config{}
	cfg.Model.Provider = "bedrock"

	_, err := buildGenerator(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model provider")
}

func TestBuildCheckpointStore_DisabledWhenDirEmpty(t *testing.T) {
	cfg := &Config{}

	store, err := buildCheckpointStore(cfg)
	require.NoError(t, err)
	assert.Nil(t, store)
}
