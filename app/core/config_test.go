package core

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupConfigFromEnv(t *testing.T) {
	addr := "localhost:11111"
	os.Setenv("EVERGREEN_API_SERVICE_ADDRESS", addr)

	cfg := LoadBaseConfigFromENV()

	assert.Equal(t, cfg.Addr, addr)
}

func TestRAGConfigDefaults(t *testing.T) {
	var cfg RAGConfig
	cfg.ApplyDefaults()

	assert.Equal(t, uint64(20), cfg.PerScopeLimit)
	assert.Equal(t, 20, cfg.MergedLimit)
	assert.Equal(t, 10, cfg.EmbeddingTimeout)
	assert.Equal(t, 5, cfg.ScopeSearchTimeout)
	assert.Equal(t, 60, cfg.TurnTimeout)
}

func TestRAGConfigKeepsExplicitValues(t *testing.T) {
	cfg := RAGConfig{PerScopeLimit: 5, MergedLimit: 10}
	cfg.ApplyDefaults()

	assert.Equal(t, uint64(5), cfg.PerScopeLimit)
	assert.Equal(t, 10, cfg.MergedLimit)
}
