package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryConfig_Validate(t *testing.T) {
	cfg := DefaultRegistryConfig()
	assert.NoError(t, cfg.Validate())

	cfg.ReversalKeyword = "  "
	assert.Error(t, cfg.Validate())

	cfg = DefaultRegistryConfig()
	cfg.PreviewRows = -1
	assert.Error(t, cfg.Validate())
}

func TestResolverConfig_Validate(t *testing.T) {
	cfg := DefaultResolverConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Threshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultResolverConfig()
	delete(cfg.Aliases, SemanticBank)
	assert.Error(t, cfg.Validate())

	cfg = DefaultResolverConfig()
	cfg.SampleSize = 0
	assert.Error(t, cfg.Validate())
}
