package siamese

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/siamtrack/internal/config"
)

func TestDefaultConfigValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 256, cfg.GridSize())
}

func TestConfigFromTuningMatchesDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultConfig(), ConfigFromTuning(config.EmptyTuningConfig()))
	assert.Equal(t, DefaultConfig(), ConfigFromTuning(config.MustLoadDefaultConfig()))

	k := 0.3
	size := 25
	tuned := ConfigFromTuning(&config.TuningConfig{PenaltyK: &k, OutputSize: &size})
	assert.Equal(t, 0.3, tuned.PenaltyK)
	assert.Equal(t, 25, tuned.OutputSize)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"negative context", func(c *Config) { c.ContextAmount = -0.5 }},
		{"zero reference", func(c *Config) { c.ReferenceSize = 0 }},
		{"search not larger than reference", func(c *Config) { c.SearchSize = 100 }},
		{"zero output", func(c *Config) { c.OutputSize = 0 }},
		{"zero stride", func(c *Config) { c.PointStride = 0 }},
		{"negative penalty", func(c *Config) { c.PenaltyK = -1 }},
		{"window influence above one", func(c *Config) { c.WindowInfluence = 1.2 }},
		{"negative learning rate", func(c *Config) { c.LearningRate = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
