package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/siamtrack/internal/config"
	"github.com/banshee-data/siamtrack/internal/geometry"
)

func TestParseBox(t *testing.T) {
	b, err := parseBox("100, 120.5,50,40")
	require.NoError(t, err)
	assert.Equal(t, geometry.BoundingBox{X: 100, Y: 120.5, Width: 50, Height: 40}, b)

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "1,2,0,4", "1,2,3,-4"} {
		_, err := parseBox(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, config.DefaultConfigPath, *configPath)
	assert.Empty(t, *votDir)
	assert.Empty(t, *videoPath)
	assert.False(t, *showVersion)
}

func TestRunReturnsErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "tuning.json")
	missing := filepath.Join(dir, "missing.onnx")
	body := fmt.Sprintf(`{"backend": "cpu", "template_backbone_model": %q}`, missing)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0644))

	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{"no source", options{}, "exactly one of -vot or -video"},
		{"both sources", options{votDir: dir, videoPath: "a.mp4"}, "exactly one of -vot or -video"},
		{"video without init", options{videoPath: "a.mp4"}, "-init"},
		{"bad config", options{votDir: dir, configPath: filepath.Join(dir, "tuning.yaml")}, "failed to load config"},
		{"missing model", options{votDir: dir, configPath: cfgPath, dbPath: filepath.Join(dir, "runs.db")}, "failed to load model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.opts)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
