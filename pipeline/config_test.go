package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.CV.NFolds)
	assert.Equal(t, 42, cfg.CV.Seed)
	assert.Equal(t, 1000, cfg.CV.Params.NumIterations)
	assert.Equal(t, 50, cfg.CV.Params.EarlyStopping)
	assert.Equal(t, PredictEnsemble, cfg.Predict.Mode)
	assert.Equal(t, 0.5, cfg.Predict.Threshold)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
data:
  model_dir: out/models
cv:
  n_folds: 3
  fold_time_limit: 90s
  params:
    num_iterations: 10
    learning_rate: 0.1
predict:
  threshold: 0.4
log_level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, "out/models", cfg.Data.ModelDir)
	assert.Equal(t, def.Data.Train, cfg.Data.Train)
	assert.Equal(t, 3, cfg.CV.NFolds)
	assert.Equal(t, 90*time.Second, cfg.CV.FoldTimeLimit)
	assert.Equal(t, 10, cfg.CV.Params.NumIterations)
	assert.Equal(t, 0.1, cfg.CV.Params.LearningRate)
	assert.Equal(t, def.CV.Params.NumLeaves, cfg.CV.Params.NumLeaves)
	assert.Equal(t, 0.4, cfg.Predict.Threshold)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, def.Features.Steps, cfg.Features.Steps)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(dir, "unknown.yaml")
		writeFile(t, path, "cv:\n  folds: 3\n")
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		body string
	}{
		{"full without refit", "predict:\n  mode: full\n"},
		{"unknown mode", "predict:\n  mode: median\n"},
		{"bad log level", "log_level: loud\n"},
		{"one fold", "cv:\n  n_folds: 1\n"},
		{"negative fold time limit", "cv:\n  fold_time_limit: -1s\n"},
		{"bad threshold", "predict:\n  threshold: 2\n"},
		{"bad learning rate", "cv:\n  params:\n    learning_rate: -1\n"},
		{"unknown step", "features:\n  steps: [impute, teleport]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			writeFile(t, path, tt.body)
			_, err := LoadConfig(path)
			var target *errors.ValidationError
			assert.True(t, errors.As(err, &target), "got %v", err)
		})
	}
}
