package submission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

func TestLabels(t *testing.T) {
	got := Labels([]float64{0.1, 0.5, 0.500001, 0.9}, 0.5)
	assert.Equal(t, []int{0, 0, 1, 1}, got)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", FileName)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale content that is longer than the new file\n\n\n\n\n\n"), 0o644))

	require.NoError(t, Write(path, []float64{892, 893, 894}, []float64{0.2, 0.7, 0.5}, DefaultThreshold))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PassengerId,Survived\n892,0\n893,1\n894,0\n", string(data))
}

func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		ids    []float64
		probs  []float64
		target any
	}{
		{"length mismatch", []float64{1, 2}, []float64{0.5}, new(*errors.DimensionError)},
		{"out of range", []float64{1}, []float64{1.5}, new(*errors.ValueError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Write(filepath.Join(dir, tt.name+".csv"), tt.ids, tt.probs, DefaultThreshold)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target))
		})
	}
}
