package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

func TestPlotLearningCurves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "learning_curve.png")
	curves := [][]float64{
		{0.69, 0.6, 0.55, 0.53, 0.54},
		{0.68, 0.58, 0.52},
		{},
	}
	require.NoError(t, PlotLearningCurves(path, "CV", curves))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlotLearningCurvesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	for _, curves := range [][][]float64{nil, {{}, {}}} {
		err := PlotLearningCurves(path, "CV", curves)
		var target *errors.ValueError
		assert.True(t, errors.As(err, &target))
	}
	assert.NoFileExists(t, path)
}
