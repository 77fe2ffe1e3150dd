package lightgbm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// stumpModel splits on its first feature at 0: raw score lo below, hi above.
func stumpModel(features []string, lo, hi float64) *Model {
	m := NewModel()
	m.Objective = BinaryLogistic
	m.FeatureNames = features
	m.NumFeatures = len(features)
	m.Trees = []Tree{{
		NumLeaves: 2,
		Nodes: []Node{
			{NodeID: 0, ParentID: -1, LeftChild: 1, RightChild: 2, NodeType: NumericalNode, SplitFeature: 0, Threshold: 0, Gain: 1},
			{NodeID: 1, ParentID: 0, LeftChild: -1, RightChild: -1, LeafValue: lo},
			{NodeID: 2, ParentID: 0, LeftChild: -1, RightChild: -1, LeafValue: hi},
		},
	}}
	return m
}

func TestEnsemblePredictProba(t *testing.T) {
	columns := []string{"a", "b"}
	X := mat.NewDense(3, 2, []float64{
		-1, 1,
		1, -1,
		1, 1,
	})

	t.Run("arithmetic mean", func(t *testing.T) {
		m1 := stumpModel([]string{"a"}, -1, 1)
		m2 := stumpModel([]string{"b"}, -2, 2)
		ens := NewEnsemble(m1, m2)

		p1, err := m1.PredictProbaByName(X, columns)
		require.NoError(t, err)
		p2, err := m2.PredictProbaByName(X, columns)
		require.NoError(t, err)

		got, err := ens.PredictProba(X, columns)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := range got {
			assert.InDelta(t, (p1[i]+p2[i])/2, got[i], 1e-12)
		}
		assert.InDelta(t, (1/(1+math.Exp(1))+1/(1+math.Exp(-2)))/2, got[0], 1e-12)
	})

	t.Run("no rows", func(t *testing.T) {
		ens := NewEnsemble(stumpModel([]string{"a"}, -1, 1), stumpModel([]string{"b"}, -2, 2))
		got, err := ens.PredictProba(&mat.Dense{}, columns)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("single model is exact", func(t *testing.T) {
		m := stumpModel([]string{"b", "a"}, -0.3, 0.7)
		want, err := m.PredictProbaByName(X, columns)
		require.NoError(t, err)
		got, err := NewEnsemble(m).PredictProba(X, columns)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("column order does not matter", func(t *testing.T) {
		m := stumpModel([]string{"a", "b"}, -1, 1)
		swapped := mat.NewDense(3, 2, []float64{1, -1, -1, 1, 1, 1})
		p, err := NewEnsemble(m).PredictProba(X, columns)
		require.NoError(t, err)
		q, err := NewEnsemble(m).PredictProba(swapped, []string{"b", "a"})
		require.NoError(t, err)
		assert.Equal(t, p, q)
	})

	t.Run("missing feature", func(t *testing.T) {
		ens := NewEnsemble(stumpModel([]string{"c"}, 0, 1))
		_, err := ens.PredictProba(X, columns)
		var target *errors.SchemaMismatchError
		assert.True(t, errors.As(err, &target))
	})

	t.Run("empty ensemble", func(t *testing.T) {
		_, err := NewEnsemble().PredictProba(X, columns)
		var target *errors.NotFittedError
		assert.True(t, errors.As(err, &target))
	})
}

func TestEnsembleFeatures(t *testing.T) {
	ens := NewEnsemble(stumpModel([]string{"a", "b"}, 0, 1), stumpModel([]string{"b", "c"}, 0, 1))
	assert.Equal(t, []string{"a", "b", "c"}, ens.Features())

	imp := ens.FeatureImportance("split")
	assert.InDelta(t, 0.5, imp["a"], 1e-12)
	assert.InDelta(t, 0.5, imp["b"], 1e-12)
	assert.InDelta(t, 0.0, imp["c"], 1e-12)
}

func TestModelPredictProbaRequiresBinary(t *testing.T) {
	m := stumpModel([]string{"a"}, 0, 1)
	m.Objective = RegressionL2
	_, err := m.PredictProba(mat.NewDense(1, 1, []float64{1}))
	var target *errors.ValueError
	assert.True(t, errors.As(err, &target))

	_, err = NewModel().PredictProba(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)
}
