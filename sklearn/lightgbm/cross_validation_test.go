package lightgbm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

func assertPartition(t *testing.T, folds []CVFold, n int) {
	t.Helper()
	seen := make([]int, n)
	for k, fold := range folds {
		assert.Equal(t, n, len(fold.TrainIndices)+len(fold.TestIndices), "fold %d", k)
		assert.IsIncreasing(t, fold.TestIndices)
		assert.IsIncreasing(t, fold.TrainIndices)

		inTest := make(map[int]bool, len(fold.TestIndices))
		for _, idx := range fold.TestIndices {
			inTest[idx] = true
			seen[idx]++
		}
		for _, idx := range fold.TrainIndices {
			assert.False(t, inTest[idx], "fold %d: index %d in both sets", k, idx)
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "index %d coverage", i)
	}
}

func labels(n int, positiveEvery int) *mat.Dense {
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if i%positiveEvery == 0 {
			y.Set(i, 0, 1)
		}
	}
	return y
}

func TestKFold(t *testing.T) {
	X := mat.NewDense(103, 1, nil)

	t.Run("partition", func(t *testing.T) {
		for _, shuffle := range []bool{false, true} {
			folds := NewKFold(5, shuffle, 42).Split(X, nil)
			require.Len(t, folds, 5)
			assertPartition(t, folds, 103)
			for k, fold := range folds {
				want := 20
				if k < 3 {
					want = 21
				}
				assert.Len(t, fold.TestIndices, want)
			}
		}
	})

	t.Run("unshuffled folds are contiguous", func(t *testing.T) {
		folds := NewKFold(5, false, 0).Split(X, nil)
		assert.Equal(t, 0, folds[0].TestIndices[0])
		assert.Equal(t, 20, folds[0].TestIndices[20])
	})

	t.Run("same seed same folds", func(t *testing.T) {
		assert.Equal(t, NewKFold(5, true, 42).Split(X, nil), NewKFold(5, true, 42).Split(X, nil))
		assert.NotEqual(t, NewKFold(5, true, 42).Split(X, nil), NewKFold(5, true, 7).Split(X, nil))
	})

	t.Run("too few splits default to five", func(t *testing.T) {
		assert.Equal(t, 5, NewKFold(1, false, 0).GetNSplits())
	})
}

func TestStratifiedKFold(t *testing.T) {
	n := 891
	X := mat.NewDense(n, 1, nil)
	y := labels(n, 3)
	positives := 0
	for i := 0; i < n; i++ {
		positives += int(y.At(i, 0))
	}

	folds := NewStratifiedKFold(5, true, 42).Split(X, y)
	require.Len(t, folds, 5)
	assertPartition(t, folds, n)

	expected := float64(positives) / 5
	for k, fold := range folds {
		pos := 0
		for _, idx := range fold.TestIndices {
			pos += int(y.At(idx, 0))
		}
		assert.InDelta(t, expected, float64(pos), 1, "fold %d positives", k)
		assert.InDelta(t, float64(n)/5, float64(len(fold.TestIndices)), 1, "fold %d size", k)
	}

	assert.Equal(t, folds, NewStratifiedKFold(5, true, 42).Split(X, y))
}

func TestTrainCV(t *testing.T) {
	X, y := makeSignal(200, 11)
	columns := []string{"a", "b", "noise"}
	cfg := DefaultCVConfig()
	cfg.Params = smallParams()

	t.Run("fold models and scores", func(t *testing.T) {
		result, err := TrainCV(context.Background(), X, y, columns, cfg)
		require.NoError(t, err)

		require.Len(t, result.Models, 5)
		require.Len(t, result.Folds, 5)
		assert.Nil(t, result.FullModel)
		assert.Len(t, result.OOF, 200)

		scores := result.Scores()
		for k, s := range scores {
			assert.Equal(t, k, s.Fold)
			assert.Equal(t, 200, s.TrainSize+s.ValidSize)
			assert.Equal(t, result.Models[k].NumTrees(), s.BestIteration)
			assert.Greater(t, s.AUC, 0.8)
			assert.Len(t, result.ValidationCurves()[k], len(result.Folds[k].EvalHistory[ValidationLossKey]))
		}
		assert.Equal(t, 5, result.Ensemble().Len())
		assert.Equal(t, columns, result.Ensemble().Features())
	})

	t.Run("parallel folds match sequential", func(t *testing.T) {
		seq, err := TrainCV(context.Background(), X, y, columns, cfg)
		require.NoError(t, err)

		par := cfg
		par.MaxWorkers = 0
		got, err := TrainCV(context.Background(), X, y, columns, par)
		require.NoError(t, err)
		assert.Equal(t, seq.OOF, got.OOF)
		for k := range seq.Folds {
			assert.Equal(t, seq.Folds[k].Split, got.Folds[k].Split)
		}
	})

	t.Run("full refit", func(t *testing.T) {
		refit := cfg
		refit.RefitFull = true
		refit.RefitUseBestIteration = true
		result, err := TrainCV(context.Background(), X, y, columns, refit)
		require.NoError(t, err)
		require.NotNil(t, result.FullModel)
		assert.Equal(t, result.MeanBestIteration(), result.FullModel.NumTrees())
		assert.Equal(t, 6, result.Ensemble().Len())
	})

	t.Run("fold time limit", func(t *testing.T) {
		limited := cfg
		limited.Params.NumIterations = 1000
		limited.Params.EarlyStopping = 0
		limited.FoldTimeLimit = time.Nanosecond
		result, err := TrainCV(context.Background(), X, y, columns, limited)
		require.NoError(t, err)
		for k, f := range result.Folds {
			assert.Less(t, f.Model.NumTrees(), 1000, "fold %d", k)
			assert.Len(t, f.EvalHistory[ValidationLossKey], f.Model.NumTrees(), "fold %d", k)
		}
	})

	t.Run("missing target", func(t *testing.T) {
		_, err := TrainCV(context.Background(), X, nil, columns, cfg)
		var target *errors.MissingTargetError
		assert.True(t, errors.As(err, &target))
	})

	t.Run("more folds than rows", func(t *testing.T) {
		small := cfg
		small.NFolds = 6
		_, err := TrainCV(context.Background(), X.Slice(0, 5, 0, 3), y.Slice(0, 5, 0, 1), columns, small)
		var target *errors.ValidationError
		assert.True(t, errors.As(err, &target))
	})

	t.Run("fold failure returns no models", func(t *testing.T) {
		bad := mat.DenseCopyOf(y)
		bad.Set(3, 0, 2)
		result, err := TrainCV(context.Background(), X, bad, columns, cfg)
		assert.Error(t, err)
		assert.Nil(t, result)
	})
}
