package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "missing column",
			err:     NewMissingColumnError("derive.family_size", "SibSp"),
			wantMsg: `survival: derive.family_size: required column "SibSp" is missing`,
		},
		{
			name:    "unknown category",
			err:     NewUnknownCategoryError("Embarked", "X", 3),
			wantMsg: `survival: column "Embarked": unknown category "X" at row 3`,
		},
		{
			name:    "missing target",
			err:     NewMissingTargetError("TrainCV", "Survived"),
			wantMsg: `survival: TrainCV: target column "Survived" is missing`,
		},
		{
			name:    "schema mismatch",
			err:     NewSchemaMismatchError("Assemble", "column order differs", []string{"a", "b"}, []string{"b", "a"}),
			wantMsg: "survival: Assemble: feature schema mismatch: column order differs (expected [a,b], got [b,a])",
		},
		{
			name:    "model load",
			err:     NewModelLoadError("m.json", "no feature names", nil),
			wantMsg: "survival: load model m.json: no feature names",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			// スタックトレースが付与されていること
			assert.Contains(t, fmt.Sprintf("%+v", tt.err), "errors_test.go")
		})
	}
}

func TestTaxonomyAs(t *testing.T) {
	wrapped := Wrap(NewMissingColumnError("Assemble", "Fare"), "build features")

	var mc *MissingColumnError
	require.True(t, As(wrapped, &mc))
	assert.Equal(t, "Fare", mc.Column)

	var uc *UnknownCategoryError
	assert.False(t, As(wrapped, &uc))
}

func TestModelLoadErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("permission denied")
	err := NewModelLoadError("model_fold_0.json", "read failed", cause)

	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "permission denied")
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("Ensemble", "PredictProba")

	want := "survival: Ensemble: this model is not fitted yet. Call Fit() before using PredictProba()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 9, 1)
	assert.Equal(t, "survival: Predict: dimension mismatch on axis 1 (features). Expected 10, got 9", err.Error())
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "FitImpute", 10, 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.True(t, strings.Contains(wrapped.Error(), "in FitImpute: expected 10, got 0"))
}

func TestWarnRoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("auc", "only one class present", 0.5))

	require.Len(t, got, 1)
	assert.Contains(t, got[0].Error(), "'auc' is ill-defined")
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar("loss", 0.3, 1))

	err := CheckScalar("loss", nan(), 7)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 7, numErr.Iteration)
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("fold 0 prediction", []float64{0.1, 0.9}, 12))

	err := CheckNumericalStability("fold 2 prediction", []float64{0.4, nan()}, 12)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, "fold 2 prediction", numErr.Operation)
	assert.Equal(t, 12, numErr.Iteration)
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}
