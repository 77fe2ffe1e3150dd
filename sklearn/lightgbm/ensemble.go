package lightgbm

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/core"
	"github.com/YuminosukeSato/survival/core/model"
	"github.com/YuminosukeSato/survival/pkg/errors"
)

var (
	_ core.NamedPredictor = (*Model)(nil)
	_ core.NamedPredictor = (*Ensemble)(nil)
	_ core.ProbaPredictor = (*Model)(nil)
)

// Ensemble averages the probabilities of an ordered list of models. Each
// model selects its own feature columns by name, so models trained on
// different column orders can be combined.
type Ensemble struct {
	model.BaseEstimator

	Models []*Model
}

// NewEnsemble creates an ensemble over models in the given order.
func NewEnsemble(models ...*Model) *Ensemble {
	e := &Ensemble{Models: models}
	if len(models) == 0 {
		return e
	}

	var names []string
	seen := make(map[string]bool)
	for _, m := range models {
		for _, name := range m.FeatureNames {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	e.SetFitted(names)
	return e
}

// Len returns the number of models.
func (e *Ensemble) Len() int {
	return len(e.Models)
}

// PredictProba returns the element-wise arithmetic mean of the models'
// probabilities. X's columns are named by columns; a model feature absent
// from columns is a SchemaMismatchError. A single model's prediction is
// returned unchanged.
func (e *Ensemble) PredictProba(X mat.Matrix, columns []string) ([]float64, error) {
	if !e.IsFitted() || len(e.Models) == 0 {
		return nil, errors.NewNotFittedError("lightgbm.Ensemble", "PredictProba")
	}

	var mean []float64
	for i, m := range e.Models {
		proba, err := m.PredictProbaByName(X, columns)
		if err != nil {
			return nil, errors.Wrapf(err, "ensemble model %d", i)
		}
		if i == 0 {
			mean = proba
			continue
		}
		floats.Add(mean, proba)
	}
	if len(e.Models) > 1 {
		floats.Scale(1/float64(len(e.Models)), mean)
	}
	return mean, nil
}

// PredictProbaByName is PredictProba.
func (e *Ensemble) PredictProbaByName(X mat.Matrix, columns []string) ([]float64, error) {
	return e.PredictProba(X, columns)
}

// FeatureImportance returns the per-feature importance averaged over the
// models. A feature unused by a model counts as zero for it.
func (e *Ensemble) FeatureImportance(importanceType string) map[string]float64 {
	out := make(map[string]float64)
	if len(e.Models) == 0 {
		return out
	}
	for _, m := range e.Models {
		for name, v := range m.FeatureImportanceByName(importanceType) {
			out[name] += v
		}
	}
	for name := range out {
		out[name] /= float64(len(e.Models))
	}
	return out
}
