// Package features turns imputed passenger tables into engineered feature
// tables and finally into the dense matrices the learner consumes.
//
// Each transformation is a Deriver. Steps that need a statistic from the
// data also implement Fitter; a Pipeline fits such steps on the labeled
// table and applies them to both tables of a dataset.Paired.
package features

import (
	"context"
	"sort"
	"time"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
	"github.com/YuminosukeSato/survival/preprocessing"
)

// Deriver produces a new table with one or more added or replaced columns.
// Derive must not modify its input.
type Deriver interface {
	Name() string
	Derive(t *dataset.Table) (*dataset.Table, error)
}

// Fitter is implemented by derivers that learn parameters from a reference
// table before deriving.
type Fitter interface {
	Fit(reference *dataset.Table) error
}

// Factory creates a fresh, unfitted Deriver.
type Factory func() Deriver

// Registry maps step names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a name twice is an error.
func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return errors.NewValidationError("name", "deriver already registered", name)
	}
	r.factories[name] = f
	return nil
}

// New creates the deriver registered under name.
func (r *Registry) New(name string) (Deriver, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errors.NewValidationError("name", "unknown deriver", name)
	}
	return f(), nil
}

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build creates a pipeline from step names, in order.
func (r *Registry) Build(names []string) (*Pipeline, error) {
	steps := make([]Deriver, 0, len(names))
	for _, n := range names {
		d, err := r.New(n)
		if err != nil {
			return nil, err
		}
		steps = append(steps, d)
	}
	return NewPipeline(steps...), nil
}

// Step names of the passenger feature set.
const (
	StepImpute        = "impute"
	StepDeck          = "deck"
	StepEncode        = "encode"
	StepFamilySize    = "family_size"
	StepIsAlone       = "is_alone"
	StepHonorific     = "honorific"
	StepAgeBin        = "age_bin"
	StepFareBin       = "fare_bin"
	StepFamilySizeBin = "family_size_bin"
)

// DefaultSteps is the passenger feature pipeline in execution order.
var DefaultSteps = []string{
	StepImpute,
	StepDeck,
	StepEncode,
	StepFamilySize,
	StepIsAlone,
	StepHonorific,
	StepAgeBin,
	StepFareBin,
	StepFamilySizeBin,
}

// DefaultRegistry returns a registry with every passenger deriver.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	must := func(name string, f Factory) {
		if err := r.Register(name, f); err != nil {
			panic(err)
		}
	}
	must(StepImpute, func() Deriver {
		return preprocessing.NewImputer(dataset.ColAge, dataset.ColFare, dataset.ColEmbarked)
	})
	must(StepDeck, func() Deriver { return DeckDeriver{} })
	must(StepEncode, func() Deriver {
		return preprocessing.NewEncoder(preprocessing.SexMap, preprocessing.EmbarkedMap, preprocessing.DeckMap)
	})
	must(StepFamilySize, func() Deriver { return FamilySizeDeriver{} })
	must(StepIsAlone, func() Deriver { return IsAloneDeriver{} })
	must(StepHonorific, func() Deriver { return HonorificDeriver{} })
	must(StepAgeBin, func() Deriver { return preprocessing.NewQuantileBinner(dataset.ColAge, ColAgeBin, 5) })
	must(StepFareBin, func() Deriver { return preprocessing.NewQuantileBinner(dataset.ColFare, ColFareBin, 5) })
	must(StepFamilySizeBin, func() Deriver {
		return preprocessing.NewCutBinner(ColFamilySize, ColFamilySizeBin, []float64{0, 1, 4, 11})
	})
	return r
}

// Pipeline runs derivers in order over a Paired dataset.
type Pipeline struct {
	Steps  []Deriver
	logger log.Logger
}

// NewPipeline creates a pipeline from steps.
func NewPipeline(steps ...Deriver) *Pipeline {
	return &Pipeline{
		Steps:  steps,
		logger: log.GetLoggerWithName("features.pipeline"),
	}
}

// Run fits and applies every step. Fitters are fitted on the labeled table
// as it stands after the preceding steps. Cancellation is checked between
// steps.
func (p *Pipeline) Run(ctx context.Context, data dataset.Paired) (dataset.Paired, error) {
	cur := data
	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return dataset.Paired{}, err
		}
		start := time.Now()

		if f, ok := step.(Fitter); ok {
			if err := f.Fit(cur.Labeled); err != nil {
				return dataset.Paired{}, errors.Wrapf(err, "fit step %s", step.Name())
			}
		}
		next, err := cur.Apply(step.Derive)
		if err != nil {
			return dataset.Paired{}, errors.Wrapf(err, "derive step %s", step.Name())
		}
		cur = next

		p.logger.Debug("Feature step finished",
			log.StepKey, step.Name(),
			log.FeaturesKey, len(cur.Labeled.Names()),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	p.logger.Info("Feature pipeline finished",
		log.SamplesKey, cur.Labeled.Len(),
		log.SplitKey, "labeled",
		log.FeaturesKey, len(cur.Labeled.Names()),
	)
	return cur, nil
}

// Imputer returns the pipeline's imputation step, if any.
func (p *Pipeline) Imputer() (*preprocessing.Imputer, bool) {
	for _, s := range p.Steps {
		if im, ok := s.(*preprocessing.Imputer); ok {
			return im, true
		}
	}
	return nil, false
}
