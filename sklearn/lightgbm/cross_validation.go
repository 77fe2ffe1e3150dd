package lightgbm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/core/parallel"
	"github.com/YuminosukeSato/survival/metrics"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

// KFoldSplitter defines interface for cross-validation splitters
type KFoldSplitter interface {
	Split(X, y mat.Matrix) []CVFold
	GetNSplits() int
}

// CVFold represents a single fold in cross-validation. Both index lists
// are ascending.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomSeed int) *KFold {
	if nSplits < 2 {
		nSplits = 5 // Default to 5-fold
	}
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split assigns consecutive chunks of the (optionally shuffled) row order
// to folds. The first n % k folds get one extra row.
func (kf *KFold) Split(X, _ mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	indices := identity(nSamples)
	if kf.Shuffle {
		r := newPCG(kf.RandomSeed)
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	assignment := make([]int, nSamples)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	current := 0
	for k := 0; k < kf.NSplits; k++ {
		size := foldSize
		if k < remainder {
			size++
		}
		for _, idx := range indices[current : current+size] {
			assignment[idx] = k
		}
		current += size
	}
	return foldsFromAssignment(assignment, kf.NSplits)
}

// StratifiedKFold implements stratified k-fold cross-validation
type StratifiedKFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomSeed int) *StratifiedKFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &StratifiedKFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split deals each class round-robin over the folds, so every fold holds
// floor or ceil of n_c / k rows of class c. Classes are visited in
// ascending label order and the dealing position carries over between
// classes, which keeps fold sizes within one row of each other.
func (skf *StratifiedKFold) Split(X, y mat.Matrix) []CVFold {
	nSamples, _ := X.Dims()

	classIndices := make(map[float64][]int)
	for i := 0; i < nSamples; i++ {
		label := y.At(i, 0)
		classIndices[label] = append(classIndices[label], i)
	}
	labels := make([]float64, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	var r *rand.Rand
	if skf.Shuffle {
		r = newPCG(skf.RandomSeed)
	}

	assignment := make([]int, nSamples)
	next := 0
	for _, label := range labels {
		indices := classIndices[label]
		if r != nil {
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			assignment[idx] = next
			next = (next + 1) % skf.NSplits
		}
	}
	return foldsFromAssignment(assignment, skf.NSplits)
}

// foldsFromAssignment builds train/test index lists from a row-to-fold
// assignment in one pass.
func foldsFromAssignment(assignment []int, nSplits int) []CVFold {
	folds := make([]CVFold, nSplits)
	for k := range folds {
		folds[k].TestIndices = make([]int, 0, len(assignment)/nSplits+1)
		folds[k].TrainIndices = make([]int, 0, len(assignment)-len(assignment)/nSplits)
	}
	for idx, fold := range assignment {
		for k := range folds {
			if k == fold {
				folds[k].TestIndices = append(folds[k].TestIndices, idx)
			} else {
				folds[k].TrainIndices = append(folds[k].TrainIndices, idx)
			}
		}
	}
	return folds
}

func newPCG(seed int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// CVConfig configures TrainCV.
type CVConfig struct {
	Params     TrainingParams `json:"params" yaml:"params"`
	NFolds     int            `json:"n_folds" yaml:"n_folds"`
	Stratified bool           `json:"stratified" yaml:"stratified"`
	Shuffle    bool           `json:"shuffle" yaml:"shuffle"`
	Seed       int            `json:"seed" yaml:"seed"`

	// MaxWorkers bounds concurrent folds. 1 trains folds in order, 0 uses
	// one worker per CPU.
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`

	// RefitFull trains one extra model on all rows without validation.
	RefitFull bool `json:"refit_full" yaml:"refit_full"`
	// RefitUseBestIteration limits the refit to the mean best iteration of
	// the folds instead of NumIterations.
	RefitUseBestIteration bool `json:"refit_use_best_iteration" yaml:"refit_use_best_iteration"`

	// Threshold turns probabilities into labels for fold accuracy.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// FoldTimeLimit stops a fold's boosting once it has run this long.
	// Zero means no limit.
	FoldTimeLimit time.Duration `json:"fold_time_limit" yaml:"fold_time_limit"`
}

// DefaultCVConfig returns 5-fold stratified shuffled CV with seed 42.
func DefaultCVConfig() CVConfig {
	return CVConfig{
		Params:     DefaultTrainingParams(),
		NFolds:     5,
		Stratified: true,
		Shuffle:    true,
		Seed:       42,
		MaxWorkers: 1,
		Threshold:  0.5,
	}
}

// Splitter returns the fold splitter described by the config.
func (c CVConfig) Splitter() KFoldSplitter {
	if c.Stratified {
		return NewStratifiedKFold(c.NFolds, c.Shuffle, c.Seed)
	}
	return NewKFold(c.NFolds, c.Shuffle, c.Seed)
}

// FoldResult holds the model and held-out scores of one fold.
type FoldResult struct {
	Fold        int
	Split       CVFold
	Model       *Model
	Score       metrics.FoldScore
	EvalHistory map[string][]float64
}

// CVResult stores cross-validation results in fold order.
type CVResult struct {
	Folds     []FoldResult
	Models    []*Model
	FullModel *Model

	// OOF is the out-of-fold probability of every training row.
	OOF []float64
}

// Scores returns the per-fold metrics records in fold order.
func (cv *CVResult) Scores() []metrics.FoldScore {
	scores := make([]metrics.FoldScore, len(cv.Folds))
	for i, f := range cv.Folds {
		scores[i] = f.Score
	}
	return scores
}

// Ensemble returns the fold models followed by the full refit, if any.
func (cv *CVResult) Ensemble() *Ensemble {
	models := append([]*Model(nil), cv.Models...)
	if cv.FullModel != nil {
		models = append(models, cv.FullModel)
	}
	return NewEnsemble(models...)
}

// ValidationCurves returns the validation loss per iteration of each fold.
func (cv *CVResult) ValidationCurves() [][]float64 {
	curves := make([][]float64, len(cv.Folds))
	for i, f := range cv.Folds {
		curves[i] = f.EvalHistory[ValidationLossKey]
	}
	return curves
}

// MeanBestIteration returns the rounded mean best iteration, at least 1.
func (cv *CVResult) MeanBestIteration() int {
	if len(cv.Folds) == 0 {
		return 1
	}
	sum := 0
	for _, f := range cv.Folds {
		sum += f.Score.BestIteration
	}
	return max(1, int(math.Round(float64(sum)/float64(len(cv.Folds)))))
}

// TrainCV trains one model per fold with early stopping on the held-out
// fold and scores each model on it. Fold assignment is fixed before any
// training starts. Any fold error aborts the run and no models are
// returned.
//
// Example:
//
//	cfg := lightgbm.DefaultCVConfig()
//	result, err := lightgbm.TrainCV(ctx, m.XTrain, y, m.Columns, cfg)
//	proba, err := result.Ensemble().PredictProba(m.XTest, m.Columns)
func TrainCV(ctx context.Context, X, y mat.Matrix, columns []string, cfg CVConfig) (*CVResult, error) {
	if y == nil {
		return nil, errors.NewMissingTargetError("TrainCV", "y")
	}
	if X == nil {
		return nil, errors.NewValueError("TrainCV", "X must not be nil")
	}
	rows, cols := X.Dims()
	if yr, _ := y.Dims(); yr != rows {
		return nil, errors.NewDimensionError("TrainCV", rows, yr, 0)
	}
	if len(columns) != cols {
		return nil, errors.NewDimensionError("TrainCV", cols, len(columns), 1)
	}
	if cfg.NFolds < 2 {
		return nil, errors.NewValidationError("n_folds", "must be at least 2", cfg.NFolds)
	}
	if cfg.NFolds > rows {
		return nil, errors.NewValidationError("n_folds", fmt.Sprintf("exceeds number of rows (%d)", rows), cfg.NFolds)
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}

	xd := toDense(X)
	yv, err := columnVector("TrainCV", y, rows)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("lightgbm.cv")
	folds := cfg.Splitter().Split(xd, mat.NewDense(rows, 1, yv))
	logger.Info("Cross-validation started",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.NumFoldsKey, len(folds),
		log.RandomSeedKey, cfg.Seed,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]FoldResult, len(folds))
	errs := parallel.ForEach(len(folds), cfg.MaxWorkers, func(k int) error {
		err := errors.SafeExecute(fmt.Sprintf("TrainCV fold %d", k), func() error {
			res, err := trainFold(ctx, xd, yv, columns, folds[k], k, cfg)
			if err != nil {
				return err
			}
			results[k] = res
			return nil
		})
		if err != nil {
			cancel()
		}
		return err
	})
	if err := firstFoldError(errs); err != nil {
		return nil, err
	}

	out := &CVResult{
		Folds:  results,
		Models: make([]*Model, len(results)),
		OOF:    make([]float64, rows),
	}
	for k, r := range results {
		out.Models[k] = r.Model
	}
	for k, f := range folds {
		proba, err := results[k].Model.PredictProba(takeRows(xd, f.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d out-of-fold prediction", k)
		}
		for i, idx := range f.TestIndices {
			out.OOF[idx] = proba[i]
		}
	}

	if cfg.RefitFull {
		params := cfg.Params
		params.EarlyStopping = 0
		if cfg.RefitUseBestIteration {
			params.NumIterations = out.MeanBestIteration()
		}
		trainer := NewTrainer(params).WithFeatureNames(columns).WithContext(ctx).
			WithLogger(logger.With(log.SplitKey, "full"))
		if err := trainer.Fit(xd, mat.NewDense(rows, 1, yv)); err != nil {
			return nil, errors.Wrap(err, "full refit")
		}
		out.FullModel = trainer.GetModel()
		logger.Info("Full refit finished", log.NumTreesKey, out.FullModel.NumTrees())
	}

	return out, nil
}

// trainFold fits and scores the model of fold k.
func trainFold(ctx context.Context, X *mat.Dense, y []float64, columns []string, fold CVFold, k int, cfg CVConfig) (FoldResult, error) {
	logger := log.GetLoggerWithName("lightgbm.cv").With(log.FoldKey, k)
	start := time.Now()

	xTrain, yTrain := takeRows(X, fold.TrainIndices), takeValues(y, fold.TrainIndices)
	xValid, yValid := takeRows(X, fold.TestIndices), takeValues(y, fold.TestIndices)

	history := make(map[string][]float64)
	trainer := NewTrainer(cfg.Params).
		WithFeatureNames(columns).
		WithContext(ctx).
		WithLogger(logger).
		WithCallbacks(foldCallbacks(logger, history, cfg)...)
	valid := &ValidationData{X: xValid, Y: mat.NewDense(len(yValid), 1, yValid)}
	if err := trainer.FitWithValidation(xTrain, mat.NewDense(len(yTrain), 1, yTrain), valid); err != nil {
		return FoldResult{}, errors.Wrapf(err, "fold %d", k)
	}
	model := trainer.GetModel()

	proba, err := model.PredictProba(xValid)
	if err != nil {
		return FoldResult{}, errors.Wrapf(err, "fold %d", k)
	}
	if err := errors.CheckNumericalStability(fmt.Sprintf("fold %d prediction", k), proba, trainer.BestIteration()); err != nil {
		return FoldResult{}, err
	}
	acc, auc, logLoss, err := metrics.BinaryScores(yValid, proba, cfg.Threshold)
	if err != nil {
		return FoldResult{}, errors.Wrapf(err, "fold %d", k)
	}

	score := metrics.FoldScore{
		Fold:          k,
		Accuracy:      acc,
		AUC:           auc,
		LogLoss:       logLoss,
		BestIteration: trainer.BestIteration(),
		TrainSize:     len(fold.TrainIndices),
		ValidSize:     len(fold.TestIndices),
	}
	logger.Info("Fold finished",
		log.AccuracyKey, acc,
		log.AUCKey, auc,
		log.LossKey, logLoss,
		log.BestIterationKey, score.BestIteration,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return FoldResult{
		Fold:        k,
		Split:       fold,
		Model:       model,
		Score:       score,
		EvalHistory: history,
	}, nil
}

// foldCallbacks logs progress every 100 iterations, records the loss
// history and applies the optional time limit.
func foldCallbacks(logger log.Logger, history map[string][]float64, cfg CVConfig) []Callback {
	cbs := []Callback{LogEvaluation(logger, 100), RecordEvaluation(history)}
	if cfg.FoldTimeLimit > 0 {
		cbs = append(cbs, TimeLimit(cfg.FoldTimeLimit))
	}
	return cbs
}

// firstFoldError returns the lowest-index fold error that is not a
// cancellation caused by another fold's failure.
func firstFoldError(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}

func takeRows(X *mat.Dense, indices []int) *mat.Dense {
	_, cols := X.Dims()
	out := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		out.SetRow(i, X.RawRowView(idx))
	}
	return out
}

func takeValues(y []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = y[idx]
	}
	return out
}
