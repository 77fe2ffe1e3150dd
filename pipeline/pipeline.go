// Package pipeline wires the survival stages together: feature generation,
// cross-validated training and submission writing.
//
// Each stage can run on its own. Features are cached as snapshots under
// data.features_dir, models and scores are written to data.model_dir, and
// the predict stage reads models back from disk when it is not handed a
// predictor by a preceding train stage.
//
//	cfg, err := pipeline.LoadConfig("configs/default.yaml")
//	err = pipeline.Run(ctx, cfg)
package pipeline

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/core"
	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/features"
	"github.com/YuminosukeSato/survival/metrics"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
	"github.com/YuminosukeSato/survival/report"
	"github.com/YuminosukeSato/survival/sklearn/lightgbm"
	"github.com/YuminosukeSato/survival/submission"
)

// Runner executes pipeline stages for one configuration.
type Runner struct {
	cfg    Config
	runID  string
	logger log.Logger
}

// NewRunner validates cfg and creates a runner with a fresh run id.
func NewRunner(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &Runner{
		cfg:    cfg,
		runID:  runID,
		logger: log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID),
	}, nil
}

// RunID identifies this runner's outputs.
func (r *Runner) RunID() string {
	return r.runID
}

// TrainResult is the output of the train stage.
type TrainResult struct {
	CV      *lightgbm.CVResult
	Summary metrics.Summary
	Columns []string
}

// Predictor returns the model set used for prediction in the given mode.
func (t *TrainResult) Predictor(mode string) core.NamedPredictor {
	if mode == PredictFull && t.CV.FullModel != nil {
		return t.CV.FullModel
	}
	return t.CV.Ensemble()
}

// Run executes features, train and predict in order.
func Run(ctx context.Context, cfg Config) error {
	r, err := NewRunner(cfg)
	if err != nil {
		return err
	}
	start := time.Now()

	p, err := r.Features(ctx)
	if err != nil {
		return errors.Wrap(err, "features stage")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := r.Train(ctx, p)
	if err != nil {
		return errors.Wrap(err, "train stage")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.Predict(ctx, p, res.Predictor(cfg.Predict.Mode)); err != nil {
		return errors.Wrap(err, "predict stage")
	}

	r.logger.Info("Pipeline finished",
		log.AccuracyKey, res.Summary.MeanScore,
		log.AUCKey, res.Summary.MeanAUC,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Features returns the derived passenger tables, from the snapshot cache
// unless it is missing or Force is set. A rebuild also rewrites the
// preprocessing report.
func (r *Runner) Features(ctx context.Context) (dataset.Paired, error) {
	logger := r.logger.With(log.PhaseKey, log.PhasePreprocessing)
	cache := features.Cache{Dir: r.cfg.Data.FeaturesDir, Force: r.cfg.Force}

	p, built, err := cache.GetOrBuild(ctx, func(ctx context.Context) (dataset.Paired, error) {
		raw, err := r.readRaw()
		if err != nil {
			return dataset.Paired{}, err
		}
		pipe, err := features.DefaultRegistry().Build(r.cfg.Features.Steps)
		if err != nil {
			return dataset.Paired{}, err
		}
		derived, err := pipe.Run(ctx, raw)
		if err != nil {
			return dataset.Paired{}, err
		}

		statsPath := filepath.Join(r.cfg.Data.FeaturesDir, features.StatsFile)
		if err := features.WriteStats(statsPath, features.CollectStats(raw, pipe, derived)); err != nil {
			return dataset.Paired{}, err
		}
		logger.Info("Preprocessing report written", log.PathKey, statsPath)
		return derived, nil
	})
	if err != nil {
		return dataset.Paired{}, err
	}

	logger.Info("Features ready",
		log.SamplesKey, p.Labeled.Len(),
		"test_samples", p.Unlabeled.Len(),
		"built", built,
	)
	return p, nil
}

func (r *Runner) readRaw() (dataset.Paired, error) {
	train, err := dataset.ReadCSVFile(r.cfg.Data.Train, dataset.PassengerNumeric)
	if err != nil {
		return dataset.Paired{}, err
	}
	test, err := dataset.ReadCSVFile(r.cfg.Data.Test, dataset.PassengerNumeric)
	if err != nil {
		return dataset.Paired{}, err
	}
	target := r.cfg.Assembly.Target
	if !train.Has(target) {
		return dataset.Paired{}, errors.NewMissingTargetError("read "+r.cfg.Data.Train, target)
	}
	y, err := train.Numeric("read "+r.cfg.Data.Train, target)
	if err != nil {
		return dataset.Paired{}, err
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return dataset.Paired{}, errors.NewValueError("read "+r.cfg.Data.Train,
				fmt.Sprintf("%s must be 0 or 1, got %q at row %d", target, formatLabel(v), i))
		}
	}
	return dataset.Paired{Labeled: train, Unlabeled: test}, nil
}

func formatLabel(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Train assembles the matrix, runs cross-validation and writes the model
// and score artifacts.
func (r *Runner) Train(ctx context.Context, p dataset.Paired) (*TrainResult, error) {
	logger := r.logger.With(log.PhaseKey, log.PhaseTraining)

	m, err := features.Assemble(p, r.cfg.Assembly)
	if err != nil {
		return nil, err
	}
	rows := len(m.YTrain)
	y := matrixColumn(m.YTrain)

	cv, err := lightgbm.TrainCV(ctx, m.XTrain, y, m.Columns, r.cfg.CV)
	if err != nil {
		return nil, err
	}

	dir := r.cfg.Data.ModelDir
	if err := lightgbm.SaveModels(dir, cv.Models, cv.FullModel); err != nil {
		return nil, err
	}

	summary, err := metrics.Summarize(cv.Scores())
	if err != nil {
		return nil, err
	}
	summary.RunID = r.runID
	summary.FeatureImportance = cv.Ensemble().FeatureImportance("gain")
	scoresPath := filepath.Join(dir, metrics.ScoresFile)
	if err := metrics.WriteSummary(scoresPath, summary); err != nil {
		return nil, err
	}

	if path := r.cfg.Report.LearningCurve; path != "" {
		if err := report.PlotLearningCurves(path, "Validation loss per fold", cv.ValidationCurves()); err != nil {
			return nil, err
		}
		logger.Info("Learning curves written", log.PathKey, path)
	}

	logger.Info("Training finished",
		log.SamplesKey, rows,
		log.FeaturesKey, len(m.Columns),
		log.NumFoldsKey, len(cv.Models),
		log.MeanKey, summary.MeanScore,
		log.StdKey, summary.StdScore,
		log.AUCKey, summary.MeanAUC,
		log.PathKey, scoresPath,
	)
	return &TrainResult{CV: cv, Summary: summary, Columns: m.Columns}, nil
}

// Predict writes the submission for the unlabeled table. A nil predictor
// loads the models saved by a previous train stage.
func (r *Runner) Predict(ctx context.Context, p dataset.Paired, predictor core.NamedPredictor) (string, error) {
	logger := r.logger.With(log.PhaseKey, log.PhaseInference)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m, err := features.Assemble(p, r.cfg.Assembly)
	if err != nil {
		return "", err
	}
	if predictor == nil {
		if predictor, err = r.loadPredictor(); err != nil {
			return "", err
		}
	}

	proba, err := predictor.PredictProbaByName(m.XTest, m.Columns)
	if err != nil {
		return "", err
	}
	path := r.cfg.Data.Submission
	if err := submission.Write(path, m.TestIDs, proba, r.cfg.Predict.Threshold); err != nil {
		return "", err
	}
	logger.Info("Prediction finished", log.PredsKey, len(proba), "mode", r.cfg.Predict.Mode)
	return path, nil
}

func (r *Runner) loadPredictor() (core.NamedPredictor, error) {
	dir := r.cfg.Data.ModelDir
	if r.cfg.Predict.Mode == PredictFull {
		m, err := lightgbm.LoadModel(filepath.Join(dir, lightgbm.FullModelFile))
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	ens, err := lightgbm.LoadEnsemble(dir, r.cfg.CV.RefitFull)
	if err != nil {
		return nil, err
	}
	return ens, nil
}

func matrixColumn(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, append([]float64(nil), v...))
}
