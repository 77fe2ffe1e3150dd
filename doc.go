// Package survival predicts passenger survival from the Titanic manifest
// with a gradient boosted decision tree ensemble.
//
// The module is organised as a pipeline of small packages:
//
//   - dataset: columnar tables, CSV ingestion and the labeled/unlabeled pair
//   - preprocessing: imputation, category encoding and binning
//   - features: feature derivers, the feature pipeline, snapshot cache and
//     matrix assembly
//   - sklearn/lightgbm: the GBDT learner, k-fold cross-validation, fold
//     ensembles and JSON model artifacts
//   - metrics: accuracy, AUC, log loss and the cross-validation summary
//   - submission: the PassengerId,Survived CSV writer
//   - report: learning-curve plots
//   - pipeline: configuration and stage orchestration
//   - cmd/survival: the command line interface
//
// # Quick Start
//
//	cfg := pipeline.DefaultConfig()
//	cfg.Data.Train = "data/input/train.csv"
//	cfg.Data.Test = "data/input/test.csv"
//	if err := pipeline.Run(ctx, cfg); err != nil {
//	    log.GetLogger().Error("Pipeline failed", err)
//	}
//
// or from the shell:
//
//	survival synth --out data/input
//	survival run --config configs/default.yaml
//
// # Error Handling
//
// Errors carry stack traces (github.com/cockroachdb/errors) and are typed in
// pkg/errors so callers can branch with errors.As:
//
//	var missing *errors.MissingColumnError
//	if errors.As(err, &missing) {
//	    // missing.Column names the absent column
//	}
//
// # Logging
//
// pkg/log exposes a slog-shaped Logger backed by zerolog. Every stage logs
// with shared attribute keys (cv.fold, data.samples, metrics.auc, ...).
package survival
