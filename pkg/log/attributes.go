// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention ("data.samples", "cv.fold")
// so log lines from feature generation, training and prediction can be
// filtered with the same queries.

package log

// Operation context.
const (
	// ModelNameKey identifies the estimator, e.g. "lightgbm", "ensemble".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or stage emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline phase.
	PhaseKey = "ml.phase"

	// StepKey names a feature pipeline step ("impute", "honorific", ...).
	StepKey = "pipeline.step"

	// RunIDKey identifies one pipeline run.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ColumnKey   = "data.column"
	SplitKey    = "data.split"
	PathKey     = "data.path"
	MissingKey  = "data.missing"
)

// Training and evaluation.
const (
	FoldKey          = "cv.fold"
	NumFoldsKey      = "cv.n_folds"
	IterationKey     = "training.iteration"
	BestIterationKey = "training.best_iteration"
	NumTreesKey      = "training.num_trees"
	LossKey          = "metrics.loss"
	AccuracyKey      = "metrics.accuracy"
	AUCKey           = "metrics.auc"
	MeanKey          = "metrics.mean"
	StdKey           = "metrics.std"
	DurationMsKey    = "perf.duration_ms"
)

// Configuration.
const (
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
	ForceKey        = "config.force"
	ThresholdKey    = "preds.threshold"
	PredsKey        = "preds.count"
)

// Standard values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationAssemble  = "assemble"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
)
