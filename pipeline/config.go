package pipeline

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/survival/features"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
	"github.com/YuminosukeSato/survival/sklearn/lightgbm"
	"github.com/YuminosukeSato/survival/submission"
)

// Prediction modes.
const (
	// PredictEnsemble averages the fold models (and the full refit, if any).
	PredictEnsemble = "ensemble"
	// PredictFull uses only the model refitted on all labeled rows.
	PredictFull = "full"
)

// DataConfig holds input and output locations.
type DataConfig struct {
	Train       string `yaml:"train"`
	Test        string `yaml:"test"`
	FeaturesDir string `yaml:"features_dir"`
	ModelDir    string `yaml:"model_dir"`
	Submission  string `yaml:"submission"`
}

// FeaturesConfig selects the feature pipeline steps in order.
type FeaturesConfig struct {
	Steps []string `yaml:"steps"`
}

// PredictConfig controls the submission stage.
type PredictConfig struct {
	Mode      string  `yaml:"mode"`
	Threshold float64 `yaml:"threshold"`
}

// ReportConfig holds optional report outputs. Empty paths disable them.
type ReportConfig struct {
	LearningCurve string `yaml:"learning_curve"`
}

// Config is the complete run configuration.
type Config struct {
	Data     DataConfig            `yaml:"data"`
	Features FeaturesConfig        `yaml:"features"`
	Assembly features.AssemblySpec `yaml:"assembly"`
	CV       lightgbm.CVConfig     `yaml:"cv"`
	Predict  PredictConfig         `yaml:"predict"`
	Report   ReportConfig          `yaml:"report"`

	// Force regenerates cached feature snapshots.
	Force    bool   `yaml:"force"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the standard passenger run.
func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			Train:       "data/input/train.csv",
			Test:        "data/input/test.csv",
			FeaturesDir: "data/features",
			ModelDir:    "models",
			Submission:  "data/output/" + submission.FileName,
		},
		Features: FeaturesConfig{Steps: append([]string(nil), features.DefaultSteps...)},
		Assembly: features.DefaultAssemblySpec(),
		CV:       lightgbm.DefaultCVConfig(),
		Predict: PredictConfig{
			Mode:      PredictEnsemble,
			Threshold: submission.DefaultThreshold,
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys absent from the
// file keep their defaults; unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration before any stage runs.
func (c Config) Validate() error {
	switch {
	case c.Data.Train == "" || c.Data.Test == "":
		return errors.NewValidationError("data", "train and test paths are required", c.Data)
	case c.Data.FeaturesDir == "":
		return errors.NewValidationError("data.features_dir", "must not be empty", c.Data.FeaturesDir)
	case c.Data.ModelDir == "":
		return errors.NewValidationError("data.model_dir", "must not be empty", c.Data.ModelDir)
	case c.Data.Submission == "":
		return errors.NewValidationError("data.submission", "must not be empty", c.Data.Submission)
	case c.Assembly.ID == "" || c.Assembly.Target == "":
		return errors.NewValidationError("assembly", "id and target are required", c.Assembly)
	case len(c.Assembly.Features)+len(c.Assembly.OneHot) == 0:
		return errors.NewValidationError("assembly", "no feature columns", c.Assembly)
	case c.CV.NFolds < 2:
		return errors.NewValidationError("cv.n_folds", "must be at least 2", c.CV.NFolds)
	case c.CV.FoldTimeLimit < 0:
		return errors.NewValidationError("cv.fold_time_limit", "must not be negative", c.CV.FoldTimeLimit)
	case c.Predict.Threshold < 0 || c.Predict.Threshold > 1:
		return errors.NewValidationError("predict.threshold", "must be in [0, 1]", c.Predict.Threshold)
	}

	switch c.Predict.Mode {
	case PredictEnsemble:
	case PredictFull:
		if !c.CV.RefitFull {
			return errors.NewValidationError("predict.mode", "full requires cv.refit_full", c.Predict.Mode)
		}
	default:
		return errors.NewValidationError("predict.mode", "must be ensemble or full", c.Predict.Mode)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.NewValidationError("log_level", err.Error(), c.LogLevel)
	}
	if _, err := features.DefaultRegistry().Build(c.Features.Steps); err != nil {
		return err
	}
	return c.CV.Params.Validate()
}
