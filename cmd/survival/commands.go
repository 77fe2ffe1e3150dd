package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pipeline"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

type options struct {
	configPath string
	force      bool
	logLevel   string
	cfg        pipeline.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "survival",
		Short:         "Passenger survival GBDT pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVarP(&opts.force, "force", "f", false, "regenerate cached features")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(opts),
		newFeaturesCmd(opts),
		newTrainCmd(opts),
		newPredictCmd(opts),
		newSynthCmd(),
	)
	return root
}

// load reads the configuration, applies flag overrides and installs the
// logger.
func (o *options) load(cmd *cobra.Command) error {
	cfg := pipeline.DefaultConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(o.configPath); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("force") {
		cfg.Force = o.force
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.Setup(os.Stderr, cfg.LogLevel); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Generate features, train with cross-validation and write the submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return pipeline.Run(cmd.Context(), opts.cfg)
		},
	}
}

func newFeaturesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Generate and cache the feature tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := pipeline.NewRunner(opts.cfg)
			if err != nil {
				return err
			}
			_, err = r.Features(cmd.Context())
			return err
		},
	}
}

func newTrainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train fold models on the cached features and write scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := pipeline.NewRunner(opts.cfg)
			if err != nil {
				return err
			}
			p, err := r.Features(cmd.Context())
			if err != nil {
				return err
			}
			_, err = r.Train(cmd.Context(), p)
			return err
		},
	}
}

func newPredictCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Write the submission from saved models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := pipeline.NewRunner(opts.cfg)
			if err != nil {
				return err
			}
			p, err := r.Features(cmd.Context())
			if err != nil {
				return err
			}
			_, err = r.Predict(cmd.Context(), p, nil)
			return err
		},
	}
}

func newSynthCmd() *cobra.Command {
	var (
		out       string
		trainRows int
		testRows  int
		seed      uint64
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write synthetic train.csv and test.csv for smoke runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if trainRows < 1 || testRows < 1 {
				return errors.NewValidationError("rows", "must be positive", []int{trainRows, testRows})
			}
			train := dataset.SyntheticPassengers(trainRows, 1, true, seed)
			test := dataset.SyntheticPassengers(testRows, trainRows+1, false, seed+1)
			if err := writeTable(filepath.Join(out, "train.csv"), train); err != nil {
				return err
			}
			if err := writeTable(filepath.Join(out, "test.csv"), test); err != nil {
				return err
			}
			log.GetLoggerWithName("cli").Info("Synthetic data written",
				log.PathKey, out,
				log.SamplesKey, trainRows,
				"test_samples", testRows,
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data/input", "output directory")
	cmd.Flags().IntVar(&trainRows, "train-rows", 891, "labeled rows")
	cmd.Flags().IntVar(&testRows, "test-rows", 418, "unlabeled rows")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func writeTable(path string, t *dataset.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := dataset.WriteCSV(f, t); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
