package features

import (
	"context"
	"path/filepath"

	"github.com/YuminosukeSato/survival/core/model"
	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

// Snapshot file names inside the cache directory.
const (
	TrainSnapshot = "features_train.gob"
	TestSnapshot  = "features_test.gob"
)

// Cache stores derived feature tables as gob snapshots so later stages can
// skip regeneration.
type Cache struct {
	Dir   string
	Force bool
}

// Paths returns the train and test snapshot paths.
func (c Cache) Paths() (train, test string) {
	return filepath.Join(c.Dir, TrainSnapshot), filepath.Join(c.Dir, TestSnapshot)
}

// Fresh reports whether both snapshots exist and Force is unset.
func (c Cache) Fresh() bool {
	train, test := c.Paths()
	return !c.Force && model.Exists(train) && model.Exists(test)
}

// Load reads both snapshots.
func (c Cache) Load() (dataset.Paired, error) {
	trainPath, testPath := c.Paths()
	var train, test dataset.Table
	if err := model.LoadGob(trainPath, &train); err != nil {
		return dataset.Paired{}, errors.Wrapf(err, "load %s", trainPath)
	}
	if err := model.LoadGob(testPath, &test); err != nil {
		return dataset.Paired{}, errors.Wrapf(err, "load %s", testPath)
	}
	return dataset.Paired{Labeled: &train, Unlabeled: &test}, nil
}

// Store writes both snapshots, replacing older ones.
func (c Cache) Store(p dataset.Paired) error {
	trainPath, testPath := c.Paths()
	if err := model.SaveGob(trainPath, p.Labeled); err != nil {
		return errors.Wrapf(err, "store %s", trainPath)
	}
	if err := model.SaveGob(testPath, p.Unlabeled); err != nil {
		return errors.Wrapf(err, "store %s", testPath)
	}
	return nil
}

// GetOrBuild returns the cached tables when fresh, otherwise runs build and
// stores its result. built reports whether build ran.
func (c Cache) GetOrBuild(ctx context.Context, build func(context.Context) (dataset.Paired, error)) (p dataset.Paired, built bool, err error) {
	logger := log.GetLoggerWithName("features.cache")
	if c.Fresh() {
		p, err = c.Load()
		if err == nil {
			logger.Info("Loaded cached features", log.PathKey, c.Dir)
			return p, false, nil
		}
		logger.Warn("Cached features unreadable, rebuilding", log.ErrAttrKey, err)
	}

	p, err = build(ctx)
	if err != nil {
		return dataset.Paired{}, true, err
	}
	if err := c.Store(p); err != nil {
		return dataset.Paired{}, true, err
	}
	logger.Info("Stored features", log.PathKey, c.Dir, log.ForceKey, c.Force)
	return p, true, nil
}
