package features

import (
	"math"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/preprocessing"
)

// StatsFile is the preprocessing report written next to the snapshots.
const StatsFile = "preprocessing_stats.json"

// Stats summarises what the feature pipeline did to the raw tables.
type Stats struct {
	TrainRows      int                       `json:"train_rows"`
	TestRows       int                       `json:"test_rows"`
	Imputation     []preprocessing.Statistic `json:"imputation"`
	MissingTrain   map[string]int            `json:"missing_train"`
	MissingTest    map[string]int            `json:"missing_test"`
	TitleCounts    map[string]int            `json:"title_counts"`
	FeatureColumns []string                  `json:"feature_columns"`
	SurvivalRate   float64                   `json:"survival_rate"`
}

// CollectStats builds the report from the raw tables and the fitted pipeline.
func CollectStats(raw dataset.Paired, pipe *Pipeline, derived dataset.Paired) Stats {
	s := Stats{
		TrainRows:      raw.Labeled.Len(),
		TestRows:       raw.Unlabeled.Len(),
		MissingTrain:   raw.Labeled.MissingCounts(),
		MissingTest:    raw.Unlabeled.MissingCounts(),
		TitleCounts:    make(map[string]int),
		FeatureColumns: derived.Labeled.Names(),
	}
	if im, ok := pipe.Imputer(); ok {
		s.Imputation = im.Stats
	}
	for _, t := range []*dataset.Table{raw.Labeled, raw.Unlabeled} {
		names, err := t.Strings("stats", dataset.ColName)
		if err != nil {
			continue
		}
		for _, n := range names {
			title := Honorific(n)
			if _, ok := titleCodes[title]; !ok {
				title = "Unknown"
			}
			s.TitleCounts[title]++
		}
	}
	if y, err := raw.Labeled.Numeric("stats", dataset.ColSurvived); err == nil {
		sum, n := 0.0, 0
		for _, v := range y {
			if math.IsNaN(v) {
				continue
			}
			sum += v
			n++
		}
		if n > 0 {
			s.SurvivalRate = sum / float64(n)
		}
	}
	return s
}

// WriteStats writes the report as indented JSON.
func WriteStats(path string, s Stats) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal preprocessing stats")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
