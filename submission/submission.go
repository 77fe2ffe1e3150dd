// Package submission は予測確率から提出用CSVを書き出します。
package submission

import (
	"bufio"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

// 提出ファイルの既定値
const (
	FileName         = "submission.csv"
	DefaultThreshold = 0.5
)

// Header は提出CSVのヘッダ行
var Header = []string{"PassengerId", "Survived"}

// Labels は確率を 0/1 に変換する（p > threshold を 1 とする）
func Labels(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > threshold {
			out[i] = 1
		}
	}
	return out
}

// Write は PassengerId,Survived 形式のCSVを path に書き出す
//
// 既存ファイルは上書きされます。ids と probs の長さが異なる場合は DimensionError、
// 確率が [0, 1] の範囲外またはNaNの場合は ValueError を返します。
func Write(path string, ids, probs []float64, threshold float64) error {
	if len(ids) != len(probs) {
		return errors.NewDimensionError("submission.Write", len(ids), len(probs), 0)
	}
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return errors.NewValueError("submission.Write",
				"probability out of range at row "+strconv.Itoa(i))
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	if err := w.Write(Header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	labels := Labels(probs, threshold)
	for i, id := range ids {
		rec := []string{strconv.FormatFloat(id, 'f', -1, 64), strconv.Itoa(labels[i])}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush csv")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "failed to flush")
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", path)
	}

	positives := 0
	for _, l := range labels {
		positives += l
	}
	log.GetLoggerWithName("submission").Info("Submission written",
		log.PathKey, path,
		log.PredsKey, len(ids),
		"positives", positives,
		log.ThresholdKey, threshold,
	)
	return nil
}
