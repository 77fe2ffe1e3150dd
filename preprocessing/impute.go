// Package preprocessing は欠損値補完・カテゴリ符号化・ビニングを提供します。
//
// いずれの処理もラベル付きテーブルで統計量を学習し、同じ統計量を
// ラベル付き・ラベルなし両方のテーブルに適用します。
package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/survival/core/model"
	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

// StatKind は補完統計量の種類
type StatKind string

const (
	// Median は数値列の中央値
	Median StatKind = "median"
	// Mode はカテゴリ列の最頻値
	Mode StatKind = "mode"
)

// Statistic は1列分の補完統計量
//
// Kind が Median の場合は Value、Mode の場合は Category が使われます。
type Statistic struct {
	Column   string   `json:"column"`
	Kind     StatKind `json:"kind"`
	Value    float64  `json:"value,omitempty"`
	Category string   `json:"category,omitempty"`
}

// FitImpute は列の補完統計量を計算する
//
// 数値列は欠損を除いた中央値（偶数個なら中央2値の平均）、
// カテゴリ列は最頻値（同数の場合は辞書順で最小のもの）を返します。
//
// 使用例:
//
//	stat, err := preprocessing.FitImpute(train, "Age")
//	train, err = preprocessing.ApplyImpute(train, stat)
func FitImpute(t *dataset.Table, column string) (Statistic, error) {
	c, ok := t.Column(column)
	if !ok {
		return Statistic{}, errors.NewMissingColumnError("FitImpute", column)
	}

	if c.Kind == dataset.Numeric {
		vals := make([]float64, 0, len(c.Num))
		for _, v := range c.Num {
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			return Statistic{}, errors.NewValueError("FitImpute", "column "+column+" has no observed values")
		}
		return Statistic{Column: column, Kind: Median, Value: median(vals)}, nil
	}

	counts := make(map[string]int)
	for _, s := range c.Str {
		if s != "" {
			counts[s]++
		}
	}
	if len(counts) == 0 {
		return Statistic{}, errors.NewValueError("FitImpute", "column "+column+" has no observed values")
	}
	best, bestN := "", 0
	for s, n := range counts {
		if n > bestN || (n == bestN && s < best) {
			best, bestN = s, n
		}
	}
	return Statistic{Column: column, Kind: Mode, Category: best}, nil
}

// ApplyImpute は欠損セルを統計量で埋めたテーブルのコピーを返す
//
// 欠損していないセルは変更されません。同じ統計量で2回適用しても結果は変わりません。
func ApplyImpute(t *dataset.Table, stat Statistic) (*dataset.Table, error) {
	c, ok := t.Column(stat.Column)
	if !ok {
		return nil, errors.NewMissingColumnError("ApplyImpute", stat.Column)
	}
	if (stat.Kind == Median) != (c.Kind == dataset.Numeric) {
		return nil, errors.NewValueError("ApplyImpute", "statistic kind "+string(stat.Kind)+" does not match column "+stat.Column)
	}

	out := t.Clone()
	oc, _ := out.Column(stat.Column)
	for i := 0; i < oc.Len(); i++ {
		if !oc.IsMissing(i) {
			continue
		}
		if stat.Kind == Median {
			oc.Num[i] = stat.Value
		} else {
			oc.Str[i] = stat.Category
		}
	}
	return out, nil
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Imputer は複数列の補完をまとめて行うパイプラインステップ
//
// Fit でラベル付きテーブルから統計量を学習し、Derive で任意のテーブルに適用します。
// Missing には Derive ごとの補完前の欠損数が記録され、前処理レポートに使われます。
type Imputer struct {
	model.BaseEstimator

	// Columns は補完対象の列（順序どおりに処理）
	Columns []string

	// Stats は学習済みの統計量（Columns と同じ順序）
	Stats []Statistic

	// Missing は補完前の列ごとの欠損数（Derive の呼び出し順）
	Missing []map[string]int
}

// NewImputer は新しいImputerを作成する
func NewImputer(columns ...string) *Imputer {
	return &Imputer{Columns: columns}
}

// Name はステップ名を返す
func (im *Imputer) Name() string { return "impute" }

// Fit は参照テーブルから各列の統計量を学習する
func (im *Imputer) Fit(ref *dataset.Table) error {
	stats := make([]Statistic, 0, len(im.Columns))
	for _, col := range im.Columns {
		s, err := FitImpute(ref, col)
		if err != nil {
			return err
		}
		stats = append(stats, s)
	}
	im.Stats = stats
	im.Missing = nil
	im.SetFitted(im.Columns)

	logger := log.GetLoggerWithName("preprocessing.impute")
	for _, s := range stats {
		logger.Debug("Fitted imputation statistic",
			log.ColumnKey, s.Column,
			"kind", string(s.Kind),
			"value", s.Value,
			"category", s.Category,
		)
	}
	return nil
}

// Derive は学習済みの統計量で欠損を埋める
func (im *Imputer) Derive(t *dataset.Table) (*dataset.Table, error) {
	if !im.IsFitted() {
		return nil, errors.NewNotFittedError("Imputer", "Derive")
	}

	missing := make(map[string]int, len(im.Stats))
	out := t
	for _, s := range im.Stats {
		c, ok := out.Column(s.Column)
		if !ok {
			return nil, errors.NewMissingColumnError("impute", s.Column)
		}
		missing[s.Column] = c.MissingCount()

		var err error
		out, err = ApplyImpute(out, s)
		if err != nil {
			return nil, err
		}
	}
	im.Missing = append(im.Missing, missing)
	return out, nil
}

// Statistic は列名に対応する学習済み統計量を返す
func (im *Imputer) Statistic(column string) (Statistic, bool) {
	for _, s := range im.Stats {
		if s.Column == column {
			return s, true
		}
	}
	return Statistic{}, false
}
