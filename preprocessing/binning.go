package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/survival/core/model"
	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
)

// QuantileBinner は分位点で数値列を等頻度のビンに分割する
//
// 境界は参照（ラベル付き）テーブルから線形補間の分位点で学習し、
// 重複する境界は除かれるため、ビン数が Q より少なくなることがあります。
// 学習範囲外の値は最初または最後のビンに割り当てられます。
type QuantileBinner struct {
	model.BaseEstimator

	Source string
	Target string
	Q      int

	// Edges は学習済みの境界（昇順、重複なし）
	Edges []float64
}

// NewQuantileBinner は新しいQuantileBinnerを作成する
//
// 使用例:
//
//	b := preprocessing.NewQuantileBinner("Age", "AgeBin", 5)
//	err := b.Fit(train)
//	train, err = b.Derive(train)
func NewQuantileBinner(source, target string, q int) *QuantileBinner {
	return &QuantileBinner{Source: source, Target: target, Q: q}
}

// Name はステップ名を返す
func (b *QuantileBinner) Name() string { return "qcut_" + b.Source }

// Fit は参照テーブルの非欠損値から境界を学習する
func (b *QuantileBinner) Fit(ref *dataset.Table) error {
	if b.Q < 1 {
		return errors.NewValidationError("q", "must be at least 1", b.Q)
	}
	vals, err := ref.Numeric("qcut", b.Source)
	if err != nil {
		return err
	}

	sorted := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return errors.NewValueError("qcut", "column "+b.Source+" has no observed values")
	}
	sort.Float64s(sorted)

	edges := make([]float64, 0, b.Q+1)
	for k := 0; k <= b.Q; k++ {
		e := quantileLinear(sorted, float64(k)/float64(b.Q))
		if len(edges) == 0 || e > edges[len(edges)-1] {
			edges = append(edges, e)
		}
	}
	b.Edges = edges
	b.SetFitted([]string{b.Source})
	return nil
}

// Derive は Target 列にビン番号を書き込んだコピーを返す
func (b *QuantileBinner) Derive(t *dataset.Table) (*dataset.Table, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("QuantileBinner", "Derive")
	}
	return bucketColumn(t, b.Source, b.Target, b.Edges)
}

// NumBins は学習済みのビン数を返す
func (b *QuantileBinner) NumBins() int {
	return numBins(b.Edges)
}

// CutBinner は固定の境界で数値列を分割する
//
// 区間は右閉 (e[i-1], e[i]] で、範囲外の値は端のビンに割り当てられます。
type CutBinner struct {
	Source string
	Target string
	Edges  []float64
}

// NewCutBinner は新しいCutBinnerを作成する
func NewCutBinner(source, target string, edges []float64) *CutBinner {
	return &CutBinner{Source: source, Target: target, Edges: edges}
}

// Name はステップ名を返す
func (b *CutBinner) Name() string { return "cut_" + b.Source }

// Derive は Target 列にビン番号を書き込んだコピーを返す
func (b *CutBinner) Derive(t *dataset.Table) (*dataset.Table, error) {
	if !sort.Float64sAreSorted(b.Edges) || len(b.Edges) < 2 {
		return nil, errors.NewValidationError("edges", "need at least two ascending edges", b.Edges)
	}
	return bucketColumn(t, b.Source, b.Target, b.Edges)
}

func bucketColumn(t *dataset.Table, source, target string, edges []float64) (*dataset.Table, error) {
	vals, err := t.Numeric("bin", source)
	if err != nil {
		return nil, err
	}
	bins := make([]float64, len(vals))
	for i, v := range vals {
		bins[i] = bucket(edges, v)
	}
	out := t.Clone()
	if err := out.SetNumeric(target, bins); err != nil {
		return nil, err
	}
	return out, nil
}

// bucket returns the index of the right-closed interval containing v.
// NaN stays NaN.
func bucket(edges []float64, v float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	n := numBins(edges)
	if n <= 1 {
		return 0
	}
	// first edge index i >= 1 with v <= edges[i]
	i := sort.SearchFloat64s(edges[1:], v) + 1
	if i > n {
		i = n
	}
	return float64(i - 1)
}

func numBins(edges []float64) int {
	if len(edges) < 2 {
		return 1
	}
	return len(edges) - 1
}

// quantileLinear computes the p-quantile of sorted data with linear
// interpolation between closest ranks, h = (n-1)p.
func quantileLinear(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * p
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}
