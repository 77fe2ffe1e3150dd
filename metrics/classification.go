// Package metrics は二値分類モデルの評価指標と、交差検証スコアの集計を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// logLossEps は対数損失で確率をクリップする幅
const logLossEps = 1e-15

// checkPair は2つのベクトルが非nil・非空・同じ長さであることを確認する
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError(op, "nil vector")
	}
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

func checkBinaryLabels(op string, yTrue *mat.VecDense) error {
	for i := 0; i < yTrue.Len(); i++ {
		if v := yTrue.AtVec(i); v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}

// AUC はROC曲線下面積を計算する
//
// 同じスコアの組は0.5として扱われます。正例または負例しか含まれない場合は
// 定義できないため UndefinedMetricWarning を発行して0.5を返します。
//
// 使用例:
//
//	auc, err := metrics.AUC(yTrue, proba)
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("AUC", yTrue); err != nil {
		return 0, err
	}

	scores := make([]float64, n)
	classes := make([]bool, n)
	positives := 0
	for i := 0; i < n; i++ {
		scores[i] = yPred.AtVec(i)
		classes[i] = yTrue.AtVec(i) == 1
		if classes[i] {
			positives++
		}
	}
	if positives == 0 || positives == n {
		errors.Warn(errors.NewUndefinedMetricWarning("AUC", "only one class present in y_true", 0.5))
		return 0.5, nil
	}

	stat.SortWeightedLabeled(scores, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, scores, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// AUCMatrix は行列形式の入力に対してAUCを計算する（最初の列を使用）
func AUCMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	if yTrue == nil || yPred == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 || cPred == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if rTrue != rPred {
		return 0, errors.NewDimensionError("AUCMatrix", rTrue, rPred, 0)
	}
	return AUC(firstColumn(yTrue), firstColumn(yPred))
}

func firstColumn(m mat.Matrix) *mat.VecDense {
	r, _ := m.Dims()
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}

// BinaryLogLoss は二値の対数損失を計算する
//
// 確率は [eps, 1-eps] にクリップされます。
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := checkBinaryLabels("BinaryLogLoss", yTrue); err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		p := math.Min(math.Max(yPred.AtVec(i), logLossEps), 1-logLossEps)
		if yTrue.AtVec(i) == 1 {
			sum -= math.Log(p)
		} else {
			sum -= math.Log(1 - p)
		}
	}
	return sum / float64(n), nil
}

// ClassificationError は誤分類率を計算する（ラベルの完全一致で比較）
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := accuracy("ClassificationError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// Accuracy は正解率を計算する（ラベルの完全一致で比較）
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	return accuracy("Accuracy", yTrue, yPred)
}

func accuracy(op string, yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair(op, yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// Threshold は確率を閾値で0/1ラベルに変換する（p > threshold を陽性とする）
func Threshold(proba []float64, threshold float64) []float64 {
	labels := make([]float64, len(proba))
	for i, p := range proba {
		if p > threshold {
			labels[i] = 1
		}
	}
	return labels
}

// BinaryScores は確率予測から正解率・AUC・対数損失をまとめて計算する
func BinaryScores(yTrue, proba []float64, threshold float64) (acc, auc, logLoss float64, err error) {
	if len(yTrue) == 0 || len(proba) == 0 {
		return 0, 0, 0, errors.NewValueError("BinaryScores", "empty vector")
	}
	yv := mat.NewVecDense(len(yTrue), yTrue)
	pv := mat.NewVecDense(len(proba), proba)

	if acc, err = Accuracy(yv, mat.NewVecDense(len(proba), Threshold(proba, threshold))); err != nil {
		return 0, 0, 0, err
	}
	if auc, err = AUC(yv, pv); err != nil {
		return 0, 0, 0, err
	}
	if logLoss, err = BinaryLogLoss(yv, pv); err != nil {
		return 0, 0, 0, err
	}
	return acc, auc, logLoss, nil
}
