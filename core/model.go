// Package core はパイプラインの推定器が共有するインターフェースを定義します。
package core

import "gonum.org/v1/gonum/mat"

// ProbaPredictor は陽性クラス確率を出力するモデルのインターフェース
type ProbaPredictor interface {
	// PredictProba は各行の陽性クラス確率を返す
	PredictProba(X mat.Matrix) ([]float64, error)

	// Features は学習時の列名を順序どおりに返す
	Features() []string
}

// NamedPredictor は列名で入力を並べ替えてから予測できるモデル
//
// 単一モデルとfoldモデルのアンサンブルのどちらも推論段で同じように扱えます。
type NamedPredictor interface {
	// Features は学習時の列名を順序どおりに返す
	Features() []string

	// PredictProbaByName は columns の順序で与えられた X を学習時の順序に合わせて予測する
	PredictProbaByName(X mat.Matrix, columns []string) ([]float64, error)
}
