package model

import "slices"

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全てのモデルの基底となる構造体
//
// 学習状態に加えて、学習時の列名を保持します。推論時の列スキーマ検証に使われます。
type BaseEstimator struct {
	state    EstimatorState
	features []string
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted はモデルを学習済み状態に設定し、学習時の列名を記録する
func (e *BaseEstimator) SetFitted(features []string) {
	e.state = Fitted
	e.features = slices.Clone(features)
}

// Features は学習時の列名のコピーを返す
func (e *BaseEstimator) Features() []string {
	return slices.Clone(e.features)
}

// NumFeatures は学習時の列数を返す
func (e *BaseEstimator) NumFeatures() int {
	return len(e.features)
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.state = NotFitted
	e.features = nil
}
