package metrics

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// ScoresFile は交差検証スコアの保存先ファイル名
const ScoresFile = "scores.json"

// FoldScore は1つのfoldの検証結果
type FoldScore struct {
	Fold          int     `json:"fold"`
	Accuracy      float64 `json:"accuracy"`
	AUC           float64 `json:"auc"`
	LogLoss       float64 `json:"log_loss"`
	BestIteration int     `json:"best_iteration"`
	TrainSize     int     `json:"train_size"`
	ValidSize     int     `json:"valid_size"`
}

// Summary は全foldのスコアを集計したもの
//
// Scores / MeanScore / StdScore は正解率、AUC系は AUC の集計です。
// 標準偏差は母標準偏差です。
type Summary struct {
	RunID             string             `json:"run_id"`
	CreatedAt         time.Time          `json:"created_at"`
	Scores            []float64          `json:"scores"`
	MeanScore         float64            `json:"mean_score"`
	StdScore          float64            `json:"std_score"`
	AUCScores         []float64          `json:"auc_scores"`
	MeanAUC           float64            `json:"mean_auc"`
	StdAUC            float64            `json:"std_auc"`
	MeanLogLoss       float64            `json:"mean_log_loss"`
	Folds             []FoldScore        `json:"folds"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// Summarize はfoldごとのスコアをfold番号順に集計する
//
// 使用例:
//
//	summary, err := metrics.Summarize(folds)
//	err = metrics.WriteSummary(filepath.Join(modelDir, metrics.ScoresFile), summary)
func Summarize(folds []FoldScore) (Summary, error) {
	if len(folds) == 0 {
		return Summary{}, errors.NewValueError("Summarize", "no fold scores")
	}

	s := Summary{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Scores:    make([]float64, len(folds)),
		AUCScores: make([]float64, len(folds)),
		Folds:     append([]FoldScore(nil), folds...),
	}
	losses := make([]float64, len(folds))
	for i, f := range folds {
		s.Scores[i] = f.Accuracy
		s.AUCScores[i] = f.AUC
		losses[i] = f.LogLoss
	}
	s.MeanScore, s.StdScore = stat.PopMeanStdDev(s.Scores, nil)
	s.MeanAUC, s.StdAUC = stat.PopMeanStdDev(s.AUCScores, nil)
	s.MeanLogLoss = stat.Mean(losses, nil)
	return s, nil
}

// WriteSummary はスコアをインデント付きJSONで保存する（既存ファイルは上書き）
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal scores")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// ReadSummary は保存されたスコアを読み込む
func ReadSummary(path string) (Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Summary{}, errors.Wrapf(err, "read %s", path)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return Summary{}, errors.Wrapf(err, "decode %s", path)
	}
	return s, nil
}
