package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// EarlyStopping tracks a validation metric and signals when it has not
// improved for Rounds consecutive iterations.
type EarlyStopping struct {
	Rounds          int     // Number of rounds without improvement to stop
	BestScore       float64 // Best validation score so far
	BestIteration   int     // 0-based iteration with best score
	RoundsNoImprove int     // Current rounds without improvement
	Metric          string  // Metric to use for early stopping
	Minimize        bool    // Whether to minimize the metric
	Enabled         bool    // Whether early stopping is enabled
}

// NewEarlyStopping creates a new early stopping handler. rounds <= 0
// disables it.
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{Enabled: false, BestIteration: -1}
	}

	minimize := true
	switch metric {
	case "auc", "accuracy":
		minimize = false
	}

	bestScore := math.Inf(1)
	if !minimize {
		bestScore = math.Inf(-1)
	}

	return &EarlyStopping{
		Rounds:        rounds,
		BestScore:     bestScore,
		BestIteration: -1,
		Metric:        metric,
		Minimize:      minimize,
		Enabled:       true,
	}
}

// Update records the score of an iteration and reports whether training
// should stop.
func (es *EarlyStopping) Update(iteration int, score float64) bool {
	if !es.Enabled {
		return false
	}

	improved := score < es.BestScore
	if !es.Minimize {
		improved = score > es.BestScore
	}

	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.RoundsNoImprove >= es.Rounds
}

// ShouldStop returns whether training should stop
func (es *EarlyStopping) ShouldStop() bool {
	if !es.Enabled {
		return false
	}
	return es.RoundsNoImprove >= es.Rounds
}

// ValidationData holds the held-out rows scored after every iteration.
type ValidationData struct {
	X mat.Matrix
	Y mat.Matrix
}
