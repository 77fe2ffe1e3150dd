package lightgbm

import (
	"math"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// ObjectiveFunction defines the interface for different objective functions.
// prediction is always the raw (untransformed) score.
type ObjectiveFunction interface {
	// CalculateGradient calculates the gradient for a single sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian calculates the hessian for a single sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss calculates the loss for a single sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the initial score for this objective
	GetInitScore(targets []float64) float64

	// Name returns the name of the objective
	Name() string
}

// L2Objective implements L2 (Mean Squared Error) loss
type L2Objective struct{}

func NewL2Objective() *L2Objective {
	return &L2Objective{}
}

func (o *L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (o *L2Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o *L2Objective) CalculateLoss(prediction, target float64) float64 {
	diff := prediction - target
	return 0.5 * diff * diff
}

func (o *L2Objective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	return sum / float64(len(targets))
}

func (o *L2Objective) Name() string {
	return string(RegressionL2)
}

// BinaryLogLossObjective implements the logistic loss for 0/1 targets.
// The raw score is the log-odds of the positive class.
type BinaryLogLossObjective struct {
	// minHessian keeps leaf denominators away from zero once predictions saturate
	minHessian float64
	eps        float64
}

func NewBinaryLogLossObjective() *BinaryLogLossObjective {
	return &BinaryLogLossObjective{minHessian: 1e-16, eps: 1e-15}
}

func (o *BinaryLogLossObjective) CalculateGradient(prediction, target float64) float64 {
	return sigmoid(prediction) - target
}

func (o *BinaryLogLossObjective) CalculateHessian(prediction, target float64) float64 {
	p := sigmoid(prediction)
	return math.Max(p*(1-p), o.minHessian)
}

func (o *BinaryLogLossObjective) CalculateLoss(prediction, target float64) float64 {
	p := math.Min(math.Max(sigmoid(prediction), o.eps), 1-o.eps)
	if target == 1 {
		return -math.Log(p)
	}
	return -math.Log(1 - p)
}

// GetInitScore returns the log-odds of the mean label.
func (o *BinaryLogLossObjective) GetInitScore(targets []float64) float64 {
	if len(targets) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, t := range targets {
		sum += t
	}
	p := math.Min(math.Max(sum/float64(len(targets)), o.eps), 1-o.eps)
	return math.Log(p / (1 - p))
}

func (o *BinaryLogLossObjective) Name() string {
	return string(BinaryLogistic)
}

// CreateObjectiveFunction creates an objective function by name
func CreateObjectiveFunction(objective string) (ObjectiveFunction, error) {
	switch objective {
	case "binary", "binary_logloss", "logistic":
		return NewBinaryLogLossObjective(), nil
	case "regression", "regression_l2", "l2", "mse", "":
		return NewL2Objective(), nil
	default:
		return nil, errors.NewValidationError("objective", "unsupported objective", objective)
	}
}
