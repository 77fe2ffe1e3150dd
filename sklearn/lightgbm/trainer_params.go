package lightgbm

import (
	"math/rand/v2"
	"slices"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// TrainingParams contains all training hyperparameters
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations" yaml:"num_iterations"`
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`
	NumLeaves     int     `json:"num_leaves" yaml:"num_leaves"`
	MaxDepth      int     `json:"max_depth" yaml:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf" yaml:"min_data_in_leaf"`

	// Regularization
	Lambda              float64 `json:"lambda_l2" yaml:"lambda_l2"`
	Alpha               float64 `json:"lambda_l1" yaml:"lambda_l1"`
	MinGainToSplit      float64 `json:"min_gain_to_split" yaml:"min_gain_to_split"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf" yaml:"min_sum_hessian_in_leaf"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction" yaml:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq" yaml:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction" yaml:"feature_fraction"`

	// Histogram parameters
	MaxBin int `json:"max_bin" yaml:"max_bin"`

	// Objective
	Objective string `json:"objective" yaml:"objective"`
	Metric    string `json:"metric" yaml:"metric"`

	// Other
	Seed          int `json:"seed" yaml:"seed"`
	Verbosity     int `json:"verbosity" yaml:"verbosity"`
	EarlyStopping int `json:"early_stopping_rounds" yaml:"early_stopping_rounds"`
}

// DefaultTrainingParams returns the parameters used for passenger survival
// models.
func DefaultTrainingParams() TrainingParams {
	return TrainingParams{
		NumIterations:       1000,
		LearningRate:        0.05,
		NumLeaves:           31,
		MaxDepth:            6,
		MinDataInLeaf:       20,
		Lambda:              0.1,
		Alpha:               0.1,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     0.8,
		BaggingFreq:         5,
		FeatureFraction:     0.9,
		MaxBin:              255,
		Objective:           string(BinaryLogistic),
		Metric:              "binary_logloss",
		Seed:                42,
		EarlyStopping:       50,
	}
}

// Validate checks parameter ranges.
func (p TrainingParams) Validate() error {
	switch {
	case p.NumIterations < 0:
		return errors.NewValidationError("num_iterations", "must be non-negative", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.Lambda < 0 || p.Alpha < 0:
		return errors.NewValidationError("lambda", "regularization must be non-negative", []float64{p.Alpha, p.Lambda})
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	case p.MaxBin < 2:
		return errors.NewValidationError("max_bin", "must be at least 2", p.MaxBin)
	}
	if _, err := CreateObjectiveFunction(p.Objective); err != nil {
		return err
	}
	return nil
}

// SamplingStrategy handles row bagging and per-tree feature sampling. Both
// draw from one PCG source seeded with the training seed.
type SamplingStrategy struct {
	rng             *rand.Rand
	featureFraction float64
	baggingFraction float64
	baggingFreq     int
	bag             []int
}

// NewSamplingStrategy creates a new sampling strategy
func NewSamplingStrategy(params TrainingParams) *SamplingStrategy {
	seed := uint64(params.Seed)
	return &SamplingStrategy{
		rng:             rand.New(rand.NewPCG(seed, seed)),
		featureFraction: params.FeatureFraction,
		baggingFraction: params.BaggingFraction,
		baggingFreq:     params.BaggingFreq,
	}
}

// SampleFeatures returns the sorted feature indices used by one tree.
func (s *SamplingStrategy) SampleFeatures(numFeatures int) []int {
	if s.featureFraction >= 1.0 || s.featureFraction <= 0 {
		return identity(numFeatures)
	}

	numSample := int(float64(numFeatures)*s.featureFraction + 0.5)
	if numSample < 1 {
		numSample = 1
	}
	if numSample > numFeatures {
		numSample = numFeatures
	}
	return s.partialShuffle(numFeatures, numSample)
}

// SampleInstances returns the sorted row indices used at this iteration. A
// new bag is drawn every baggingFreq iterations and reused in between.
func (s *SamplingStrategy) SampleInstances(numInstances int, iteration int) []int {
	if s.baggingFreq <= 0 || s.baggingFraction >= 1.0 || s.baggingFraction <= 0 {
		return identity(numInstances)
	}
	if s.bag != nil && iteration%s.baggingFreq != 0 {
		return s.bag
	}

	numSample := int(float64(numInstances) * s.baggingFraction)
	if numSample < 1 {
		numSample = 1
	}
	s.bag = s.partialShuffle(numInstances, numSample)
	return s.bag
}

// partialShuffle draws k of n indices without replacement (Fisher-Yates)
// and returns them in ascending order.
func (s *SamplingStrategy) partialShuffle(n, k int) []int {
	perm := identity(n)
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	out := perm[:k]
	slices.Sort(out)
	return out
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// RegularizationStrategy handles L1/L2 regularization
type RegularizationStrategy struct {
	lambdaL1 float64
	lambdaL2 float64
}

// NewRegularizationStrategy creates a new regularization strategy
func NewRegularizationStrategy(params TrainingParams) *RegularizationStrategy {
	return &RegularizationStrategy{
		lambdaL1: params.Alpha,
		lambdaL2: params.Lambda,
	}
}

// thresholdL1 applies L1 soft thresholding to a gradient sum.
func (r *RegularizationStrategy) thresholdL1(sumGrad float64) float64 {
	switch {
	case sumGrad > r.lambdaL1:
		return sumGrad - r.lambdaL1
	case sumGrad < -r.lambdaL1:
		return sumGrad + r.lambdaL1
	default:
		return 0
	}
}

// LeafOutput returns the optimal leaf value -T(G) / (H + lambda_l2).
func (r *RegularizationStrategy) LeafOutput(sumGrad, sumHess float64) float64 {
	const epsilon = 1e-10
	return -r.thresholdL1(sumGrad) / (sumHess + r.lambdaL2 + epsilon)
}

// CalculateSplitGain returns left + right - parent node scores.
func (r *RegularizationStrategy) CalculateSplitGain(
	leftGrad, leftHess, rightGrad, rightHess, parentGrad, parentHess float64) float64 {
	return r.score(leftGrad, leftHess) + r.score(rightGrad, rightHess) - r.score(parentGrad, parentHess)
}

// score is T(G)^2 / (H + lambda_l2) / 2.
func (r *RegularizationStrategy) score(sumGrad, sumHess float64) float64 {
	const epsilon = 1e-10
	g := r.thresholdL1(sumGrad)
	return 0.5 * g * g / (sumHess + r.lambdaL2 + epsilon)
}
