package lightgbm

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

// Trainer implements histogram-based gradient boosting with leaf-wise tree
// growth.
type Trainer struct {
	// Training parameters
	params TrainingParams

	// Data
	X            *mat.Dense
	y            []float64
	numRows      int
	numFeatures  int
	featureNames []string

	// Histogram data structures
	binMappers []BinMapper
	binned     [][]uint16 // [feature][row]

	// Gradient and Hessian
	gradients []float64
	hessians  []float64

	// Raw scores of every training row, updated after each tree
	scores []float64

	// Validation
	validX      *mat.Dense
	validY      []float64
	validScores []float64

	// Trees
	trees []Tree

	objective      ObjectiveFunction
	initScore      float64
	sampling       *SamplingStrategy
	regularization *RegularizationStrategy
	earlyStopping  *EarlyStopping
	bestIteration  int
	evalHistory    map[string][]float64

	callbacks *CallbackList
	ctx       context.Context
	logger    log.Logger
}

// NewTrainer creates a new trainer. Zero-valued parameters fall back to
// defaults.
func NewTrainer(params TrainingParams) *Trainer {
	defaults := DefaultTrainingParams()
	if params.NumIterations == 0 {
		params.NumIterations = 100
	}
	if params.LearningRate == 0 {
		params.LearningRate = defaults.LearningRate
	}
	if params.NumLeaves == 0 {
		params.NumLeaves = defaults.NumLeaves
	}
	if params.MaxBin == 0 {
		params.MaxBin = defaults.MaxBin
	}
	if params.MinDataInLeaf == 0 {
		params.MinDataInLeaf = defaults.MinDataInLeaf
	}
	if params.BaggingFraction == 0 {
		params.BaggingFraction = 1.0
	}
	if params.FeatureFraction == 0 {
		params.FeatureFraction = 1.0
	}
	if params.Objective == "" {
		params.Objective = defaults.Objective
	}

	return &Trainer{
		params: params,
		ctx:    context.Background(),
		logger: log.GetLoggerWithName("lightgbm.trainer"),
	}
}

// WithCallbacks sets the callbacks for training
func (t *Trainer) WithCallbacks(callbacks ...Callback) *Trainer {
	t.callbacks = NewCallbackList(callbacks...)
	return t
}

// WithFeatureNames binds the model to column names. Without it columns are
// named Column_0, Column_1, ...
func (t *Trainer) WithFeatureNames(names []string) *Trainer {
	t.featureNames = append([]string(nil), names...)
	return t
}

// WithContext makes training abort between iterations once ctx is done.
func (t *Trainer) WithContext(ctx context.Context) *Trainer {
	t.ctx = ctx
	return t
}

// WithLogger replaces the trainer's logger.
func (t *Trainer) WithLogger(logger log.Logger) *Trainer {
	t.logger = logger
	return t
}

// Params returns the effective training parameters.
func (t *Trainer) Params() TrainingParams {
	return t.params
}

// Fit trains on X and y for NumIterations rounds.
func (t *Trainer) Fit(X, y mat.Matrix) error {
	return t.FitWithValidation(X, y, nil)
}

// FitWithValidation trains on X and y and scores valid after every
// iteration. With EarlyStopping > 0 training stops once the validation
// loss has not improved for that many rounds, and trees after the best
// iteration are dropped.
func (t *Trainer) FitWithValidation(X, y mat.Matrix, valid *ValidationData) error {
	if err := t.params.Validate(); err != nil {
		return err
	}
	if err := t.initialize(X, y, valid); err != nil {
		return errors.Wrap(err, "initialization failed")
	}

	start := time.Now()
	stopped := false
	for iter := 0; iter < t.params.NumIterations; iter++ {
		if err := t.ctx.Err(); err != nil {
			return errors.Wrapf(err, "training cancelled at iteration %d", iter)
		}

		if t.callbacks != nil {
			if err := t.callbacks.BeforeIteration(iter, t.GetModel()); err != nil {
				return errors.Wrapf(err, "callback error at iteration %d", iter)
			}
			if t.callbacks.ShouldStop() {
				stopped = true
				break
			}
		}

		t.calculateGradients()

		rows := t.sampling.SampleInstances(t.numRows, iter)
		features := t.sampling.SampleFeatures(t.numFeatures)
		tree := t.growTree(iter, rows, features)
		t.trees = append(t.trees, tree)
		t.updateScores(&tree)

		evalResults, err := t.evaluate(iter)
		if err != nil {
			return err
		}
		for name, value := range evalResults {
			t.evalHistory[name] = append(t.evalHistory[name], value)
		}

		if t.callbacks != nil {
			if err := t.callbacks.AfterIteration(iter, t.GetModel(), evalResults); err != nil {
				return errors.Wrapf(err, "callback error at iteration %d", iter)
			}
		}

		if t.params.Verbosity > 0 && iter%10 == 0 {
			t.logger.Debug("Training progress",
				log.IterationKey, iter,
				log.LossKey, evalResults[TrainingLossKey])
		}

		if vl, ok := evalResults[ValidationLossKey]; ok && t.earlyStopping.Update(iter, vl) {
			stopped = true
			break
		}
		if t.callbacks != nil && t.callbacks.ShouldStop() {
			stopped = true
			break
		}
	}

	t.bestIteration = len(t.trees)
	if t.earlyStopping.Enabled && t.earlyStopping.BestIteration >= 0 {
		t.bestIteration = t.earlyStopping.BestIteration + 1
		t.trees = t.trees[:t.bestIteration]
	}

	t.logger.Debug("Training finished",
		log.NumTreesKey, len(t.trees),
		log.BestIterationKey, t.bestIteration,
		"stopped_early", stopped,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// initialize converts inputs, bins every feature and resets the boosting
// state.
func (t *Trainer) initialize(X, y mat.Matrix, valid *ValidationData) error {
	if X == nil || y == nil {
		return errors.NewValueError("Trainer.Fit", "X and y must not be nil")
	}
	t.X = toDense(X)
	t.numRows, t.numFeatures = t.X.Dims()
	if t.numRows == 0 || t.numFeatures == 0 {
		return errors.NewValueError("Trainer.Fit", "training data is empty")
	}

	var err error
	if t.y, err = columnVector("Trainer.Fit", y, t.numRows); err != nil {
		return err
	}

	if len(t.featureNames) == 0 {
		t.featureNames = make([]string, t.numFeatures)
		for j := range t.featureNames {
			t.featureNames[j] = fmt.Sprintf("Column_%d", j)
		}
	} else if len(t.featureNames) != t.numFeatures {
		return errors.NewDimensionError("Trainer.Fit", len(t.featureNames), t.numFeatures, 1)
	}

	if t.objective, err = CreateObjectiveFunction(t.params.Objective); err != nil {
		return err
	}
	if t.objective.Name() == string(BinaryLogistic) {
		for i, v := range t.y {
			if v != 0 && v != 1 {
				return errors.NewValueError("Trainer.Fit",
					fmt.Sprintf("binary objective requires 0/1 labels, got %v at row %d", v, i))
			}
		}
	}
	t.initScore = t.objective.GetInitScore(t.y)

	t.gradients = make([]float64, t.numRows)
	t.hessians = make([]float64, t.numRows)
	t.scores = make([]float64, t.numRows)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}

	t.binMappers = make([]BinMapper, t.numFeatures)
	t.binned = make([][]uint16, t.numFeatures)
	column := make([]float64, t.numRows)
	for j := 0; j < t.numFeatures; j++ {
		mat.Col(column, j, t.X)
		mapper := NewBinMapper(column, t.params.MaxBin)
		bins := make([]uint16, t.numRows)
		for i, v := range column {
			bins[i] = uint16(mapper.ValueToBin(v))
		}
		t.binMappers[j] = mapper
		t.binned[j] = bins
	}

	t.validX, t.validY, t.validScores = nil, nil, nil
	if valid != nil {
		t.validX = toDense(valid.X)
		vr, vc := t.validX.Dims()
		if vc != t.numFeatures {
			return errors.NewDimensionError("Trainer.FitWithValidation", t.numFeatures, vc, 1)
		}
		if t.validY, err = columnVector("Trainer.FitWithValidation", valid.Y, vr); err != nil {
			return err
		}
		t.validScores = make([]float64, vr)
		for i := range t.validScores {
			t.validScores[i] = t.initScore
		}
	}

	rounds := 0
	if valid != nil {
		rounds = t.params.EarlyStopping
	}
	t.earlyStopping = NewEarlyStopping(rounds, t.params.Metric)
	t.sampling = NewSamplingStrategy(t.params)
	t.regularization = NewRegularizationStrategy(t.params)
	t.trees = make([]Tree, 0, t.params.NumIterations)
	t.evalHistory = make(map[string][]float64)
	t.bestIteration = 0
	return nil
}

// calculateGradients computes gradients and hessians at the current scores
func (t *Trainer) calculateGradients() {
	for i, score := range t.scores {
		t.gradients[i] = t.objective.CalculateGradient(score, t.y[i])
		t.hessians[i] = t.objective.CalculateHessian(score, t.y[i])
	}
}

// leafState is a leaf of the tree under construction.
type leafState struct {
	node    int
	rows    []int
	depth   int
	sumGrad float64
	sumHess float64
	split   SplitInfo
}

// growTree grows one tree leaf-wise: the leaf with the largest gain is
// split until NumLeaves is reached or no leaf can be split.
func (t *Trainer) growTree(iter int, rows, features []int) Tree {
	tree := Tree{
		TreeIndex:     iter,
		ShrinkageRate: t.params.LearningRate,
		Nodes:         make([]Node, 0, 2*t.params.NumLeaves-1),
	}

	var sumGrad, sumHess float64
	for _, i := range rows {
		sumGrad += t.gradients[i]
		sumHess += t.hessians[i]
	}
	leaves := []*leafState{t.newLeaf(&tree, -1, rows, 0, sumGrad, sumHess, features)}

	for len(leaves) < t.params.NumLeaves {
		best := -1
		for k, l := range leaves {
			if l.split.valid() && (best < 0 || l.split.Gain > leaves[best].split.Gain) {
				best = k
			}
		}
		if best < 0 {
			break
		}

		leaf := leaves[best]
		split := leaf.split
		leftRows, rightRows := t.partition(leaf.rows, split)
		left := t.newLeaf(&tree, leaf.node, leftRows, leaf.depth+1, split.LeftGrad, split.LeftHess, features)
		right := t.newLeaf(&tree, leaf.node, rightRows, leaf.depth+1, split.RightGrad, split.RightHess, features)

		node := &tree.Nodes[leaf.node]
		node.NodeType = NumericalNode
		node.SplitFeature = split.Feature
		node.Threshold = split.Threshold
		node.DefaultLeft = split.DefaultLeft
		node.Gain = split.Gain
		node.LeftChild = left.node
		node.RightChild = right.node

		leaves[best] = left
		leaves = append(leaves, right)
	}

	for _, l := range leaves {
		node := &tree.Nodes[l.node]
		node.LeafValue = t.params.LearningRate * t.regularization.LeafOutput(l.sumGrad, l.sumHess)
		node.LeafCount = len(l.rows)
	}
	tree.NumLeaves = len(leaves)
	return tree
}

// newLeaf appends a leaf node and searches its best split.
func (t *Trainer) newLeaf(tree *Tree, parent int, rows []int, depth int, sumGrad, sumHess float64, features []int) *leafState {
	id := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{
		NodeID:        id,
		ParentID:      parent,
		LeftChild:     -1,
		RightChild:    -1,
		NodeType:      LeafNode,
		InternalValue: t.params.LearningRate * t.regularization.LeafOutput(sumGrad, sumHess),
		InternalCount: len(rows),
	})

	leaf := &leafState{node: id, rows: rows, depth: depth, sumGrad: sumGrad, sumHess: sumHess, split: noSplit()}
	if len(rows) < 2*t.params.MinDataInLeaf {
		return leaf
	}
	if t.params.MaxDepth > 0 && depth >= t.params.MaxDepth {
		return leaf
	}
	hists := t.buildHistograms(rows, features)
	leaf.split = t.findBestSplit(hists, features, sumGrad, sumHess, len(rows))
	return leaf
}

// updateScores adds the new tree to the cached training and validation
// scores.
func (t *Trainer) updateScores(tree *Tree) {
	for i := range t.scores {
		t.scores[i] += tree.Predict(t.X.RawRowView(i))
	}
	for i := range t.validScores {
		t.validScores[i] += tree.Predict(t.validX.RawRowView(i))
	}
}

// evaluate returns the mean training loss and, with validation data, the
// mean validation loss.
func (t *Trainer) evaluate(iter int) (map[string]float64, error) {
	results := make(map[string]float64, 2)

	trainLoss := t.meanLoss(t.scores, t.y)
	if err := errors.CheckScalar("training loss", trainLoss, iter); err != nil {
		return nil, err
	}
	results[TrainingLossKey] = trainLoss

	if t.validScores != nil {
		validLoss := t.meanLoss(t.validScores, t.validY)
		if err := errors.CheckScalar("validation loss", validLoss, iter); err != nil {
			return nil, err
		}
		results[ValidationLossKey] = validLoss
	}
	return results, nil
}

func (t *Trainer) meanLoss(scores, y []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for i, s := range scores {
		sum += t.objective.CalculateLoss(s, y[i])
	}
	return sum / float64(len(scores))
}

// GetModel returns the trained model. During training it reflects the
// trees built so far.
func (t *Trainer) GetModel() *Model {
	model := NewModel()
	model.Objective = ObjectiveType(t.params.Objective)
	if t.objective != nil {
		model.Objective = ObjectiveType(t.objective.Name())
	}
	model.NumIteration = len(t.trees)
	model.LearningRate = t.params.LearningRate
	model.NumLeaves = t.params.NumLeaves
	model.MaxDepth = t.params.MaxDepth
	model.Trees = t.trees
	model.NumFeatures = t.numFeatures
	model.FeatureNames = append([]string(nil), t.featureNames...)
	model.BestIteration = t.bestIteration
	model.InitScore = t.initScore
	return model
}

// BestIteration returns the number of trees kept after training.
func (t *Trainer) BestIteration() int {
	return t.bestIteration
}

// EvalHistory returns the per-iteration losses keyed by TrainingLossKey
// and ValidationLossKey.
func (t *Trainer) EvalHistory() map[string][]float64 {
	out := make(map[string][]float64, len(t.evalHistory))
	for k, v := range t.evalHistory {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

func toDense(m mat.Matrix) *mat.Dense {
	if d, ok := m.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(m)
}

// columnVector extracts a single-column target with the expected length.
func columnVector(op string, y mat.Matrix, rows int) ([]float64, error) {
	if y == nil {
		return nil, errors.NewValueError(op, "target must not be nil")
	}
	r, c := y.Dims()
	if c != 1 {
		return nil, errors.NewDimensionError(op, 1, c, 1)
	}
	if r != rows {
		return nil, errors.NewDimensionError(op, rows, r, 0)
	}
	out := make([]float64, r)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}
