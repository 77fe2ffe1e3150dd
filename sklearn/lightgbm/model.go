package lightgbm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// NodeType represents the type of a tree node
type NodeType int

const (
	// LeafNode represents a terminal node with a value
	LeafNode NodeType = iota
	// NumericalNode represents a node with numerical split
	NumericalNode
)

// Node represents a single node in a decision tree.
// Rows with value <= Threshold go left; missing values follow DefaultLeft.
type Node struct {
	NodeID     int
	ParentID   int // -1 for root
	LeftChild  int // -1 if leaf
	RightChild int // -1 if leaf
	NodeType   NodeType

	// Split information (for non-leaf nodes)
	SplitFeature int
	Threshold    float64
	DefaultLeft  bool
	Gain         float64

	// Leaf information. LeafValue already includes shrinkage.
	LeafValue float64
	LeafCount int

	// Statistics
	InternalValue float64
	InternalCount int
}

// IsLeaf returns true if the node is a leaf node
func (n *Node) IsLeaf() bool {
	return n.LeftChild == -1 && n.RightChild == -1
}

// Tree represents a single decision tree in the ensemble
type Tree struct {
	TreeIndex     int
	NumLeaves     int
	ShrinkageRate float64
	Nodes         []Node
}

// Predict returns the raw contribution of this tree for one sample
func (t *Tree) Predict(features []float64) float64 {
	nodeID := 0
	for nodeID >= 0 && nodeID < len(t.Nodes) {
		node := &t.Nodes[nodeID]
		if node.IsLeaf() {
			return node.LeafValue
		}

		v := features[node.SplitFeature]
		switch {
		case math.IsNaN(v):
			if node.DefaultLeft {
				nodeID = node.LeftChild
			} else {
				nodeID = node.RightChild
			}
		case v <= node.Threshold:
			nodeID = node.LeftChild
		default:
			nodeID = node.RightChild
		}
	}
	return 0.0
}

// ObjectiveType represents the objective function type
type ObjectiveType string

const (
	RegressionL2   ObjectiveType = "regression"
	BinaryLogistic ObjectiveType = "binary"
)

// Model represents a trained boosted tree ensemble bound to an ordered list
// of feature names.
type Model struct {
	Objective    ObjectiveType
	NumIteration int
	LearningRate float64
	NumLeaves    int
	MaxDepth     int

	Trees []Tree

	NumFeatures  int
	FeatureNames []string

	BestIteration int

	// InitScore is the baseline raw score added before any tree.
	InitScore float64
}

// NewModel creates a new empty model
func NewModel() *Model {
	return &Model{
		Trees:        make([]Tree, 0),
		LearningRate: 0.1,
		NumLeaves:    31,
		MaxDepth:     -1,
	}
}

// Features returns the training column names in order.
func (m *Model) Features() []string {
	return append([]string(nil), m.FeatureNames...)
}

// NumTrees returns the number of trees in the model.
func (m *Model) NumTrees() int {
	return len(m.Trees)
}

// PredictRawSingle returns the untransformed score of one sample using the
// first numIteration trees (-1 for all).
func (m *Model) PredictRawSingle(features []float64, numIteration int) float64 {
	if numIteration < 0 || numIteration > len(m.Trees) {
		numIteration = len(m.Trees)
	}
	score := m.InitScore
	for i := 0; i < numIteration; i++ {
		score += m.Trees[i].Predict(features)
	}
	return score
}

// PredictSingle returns the transformed prediction of one sample
func (m *Model) PredictSingle(features []float64, numIteration int) float64 {
	return m.transform(m.PredictRawSingle(features, numIteration))
}

func (m *Model) transform(raw float64) float64 {
	if m.Objective == BinaryLogistic {
		return sigmoid(raw)
	}
	return raw
}

// Predict makes predictions for a batch of samples as an n x 1 matrix.
// For the binary objective the values are probabilities.
func (m *Model) Predict(X mat.Matrix) (mat.Matrix, error) {
	preds, err := m.predict(X)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(preds), 1, preds), nil
}

// PredictProba returns the positive class probability of each row.
func (m *Model) PredictProba(X mat.Matrix) ([]float64, error) {
	if m.Objective != BinaryLogistic {
		return nil, errors.NewValueError("PredictProba", fmt.Sprintf("objective %q does not produce probabilities", m.Objective))
	}
	return m.predict(X)
}

// PredictProbaByName selects the model's features by name from a wider
// matrix whose columns are named by columns, then predicts. A matrix with
// no rows yields an empty slice.
func (m *Model) PredictProbaByName(X mat.Matrix, columns []string) ([]float64, error) {
	if rows, _ := X.Dims(); rows == 0 {
		return m.PredictProba(X)
	}
	sub, err := selectColumns(X, columns, m.FeatureNames)
	if err != nil {
		return nil, err
	}
	return m.PredictProba(sub)
}

func (m *Model) predict(X mat.Matrix) ([]float64, error) {
	if m.NumFeatures == 0 {
		return nil, errors.NewNotFittedError("lightgbm.Model", "Predict")
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return []float64{}, nil
	}
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("Predict", m.NumFeatures, cols, 1)
	}

	preds := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		preds[i] = m.PredictSingle(row, -1)
	}
	return preds, nil
}

// selectColumns returns the columns of X named by want, in want's order.
func selectColumns(X mat.Matrix, have, want []string) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != len(have) {
		return nil, errors.NewDimensionError("selectColumns", len(have), cols, 1)
	}
	pos := make(map[string]int, len(have))
	for j, name := range have {
		pos[name] = j
	}
	idx := make([]int, len(want))
	for k, name := range want {
		j, ok := pos[name]
		if !ok {
			return nil, errors.NewSchemaMismatchError("predict", "missing feature "+name, want, have)
		}
		idx[k] = j
	}

	out := mat.NewDense(rows, len(want), nil)
	for i := 0; i < rows; i++ {
		for k, j := range idx {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out, nil
}

// GetFeatureImportance returns normalised importance per feature index.
// importanceType is "split" (number of splits) or "gain" (total gain).
func (m *Model) GetFeatureImportance(importanceType string) []float64 {
	importance := make([]float64, m.NumFeatures)
	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			if node.IsLeaf() {
				continue
			}
			switch importanceType {
			case "split":
				importance[node.SplitFeature]++
			case "gain":
				importance[node.SplitFeature] += node.Gain
			}
		}
	}

	total := 0.0
	for _, v := range importance {
		total += v
	}
	if total > 0 {
		for i := range importance {
			importance[i] /= total
		}
	}
	return importance
}

// FeatureImportanceByName is GetFeatureImportance keyed by feature name.
func (m *Model) FeatureImportanceByName(importanceType string) map[string]float64 {
	imp := m.GetFeatureImportance(importanceType)
	out := make(map[string]float64, len(imp))
	for j, v := range imp {
		if j < len(m.FeatureNames) {
			out[m.FeatureNames[j]] = v
		}
	}
	return out
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
