package lightgbm

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// Model artifact file names.
const (
	FullModelFile = "model_full.json"
)

// FoldModelFile returns the artifact name of fold i.
func FoldModelFile(i int) string {
	return fmt.Sprintf("model_fold_%d.json", i)
}

// JSONModel is the LightGBM dump_model layout extended with the fields
// needed to reproduce predictions exactly.
type JSONModel struct {
	Name                string         `json:"name"`
	Version             string         `json:"version"`
	NumClass            int            `json:"num_class"`
	NumTreePerIteration int            `json:"num_tree_per_iteration"`
	LabelIndex          int            `json:"label_index"`
	MaxFeatureIdx       int            `json:"max_feature_idx"`
	Objective           string         `json:"objective"`
	AverageOutput       bool           `json:"average_output"`
	FeatureNames        []string       `json:"feature_names"`
	TreeInfo            []JSONTreeInfo `json:"tree_info"`

	InitScore     float64 `json:"init_score"`
	BestIteration int     `json:"best_iteration"`
	LearningRate  float64 `json:"learning_rate"`
	NumLeaves     int     `json:"num_leaves"`
	MaxDepth      int     `json:"max_depth"`
}

// JSONTreeInfo represents information about a single tree
type JSONTreeInfo struct {
	TreeIndex     int          `json:"tree_index"`
	NumLeaves     int          `json:"num_leaves"`
	Shrinkage     float64      `json:"shrinkage"`
	TreeStructure JSONTreeNode `json:"tree_structure"`
}

// JSONTreeNode is an internal node when both children are set and a leaf
// otherwise.
type JSONTreeNode struct {
	// Internal node fields
	SplitIndex    int           `json:"split_index,omitempty"`
	SplitFeature  int           `json:"split_feature,omitempty"`
	SplitGain     float64       `json:"split_gain,omitempty"`
	Threshold     float64       `json:"threshold,omitempty"`
	DecisionType  string        `json:"decision_type,omitempty"`
	DefaultLeft   bool          `json:"default_left,omitempty"`
	MissingType   string        `json:"missing_type,omitempty"`
	InternalValue float64       `json:"internal_value,omitempty"`
	InternalCount int           `json:"internal_count,omitempty"`
	LeftChild     *JSONTreeNode `json:"left_child,omitempty"`
	RightChild    *JSONTreeNode `json:"right_child,omitempty"`

	// Leaf node fields
	LeafIndex int     `json:"leaf_index,omitempty"`
	LeafValue float64 `json:"leaf_value,omitempty"`
	LeafCount int     `json:"leaf_count,omitempty"`
}

// ToJSON converts the model to its JSON layout.
func (m *Model) ToJSON() *JSONModel {
	jm := &JSONModel{
		Name:                "tree",
		Version:             "v3",
		NumClass:            1,
		NumTreePerIteration: 1,
		MaxFeatureIdx:       m.NumFeatures - 1,
		Objective:           string(m.Objective),
		FeatureNames:        append([]string(nil), m.FeatureNames...),
		TreeInfo:            make([]JSONTreeInfo, len(m.Trees)),
		InitScore:           m.InitScore,
		BestIteration:       m.BestIteration,
		LearningRate:        m.LearningRate,
		NumLeaves:           m.NumLeaves,
		MaxDepth:            m.MaxDepth,
	}
	for i := range m.Trees {
		tree := &m.Trees[i]
		var splitIdx, leafIdx int
		jm.TreeInfo[i] = JSONTreeInfo{
			TreeIndex:     tree.TreeIndex,
			NumLeaves:     tree.NumLeaves,
			Shrinkage:     tree.ShrinkageRate,
			TreeStructure: *tree.toJSONNode(0, &splitIdx, &leafIdx),
		}
	}
	return jm
}

func (t *Tree) toJSONNode(id int, splitIdx, leafIdx *int) *JSONTreeNode {
	node := &t.Nodes[id]
	if node.IsLeaf() {
		out := &JSONTreeNode{LeafIndex: *leafIdx, LeafValue: node.LeafValue, LeafCount: node.LeafCount}
		*leafIdx++
		return out
	}
	out := &JSONTreeNode{
		SplitIndex:    *splitIdx,
		SplitFeature:  node.SplitFeature,
		SplitGain:     node.Gain,
		Threshold:     node.Threshold,
		DecisionType:  "<=",
		DefaultLeft:   node.DefaultLeft,
		MissingType:   "NaN",
		InternalValue: node.InternalValue,
		InternalCount: node.InternalCount,
	}
	*splitIdx++
	out.LeftChild = t.toJSONNode(node.LeftChild, splitIdx, leafIdx)
	out.RightChild = t.toJSONNode(node.RightChild, splitIdx, leafIdx)
	return out
}

// fromJSON rebuilds a model from its JSON layout.
func fromJSON(jm *JSONModel) (*Model, error) {
	if len(jm.FeatureNames) == 0 {
		return nil, errors.New("model has no feature names")
	}
	if jm.MaxFeatureIdx+1 != len(jm.FeatureNames) {
		return nil, errors.Newf("max_feature_idx %d does not match %d feature names",
			jm.MaxFeatureIdx, len(jm.FeatureNames))
	}
	if _, err := CreateObjectiveFunction(jm.Objective); err != nil {
		return nil, err
	}

	m := NewModel()
	m.Objective = ObjectiveType(jm.Objective)
	m.FeatureNames = append([]string(nil), jm.FeatureNames...)
	m.NumFeatures = len(jm.FeatureNames)
	m.InitScore = jm.InitScore
	m.BestIteration = jm.BestIteration
	m.LearningRate = jm.LearningRate
	m.NumLeaves = jm.NumLeaves
	m.MaxDepth = jm.MaxDepth
	m.Trees = make([]Tree, len(jm.TreeInfo))
	m.NumIteration = len(jm.TreeInfo)

	for i, info := range jm.TreeInfo {
		tree := Tree{TreeIndex: info.TreeIndex, NumLeaves: info.NumLeaves, ShrinkageRate: info.Shrinkage}
		if _, err := tree.appendNode(&info.TreeStructure, -1, m.NumFeatures); err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
		m.Trees[i] = tree
	}
	return m, nil
}

// appendNode appends jn and its subtree in pre-order and returns the new
// node's index.
func (t *Tree) appendNode(jn *JSONTreeNode, parent, numFeatures int) (int, error) {
	id := len(t.Nodes)
	if jn.LeftChild == nil || jn.RightChild == nil {
		t.Nodes = append(t.Nodes, Node{
			NodeID:     id,
			ParentID:   parent,
			LeftChild:  -1,
			RightChild: -1,
			NodeType:   LeafNode,
			LeafValue:  jn.LeafValue,
			LeafCount:  jn.LeafCount,
		})
		return id, nil
	}

	if jn.SplitFeature < 0 || jn.SplitFeature >= numFeatures {
		return 0, errors.Newf("split feature %d out of range", jn.SplitFeature)
	}
	t.Nodes = append(t.Nodes, Node{
		NodeID:        id,
		ParentID:      parent,
		NodeType:      NumericalNode,
		SplitFeature:  jn.SplitFeature,
		Threshold:     jn.Threshold,
		DefaultLeft:   jn.DefaultLeft,
		Gain:          jn.SplitGain,
		InternalValue: jn.InternalValue,
		InternalCount: jn.InternalCount,
	})
	left, err := t.appendNode(jn.LeftChild, id, numFeatures)
	if err != nil {
		return 0, err
	}
	right, err := t.appendNode(jn.RightChild, id, numFeatures)
	if err != nil {
		return 0, err
	}
	t.Nodes[id].LeftChild = left
	t.Nodes[id].RightChild = right
	return id, nil
}

// SaveToJSON writes the model as indented JSON, replacing any existing
// file.
func (m *Model) SaveToJSON(path string) error {
	data, err := json.MarshalIndent(m.ToJSON(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal model")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write model %s", path)
	}
	return nil
}

// LoadModel reads a model written by SaveToJSON. Unreadable files,
// malformed JSON and models without feature names are ModelLoadErrors.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.NewModelLoadError(path, "unreadable", err)
	}
	var jm JSONModel
	if err := json.Unmarshal(data, &jm); err != nil {
		return nil, errors.NewModelLoadError(path, "invalid JSON", err)
	}
	m, err := fromJSON(&jm)
	if err != nil {
		return nil, errors.NewModelLoadError(path, "invalid model", err)
	}
	return m, nil
}

// SaveModels writes fold models as model_fold_<i>.json and, when full is
// not nil, the full refit as model_full.json. Fold files with an index past
// len(folds), and model_full.json when full is nil, are removed so the
// directory only holds this run's models.
func SaveModels(dir string, folds []*Model, full *Model) error {
	for i, m := range folds {
		if err := m.SaveToJSON(filepath.Join(dir, FoldModelFile(i))); err != nil {
			return err
		}
	}
	if err := removeStaleFolds(dir, len(folds)); err != nil {
		return err
	}
	if full != nil {
		return full.SaveToJSON(filepath.Join(dir, FullModelFile))
	}
	return removeIfExists(filepath.Join(dir, FullModelFile))
}

func removeStaleFolds(dir string, keep int) error {
	paths, err := filepath.Glob(filepath.Join(dir, "model_fold_*.json"))
	if err != nil {
		return errors.Wrapf(err, "list fold models in %s", dir)
	}
	for _, path := range paths {
		var i int
		if _, err := fmt.Sscanf(filepath.Base(path), "model_fold_%d.json", &i); err != nil || i < keep {
			continue
		}
		if err := removeIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove stale model %s", path)
	}
	return nil
}

// LoadFoldModels reads model_fold_0.json, model_fold_1.json, ... until the
// next index is missing. No fold model at all is a ModelLoadError.
func LoadFoldModels(dir string) ([]*Model, error) {
	var models []*Model
	for i := 0; ; i++ {
		path := filepath.Join(dir, FoldModelFile(i))
		if _, err := os.Stat(path); err != nil {
			break
		}
		m, err := LoadModel(path)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if len(models) == 0 {
		return nil, errors.NewModelLoadError(filepath.Join(dir, FoldModelFile(0)), "no fold models found", nil)
	}
	return models, nil
}

// LoadEnsemble loads the fold models of dir and, with includeFull, the full
// refit after them.
func LoadEnsemble(dir string, includeFull bool) (*Ensemble, error) {
	models, err := LoadFoldModels(dir)
	if err != nil {
		return nil, err
	}
	if includeFull {
		full, err := LoadModel(filepath.Join(dir, FullModelFile))
		if err != nil {
			return nil, err
		}
		models = append(models, full)
	}
	return NewEnsemble(models...), nil
}
