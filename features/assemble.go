package features

import (
	"math"
	"slices"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
	"github.com/YuminosukeSato/survival/pkg/log"
)

// AssemblySpec selects the columns that make up the model matrix.
type AssemblySpec struct {
	// ID is kept aside as the row identifier.
	ID string `yaml:"id"`
	// Target is the label column of the labeled table.
	Target string `yaml:"target"`
	// Features are copied as numeric columns, in order.
	Features []string `yaml:"features"`
	// OneHot columns are expanded into <col>_<value> indicator columns.
	OneHot []string `yaml:"one_hot"`
}

// DefaultAssemblySpec is the passenger feature matrix layout.
func DefaultAssemblySpec() AssemblySpec {
	return AssemblySpec{
		ID:     dataset.ColPassengerID,
		Target: dataset.ColSurvived,
		Features: []string{
			dataset.ColPclass, dataset.ColAge, dataset.ColSibSp, dataset.ColParch, dataset.ColFare,
			ColFamilySize, ColIsAlone, ColTitle, ColDeck,
		},
		OneHot: []string{dataset.ColSex, dataset.ColEmbarked, ColAgeBin, ColFareBin, ColFamilySizeBin},
	}
}

// Matrix is the model-ready form of a Paired dataset. XTrain and XTest share
// Columns.
type Matrix struct {
	Columns  []string
	XTrain   *mat.Dense
	YTrain   []float64
	XTest    *mat.Dense
	TrainIDs []float64
	TestIDs  []float64
}

// Assemble builds the train and test matrices. One-hot columns are expanded
// over the sorted union of values observed in either table, so both sides
// get the same indicator columns.
func Assemble(p dataset.Paired, spec AssemblySpec) (*Matrix, error) {
	if !p.Labeled.Has(spec.Target) {
		return nil, errors.NewMissingTargetError("assemble", spec.Target)
	}
	y, err := p.Labeled.Numeric("assemble", spec.Target)
	if err != nil {
		return nil, err
	}

	trainCols, trainNames, err := buildColumns(p.Labeled, p.Unlabeled, spec)
	if err != nil {
		return nil, err
	}
	testCols, testNames, err := buildColumns(p.Unlabeled, p.Labeled, spec)
	if err != nil {
		return nil, err
	}
	if err := CheckSchema(trainNames, testNames); err != nil {
		return nil, err
	}

	trainIDs, err := p.Labeled.Numeric("assemble", spec.ID)
	if err != nil {
		return nil, err
	}
	testIDs, err := p.Unlabeled.Numeric("assemble", spec.ID)
	if err != nil {
		return nil, err
	}

	m := &Matrix{
		Columns:  trainNames,
		XTrain:   toDense(trainCols, p.Labeled.Len()),
		YTrain:   slices.Clone(y),
		XTest:    toDense(testCols, p.Unlabeled.Len()),
		TrainIDs: slices.Clone(trainIDs),
		TestIDs:  slices.Clone(testIDs),
	}

	log.GetLoggerWithName("features.assemble").Info("Assembled feature matrix",
		log.OperationKey, log.OperationAssemble,
		log.FeaturesKey, len(m.Columns),
		"train_rows", len(m.YTrain),
		"test_rows", len(m.TestIDs),
	)
	return m, nil
}

// CheckSchema verifies that both column lists are identical, including order.
func CheckSchema(train, test []string) error {
	if len(train) != len(test) {
		return errors.NewSchemaMismatchError("assemble", "column count differs", train, test)
	}
	for i := range train {
		if train[i] != test[i] {
			return errors.NewSchemaMismatchError("assemble",
				"column "+strconv.Itoa(i)+" is "+test[i]+", expected "+train[i], train, test)
		}
	}
	return nil
}

// buildColumns produces t's numeric feature columns. other contributes its
// values to the one-hot vocabulary.
func buildColumns(t, other *dataset.Table, spec AssemblySpec) ([][]float64, []string, error) {
	var cols [][]float64
	var names []string

	for _, name := range spec.Features {
		vals, err := t.Numeric("assemble", name)
		if err != nil {
			return nil, nil, err
		}
		cols = append(cols, vals)
		names = append(names, name)
	}

	for _, name := range spec.OneHot {
		keys, err := cellKeys(t, name)
		if err != nil {
			return nil, nil, err
		}
		otherKeys, err := cellKeys(other, name)
		if err != nil {
			return nil, nil, err
		}
		vocab := vocabulary(keys, otherKeys)
		for _, v := range vocab {
			ind := make([]float64, len(keys))
			for i, k := range keys {
				if k == v {
					ind[i] = 1
				}
			}
			cols = append(cols, ind)
			names = append(names, name+"_"+v)
		}
	}
	return cols, names, nil
}

// cellKeys renders each cell as the label used in one-hot column names.
func cellKeys(t *dataset.Table, name string) ([]string, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewMissingColumnError("assemble", name)
	}
	keys := make([]string, c.Len())
	for i := range keys {
		switch {
		case c.IsMissing(i):
			keys[i] = "nan"
		case c.Kind == dataset.Numeric:
			keys[i] = strconv.FormatFloat(c.Num[i], 'g', -1, 64)
		default:
			keys[i] = c.Str[i]
		}
	}
	return keys, nil
}

// vocabulary returns the sorted union of keys. Numeric keys sort
// numerically, the rest lexically after them.
func vocabulary(a, b []string) []string {
	seen := make(map[string]struct{})
	for _, k := range a {
		seen[k] = struct{}{}
	}
	for _, k := range b {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		fi, ei := strconv.ParseFloat(out[i], 64)
		fj, ej := strconv.ParseFloat(out[j], 64)
		numI := ei == nil && !math.IsNaN(fi)
		numJ := ej == nil && !math.IsNaN(fj)
		switch {
		case numI && numJ:
			return fi < fj
		case numI != numJ:
			return numI
		default:
			return out[i] < out[j]
		}
	})
	return out
}

func toDense(cols [][]float64, rows int) *mat.Dense {
	if rows == 0 || len(cols) == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, rows*len(cols))
	for j, c := range cols {
		for i := 0; i < rows; i++ {
			data[i*len(cols)+j] = c[i]
		}
	}
	return mat.NewDense(rows, len(cols), data)
}
