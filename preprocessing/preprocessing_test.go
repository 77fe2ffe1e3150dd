package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
)

var nan = math.NaN()

func numericTable(t *testing.T, name string, vals []float64) *dataset.Table {
	t.Helper()
	tbl := dataset.NewTable(len(vals))
	require.NoError(t, tbl.SetNumeric(name, vals))
	return tbl
}

func stringTable(t *testing.T, name string, vals []string) *dataset.Table {
	t.Helper()
	tbl := dataset.NewTable(len(vals))
	require.NoError(t, tbl.SetStrings(name, vals))
	return tbl
}

func TestFitImputeMedian(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		want float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"ignores missing", []float64{nan, 10, nan, 20, 30}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FitImpute(numericTable(t, "Age", tt.vals), "Age")
			require.NoError(t, err)
			assert.Equal(t, Median, s.Kind)
			assert.Equal(t, tt.want, s.Value)
		})
	}
}

func TestFitImputeModeTieBreak(t *testing.T) {
	tbl := stringTable(t, "Embarked", []string{"S", "C", "", "C", "S", "Q"})
	s, err := FitImpute(tbl, "Embarked")
	require.NoError(t, err)
	assert.Equal(t, Mode, s.Kind)
	assert.Equal(t, "C", s.Category)
}

func TestFitImputeErrors(t *testing.T) {
	_, err := FitImpute(numericTable(t, "Age", []float64{1}), "Fare")
	var mc *errors.MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "Fare", mc.Column)

	_, err = FitImpute(numericTable(t, "Age", []float64{nan, nan}), "Age")
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestApplyImputeIdempotent(t *testing.T) {
	tbl := numericTable(t, "Age", []float64{22, nan, 38, nan})
	s, err := FitImpute(tbl, "Age")
	require.NoError(t, err)

	once, err := ApplyImpute(tbl, s)
	require.NoError(t, err)
	twice, err := ApplyImpute(once, s)
	require.NoError(t, err)

	assert.Equal(t, []float64{22, 30, 38, 30}, once.Cols[0].Num)
	assert.Equal(t, once.Cols[0].Num, twice.Cols[0].Num)
	assert.True(t, math.IsNaN(tbl.Cols[0].Num[1]), "input must not be modified")
}

func TestImputerScenarioMedian28(t *testing.T) {
	ages := make([]float64, 100)
	for i := range ages {
		if i < 50 {
			ages[i] = 20
		} else {
			ages[i] = 36
		}
	}
	ages[49], ages[50] = 28, 28
	ages[10], ages[70] = nan, nan

	train := numericTable(t, "Age", ages)
	test := numericTable(t, "Age", []float64{nan, 40})

	im := NewImputer("Age")
	require.NoError(t, im.Fit(train))
	stat, ok := im.Statistic("Age")
	require.True(t, ok)
	assert.Equal(t, 28.0, stat.Value)

	out, err := im.Derive(train)
	require.NoError(t, err)
	for i, v := range out.Cols[0].Num {
		switch i {
		case 10, 70, 49, 50:
			assert.Equal(t, 28.0, v, "row %d", i)
		default:
			assert.Equal(t, ages[i], v, "row %d", i)
		}
	}

	outTest, err := im.Derive(test)
	require.NoError(t, err)
	assert.Equal(t, []float64{28, 40}, outTest.Cols[0].Num)
	require.Len(t, im.Missing, 2)
	assert.Equal(t, 2, im.Missing[0]["Age"])
	assert.Equal(t, 1, im.Missing[1]["Age"])
}

func TestImputerNotFitted(t *testing.T) {
	_, err := NewImputer("Age").Derive(numericTable(t, "Age", []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestCategoryMapEncode(t *testing.T) {
	tbl := stringTable(t, "Sex", []string{"male", "female", "female"})
	out, err := SexMap.Encode(tbl)
	require.NoError(t, err)
	c, _ := out.Column("Sex")
	assert.Equal(t, dataset.Numeric, c.Kind)
	assert.Equal(t, []float64{0, 1, 1}, c.Num)

	assert.Equal(t, []string{"U", "A", "B", "C", "D", "E", "F", "G", "T"}, DeckMap.Categories())
}

func TestCategoryMapUnknown(t *testing.T) {
	for _, v := range []string{"X", ""} {
		tbl := stringTable(t, "Embarked", []string{"S", v})
		_, err := EmbarkedMap.Encode(tbl)
		var uc *errors.UnknownCategoryError
		require.True(t, errors.As(err, &uc), "value %q", v)
		assert.Equal(t, "Embarked", uc.Column)
		assert.Equal(t, v, uc.Value)
		assert.Equal(t, 1, uc.Row)
	}
}

func TestEncoderMultipleMaps(t *testing.T) {
	tbl := stringTable(t, "Sex", []string{"female"})
	require.NoError(t, tbl.SetStrings("Embarked", []string{"Q"}))

	out, err := NewEncoder(SexMap, EmbarkedMap).Derive(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sex", "Embarked"}, out.Names())
	assert.Equal(t, []float64{1}, out.Cols[0].Num)
	assert.Equal(t, []float64{1}, out.Cols[1].Num)
}

func TestQuantileLinear(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 1.0, quantileLinear(data, 0))
	assert.Equal(t, 3.0, quantileLinear(data, 0.5))
	assert.Equal(t, 5.0, quantileLinear(data, 1))
	assert.InDelta(t, 1.8, quantileLinear(data, 0.2), 1e-12)
}

func TestQuantileBinner(t *testing.T) {
	train := numericTable(t, "Fare", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	b := NewQuantileBinner("Fare", "FareBin", 5)
	require.NoError(t, b.Fit(train))
	assert.Equal(t, 5, b.NumBins())

	out, err := b.Derive(train)
	require.NoError(t, err)
	bins, _ := out.Numeric("t", "FareBin")
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2, 3, 3, 4, 4}, bins)

	test := numericTable(t, "Fare", []float64{-5, 100, nan})
	out, err = b.Derive(test)
	require.NoError(t, err)
	bins, _ = out.Numeric("t", "FareBin")
	assert.Equal(t, 0.0, bins[0])
	assert.Equal(t, 4.0, bins[1])
	assert.True(t, math.IsNaN(bins[2]))
}

func TestQuantileBinnerDuplicateEdges(t *testing.T) {
	train := numericTable(t, "Fare", []float64{0, 0, 0, 0, 0, 0, 0, 0, 5, 10})
	b := NewQuantileBinner("Fare", "FareBin", 5)
	require.NoError(t, b.Fit(train))
	assert.Less(t, b.NumBins(), 5)
	for i := 1; i < len(b.Edges); i++ {
		assert.Greater(t, b.Edges[i], b.Edges[i-1])
	}

	constant := numericTable(t, "Fare", []float64{3, 3, 3})
	require.NoError(t, b.Fit(constant))
	out, err := b.Derive(constant)
	require.NoError(t, err)
	bins, _ := out.Numeric("t", "FareBin")
	assert.Equal(t, []float64{0, 0, 0}, bins)
}

func TestCutBinner(t *testing.T) {
	tbl := numericTable(t, "FamilySize", []float64{0, 1, 2, 4, 5, 11, 15})
	out, err := NewCutBinner("FamilySize", "FamilySizeBin", []float64{0, 1, 4, 11}).Derive(tbl)
	require.NoError(t, err)
	bins, _ := out.Numeric("t", "FamilySizeBin")
	assert.Equal(t, []float64{0, 0, 1, 1, 2, 2, 2}, bins)

	_, err = NewCutBinner("FamilySize", "x", []float64{3, 1}).Derive(tbl)
	assert.Error(t, err)
}
