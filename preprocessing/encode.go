package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
)

// CategoryMap はカテゴリ値から整数コードへの固定対応表
//
// 対応表にない値（空文字を含む）は UnknownCategoryError になります。
// 欠損値は符号化の前に補完しておく必要があります。
type CategoryMap struct {
	Column string
	Codes  map[string]int
}

// 乗客データで使う固定の対応表
var (
	SexMap = CategoryMap{
		Column: dataset.ColSex,
		Codes:  map[string]int{"male": 0, "female": 1},
	}
	EmbarkedMap = CategoryMap{
		Column: dataset.ColEmbarked,
		Codes:  map[string]int{"C": 0, "Q": 1, "S": 2},
	}
	DeckMap = CategoryMap{
		Column: "Deck",
		Codes: map[string]int{
			"U": 0, "A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 6, "G": 7, "T": 8,
		},
	}
)

// Encode はカテゴリ列を同じ名前・同じ位置の数値列に置き換えたコピーを返す
func (m CategoryMap) Encode(t *dataset.Table) (*dataset.Table, error) {
	vals, err := t.Strings("encode", m.Column)
	if err != nil {
		return nil, err
	}

	codes := make([]float64, len(vals))
	for i, v := range vals {
		code, ok := m.Codes[v]
		if !ok {
			return nil, errors.NewUnknownCategoryError(m.Column, v, i)
		}
		codes[i] = float64(code)
	}

	out := t.Clone()
	if err := out.SetNumeric(m.Column, codes); err != nil {
		return nil, err
	}
	return out, nil
}

// Categories は対応表のカテゴリをコード順に返す
func (m CategoryMap) Categories() []string {
	cats := make([]string, 0, len(m.Codes))
	for c := range m.Codes {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return m.Codes[cats[i]] < m.Codes[cats[j]] })
	return cats
}

// Encoder は複数の CategoryMap を順に適用するパイプラインステップ
type Encoder struct {
	Maps []CategoryMap
}

// NewEncoder は新しいEncoderを作成する
func NewEncoder(maps ...CategoryMap) *Encoder {
	return &Encoder{Maps: maps}
}

// Name はステップ名を返す
func (e *Encoder) Name() string { return "encode" }

// Derive は全ての対応表を適用する
func (e *Encoder) Derive(t *dataset.Table) (*dataset.Table, error) {
	out := t
	for _, m := range e.Maps {
		var err error
		if out, err = m.Encode(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}
