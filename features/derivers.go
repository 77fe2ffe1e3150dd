package features

import (
	"regexp"
	"strings"

	"github.com/YuminosukeSato/survival/dataset"
	"github.com/YuminosukeSato/survival/pkg/errors"
)

// Derived column names.
const (
	ColFamilySize    = "FamilySize"
	ColIsAlone       = "IsAlone"
	ColTitle         = "Title"
	ColDeck          = "Deck"
	ColAgeBin        = "AgeBin"
	ColFareBin       = "FareBin"
	ColFamilySizeBin = "FamilySizeBin"
)

// FamilySizeDeriver adds FamilySize = SibSp + Parch + 1.
type FamilySizeDeriver struct{}

// Name returns the registry key "family_size".
func (FamilySizeDeriver) Name() string { return StepFamilySize }

// Derive returns a copy of t with FamilySize added. SibSp and Parch must
// both be present.
func (FamilySizeDeriver) Derive(t *dataset.Table) (*dataset.Table, error) {
	sib, err := t.Numeric(StepFamilySize, dataset.ColSibSp)
	if err != nil {
		return nil, err
	}
	par, err := t.Numeric(StepFamilySize, dataset.ColParch)
	if err != nil {
		return nil, err
	}
	size := make([]float64, t.Len())
	for i := range size {
		size[i] = sib[i] + par[i] + 1
	}
	out := t.Clone()
	return out, out.SetNumeric(ColFamilySize, size)
}

// IsAloneDeriver adds IsAlone = 1 when FamilySize == 1, else 0.
type IsAloneDeriver struct{}

// Name returns the registry key "is_alone".
func (IsAloneDeriver) Name() string { return StepIsAlone }

// Derive returns a copy of t with IsAlone added. It reads FamilySize, so
// family_size must run first.
func (IsAloneDeriver) Derive(t *dataset.Table) (*dataset.Table, error) {
	size, err := t.Numeric(StepIsAlone, ColFamilySize)
	if err != nil {
		return nil, err
	}
	alone := make([]float64, t.Len())
	for i, s := range size {
		if s == 1 {
			alone[i] = 1
		}
	}
	out := t.Clone()
	return out, out.SetNumeric(ColIsAlone, alone)
}

var honorificPattern = regexp.MustCompile(` ([A-Za-z]+)\.`)

// Title codes. Unknown is used for names without a recognised honorific.
const (
	TitleUnknown = 0
	TitleMr      = 1
	TitleMiss    = 2
	TitleMrs     = 3
	TitleMaster  = 4
	TitleRare    = 5
)

var titleCodes = map[string]int{
	"Mr":     TitleMr,
	"Miss":   TitleMiss,
	"Mrs":    TitleMrs,
	"Master": TitleMaster,
	"Rare":   TitleRare,
}

var titleAliases = map[string]string{
	"Lady": "Rare", "Countess": "Rare", "Capt": "Rare", "Col": "Rare",
	"Don": "Rare", "Dr": "Rare", "Major": "Rare", "Rev": "Rare",
	"Sir": "Rare", "Jonkheer": "Rare", "Dona": "Rare",
	"Mlle": "Miss", "Ms": "Miss",
	"Mme": "Mrs",
}

// Honorific extracts the collapsed honorific of a passenger name, or "" when
// the name has none.
func Honorific(name string) string {
	m := honorificPattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	title := m[1]
	if alias, ok := titleAliases[title]; ok {
		return alias
	}
	return title
}

// TitleCode maps a name to its title code in [0, 5].
func TitleCode(name string) int {
	return titleCodes[Honorific(name)]
}

// HonorificDeriver adds Title, the coded honorific taken from Name.
type HonorificDeriver struct{}

// Name returns the registry key "honorific".
func (HonorificDeriver) Name() string { return StepHonorific }

// Derive returns a copy of t with Title added; every code is in [0, 5].
func (HonorificDeriver) Derive(t *dataset.Table) (*dataset.Table, error) {
	names, err := t.Strings(StepHonorific, dataset.ColName)
	if err != nil {
		return nil, err
	}
	codes := make([]float64, len(names))
	for i, n := range names {
		codes[i] = float64(TitleCode(n))
	}
	out := t.Clone()
	return out, out.SetNumeric(ColTitle, codes)
}

// DeckDeriver adds Deck, the first letter of Cabin, or "U" when the cabin
// is unknown.
type DeckDeriver struct{}

// Name returns the registry key "deck".
func (DeckDeriver) Name() string { return StepDeck }

// Derive returns a copy of t with the categorical Deck column added.
func (DeckDeriver) Derive(t *dataset.Table) (*dataset.Table, error) {
	cabins, err := t.Strings(StepDeck, dataset.ColCabin)
	if err != nil {
		return nil, err
	}
	decks := make([]string, len(cabins))
	for i, c := range cabins {
		c = strings.TrimSpace(c)
		if c == "" {
			decks[i] = "U"
			continue
		}
		decks[i] = strings.ToUpper(c[:1])
	}
	out := t.Clone()
	if err := out.SetStrings(ColDeck, decks); err != nil {
		return nil, errors.Wrap(err, "deck")
	}
	return out, nil
}
