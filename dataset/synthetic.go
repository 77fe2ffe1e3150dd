package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"
)

var (
	synthSurnames = []string{"Braund", "Cumings", "Heikkinen", "Futrelle", "Allen", "Moran", "McCarthy", "Palsson"}
	synthTitles   = []string{"Mr", "Mrs", "Miss", "Master", "Dr", "Rev", "Mlle", "Col"}
	synthDecks    = []string{"A", "B", "C", "D", "E", "F", "G"}
	synthPorts    = []string{"S", "S", "S", "C", "Q"}
)

// SyntheticPassengers generates n passenger rows with ids starting at
// firstID. Survival depends on sex, class and age so a learner has signal
// to find. About one age in five and most cabins are missing. The result is
// deterministic for a given seed.
func SyntheticPassengers(n, firstID int, labeled bool, seed uint64) *Table {
	rng := rand.New(rand.NewPCG(seed, seed))

	ids := make([]float64, n)
	survived := make([]float64, n)
	pclass := make([]float64, n)
	names := make([]string, n)
	sex := make([]string, n)
	age := make([]float64, n)
	sibsp := make([]float64, n)
	parch := make([]float64, n)
	tickets := make([]string, n)
	fare := make([]float64, n)
	cabin := make([]string, n)
	embarked := make([]string, n)

	for i := 0; i < n; i++ {
		ids[i] = float64(firstID + i)
		pclass[i] = float64(1 + rng.IntN(3))

		title := synthTitles[rng.IntN(len(synthTitles))]
		switch title {
		case "Mrs", "Miss", "Mlle":
			sex[i] = "female"
		default:
			sex[i] = "male"
		}
		names[i] = fmt.Sprintf("%s, %s. Passenger %d", synthSurnames[rng.IntN(len(synthSurnames))], title, firstID+i)

		a := math.Round(5 + rng.Float64()*60)
		if title == "Master" {
			a = math.Round(1 + rng.Float64()*11)
		}
		age[i] = a
		if rng.IntN(5) == 0 {
			age[i] = math.NaN()
		}

		sibsp[i] = float64(rng.IntN(3))
		parch[i] = float64(rng.IntN(3))
		tickets[i] = strconv.Itoa(100000 + rng.IntN(900000))
		fare[i] = math.Round((80/pclass[i]+rng.Float64()*30)*100) / 100
		if pclass[i] == 1 || rng.IntN(6) == 0 {
			cabin[i] = synthDecks[rng.IntN(len(synthDecks))] + strconv.Itoa(1+rng.IntN(120))
		}
		embarked[i] = synthPorts[rng.IntN(len(synthPorts))]

		score := -0.8
		if sex[i] == "female" {
			score += 2.2
		}
		score += (2 - pclass[i]) * 0.8
		if a < 12 {
			score += 1.0
		}
		if rng.Float64() < 1/(1+math.Exp(-score)) {
			survived[i] = 1
		}
	}

	t := NewTable(n)
	_ = t.SetNumeric(ColPassengerID, ids)
	if labeled {
		_ = t.SetNumeric(ColSurvived, survived)
	}
	_ = t.SetNumeric(ColPclass, pclass)
	_ = t.SetStrings(ColName, names)
	_ = t.SetStrings(ColSex, sex)
	_ = t.SetNumeric(ColAge, age)
	_ = t.SetNumeric(ColSibSp, sibsp)
	_ = t.SetNumeric(ColParch, parch)
	_ = t.SetStrings(ColTicket, tickets)
	_ = t.SetNumeric(ColFare, fare)
	_ = t.SetStrings(ColCabin, cabin)
	_ = t.SetStrings(ColEmbarked, embarked)
	return t
}

// WriteCSV writes t with a header row. Missing numeric cells are written
// as empty strings.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Names()); err != nil {
		return err
	}
	row := make([]string, len(t.Cols))
	for i := 0; i < t.Len(); i++ {
		for j := range t.Cols {
			c := &t.Cols[j]
			switch {
			case c.Kind == Categorical:
				row[j] = c.Str[i]
			case math.IsNaN(c.Num[i]):
				row[j] = ""
			default:
				row[j] = strconv.FormatFloat(c.Num[i], 'f', -1, 64)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
