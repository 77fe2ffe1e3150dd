package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Passenger file column names.
const (
	ColPassengerID = "PassengerId"
	ColSurvived    = "Survived"
	ColPclass      = "Pclass"
	ColName        = "Name"
	ColSex         = "Sex"
	ColAge         = "Age"
	ColSibSp       = "SibSp"
	ColParch       = "Parch"
	ColTicket      = "Ticket"
	ColFare        = "Fare"
	ColCabin       = "Cabin"
	ColEmbarked    = "Embarked"
)

// PassengerNumeric lists the passenger columns parsed as numbers. All other
// columns are read as strings.
var PassengerNumeric = []string{
	ColPassengerID, ColSurvived, ColPclass, ColAge, ColSibSp, ColParch, ColFare,
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string, numeric []string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	t, err := ReadCSV(f, numeric)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return t, nil
}

// ReadCSV reads a headered CSV into a Table. Columns named in numeric are
// parsed as float64 with empty cells as NaN; the rest are kept as strings
// with surrounding whitespace trimmed.
func ReadCSV(r io.Reader, numeric []string) (*Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	header = slices.Clone(header)
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	nums := make([][]float64, len(header))
	strs := make([][]string, len(header))
	isNum := make([]bool, len(header))
	for j, h := range header {
		isNum[j] = slices.Contains(numeric, h)
	}

	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		for j, cell := range rec {
			cell = strings.TrimSpace(cell)
			if !isNum[j] {
				strs[j] = append(strs[j], cell)
				continue
			}
			v := math.NaN()
			if cell != "" {
				v, err = strconv.ParseFloat(cell, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d column %s", line, header[j])
				}
			}
			nums[j] = append(nums[j], v)
		}
	}

	t := NewTable(line - 1)
	for j, h := range header {
		if isNum[j] {
			if nums[j] == nil {
				nums[j] = []float64{}
			}
			err = t.SetNumeric(h, nums[j])
		} else {
			if strs[j] == nil {
				strs[j] = []string{}
			}
			err = t.SetStrings(h, strs[j])
		}
		if err != nil {
			return nil, err
		}
	}
	return t, nil
}
