// Package dataset holds the columnar passenger table that flows through the
// pipeline.
//
// A Table is an ordered set of named columns sharing one row count. Numeric
// columns store float64 with NaN for missing cells; categorical and text
// columns store strings with "" for missing cells. Column order is insertion
// order and every operation preserves it.
package dataset

import (
	"math"
	"slices"

	"github.com/YuminosukeSato/survival/pkg/errors"
)

// Kind distinguishes numeric from string columns.
type Kind int

const (
	// Numeric columns hold float64 values, NaN when missing.
	Numeric Kind = iota
	// Categorical columns hold string values, "" when missing.
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Column is one named column. Exactly one of Num and Str is populated,
// matching Kind.
type Column struct {
	Name string
	Kind Kind
	Num  []float64
	Str  []string
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Num)
	}
	return len(c.Str)
}

// IsMissing reports whether row i is missing.
func (c *Column) IsMissing(i int) bool {
	if c.Kind == Numeric {
		return math.IsNaN(c.Num[i])
	}
	return c.Str[i] == ""
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsMissing(i) {
			n++
		}
	}
	return n
}

func (c Column) clone() Column {
	return Column{
		Name: c.Name,
		Kind: c.Kind,
		Num:  slices.Clone(c.Num),
		Str:  slices.Clone(c.Str),
	}
}

// Table is an ordered collection of equally sized columns. Fields are
// exported so the table can be gob-encoded as a feature snapshot; use the
// methods to mutate it.
type Table struct {
	Cols  []Column
	NRows int
}

// NewTable creates an empty table with a fixed row count.
func NewTable(rows int) *Table {
	return &Table{NRows: rows}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.NRows }

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Cols))
	for i, c := range t.Cols {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	return t.indexOf(name) >= 0
}

func (t *Table) indexOf(name string) int {
	for i := range t.Cols {
		if t.Cols[i].Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column. The returned column shares storage
// with the table.
func (t *Table) Column(name string) (*Column, bool) {
	i := t.indexOf(name)
	if i < 0 {
		return nil, false
	}
	return &t.Cols[i], true
}

// Numeric returns the values of a numeric column. op names the caller for
// error reporting.
func (t *Table) Numeric(op, name string) ([]float64, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewMissingColumnError(op, name)
	}
	if c.Kind != Numeric {
		return nil, errors.NewValueError(op, "column "+name+" is not numeric")
	}
	return c.Num, nil
}

// Strings returns the values of a categorical column.
func (t *Table) Strings(op, name string) ([]string, error) {
	c, ok := t.Column(name)
	if !ok {
		return nil, errors.NewMissingColumnError(op, name)
	}
	if c.Kind != Categorical {
		return nil, errors.NewValueError(op, "column "+name+" is not categorical")
	}
	return c.Str, nil
}

// SetNumeric adds a numeric column, or replaces an existing column of the
// same name in place so its position is kept.
func (t *Table) SetNumeric(name string, values []float64) error {
	if len(values) != t.NRows {
		return errors.NewDimensionError("SetNumeric("+name+")", t.NRows, len(values), 0)
	}
	t.set(Column{Name: name, Kind: Numeric, Num: values})
	return nil
}

// SetStrings adds or replaces a categorical column.
func (t *Table) SetStrings(name string, values []string) error {
	if len(values) != t.NRows {
		return errors.NewDimensionError("SetStrings("+name+")", t.NRows, len(values), 0)
	}
	t.set(Column{Name: name, Kind: Categorical, Str: values})
	return nil
}

func (t *Table) set(c Column) {
	if i := t.indexOf(c.Name); i >= 0 {
		t.Cols[i] = c
		return
	}
	t.Cols = append(t.Cols, c)
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{NRows: t.NRows, Cols: make([]Column, len(t.Cols))}
	for i, c := range t.Cols {
		out.Cols[i] = c.clone()
	}
	return out
}

// Drop returns a copy without the named columns. Unknown names are ignored.
func (t *Table) Drop(names ...string) *Table {
	out := &Table{NRows: t.NRows}
	for _, c := range t.Cols {
		if !slices.Contains(names, c.Name) {
			out.Cols = append(out.Cols, c.clone())
		}
	}
	return out
}

// Rows returns a copy holding only the given rows, in the given order.
func (t *Table) Rows(idx []int) *Table {
	out := &Table{NRows: len(idx), Cols: make([]Column, len(t.Cols))}
	for j, c := range t.Cols {
		nc := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Numeric {
			nc.Num = make([]float64, len(idx))
			for k, i := range idx {
				nc.Num[k] = c.Num[i]
			}
		} else {
			nc.Str = make([]string, len(idx))
			for k, i := range idx {
				nc.Str[k] = c.Str[i]
			}
		}
		out.Cols[j] = nc
	}
	return out
}

// Record returns a read-only view of row i.
func (t *Table) Record(i int) Record {
	return Record{t: t, row: i}
}

// MissingCounts returns the number of missing cells per column, for columns
// that have at least one.
func (t *Table) MissingCounts() map[string]int {
	out := make(map[string]int)
	for i := range t.Cols {
		if n := t.Cols[i].MissingCount(); n > 0 {
			out[t.Cols[i].Name] = n
		}
	}
	return out
}

// Record is one row of a Table, read by column name.
type Record struct {
	t   *Table
	row int
}

// Index returns the row index within the table.
func (r Record) Index() int { return r.row }

// Float returns the numeric value of a column. ok is false when the column
// is absent or not numeric. Missing cells are returned as NaN.
func (r Record) Float(name string) (v float64, ok bool) {
	c, found := r.t.Column(name)
	if !found || c.Kind != Numeric {
		return math.NaN(), false
	}
	return c.Num[r.row], true
}

// String returns the string value of a column, "" when missing.
func (r Record) String(name string) (v string, ok bool) {
	c, found := r.t.Column(name)
	if !found || c.Kind != Categorical {
		return "", false
	}
	return c.Str[r.row], true
}
