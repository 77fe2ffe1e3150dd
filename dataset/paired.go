package dataset

// Paired carries the labeled (training) and unlabeled (prediction) tables
// together. Stages that fit a statistic fit it on Labeled and apply it to
// both.
type Paired struct {
	Labeled   *Table
	Unlabeled *Table
}

// Clone deep-copies both tables.
func (p Paired) Clone() Paired {
	return Paired{Labeled: p.Labeled.Clone(), Unlabeled: p.Unlabeled.Clone()}
}

// Apply runs fn on both tables and returns the results. The labeled table
// is processed first; an error on either side is returned as is.
func (p Paired) Apply(fn func(*Table) (*Table, error)) (Paired, error) {
	l, err := fn(p.Labeled)
	if err != nil {
		return Paired{}, err
	}
	u, err := fn(p.Unlabeled)
	if err != nil {
		return Paired{}, err
	}
	return Paired{Labeled: l, Unlabeled: u}, nil
}
