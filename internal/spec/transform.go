package spec

import (
	"fmt"
	"strings"
)

// Transformation is a rule for mutating a column of rows that already exist.
// Like Generator, the set is closed and exhaustively handled per dialect.
type Transformation interface {
	Kind() string
	Validate() error
	// TargetColumns lists the columns the transformation writes.
	TargetColumns() []string

	isTransformation()
}

// Template rebuilds a column from a literal pattern. `{name}` tokens are
// substituted with the named column's value cast to text; tokens that match
// no column pass through as literal text unless strict templates are enabled.
type Template struct {
	Column    string
	Pattern   string
	Lowercase bool
}

// MutateOp is one single-character edit operation.
type MutateOp string

const (
	MutateReplace MutateOp = "replace"
	MutateDelete  MutateOp = "delete"
	MutateInsert  MutateOp = "insert"
)

// Mutate applies one single-character edit at a uniformly random position,
// to each row independently, with the given probability. The operation is
// drawn uniformly from the allowed subset per affected row.
type Mutate struct {
	Column      string
	Probability float64
	Operations  []MutateOp
}

// Lookup copies a value from another table via an equality join:
// row.Column = source.SourceColumn where source.SourceMatchColumn equals
// row.MatchColumn. Rows without a match get NULL. Source match values are
// assumed unique.
type Lookup struct {
	Column            string
	SourceTable       string
	SourceColumn      string
	MatchColumn       string
	SourceMatchColumn string
}

// Swap exchanges two columns' values with the given per-row probability.
// One draw gates both sides: a row either keeps both values or swaps both.
type Swap struct {
	Column1     string
	Column2     string
	Probability float64
}

func (Template) Kind() string { return "template" }
func (Mutate) Kind() string   { return "mutate" }
func (Lookup) Kind() string   { return "lookup" }
func (Swap) Kind() string     { return "swap" }

func (Template) isTransformation() {}
func (Mutate) isTransformation()   {}
func (Lookup) isTransformation()   {}
func (Swap) isTransformation()     {}

func (t Template) TargetColumns() []string { return []string{t.Column} }
func (m Mutate) TargetColumns() []string   { return []string{m.Column} }
func (l Lookup) TargetColumns() []string   { return []string{l.Column} }
func (s Swap) TargetColumns() []string     { return []string{s.Column1, s.Column2} }

func (t Template) Validate() error {
	if t.Column == "" {
		return fmt.Errorf("template: no target column")
	}
	if t.Pattern == "" {
		return fmt.Errorf("template: empty pattern")
	}
	return nil
}

func (m Mutate) Validate() error {
	if m.Column == "" {
		return fmt.Errorf("mutate: no target column")
	}
	if m.Probability < 0 || m.Probability > 1 {
		return fmt.Errorf("mutate: probability %v out of [0,1]", m.Probability)
	}
	if len(m.Operations) == 0 {
		return fmt.Errorf("mutate: no operations declared")
	}
	for _, op := range m.Operations {
		switch op {
		case MutateReplace, MutateDelete, MutateInsert:
		default:
			return fmt.Errorf("mutate: unknown operation %q", op)
		}
	}
	return nil
}

func (l Lookup) Validate() error {
	if l.Column == "" || l.SourceTable == "" || l.SourceColumn == "" ||
		l.MatchColumn == "" || l.SourceMatchColumn == "" {
		return fmt.Errorf("lookup: column, sourceTable, sourceColumn, matchColumn and sourceMatchColumn are all required")
	}
	return nil
}

func (s Swap) Validate() error {
	if s.Column1 == "" || s.Column2 == "" {
		return fmt.Errorf("swap: both columns are required")
	}
	if s.Column1 == s.Column2 {
		return fmt.Errorf("swap: columns must differ, got %s twice", s.Column1)
	}
	if s.Probability < 0 || s.Probability > 1 {
		return fmt.Errorf("swap: probability %v out of [0,1]", s.Probability)
	}
	return nil
}

// Batch is one logical transformation pass. Batches execute strictly in
// order; transformations within a batch are logically concurrent and read
// pre-batch values (with the documented per-dialect exceptions).
type Batch []Transformation

// Validate rejects malformed transformations and double assignments. Two
// transformations writing the same column in one batch cannot be expressed
// as a single UPDATE and have no defined "read pre-batch values" semantics,
// so they are a spec error on every dialect.
func (b Batch) Validate(t Table) error {
	targets := make(map[string]bool)
	for _, tr := range b {
		if err := tr.Validate(); err != nil {
			return err
		}
		for _, col := range tr.TargetColumns() {
			if !t.HasColumn(col) {
				return fmt.Errorf("%s: table %s has no column %s", tr.Kind(), t.Name, col)
			}
			if targets[col] {
				return fmt.Errorf("column %s.%s is assigned by more than one transformation in the same batch", t.Name, col)
			}
			targets[col] = true
		}
	}
	return nil
}

// TemplateSegment is one piece of a parsed template pattern: either literal
// text or a `{column}` reference.
type TemplateSegment struct {
	Literal string
	Column  string
}

// Segments splits the pattern into literal and column-reference segments.
// A `{name}` token is a reference; braces that never close stay literal.
func (t Template) Segments() []TemplateSegment {
	var segs []TemplateSegment
	rest := t.Pattern
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			break
		}
		end := strings.Index(rest[open:], "}")
		if end < 0 {
			break
		}
		if open > 0 {
			segs = append(segs, TemplateSegment{Literal: rest[:open]})
		}
		segs = append(segs, TemplateSegment{Column: rest[open+1 : open+end]})
		rest = rest[open+end+1:]
	}
	if rest != "" {
		segs = append(segs, TemplateSegment{Literal: rest})
	}
	return segs
}
