// Package spec holds the engine-agnostic description of tables, columns,
// generators, transformations and scenarios. Everything in here is pure,
// immutable data supplied by the caller; the dialect adapters compile it
// into SQL but never mutate it.
package spec

import "fmt"

// ColumnType is the abstract column type. Each dialect maps it to its own
// physical type (see the adapter packages).
type ColumnType string

const (
	TypeInteger  ColumnType = "integer"
	TypeBigint   ColumnType = "bigint"
	TypeFloat    ColumnType = "float"
	TypeString   ColumnType = "string"
	TypeBoolean  ColumnType = "boolean"
	TypeDatetime ColumnType = "datetime"
	TypeDate     ColumnType = "date"
)

var columnTypes = map[ColumnType]bool{
	TypeInteger: true, TypeBigint: true, TypeFloat: true, TypeString: true,
	TypeBoolean: true, TypeDatetime: true, TypeDate: true,
}

// Column describes one column of a fabricated table. NullProbability is only
// meaningful when Nullable is set; 0 means never NULL and 1 means always NULL.
type Column struct {
	Name            string
	Type            ColumnType
	Generator       Generator
	Nullable        bool
	NullProbability float64
}

// Table describes one fabricated table. Column order is significant: the
// first column doubles as the sort/partition key on engines that require one.
type Table struct {
	Name    string
	Columns []Column
}

// Validate checks the invariants that make a table spec compilable at all.
// Violations are spec errors: they fail fast before any SQL is issued.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table spec has no name")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s has a column without a name", t.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("table %s declares column %s twice", t.Name, c.Name)
		}
		seen[c.Name] = true
		if !columnTypes[c.Type] {
			return fmt.Errorf("column %s.%s has unknown type %q", t.Name, c.Name, c.Type)
		}
		if c.Generator == nil {
			return fmt.Errorf("column %s.%s has no generator", t.Name, c.Name)
		}
		if err := c.Generator.Validate(); err != nil {
			return fmt.Errorf("column %s.%s: %w", t.Name, c.Name, err)
		}
		if c.NullProbability < 0 || c.NullProbability > 1 {
			return fmt.Errorf("column %s.%s: null probability %v out of [0,1]", t.Name, c.Name, c.NullProbability)
		}
	}
	return nil
}

// Column returns the column with the given name, if any.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table declares the named column.
func (t Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// FirstSequenceColumn returns the first column driven by a sequence
// generator. Resume only consults this column; further sequence columns are
// not independently resumed.
func (t Table) FirstSequenceColumn() (Column, Sequence, bool) {
	for _, c := range t.Columns {
		if s, ok := c.Generator.(Sequence); ok {
			return c, s, true
		}
	}
	return Column{}, Sequence{}, false
}

// WithSequenceStart returns a copy of the table whose first sequence column
// starts at the given value. The receiver is left untouched.
func (t Table) WithSequenceStart(start int64) Table {
	out := t
	out.Columns = make([]Column, len(t.Columns))
	copy(out.Columns, t.Columns)
	for i, c := range out.Columns {
		if s, ok := c.Generator.(Sequence); ok {
			s.Start = start
			out.Columns[i].Generator = s
			break
		}
	}
	return out
}
