package spec

import (
	"fmt"
	"time"
)

// Generator is a rule for producing one column's value per generated row.
// The set of generators is closed: dialect compilers switch over every
// concrete type and adding a new one is a compile-visible change in each of
// them.
type Generator interface {
	// Kind names the generator in error messages and scenario files.
	Kind() string
	// Validate checks the generator's own invariants (a spec error class).
	Validate() error

	isGenerator()
}

// Sequence is a deterministic arithmetic progression over the row ordinal.
// It is the one generator whose output must be bit-for-bit identical across
// dialects: row i (1-based) always yields Start + (i-1)*Step.
type Sequence struct {
	Start int64
	Step  int64
}

// RandomInt draws uniformly from the closed interval [Min, Max].
type RandomInt struct {
	Min int64
	Max int64
}

// RandomFloat draws uniformly from [Min, Max] rounded to Precision decimal
// digits. The alphabet of representable values therefore differs with
// Precision, not with the dialect.
type RandomFloat struct {
	Min       float64
	Max       float64
	Precision int
}

// RandomString produces an opaque fixed-length string. The alphabet is
// implementation-defined per dialect and must not be assumed identical
// across engines.
type RandomString struct {
	Length int
}

// Choice picks uniformly from a small literal list that is inlined into the
// generated SQL. For large lists use ChoiceByLookup.
type Choice struct {
	Values []any
}

// ChoiceByLookup picks uniformly from a large list. The list is materialized
// once per statement (array cross join) and indexed per row, so the per-row
// cost stays constant no matter how many values there are.
type ChoiceByLookup struct {
	Values []any
}

// Constant fills every row with the same literal. A nil value means NULL.
type Constant struct {
	Value any
}

// DatetimeRange draws a uniform timestamp from the closed interval
// [From, To], stored as whole seconds.
type DatetimeRange struct {
	From time.Time
	To   time.Time
}

// UUID produces a dialect-native v4 UUID rendered as a string.
type UUID struct{}

func (Sequence) Kind() string       { return "sequence" }
func (RandomInt) Kind() string      { return "randomInt" }
func (RandomFloat) Kind() string    { return "randomFloat" }
func (RandomString) Kind() string   { return "randomString" }
func (Choice) Kind() string         { return "choice" }
func (ChoiceByLookup) Kind() string { return "choiceByLookup" }
func (Constant) Kind() string       { return "constant" }
func (DatetimeRange) Kind() string  { return "datetime" }
func (UUID) Kind() string           { return "uuid" }

func (Sequence) isGenerator()       {}
func (RandomInt) isGenerator()      {}
func (RandomFloat) isGenerator()    {}
func (RandomString) isGenerator()   {}
func (Choice) isGenerator()         {}
func (ChoiceByLookup) isGenerator() {}
func (Constant) isGenerator()       {}
func (DatetimeRange) isGenerator()  {}
func (UUID) isGenerator()           {}

func (Sequence) Validate() error { return nil }

func (g RandomInt) Validate() error {
	if g.Min > g.Max {
		return fmt.Errorf("randomInt: min %d > max %d", g.Min, g.Max)
	}
	return nil
}

func (g RandomFloat) Validate() error {
	if g.Min > g.Max {
		return fmt.Errorf("randomFloat: min %v > max %v", g.Min, g.Max)
	}
	if g.Precision < 0 {
		return fmt.Errorf("randomFloat: negative precision %d", g.Precision)
	}
	return nil
}

func (g RandomString) Validate() error {
	if g.Length < 0 {
		return fmt.Errorf("randomString: negative length %d", g.Length)
	}
	return nil
}

func (g Choice) Validate() error {
	if len(g.Values) == 0 {
		return fmt.Errorf("choice: empty value list")
	}
	return nil
}

func (g ChoiceByLookup) Validate() error {
	if len(g.Values) == 0 {
		return fmt.Errorf("choiceByLookup: empty value list")
	}
	return nil
}

func (Constant) Validate() error { return nil }

func (g DatetimeRange) Validate() error {
	if g.From.After(g.To) {
		return fmt.Errorf("datetime: from %s is after to %s", g.From, g.To)
	}
	return nil
}

func (UUID) Validate() error { return nil }
