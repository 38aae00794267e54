package postgres

import (
	"fmt"
	"strings"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// compiler turns generator specs into SQL expressions. choiceByLookup value
// lists are hoisted into query-scoped cross joins (one per list, aliased
// __pool0, __pool1, ...) so the array is built once per statement, not once
// per row.
type compiler struct {
	pools []string
}

// CompileExpression compiles a generator against a 1-based row ordinal
// expression. It is a pure string transform; for choiceByLookup the returned
// expression references the __poolN alias that InsertBatchSQL hoists into
// the statement's FROM clause.
func (a *Adapter) CompileExpression(g spec.Generator, rowIdx string) (string, error) {
	c := &compiler{}
	return c.compile(g, rowIdx)
}

func (c *compiler) compile(g spec.Generator, rowIdx string) (string, error) {
	switch gen := g.(type) {
	case spec.Sequence:
		return fmt.Sprintf("(%s - 1) * %d + %d", rowIdx, gen.Step, gen.Start), nil

	case spec.RandomInt:
		// random() < 1, so floor over the closed span never exceeds Max.
		span, err := dbclient.BoundedSpan("postgresql", gen.Min, gen.Max)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(floor(random() * %d)::bigint + %d)", span, gen.Min), nil

	case spec.RandomFloat:
		return fmt.Sprintf("round((random() * %s + %s)::numeric, %d)::double precision",
			formatFloat(gen.Max-gen.Min), formatFloat(gen.Min), gen.Precision), nil

	case spec.RandomString:
		if gen.Length == 0 {
			return "''", nil
		}
		blocks := (gen.Length + 31) / 32
		parts := make([]string, blocks)
		for i := range parts {
			parts[i] = "md5(random()::text)"
		}
		return fmt.Sprintf("substr(%s, 1, %d)", strings.Join(parts, " || "), gen.Length), nil

	case spec.Choice:
		arr, err := arrayLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s)[floor(random() * %d)::int + 1]", arr, len(gen.Values)), nil

	case spec.ChoiceByLookup:
		arr, err := arrayLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		alias := fmt.Sprintf("__pool%d", len(c.pools))
		c.pools = append(c.pools, arr)
		return fmt.Sprintf("%s.vals[floor(random() * %d)::int + 1]", alias, len(gen.Values)), nil

	case spec.Constant:
		return literal(gen.Value)

	case spec.DatetimeRange:
		from := gen.From.Unix()
		span := gen.To.Unix() - from + 1
		return fmt.Sprintf("(to_timestamp(%d + floor(random() * %d)::bigint) AT TIME ZONE 'UTC')", from, span), nil

	case spec.UUID:
		return "gen_random_uuid()::text", nil

	default:
		return "", dbclient.UnsupportedGenerator("postgres", g)
	}
}

// compileColumn wraps the generator expression in NULL injection when the
// column is nullable. The probability boundaries short-circuit so neither
// extreme depends on the RNG.
func (c *compiler) compileColumn(col spec.Column, rowIdx string) (string, error) {
	if col.Nullable && col.NullProbability >= 1 {
		return fmt.Sprintf("CAST(NULL AS %s)", typeMap[col.Type]), nil
	}
	expr, err := c.compile(col.Generator, rowIdx)
	if err != nil {
		return "", err
	}
	if !col.Nullable || col.NullProbability <= 0 {
		return expr, nil
	}
	return fmt.Sprintf("CASE WHEN random() < %s THEN NULL ELSE %s END",
		formatFloat(col.NullProbability), expr), nil
}

// InsertBatchSQL builds one set-based INSERT covering rows origin+1 through
// origin+rows, driven by generate_series as the row-ordinal source.
func (a *Adapter) InsertBatchSQL(t spec.Table, origin, rows int64) (string, error) {
	c := &compiler{}
	names := make([]string, 0, len(t.Columns))
	exprs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		expr, err := c.compileColumn(col, "g.i")
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		names = append(names, QuoteIdentifier(col.Name))
		exprs = append(exprs, expr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", QuoteIdentifier(t.Name), strings.Join(names, ", "))
	fmt.Fprintf(&b, "SELECT %s\n", strings.Join(exprs, ", "))
	fmt.Fprintf(&b, "FROM generate_series(%d, %d) AS g(i)", origin+1, origin+rows)
	for i, pool := range c.pools {
		fmt.Fprintf(&b, "\nCROSS JOIN (SELECT %s AS vals) AS __pool%d", pool, i)
	}
	return b.String(), nil
}

func arrayLiteral(values []any) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := literal(v)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return "ARRAY[" + strings.Join(parts, ", ") + "]", nil
}
