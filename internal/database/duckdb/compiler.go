package duckdb

import (
	"fmt"
	"strings"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

type compiler struct {
	pools []string
}

// CompileExpression compiles a generator against a 1-based row ordinal
// expression. For choiceByLookup the returned expression references the
// __poolN alias that InsertBatchSQL hoists into the statement.
func (a *Adapter) CompileExpression(g spec.Generator, rowIdx string) (string, error) {
	c := &compiler{}
	return c.compile(g, rowIdx)
}

func (c *compiler) compile(g spec.Generator, rowIdx string) (string, error) {
	switch gen := g.(type) {
	case spec.Sequence:
		return fmt.Sprintf("(%s - 1) * %d + %d", rowIdx, gen.Step, gen.Start), nil

	case spec.RandomInt:
		span, err := dbclient.BoundedSpan("duckdb", gen.Min, gen.Max)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(CAST(floor(random() * %d) AS BIGINT) + %d)", span, gen.Min), nil

	case spec.RandomFloat:
		return fmt.Sprintf("round(random() * %s + %s, %d)",
			formatFloat(gen.Max-gen.Min), formatFloat(gen.Min), gen.Precision), nil

	case spec.RandomString:
		if gen.Length == 0 {
			return "''", nil
		}
		blocks := (gen.Length + 31) / 32
		parts := make([]string, blocks)
		for i := range parts {
			parts[i] = "md5(CAST(random() AS VARCHAR))"
		}
		return fmt.Sprintf("substr(%s, 1, %d)", strings.Join(parts, " || "), gen.Length), nil

	case spec.Choice:
		arr, err := listLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("list_extract(%s, 1 + CAST(floor(random() * %d) AS INTEGER))", arr, len(gen.Values)), nil

	case spec.ChoiceByLookup:
		arr, err := listLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		alias := fmt.Sprintf("__pool%d", len(c.pools))
		c.pools = append(c.pools, arr)
		return fmt.Sprintf("list_extract(%s.vals, 1 + CAST(floor(random() * %d) AS INTEGER))", alias, len(gen.Values)), nil

	case spec.Constant:
		return literal(gen.Value)

	case spec.DatetimeRange:
		from := gen.From.Unix()
		span := gen.To.Unix() - from + 1
		return fmt.Sprintf("CAST(to_timestamp(%d + CAST(floor(random() * %d) AS BIGINT)) AS TIMESTAMP)", from, span), nil

	case spec.UUID:
		return "CAST(uuid() AS VARCHAR)", nil

	default:
		return "", dbclient.UnsupportedGenerator("duckdb", g)
	}
}

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
// origin+rows, driven by the range() table function (exclusive upper bound).
func (a *Adapter) InsertBatchSQL(t spec.Table, origin, rows int64) (string, error) {
	c := &compiler{}
	names := make([]string, 0, len(t.Columns))
	exprs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		expr, err := c.compileColumn(col, "r.i")
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		names = append(names, QuoteIdentifier(col.Name))
		exprs = append(exprs, expr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", QuoteIdentifier(t.Name), strings.Join(names, ", "))
	fmt.Fprintf(&b, "SELECT %s\n", strings.Join(exprs, ", "))
	fmt.Fprintf(&b, "FROM range(%d, %d) AS r(i)", origin+1, origin+rows+1)
	for i, pool := range c.pools {
		fmt.Fprintf(&b, "\nCROSS JOIN (SELECT %s AS vals) AS __pool%d", pool, i)
	}
	return b.String(), nil
}

func listLiteral(values []any) (string, error) {
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := literal(v)
		if err != nil {
			return "", err
		}
		parts[i] = lit
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}
