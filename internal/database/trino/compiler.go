package trino

import (
	"fmt"
	"strings"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// sequence() refuses to materialize more than this many elements, so batches
// above it are produced as a block/offset cross join instead.
const sequenceCeiling = 10000

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
		// random(n) is an exact bounded draw, but the span arithmetic still
		// needs the same width guard as the float dialects.
		span, err := dbclient.BoundedSpan("trino", gen.Min, gen.Max)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(random(CAST(%d AS bigint)) + %d)", span, gen.Min), nil

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
			parts[i] = "lower(to_hex(md5(to_utf8(CAST(random() AS varchar)))))"
		}
		return fmt.Sprintf("substr(%s, 1, %d)", strings.Join(parts, " || "), gen.Length), nil

	case spec.Choice:
		arr, err := arrayLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("element_at(%s, 1 + CAST(random(CAST(%d AS bigint)) AS integer))",
			arr, len(gen.Values)), nil

	case spec.ChoiceByLookup:
		arr, err := arrayLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		alias := fmt.Sprintf("__pool%d", len(c.pools))
		c.pools = append(c.pools, arr)
		return fmt.Sprintf("element_at(%s.vals, 1 + CAST(random(CAST(%d AS bigint)) AS integer))",
			alias, len(gen.Values)), nil

	case spec.Constant:
		return literal(gen.Value)

	case spec.DatetimeRange:
		from := gen.From.Unix()
		span := gen.To.Unix() - from + 1
		return fmt.Sprintf("CAST(from_unixtime(%d + random(CAST(%d AS bigint))) AS timestamp(6))", from, span), nil

	case spec.UUID:
		return "CAST(uuid() AS varchar)", nil

	default:
		return "", dbclient.UnsupportedGenerator("trino", g)
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
	return fmt.Sprintf("IF(random() < %s, CAST(NULL AS %s), %s)",
		formatFloat(col.NullProbability), typeMap[col.Type], expr), nil
}

// InsertBatchSQL builds one set-based INSERT covering rows origin+1 through
// origin+rows. Small batches unnest a single sequence(); batches above the
// sequence ceiling fan out as blocks of the ceiling size cross-joined with
// in-block offsets, trimmed back to the exact row count.
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
	if rows <= sequenceCeiling {
		fmt.Fprintf(&b, "FROM UNNEST(sequence(%d, %d)) AS r(i)", origin+1, origin+rows)
	} else {
		blocks := (rows + sequenceCeiling - 1) / sequenceCeiling
		fmt.Fprintf(&b, "FROM (\n")
		fmt.Fprintf(&b, "  SELECT %d + b.j * %d + u.k AS i\n", origin, int64(sequenceCeiling))
		fmt.Fprintf(&b, "  FROM UNNEST(sequence(0, %d)) AS b(j)\n", blocks-1)
		fmt.Fprintf(&b, "  CROSS JOIN UNNEST(sequence(1, %d)) AS u(k)\n", int64(sequenceCeiling))
		fmt.Fprintf(&b, ") AS r")
	}
	for i, pool := range c.pools {
		fmt.Fprintf(&b, "\nCROSS JOIN (SELECT %s AS vals) AS __pool%d", pool, i)
	}
	if rows > sequenceCeiling {
		fmt.Fprintf(&b, "\nWHERE r.i <= %d", origin+rows)
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
