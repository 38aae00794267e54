package clickhouse

import (
	"fmt"
	"strings"

	"github.com/fabrica-io/fabrica/internal/database/dbclient"
	"github.com/fabrica-io/fabrica/internal/spec"
)

// compiler turns generator specs into ClickHouse expressions.
//
// ClickHouse collapses identical subexpressions, including nondeterministic
// ones: two textual occurrences of rand() in one statement are a single draw
// per row. Every draw therefore gets a distinct integer seed argument
// (rand(0), rand(1), ...) so that different columns stay independent.
type compiler struct {
	pools []string
	seeds int
}

func (c *compiler) rand() string {
	c.seeds++
	return fmt.Sprintf("rand(%d)", c.seeds-1)
}

func (c *compiler) rand64() string {
	c.seeds++
	return fmt.Sprintf("rand64(%d)", c.seeds-1)
}

// uniform is a canonical draw in [0, 1): a 32-bit rand scaled down.
func (c *compiler) uniform() string {
	return fmt.Sprintf("(%s / 4294967296)", c.rand())
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
		// 64-bit modulo keeps the closed interval exact for any span.
		span := gen.Max - gen.Min + 1
		return fmt.Sprintf("(toInt64(%s %% toUInt64(%d)) + %d)", c.rand64(), span, gen.Min), nil

	case spec.RandomFloat:
		return fmt.Sprintf("round(%s * %s + %s, %d)",
			c.uniform(), formatFloat(gen.Max-gen.Min), formatFloat(gen.Min), gen.Precision), nil

	case spec.RandomString:
		// randomPrintableASCII has no seed argument to defeat CSE, so two
		// columns using it would collapse into one draw. Seeded md5 blocks
		// keep columns independent; the hex alphabet is per-dialect anyway.
		if gen.Length == 0 {
			return "''", nil
		}
		blocks := (gen.Length + 31) / 32
		parts := make([]string, blocks)
		for i := range parts {
			parts[i] = fmt.Sprintf("lower(hex(MD5(toString(%s))))", c.rand())
		}
		body := parts[0]
		if blocks > 1 {
			body = fmt.Sprintf("concat(%s)", strings.Join(parts, ", "))
		}
		return fmt.Sprintf("substring(%s, 1, %d)", body, gen.Length), nil

	case spec.Choice:
		arr, err := arrayLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("arrayElement(%s, 1 + %s %% %d)", arr, c.rand(), len(gen.Values)), nil

	case spec.ChoiceByLookup:
		arr, err := arrayLiteral(gen.Values)
		if err != nil {
			return "", err
		}
		alias := fmt.Sprintf("__pool%d", len(c.pools))
		c.pools = append(c.pools, arr)
		return fmt.Sprintf("arrayElement(%s.vals, 1 + %s %% %d)", alias, c.rand(), len(gen.Values)), nil

	case spec.Constant:
		return literal(gen.Value)

	case spec.DatetimeRange:
		from := gen.From.Unix()
		span := gen.To.Unix() - from + 1
		return fmt.Sprintf("toDateTime(%d + toInt64(%s %% toUInt64(%d)))", from, c.rand64(), span), nil

	case spec.UUID:
		return "toString(generateUUIDv4())", nil

	default:
		return "", dbclient.UnsupportedGenerator("clickhouse", g)
	}
}

func (c *compiler) compileColumn(col spec.Column, rowIdx string) (string, error) {
	if col.Nullable && col.NullProbability >= 1 {
		return fmt.Sprintf("CAST(NULL AS Nullable(%s))", typeMap[col.Type]), nil
	}
	expr, err := c.compile(col.Generator, rowIdx)
	if err != nil {
		return "", err
	}
	if !col.Nullable || col.NullProbability <= 0 {
		return expr, nil
	}
	return fmt.Sprintf("if(%s < %s, NULL, %s)",
		c.uniform(), formatFloat(col.NullProbability), expr), nil
}

// InsertBatchSQL builds one set-based INSERT covering rows origin+1 through
// origin+rows, driven by the numbers() table function.
func (a *Adapter) InsertBatchSQL(t spec.Table, origin, rows int64) (string, error) {
	c := &compiler{}
	names := make([]string, 0, len(t.Columns))
	exprs := make([]string, 0, len(t.Columns))
	for _, col := range t.Columns {
		expr, err := c.compileColumn(col, "(number + 1)")
		if err != nil {
			return "", fmt.Errorf("column %s: %w", col.Name, err)
		}
		names = append(names, QuoteIdentifier(col.Name))
		exprs = append(exprs, expr)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s)\n", QuoteIdentifier(t.Name), strings.Join(names, ", "))
	fmt.Fprintf(&b, "SELECT %s\n", strings.Join(exprs, ", "))
	fmt.Fprintf(&b, "FROM numbers(%d, %d)", origin, rows)
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
	return "[" + strings.Join(parts, ", ") + "]", nil
}
